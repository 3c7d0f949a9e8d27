package logsink

import (
	"github.com/hyp3rd/ewrap"
)

// ErrNoSinkOpen indicates that an item could not be written because no sink
// is currently open and opening one failed. It is delivered through the
// configured ErrorHandler, once per affected item.
var ErrNoSinkOpen = ewrap.New("no sink is open")
