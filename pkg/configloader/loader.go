// Package configloader builds logsink configurations from YAML documents,
// configuration files, and environment variables using Viper.
//
// The loader covers the declarative part of a writer's configuration: queue
// bounds, overflow strategy, time format, rotation policy, and sink kind.
// Callbacks (error handler, metrics reporter) are code, not configuration,
// and are set by the caller on the returned Config.
package configloader

import (
	"bytes"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"

	"github.com/hyp3rd/logsink"
	"github.com/hyp3rd/logsink/pkg/sizesink"
)

const defaultEnvPrefix = "LOGSINK"

// rawConfig mirrors the configuration document before it is translated into
// concrete policies and openers.
type rawConfig struct {
	MaxQueueSize int         `mapstructure:"max_queue_size"`
	Overflow     string      `mapstructure:"overflow"`
	TimeFormat   string      `mapstructure:"time_format"`
	Rotation     rawRotation `mapstructure:"rotation"`
	Sink         rawSink     `mapstructure:"sink"`
}

type rawRotation struct {
	Policy   string `mapstructure:"policy"`
	Interval string `mapstructure:"interval"`
	Pattern  string `mapstructure:"pattern"`
	Every    int    `mapstructure:"every"`
	Prefix   string `mapstructure:"prefix"`
	Name     string `mapstructure:"name"`
}

type rawSink struct {
	Type      string `mapstructure:"type"`
	Dir       string `mapstructure:"dir"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

// FromEnv loads configuration from environment variables using the provided
// prefix (LOGSINK when empty). Keys are uppercased with dots replaced by
// underscores: rotation.policy becomes LOGSINK_ROTATION_POLICY.
func FromEnv(prefix string) (*logsink.Config, error) {
	viperInstance := viper.New()

	err := bindEnvironment(viperInstance, normalizePrefix(prefix))
	if err != nil {
		return nil, err
	}

	return fromViper(viperInstance)
}

// FromYAML loads configuration from a YAML document provided as bytes.
func FromYAML(data []byte) (*logsink.Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigType("yaml")

	err := viperInstance.ReadConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to read YAML configuration")
	}

	return fromViper(viperInstance)
}

// FromFile loads configuration from a file, merging environment overrides
// using the default prefix.
func FromFile(path string) (*logsink.Config, error) {
	viperInstance := viper.New()

	err := bindEnvironment(viperInstance, defaultEnvPrefix)
	if err != nil {
		return nil, err
	}

	viperInstance.SetConfigFile(path)

	err = viperInstance.ReadInConfig()
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to read configuration file").
			WithMetadata("path", path)
	}

	return fromViper(viperInstance)
}

func fromViper(viperInstance *viper.Viper) (*logsink.Config, error) {
	var raw rawConfig

	err := viperInstance.Unmarshal(&raw)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to decode configuration")
	}

	return applyRaw(raw)
}

func bindEnvironment(viperInstance *viper.Viper, prefix string) error {
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.SetEnvPrefix(prefix)
	viperInstance.AutomaticEnv()

	for _, key := range allKeys() {
		err := viperInstance.BindEnv(key)
		if err != nil {
			return ewrap.Wrap(err, "failed to bind environment key").
				WithMetadata("key", key)
		}
	}

	return nil
}

func allKeys() []string {
	return []string{
		"max_queue_size",
		"overflow",
		"time_format",
		"rotation.policy",
		"rotation.interval",
		"rotation.pattern",
		"rotation.every",
		"rotation.prefix",
		"rotation.name",
		"sink.type",
		"sink.dir",
		"sink.max_size_mb",
	}
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return defaultEnvPrefix
	}

	return strings.ToUpper(strings.TrimSuffix(prefix, "_"))
}

// applyRaw translates the raw document into a writer configuration.
func applyRaw(raw rawConfig) (*logsink.Config, error) {
	config := logsink.DefaultConfig()

	if raw.MaxQueueSize > 0 {
		config.MaxQueueSize = raw.MaxQueueSize
	}

	overflow, err := parseOverflow(raw.Overflow)
	if err != nil {
		return nil, err
	}

	config.Overflow = overflow

	if raw.TimeFormat != "" {
		config.TimeFormat = raw.TimeFormat
	}

	policy, err := buildPolicy(raw.Rotation)
	if err != nil {
		return nil, err
	}

	config.Policy = policy

	opener, err := buildOpener(raw.Sink)
	if err != nil {
		return nil, err
	}

	config.Opener = opener

	return &config, nil
}

func parseOverflow(value string) (logsink.OverflowStrategy, error) {
	switch strings.ToLower(value) {
	case "", "drop_newest", "drop-newest":
		return logsink.OverflowDropNewest, nil
	case "drop_oldest", "drop-oldest":
		return logsink.OverflowDropOldest, nil
	default:
		return 0, ewrap.New("invalid overflow strategy").
			WithMetadata("overflow", value)
	}
}

func buildPolicy(raw rawRotation) (logsink.RotationPolicy, error) {
	switch strings.ToLower(raw.Policy) {
	case "":
		return nil, nil // writer default
	case "interval":
		interval := 24 * time.Hour

		if raw.Interval != "" {
			parsed, err := time.ParseDuration(raw.Interval)
			if err != nil {
				return nil, ewrap.Wrap(err, "invalid rotation interval").
					WithMetadata("interval", raw.Interval)
			}

			interval = parsed
		}

		return logsink.NewIntervalRotation(interval, raw.Pattern), nil
	case "count":
		if raw.Every <= 0 {
			return nil, ewrap.New("count rotation requires rotation.every > 0")
		}

		return logsink.NewCountRotation(raw.Every, raw.Prefix), nil
	case "static":
		if raw.Name == "" {
			return nil, ewrap.New("static rotation requires rotation.name")
		}

		return logsink.NewStaticName(raw.Name), nil
	default:
		return nil, ewrap.New("invalid rotation policy").
			WithMetadata("policy", raw.Policy)
	}
}

func buildOpener(raw rawSink) (logsink.SinkOpener, error) {
	switch strings.ToLower(raw.Type) {
	case "", "file":
		return &logsink.FileOpener{Dir: raw.Dir}, nil
	case "console":
		return &logsink.ConsoleOpener{}, nil
	case "size":
		var opts []sizesink.Option

		if raw.MaxSizeMB > 0 {
			opts = append(opts, sizesink.WithMaxSize(raw.MaxSizeMB))
		}

		return &sizesink.Opener{Dir: raw.Dir, Options: opts}, nil
	default:
		return nil, ewrap.New("invalid sink type").
			WithMetadata("type", raw.Type)
	}
}
