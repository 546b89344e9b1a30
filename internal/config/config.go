package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Config.
const EnvPrefix = "CLUSTERWATCH"

// ErrInvalidSetting is wrapped by every Validate failure.
var ErrInvalidSetting = errors.New("invalid setting")

// Overridable in tests.
var userConfigDir = os.UserConfigDir

// Config is a layered view over defaults, the config file, the
// environment and bound flags.
type Config struct {
	v *viper.Viper
}

// New registers defaults for options and enables CLUSTERWATCH_ environment
// overrides. The config file is read separately by ReadFile, once the
// --config flag has been parsed.
func New(options []Option) *Config {
	v := viper.New()

	for _, o := range options {
		v.SetDefault(o.Key, o.Default)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}
}

// ReadFile loads the config file. An empty file means config.yaml in the
// user config directory; a missing default file is not an error, a missing
// explicit one is.
func (c *Config) ReadFile(file string) error {
	if file != "" {
		c.v.SetConfigFile(file)
	} else {
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
		if dir, err := userConfigDir(); err == nil {
			c.v.AddConfigPath(filepath.Join(dir, "clusterwatch"))
		}
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if file != "" || !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// BindFlags registers a flag per option on fs and binds it to its key.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		if fs.Lookup(o.Flag) == nil {
			switch v := o.Default.(type) {
			case string:
				fs.String(o.Flag, v, o.Description)
			case int:
				fs.Int(o.Flag, v, o.Description)
			case bool:
				fs.Bool(o.Flag, v, o.Description)
			case []string:
				fs.StringSlice(o.Flag, v, o.Description)
			case time.Duration:
				fs.Duration(o.Flag, v, o.Description)
			default:
				return fmt.Errorf("unsupported flag type for key: %s", o.Key)
			}
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

// File returns the config file in use, or "" when none was found.
func (c *Config) File() string {
	return c.v.ConfigFileUsed()
}

func (c *Config) Kubeconfig() string {
	return c.v.GetString(KeyKubeconfig) // CLUSTERWATCH_KUBECONFIG
}

func (c *Config) Fleet() bool {
	return c.v.GetBool(KeyModeFleet) // CLUSTERWATCH_MODE_FLEET
}

func (c *Config) Focused() bool {
	return c.v.GetBool(KeyModeFocused) // CLUSTERWATCH_MODE_FOCUSED
}

func (c *Config) ReconcileInterval() time.Duration {
	return c.v.GetDuration(KeyReconcileInterval) // CLUSTERWATCH_RECONCILE_INTERVAL
}

func (c *Config) FileWatchInterval() time.Duration {
	return c.v.GetDuration(KeyFileWatchInterval) // CLUSTERWATCH_FILEWATCH_INTERVAL
}

func (c *Config) FileWatchPoll() bool {
	return c.v.GetBool(KeyFileWatchPoll) // CLUSTERWATCH_FILEWATCH_POLL
}

func (c *Config) BackoffInitial() time.Duration {
	return c.v.GetDuration(KeyBackoffInitial) // CLUSTERWATCH_BACKOFF_INITIAL
}

func (c *Config) BackoffMax() time.Duration {
	return c.v.GetDuration(KeyBackoffMax) // CLUSTERWATCH_BACKOFF_MAX
}

func (c *Config) LogLevel() string {
	return c.v.GetString(KeyLogLevel) // CLUSTERWATCH_LOG_LEVEL
}

func (c *Config) LogFormat() string {
	return c.v.GetString(KeyLogFormat) // CLUSTERWATCH_LOG_FORMAT
}

func (c *Config) MetricsAddress() string {
	return c.v.GetString(KeyMetricsAddress) // CLUSTERWATCH_METRICS_ADDRESS
}

func (c *Config) EventsBuffer() int {
	return c.v.GetInt(KeyEventsBuffer) // CLUSTERWATCH_EVENTS_BUFFER
}

// Validate checks the watch settings.
func (c *Config) Validate() error {
	if !c.Fleet() && !c.Focused() {
		return fmt.Errorf("%w: at least one of %s and %s must be enabled", ErrInvalidSetting, KeyModeFleet, KeyModeFocused)
	}

	durations := []struct {
		key string
		val time.Duration
	}{
		{KeyReconcileInterval, c.ReconcileInterval()},
		{KeyFileWatchInterval, c.FileWatchInterval()},
		{KeyBackoffInitial, c.BackoffInitial()},
		{KeyBackoffMax, c.BackoffMax()},
	}
	for _, d := range durations {
		if d.val <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidSetting, d.key, d.val)
		}
	}
	if c.BackoffMax() < c.BackoffInitial() {
		return fmt.Errorf("%w: %s (%v) is below %s (%v)", ErrInvalidSetting,
			KeyBackoffMax, c.BackoffMax(), KeyBackoffInitial, c.BackoffInitial())
	}

	if n := c.EventsBuffer(); n < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidSetting, KeyEventsBuffer, n)
	}

	switch strings.ToLower(c.LogFormat()) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %s must be text or json, got %q", ErrInvalidSetting, KeyLogFormat, c.LogFormat())
	}

	return nil
}
