package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of a link check run. It is built once and
// passed by value to the checker; nothing reads settings from globals.
type Config struct {
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxThreads      int
	MinBlockSize    int64
	SplitThreshold  int64
	ProbeMaxRetries int
	MaxFailures     int
	UserAgent       string
	ProbeRateLimit  float64 // probes per second, 0 disables throttling
	TempDir         string
	ProxyURL        string
	Headers         map[string]string
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  DefaultConnTimeout,
		ReadTimeout:     DefaultReadTimeout,
		MaxThreads:      DefaultMaxThreads,
		MinBlockSize:    DefaultMinBlockSize,
		SplitThreshold:  DefaultSplitThreshold,
		ProbeMaxRetries: DefaultProbeMaxRetries,
		MaxFailures:     DefaultMaxFailures,
		UserAgent:       ToolUserAgent,
		TempDir:         os.TempDir(),
		Headers:         map[string]string{},
	}
}

func newViper() *viper.Viper {
	def := DefaultConfig()
	v := viper.New()
	v.SetDefault(KeyConnectionTimeout, def.ConnectTimeout.Milliseconds())
	v.SetDefault(KeyReadTimeout, def.ReadTimeout.Milliseconds())
	v.SetDefault(KeyMaxThreadCount, def.MaxThreads)
	v.SetDefault(KeyMinBlockSize, def.MinBlockSize)
	v.SetDefault(KeySplitThreshold, def.SplitThreshold)
	v.SetDefault(KeyFileInfoMaxRetries, def.ProbeMaxRetries)
	v.SetDefault(KeyMaxFailuresCount, def.MaxFailures)
	v.SetDefault(KeyUserAgent, def.UserAgent)
	v.SetDefault(KeyProbeRateLimit, def.ProbeRateLimit)
	v.SetDefault(KeyTempDir, def.TempDir)
	v.SetDefault(KeyProxyURL, def.ProxyURL)
	v.SetEnvPrefix("LINKCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads defaults, then the optional settings file at path, then
// LINKCHECK_* environment variables (LINKCHECK_READ_TIMEOUT overrides
// read.timeout). An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		ConnectTimeout:  time.Duration(v.GetInt64(KeyConnectionTimeout)) * time.Millisecond,
		ReadTimeout:     time.Duration(v.GetInt64(KeyReadTimeout)) * time.Millisecond,
		MaxThreads:      v.GetInt(KeyMaxThreadCount),
		MinBlockSize:    v.GetInt64(KeyMinBlockSize),
		SplitThreshold:  v.GetInt64(KeySplitThreshold),
		ProbeMaxRetries: v.GetInt(KeyFileInfoMaxRetries),
		MaxFailures:     v.GetInt(KeyMaxFailuresCount),
		UserAgent:       v.GetString(KeyUserAgent),
		ProbeRateLimit:  v.GetFloat64(KeyProbeRateLimit),
		TempDir:         v.GetString(KeyTempDir),
		ProxyURL:        v.GetString(KeyProxyURL),
		Headers:         map[string]string{},
	}
}

// Validate rejects values the checker cannot run with. The worker count is
// not checked here: the manager clamps it to [MinThreads, MaxThreads].
func (c Config) Validate() error {
	switch {
	case c.ConnectTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyConnectionTimeout)
	case c.ReadTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyReadTimeout)
	case c.MinBlockSize <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyMinBlockSize)
	case c.SplitThreshold <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeySplitThreshold)
	case c.ProbeMaxRetries <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyFileInfoMaxRetries)
	case c.MaxFailures <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyMaxFailuresCount)
	case c.ProbeRateLimit < 0:
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, KeyProbeRateLimit)
	}
	return nil
}

// HTTPClientConfig is the client setup used by fetch workers.
func (c Config) HTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		ProxyURL:       c.ProxyURL,
		UserAgent:      c.UserAgent,
		Headers:        c.Headers,
	}
}

// ProbeClientConfig is HTTPClientConfig plus the probe rate limit.
func (c Config) ProbeClientConfig() HTTPClientConfig {
	cfg := c.HTTPClientConfig()
	cfg.RateLimit = c.ProbeRateLimit
	return cfg
}
