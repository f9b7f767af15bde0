package runtime

import "time"

// Config holds the tunables shared by both isolation backends.
type Config struct {
	// VMCapacity bounds concurrent in-process VM executions.
	VMCapacity int64
	// MaxStdoutBytes caps captured stdout per execution.
	MaxStdoutBytes int
	// MaxCallStackSize limits VM recursion depth.
	MaxCallStackSize int
	// OwnerCacheSize bounds the per-owner admission state table.
	OwnerCacheSize int

	SandboxBaseURL       string
	SandboxAPIKey        string
	SandboxSubmitTimeout time.Duration
	SandboxPollInterval  time.Duration
	SandboxMaxPollDelay  time.Duration
}

// Option configures a Config.
type Option func(*Config)

func WithVMCapacity(n int64) Option {
	return func(c *Config) { c.VMCapacity = n }
}

func WithMaxStdoutBytes(n int) Option {
	return func(c *Config) { c.MaxStdoutBytes = n }
}

func WithSandbox(baseURL, apiKey string) Option {
	return func(c *Config) {
		c.SandboxBaseURL = baseURL
		c.SandboxAPIKey = apiKey
	}
}

func WithSandboxPolling(interval, maxDelay time.Duration) Option {
	return func(c *Config) {
		c.SandboxPollInterval = interval
		c.SandboxMaxPollDelay = maxDelay
	}
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		VMCapacity:           32,
		MaxStdoutBytes:       512 * 1024,
		MaxCallStackSize:     500,
		OwnerCacheSize:       1024,
		SandboxSubmitTimeout: 10 * time.Second,
		SandboxPollInterval:  150 * time.Millisecond,
		SandboxMaxPollDelay:  2 * time.Second,
	}
}

// MergeWithDefaults fills zero values in config with defaults, preserving
// anything the caller set.
func MergeWithDefaults(config *Config) *Config {
	defaults := DefaultConfig()
	if config == nil {
		return defaults
	}
	merged := *config
	if merged.VMCapacity == 0 {
		merged.VMCapacity = defaults.VMCapacity
	}
	if merged.MaxStdoutBytes == 0 {
		merged.MaxStdoutBytes = defaults.MaxStdoutBytes
	}
	if merged.MaxCallStackSize == 0 {
		merged.MaxCallStackSize = defaults.MaxCallStackSize
	}
	if merged.OwnerCacheSize == 0 {
		merged.OwnerCacheSize = defaults.OwnerCacheSize
	}
	if merged.SandboxSubmitTimeout == 0 {
		merged.SandboxSubmitTimeout = defaults.SandboxSubmitTimeout
	}
	if merged.SandboxPollInterval == 0 {
		merged.SandboxPollInterval = defaults.SandboxPollInterval
	}
	if merged.SandboxMaxPollDelay == 0 {
		merged.SandboxMaxPollDelay = defaults.SandboxMaxPollDelay
	}
	return &merged
}
