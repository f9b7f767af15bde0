package config

import (
	"time"
)

// Config is the full configuration for the code execution service.
// Values load from defaults, then environment variables (prefix CODEEXEC_).
type Config struct {
	Runtime RuntimeConfig `koanf:"runtime" validate:"required"`
	Sandbox SandboxConfig `koanf:"sandbox"`
	Log     LogConfig     `koanf:"log"`
}

// RuntimeConfig bounds execution regardless of what callers request.
type RuntimeConfig struct {
	DefaultTimeout time.Duration `koanf:"default_timeout" validate:"min=1000000"  env:"CODEEXEC_RUNTIME_DEFAULT_TIMEOUT"`
	MaxTimeout     time.Duration `koanf:"max_timeout"     validate:"min=1000000"  env:"CODEEXEC_RUNTIME_MAX_TIMEOUT"`
	VMCapacity     int64         `koanf:"vm_capacity"     validate:"min=1"        env:"CODEEXEC_RUNTIME_VM_CAPACITY"`
	MaxStdoutBytes int           `koanf:"max_stdout_bytes" validate:"min=1024"    env:"CODEEXEC_RUNTIME_MAX_STDOUT_BYTES"`
}

// SandboxConfig configures the remote ephemeral sandbox backend. When
// Enabled is false, Python execution fails fast with a configuration error.
type SandboxConfig struct {
	Enabled       bool          `koanf:"enabled"        env:"CODEEXEC_SANDBOX_ENABLED"`
	BaseURL       string        `koanf:"base_url"       validate:"omitempty,url" env:"CODEEXEC_SANDBOX_BASE_URL"`
	APIKey        string        `koanf:"api_key"        env:"CODEEXEC_SANDBOX_API_KEY"`
	SubmitTimeout time.Duration `koanf:"submit_timeout" env:"CODEEXEC_SANDBOX_SUBMIT_TIMEOUT"`
	PollInterval  time.Duration `koanf:"poll_interval"  env:"CODEEXEC_SANDBOX_POLL_INTERVAL"`
	MaxPollDelay  time.Duration `koanf:"max_poll_delay" env:"CODEEXEC_SANDBOX_MAX_POLL_DELAY"`
}

// LogConfig configures the shared logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error" env:"CODEEXEC_LOG_LEVEL"`
	JSON   bool   `koanf:"json"  env:"CODEEXEC_LOG_JSON"`
	Source bool   `koanf:"source" env:"CODEEXEC_LOG_SOURCE"`
}

// Default returns the baseline configuration applied before any overrides.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			DefaultTimeout: 30 * time.Second,
			MaxTimeout:     5 * time.Minute,
			VMCapacity:     32,
			MaxStdoutBytes: 512 * 1024,
		},
		Sandbox: SandboxConfig{
			Enabled:       false,
			SubmitTimeout: 10 * time.Second,
			PollInterval:  150 * time.Millisecond,
			MaxPollDelay:  2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
