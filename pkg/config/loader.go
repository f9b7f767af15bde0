package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

var (
	envToPath     map[string]string
	envToPathOnce sync.Once
)

// envMappings derives the env-var -> config-path table from the `env` and
// `koanf` struct tags, so the two never drift apart.
func envMappings() map[string]string {
	envToPathOnce.Do(func() {
		envToPath = make(map[string]string)
		collectMappings(reflect.TypeOf(Config{}), "", envToPath)
	})
	return envToPath
}

func collectMappings(t reflect.Type, prefix string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}
		path := koanfTag
		if prefix != "" {
			path = prefix + "." + koanfTag
		}
		if envTag := field.Tag.Get("env"); envTag != "" && envTag != "-" {
			out[envTag] = path
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			collectMappings(field.Type, path, out)
		}
	}
}

// Load builds a Config from defaults overlaid with CODEEXEC_* environment
// variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load config defaults: %w", err)
	}
	mappings := envMappings()
	envProvider := env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			if path, ok := mappings[key]; ok {
				return path, value
			}
			// Unmapped variables are dropped rather than guessed at.
			return "", nil
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load config environment: %w", err)
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints plus the cross-field rules the
// struct tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Runtime.MaxTimeout < cfg.Runtime.DefaultTimeout {
		return fmt.Errorf("invalid configuration: runtime max_timeout %s below default_timeout %s",
			cfg.Runtime.MaxTimeout, cfg.Runtime.DefaultTimeout)
	}
	if cfg.Sandbox.Enabled && cfg.Sandbox.BaseURL == "" {
		return fmt.Errorf("invalid configuration: sandbox enabled without base_url")
	}
	return nil
}
