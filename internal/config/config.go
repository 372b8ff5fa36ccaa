// Package config loads crackle run files.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the run file looked up when none is given.
const DefaultPath = "crackle.yaml"

// Run is the configuration of one fuzzing run.
type Run struct {
	Target        string        `mapstructure:"target"`
	Iterations    int           `mapstructure:"iterations"`
	Control       int           `mapstructure:"control"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
	LogLevel      string        `mapstructure:"log_level"`
	BestEffort    bool          `mapstructure:"best_effort"`
	MetricsAddr   string        `mapstructure:"metrics_addr"`
	Redis         Redis         `mapstructure:"redis"`
	Process       Process       `mapstructure:"process"`
}

// Redis enables the shared slurp cache, fault log and run lock.
type Redis struct {
	Addr   string        `mapstructure:"addr"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
	// Key is a hex AES-256 key; when set, slurp recordings are encrypted
	// before they reach Redis.
	Key string `mapstructure:"key"`
}

// EncryptionKey decodes Key. It returns nil when no key is configured.
func (r Redis) EncryptionKey() ([]byte, error) {
	if r.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(r.Key)
	if err != nil {
		return nil, fmt.Errorf("redis.key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("redis.key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Enabled reports whether a Redis address is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Process describes a local program driven over stdin and stdout.
type Process struct {
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Dir     string            `mapstructure:"dir"`
}

// Default returns the configuration used when no run file exists.
func Default() Run {
	return Run{
		Target:        "tlv-echo",
		Iterations:    100,
		ActionTimeout: 5 * time.Second,
		LogLevel:      "info",
		Redis:         Redis{Prefix: "crackle:"},
	}
}

// Load reads a YAML run file over the defaults. A missing file yields the
// defaults; unknown keys are an error.
func Load(path string) (Run, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read run file: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode applies a YAML document onto cfg.
func Decode(data []byte, cfg *Run) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate rejects values no run can use.
func (r Run) Validate() error {
	var errs []error
	if r.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must not be negative"))
	}
	if r.ActionTimeout < 0 {
		errs = append(errs, fmt.Errorf("action_timeout must not be negative"))
	}
	if _, err := r.Redis.EncryptionKey(); err != nil {
		errs = append(errs, err)
	}
	if r.Target == "" && r.Process.Command == "" {
		errs = append(errs, fmt.Errorf("either target or process.command is required"))
	}
	return errors.Join(errs...)
}
