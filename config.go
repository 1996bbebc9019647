package qproc

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Mode decides when recorded instructions reach the executor.
type Mode int

const (
	// ModeLive submits on every measurement or dump and blocks for the result.
	ModeLive Mode = iota
	// ModeBatch defers submission until a readout or Execute.
	ModeBatch
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeBatch:
		return "batch"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "live" or "batch", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live":
		return ModeLive, nil
	case "batch":
		return ModeBatch, nil
	default:
		return ModeLive, fmt.Errorf("unknown execution mode %q", s)
	}
}

const (
	defaultMaxQubits = 12
	defaultShots     = 2048
)

// Config holds the settings a process is constructed with.
type Config struct {
	Mode        Mode
	MaxQubits   int
	NativeGates bool
	Shots       int
	Seed        int64
}

func NewConfig() *Config {
	return &Config{
		Mode:      ModeLive,
		MaxQubits: defaultMaxQubits,
		Shots:     defaultShots,
	}
}

/*
LoadConfig builds a Config from the environment, reading a .env file first
when one exists.

Recognised variables:
  - QPROC_EXECUTION: live or batch
  - QPROC_NUM_QUBITS: qubit capacity
  - QPROC_NATIVE_GATES: skip decomposition when true
  - QPROC_SHOTS: default sample count for shot dumps
  - QPROC_SEED: seed handed to simulators
*/
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := NewConfig()

	if v := os.Getenv("QPROC_EXECUTION"); v != "" {
		mode, err := ParseMode(v)
		if err != nil {
			return nil, fmt.Errorf("QPROC_EXECUTION: %w", err)
		}
		cfg.Mode = mode
	}

	var err error
	if cfg.MaxQubits, err = envInt("QPROC_NUM_QUBITS", cfg.MaxQubits); err != nil {
		return nil, err
	}
	if cfg.Shots, err = envInt("QPROC_SHOTS", cfg.Shots); err != nil {
		return nil, err
	}
	if v := os.Getenv("QPROC_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("QPROC_SEED: %w", err)
		}
		cfg.Seed = seed
	}
	if v := os.Getenv("QPROC_NATIVE_GATES"); v != "" {
		native, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("QPROC_NATIVE_GATES: %w", err)
		}
		cfg.NativeGates = native
	}

	if cfg.MaxQubits < 1 {
		return nil, fmt.Errorf("QPROC_NUM_QUBITS must be positive, got %d", cfg.MaxQubits)
	}

	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// ProcessOption configures a process at construction.
type ProcessOption func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) ProcessOption {
	return func(c *Config) {
		if cfg != nil {
			*c = *cfg
		}
	}
}

// WithMode sets the execution mode.
func WithMode(mode Mode) ProcessOption {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithMaxQubits caps the number of simultaneously allocated qubits.
func WithMaxQubits(n int) ProcessOption {
	return func(c *Config) {
		c.MaxQubits = n
	}
}

// WithNativeGates hands logical gates to the executor without decomposition.
func WithNativeGates(native bool) ProcessOption {
	return func(c *Config) {
		c.NativeGates = native
	}
}

// WithShots sets the default sample count for shot dumps.
func WithShots(shots int) ProcessOption {
	return func(c *Config) {
		c.Shots = shots
	}
}
