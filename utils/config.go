package utils

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// InputConfig describes the spatial input the network consumes.
type InputConfig struct {
	Height   int `toml:"height"`
	Width    int `toml:"width"`
	Channels int `toml:"channels"`
}

// ConvConfig describes the conventional front convolution.
type ConvConfig struct {
	Filters int `toml:"filters"`
	Kernel  int `toml:"kernel"`
	Stride  int `toml:"stride"`
}

// PrimaryConfig describes the primary capsule projection.
type PrimaryConfig struct {
	Dim      int `toml:"dim"`
	Channels int `toml:"channels"`
	Kernel   int `toml:"kernel"`
	Stride   int `toml:"stride"`
}

// Config holds the network architecture.
type Config struct {
	Classes           int    `toml:"classes"`
	Routings          int    `toml:"routings"`
	CapsuleDim        int    `toml:"capsule_dim"`
	KernelInitializer string `toml:"kernel_initializer"`

	Input   InputConfig   `toml:"input"`
	Conv1   ConvConfig    `toml:"conv1"`
	Primary PrimaryConfig `toml:"primary"`
}

// DefaultConfig returns the MNIST architecture.
func DefaultConfig() *Config {
	return &Config{
		Classes:           10,
		Routings:          3,
		CapsuleDim:        16,
		KernelInitializer: "glorot_uniform",
		Input:             InputConfig{Height: 28, Width: 28, Channels: 1},
		Conv1:             ConvConfig{Filters: 256, Kernel: 9, Stride: 1},
		Primary:           PrimaryConfig{Dim: 8, Channels: 32, Kernel: 9, Stride: 2},
	}
}

// LoadConfig reads a TOML config file over the defaults, so files only need
// to state what differs from the MNIST architecture.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateConfig validates the architecture configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.Classes <= 0 {
		return fmt.Errorf("classes must be positive, got %d", cfg.Classes)
	}
	if cfg.Routings <= 0 {
		return fmt.Errorf("routings must be positive, got %d", cfg.Routings)
	}
	if cfg.CapsuleDim <= 0 {
		return fmt.Errorf("capsule_dim must be positive, got %d", cfg.CapsuleDim)
	}
	if cfg.Input.Height <= 0 || cfg.Input.Width <= 0 || cfg.Input.Channels <= 0 {
		return fmt.Errorf("input dimensions must be positive, got %dx%dx%d",
			cfg.Input.Height, cfg.Input.Width, cfg.Input.Channels)
	}
	if cfg.Conv1.Filters <= 0 || cfg.Conv1.Kernel <= 0 || cfg.Conv1.Stride <= 0 {
		return fmt.Errorf("conv1 parameters must be positive")
	}
	if cfg.Primary.Dim <= 0 || cfg.Primary.Channels <= 0 || cfg.Primary.Kernel <= 0 || cfg.Primary.Stride <= 0 {
		return fmt.Errorf("primary capsule parameters must be positive")
	}
	return nil
}
