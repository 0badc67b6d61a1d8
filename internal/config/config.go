// Package config loads noncehunter.yaml.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Amr-9/NonceHunter/internal/identity"
	"github.com/Amr-9/NonceHunter/internal/logging"
	"github.com/Amr-9/NonceHunter/pkg/miner/difficulty"
	"github.com/Amr-9/NonceHunter/pkg/miner/gpu"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "noncehunter.yaml"

// Config is the full application configuration.
type Config struct {
	Log     logging.Config `yaml:"log"`
	CPU     CPUConfig      `yaml:"cpu"`
	GPU     GPUConfig      `yaml:"gpu"`
	Verify  VerifyConfig   `yaml:"verify"`
	Sample  SampleConfig   `yaml:"sample"`
	Target  string         `yaml:"target"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// CPUConfig configures the sequential engine.
type CPUConfig struct {
	MaxNonce uint64 `yaml:"max_nonce"` // 0 = unbounded
}

// GPUConfig configures the device and dispatch geometry.
type GPUConfig struct {
	Device              string `yaml:"device"` // auto, opencl, emulated
	DeviceIndex         int    `yaml:"device_index"`
	ThreadsPerGroup     uint32 `yaml:"threads_per_group"`
	NumGroups           uint32 `yaml:"num_groups"`
	IterationsPerThread uint64 `yaml:"iterations_per_thread"`
	StartNonce          uint64 `yaml:"start_nonce"`
	KernelEntry         string `yaml:"kernel_entry"`
}

// VerifyConfig configures the cross-backend comparison.
type VerifyConfig struct {
	Concurrent bool `yaml:"concurrent"`
}

// SampleConfig selects how sample input is produced.
type SampleConfig struct {
	Identity string `yaml:"identity"` // solana, ethereum, bitcoin
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty = disabled
}

// DefaultTarget is two zero bytes followed by 0xFF.
var DefaultTarget = difficulty.TargetWithLeadingZeroBytes(2).String()

// Default returns the built-in configuration.
func Default() *Config {
	g := gpu.DefaultConfig()
	return &Config{
		Log: logging.DefaultConfig(),
		GPU: GPUConfig{
			Device:          string(gpu.KindAuto),
			ThreadsPerGroup: g.ThreadsPerGroup,
			NumGroups:       g.NumGroups,
			StartNonce:      g.StartNonce,
			KernelEntry:     g.KernelEntry,
		},
		Sample: SampleConfig{Identity: string(identity.Solana)},
		Target: DefaultTarget,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Values are not checked; call Validate once overrides are applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if _, err := difficulty.ParseTarget(c.Target); err != nil {
		errs = append(errs, fmt.Errorf("target: %w", err))
	}
	if _, err := gpu.ParseDeviceKind(c.GPU.Device); err != nil {
		errs = append(errs, fmt.Errorf("gpu.device: %w", err))
	}
	if c.GPU.DeviceIndex < 0 {
		errs = append(errs, fmt.Errorf("gpu.device_index must be >= 0, got %d", c.GPU.DeviceIndex))
	}
	if c.GPU.ThreadsPerGroup == 0 {
		errs = append(errs, errors.New("gpu.threads_per_group must be > 0"))
	}
	if c.GPU.NumGroups == 0 {
		errs = append(errs, errors.New("gpu.num_groups must be > 0"))
	}
	if c.GPU.KernelEntry == "" {
		errs = append(errs, errors.New("gpu.kernel_entry must not be empty"))
	}
	if _, err := identity.ParseKind(c.Sample.Identity); err != nil {
		errs = append(errs, fmt.Errorf("sample.identity: %w", err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// TargetValue returns the parsed target. Call Validate first.
func (c *Config) TargetValue() (difficulty.Target, error) {
	return difficulty.ParseTarget(c.Target)
}

// GPUEngineConfig converts the gpu section for the harness.
func (c *Config) GPUEngineConfig() gpu.Config {
	return gpu.Config{
		ThreadsPerGroup:     c.GPU.ThreadsPerGroup,
		NumGroups:           c.GPU.NumGroups,
		IterationsPerThread: c.GPU.IterationsPerThread,
		StartNonce:          c.GPU.StartNonce,
		KernelEntry:         c.GPU.KernelEntry,
	}
}
