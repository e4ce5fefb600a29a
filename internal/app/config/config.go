package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SeanMcGrath/ScopeOut/internal/adapters/scpi"
	"github.com/SeanMcGrath/ScopeOut/internal/peak"
)

type Config struct {
	Instruments scpi.Config       `yaml:"instruments"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Peak        PeakConfig        `yaml:"peak"`
	Database    DatabaseConfig    `yaml:"database"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type DiscoveryConfig struct {
	FindInterval     time.Duration `yaml:"find_interval"`
	LivenessInterval time.Duration `yaml:"liveness_interval"`
}

type AcquisitionConfig struct {
	// PollInterval paces the trigger-status busy poll.
	PollInterval time.Duration `yaml:"poll_interval"`
	// TriggerDeadline bounds one trigger wait; zero waits until stopped.
	TriggerDeadline time.Duration `yaml:"trigger_deadline"`
	// ChannelSetTimeout bounds the wait for a data-channel switch.
	ChannelSetTimeout time.Duration `yaml:"channel_set_timeout"`
	// EventBuffer sizes the status/waveform notification channels.
	EventBuffer int `yaml:"event_buffer"`
}

type PeakConfig struct {
	Mode           string  `yaml:"mode"`
	StartThreshold float64 `yaml:"start_threshold"`
	EndThreshold   float64 `yaml:"end_threshold"`
	StartTime      float64 `yaml:"start_time"` // seconds
	Width          float64 `yaml:"width"`      // seconds
}

// Params converts the configuration into peak engine parameters.
func (p PeakConfig) Params() peak.Params {
	return peak.Params{
		Mode:           p.Mode,
		StartThreshold: p.StartThreshold,
		EndThreshold:   p.EndThreshold,
		StartTime:      p.StartTime,
		Width:          p.Width,
	}
}

type DatabaseConfig struct {
	ConnString    string `yaml:"conn_string"`
	WaveformTable string `yaml:"waveform_table"`
	SampleTable   string `yaml:"sample_table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Discovery.FindInterval <= 0 {
		c.Discovery.FindInterval = 100 * time.Millisecond
	}
	if c.Discovery.LivenessInterval <= 0 {
		c.Discovery.LivenessInterval = 5 * time.Second
	}
	if c.Acquisition.PollInterval <= 0 {
		c.Acquisition.PollInterval = time.Millisecond
	}
	if c.Acquisition.ChannelSetTimeout <= 0 {
		c.Acquisition.ChannelSetTimeout = 10 * time.Second
	}
	if c.Acquisition.EventBuffer <= 0 {
		c.Acquisition.EventBuffer = 64
	}
	if c.Peak.Mode == "" {
		c.Peak.Mode = "Hybrid"
	}
	if c.Peak.StartThreshold == 0 {
		c.Peak.StartThreshold = 0.5
	}
	if c.Peak.EndThreshold == 0 {
		c.Peak.EndThreshold = 0.5
	}
	if c.Peak.StartTime == 0 {
		c.Peak.StartTime = 10e-9
	}
	if c.Peak.Width == 0 {
		c.Peak.Width = 10e-9
	}
	if c.Database.WaveformTable == "" {
		c.Database.WaveformTable = "waveforms"
	}
	if c.Database.SampleTable == "" {
		c.Database.SampleTable = "wave_data"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	c.Instruments.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.Instruments.Validate(); err != nil {
		return fmt.Errorf("instruments config: %w", err)
	}
	switch {
	case strings.Contains(c.Peak.Mode, "Smart"),
		strings.Contains(c.Peak.Mode, "Fixed"),
		strings.Contains(c.Peak.Mode, "Hybrid"):
	default:
		return fmt.Errorf("peak.mode %q is not one of Smart, Fixed, Hybrid", c.Peak.Mode)
	}
	if c.Peak.Width < 0 {
		return fmt.Errorf("peak.width must not be negative")
	}
	if c.Database.ConnString == "" {
		return fmt.Errorf("database.conn_string is required")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}
