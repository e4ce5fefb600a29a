package scopeout

import (
	"github.com/SeanMcGrath/ScopeOut/internal/adapters/scpi"
	"github.com/SeanMcGrath/ScopeOut/internal/app/config"
)

// Config re-exports the engine configuration so embedding projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// InstrumentConfig describes the SCPI endpoints to probe.
	InstrumentConfig = scpi.Config
	// DiscoveryConfig holds find and liveness pacing.
	DiscoveryConfig = config.DiscoveryConfig
	// AcquisitionConfig holds trigger polling and deadline knobs.
	AcquisitionConfig = config.AcquisitionConfig
	// PeakConfig selects and parameterizes the peak detection mode.
	PeakConfig = config.PeakConfig
	// DatabaseConfig points at the waveform archive.
	DatabaseConfig = config.DatabaseConfig
	// MetricsConfig holds the Prometheus listen address.
	MetricsConfig = config.MetricsConfig
)

// LoadConfig reads, defaults, and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
