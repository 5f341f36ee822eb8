package pipeline

import (
	"transfer-dashboard-backend/internal/broadcaster"
	"transfer-dashboard-backend/internal/ingest"
	"transfer-dashboard-backend/internal/live"
	"transfer-dashboard-backend/internal/processor"
	"transfer-dashboard-backend/internal/scheduler"
)

// Config holds configuration for the live pipeline
type Config struct {
	Ingest      ingest.Config      `yaml:"ingest"`
	Processor   processor.Config   `yaml:"processor"`
	Live        live.Config        `yaml:"live"`
	Scheduler   scheduler.Config   `yaml:"scheduler"`
	Broadcaster broadcaster.Config `yaml:"broadcaster"`
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Ingest:      ingest.DefaultConfig(),
		Processor:   processor.DefaultConfig(),
		Live:        live.DefaultConfig(),
		Scheduler:   scheduler.DefaultConfig(),
		Broadcaster: broadcaster.DefaultConfig(),
	}
}
