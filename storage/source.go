package storage

import (
	"context"
	"fmt"
	"time"

	"transfer-dashboard-backend/models"
)

// Query selects raw events touching Chain with a timestamp in [Start, End)
type Query struct {
	Chain string
	Start time.Time
	End   time.Time
}

// Source is the read-only upstream holding both raw feeds.
// Only final events (executed and received) are returned.
type Source interface {
	SimpleTransfers(ctx context.Context, q Query) ([]models.RawSimpleTransferEvent, error)
	MessageEvents(ctx context.Context, q Query) ([]models.RawMessageEvent, error)
}

// Sink lands raw events consumed from the live stream
type Sink interface {
	AppendSimple(ctx context.Context, events []models.RawSimpleTransferEvent) (int, error)
	AppendMessages(ctx context.Context, events []models.RawMessageEvent) (int, error)
}

// Drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Backend is a Source that can also land live events
type Backend interface {
	Source
	Sink
}

// Open builds the configured backend. The returned close func releases it.
func Open(ctx context.Context, cfg Config) (Backend, func() error, error) {
	switch cfg.Driver {
	case DriverPostgres:
		src, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	case DriverMemory:
		if cfg.FixturePath == "" {
			return NewMemory(), func() error { return nil }, nil
		}
		m, err := LoadFixtureFile(cfg.FixturePath)
		if err != nil {
			return nil, nil, err
		}
		return m, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
