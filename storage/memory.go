package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/models"
)

// Memory holds both raw feeds in process memory. It serves tests, demos and the live
// stream when no warehouse is configured.
type Memory struct {
	simple   []models.RawSimpleTransferEvent
	messages []models.RawMessageEvent
	seen     map[string]struct{}
	mu       sync.RWMutex

	// failWith makes every read fail, for exercising the unavailable path
	failWith error
}

// Fixture is the on-disk layout of a fixture file
type Fixture struct {
	SimpleTransfers []models.RawSimpleTransferEvent `json:"simple_transfers"`
	MessageEvents   []models.RawMessageEvent        `json:"message_events"`
}

// NewMemory creates a new memory storage instance
func NewMemory() *Memory {
	return &Memory{
		simple:   make([]models.RawSimpleTransferEvent, 0),
		messages: make([]models.RawMessageEvent, 0),
		seen:     make(map[string]struct{}),
	}
}

// NewMemoryFromFixture creates a memory source preloaded with f
func NewMemoryFromFixture(f Fixture) *Memory {
	m := NewMemory()
	m.AppendSimple(context.Background(), f.SimpleTransfers)
	m.AppendMessages(context.Background(), f.MessageEvents)
	return m
}

// ReadFixture parses a JSON fixture file
func ReadFixture(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return f, nil
}

// LoadFixtureFile reads a JSON fixture into a memory source
func LoadFixtureFile(path string) (*Memory, error) {
	f, err := ReadFixture(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryFromFixture(f), nil
}

// FailWith makes subsequent reads return err. nil restores normal reads.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func touches(q Query, src, dst string) bool {
	chain := models.NormalizeChain(q.Chain)
	return models.NormalizeChain(src) == chain || models.NormalizeChain(dst) == chain
}

// SimpleTransfers implements Source
func (m *Memory) SimpleTransfers(_ context.Context, q Query) ([]models.RawSimpleTransferEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	out := make([]models.RawSimpleTransferEvent, 0)
	for _, ev := range m.simple {
		if !filter.IsFinal(ev.Status, ev.SimplifiedStatus) || !touches(q, ev.SourceChain, ev.DestinationChain) {
			continue
		}
		if ev.Timestamp.Before(q.Start) || !ev.Timestamp.Before(q.End) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// MessageEvents implements Source
func (m *Memory) MessageEvents(_ context.Context, q Query) ([]models.RawMessageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	out := make([]models.RawMessageEvent, 0)
	for _, ev := range m.messages {
		if !filter.IsFinal(ev.Status, ev.SimplifiedStatus) || !touches(q, ev.SourceChain, ev.DestinationChain) {
			continue
		}
		if ev.Timestamp.Before(q.Start) || !ev.Timestamp.Before(q.End) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// AppendSimple implements Sink. Event ids already held are skipped.
func (m *Memory) AppendSimple(_ context.Context, events []models.RawSimpleTransferEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, ev := range events {
		key := string(models.ServiceTokenTransfer) + ":" + ev.EventID
		if _, dup := m.seen[key]; dup {
			continue
		}
		m.seen[key] = struct{}{}
		m.simple = append(m.simple, ev)
		added++
	}
	return added, nil
}

// AppendMessages implements Sink. Event ids already held are skipped.
func (m *Memory) AppendMessages(_ context.Context, events []models.RawMessageEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, ev := range events {
		key := string(models.ServiceMessagePass) + ":" + ev.EventID
		if _, dup := m.seen[key]; dup {
			continue
		}
		m.seen[key] = struct{}{}
		m.messages = append(m.messages, ev)
		added++
	}
	return added, nil
}

// Counts returns the number of held events per feed
func (m *Memory) Counts() (simple, messages int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.simple), len(m.messages)
}
