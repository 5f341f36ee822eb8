// Package live keeps running tallies over the transfers arriving from the stream
package live

import (
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/shopspring/decimal"

	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/models"
)

// Config holds live collector configuration
type Config struct {
	RecentSize    int  `yaml:"recentSize"`    // transfers kept for the recent list (default: 50)
	HighPrecision bool `yaml:"highPrecision"` // use 2^16 HLL registers instead of 2^14
}

// DefaultConfig returns default live collector configuration
func DefaultConfig() Config {
	return Config{
		RecentSize: 50,
	}
}

// Collector maintains incremental statistics for one chain of interest without
// recomputing over history. Users and paths are approximated with HyperLogLog,
// the transfer count is exact.
type Collector struct {
	mu     sync.Mutex
	chain  string
	config Config

	seen   map[string]struct{}
	count  int64
	whales int64
	volume decimal.Decimal
	fees   decimal.Decimal
	dirs   map[models.Direction]int64

	users *hyperloglog.Sketch
	paths *hyperloglog.Sketch

	recent []models.NormalizedTransfer
	next   int

	firstSeen time.Time
	lastSeen  time.Time
	startedAt time.Time
}

// Snapshot is a point-in-time view of the collector
type Snapshot struct {
	Chain          string               `json:"chain"`
	TransferCount  int64                `json:"transferCount"`
	UniqueUsers    uint64               `json:"uniqueUsers"`
	UniquePaths    uint64               `json:"uniquePaths"`
	TransferVolume float64              `json:"transferVolume"`
	TransferFees   float64              `json:"transferFees"`
	WhaleCount     int64                `json:"whaleCount"`
	Directions     map[string]int64     `json:"directions"`
	Recent         []models.TransferRow `json:"recent"`
	FirstSeen      *time.Time           `json:"firstSeen,omitempty"`
	LastSeen       *time.Time           `json:"lastSeen,omitempty"`
	Since          time.Time            `json:"since"`
	TakenAt        time.Time            `json:"takenAt"`
}

// NewCollector creates a collector for chain
func NewCollector(chain string, cfg Config) *Collector {
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = DefaultConfig().RecentSize
	}
	c := &Collector{
		chain:  models.NormalizeChain(chain),
		config: cfg,
	}
	c.reset()
	return c
}

func (c *Collector) sketch() *hyperloglog.Sketch {
	if c.config.HighPrecision {
		return hyperloglog.New16()
	}
	return hyperloglog.New14()
}

func (c *Collector) reset() {
	c.seen = make(map[string]struct{})
	c.count, c.whales = 0, 0
	c.volume, c.fees = decimal.Zero, decimal.Zero
	c.dirs = make(map[models.Direction]int64)
	c.users = c.sketch()
	c.paths = c.sketch()
	c.recent = make([]models.NormalizedTransfer, 0, c.config.RecentSize)
	c.next = 0
	c.firstSeen, c.lastSeen = time.Time{}, time.Time{}
	c.startedAt = time.Now()
}

// Chain returns the chain of interest the collector tallies
func (c *Collector) Chain() string {
	return c.chain
}

// Add tallies t. It returns false when t was already counted or does not touch the chain.
func (c *Collector) Add(t models.NormalizedTransfer) bool {
	dir := t.DirectionFor(c.chain)
	if dir == models.DirectionNone {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[t.Key()]; dup {
		return false
	}
	c.seen[t.Key()] = struct{}{}

	c.count++
	c.dirs[dir]++
	c.users.Insert([]byte(t.User))
	c.paths.Insert([]byte(t.Path))
	if t.HasAmount() {
		c.volume = c.volume.Add(decimal.NewFromFloat(*t.AmountUSD))
	}
	if t.HasFee() {
		c.fees = c.fees.Add(decimal.NewFromFloat(*t.FeeUSD))
	}
	if stats.IsWhale(&t) {
		c.whales++
	}

	if c.firstSeen.IsZero() || t.Timestamp.Before(c.firstSeen) {
		c.firstSeen = t.Timestamp
	}
	if t.Timestamp.After(c.lastSeen) {
		c.lastSeen = t.Timestamp
	}

	if len(c.recent) < c.config.RecentSize {
		c.recent = append(c.recent, t)
	} else {
		c.recent[c.next] = t
	}
	c.next = (c.next + 1) % c.config.RecentSize
	return true
}

// Snapshot returns the current tallies. Recent transfers are newest first in arrival order.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Chain:          c.chain,
		TransferCount:  c.count,
		UniqueUsers:    c.users.Estimate(),
		UniquePaths:    c.paths.Estimate(),
		TransferVolume: c.volume.Round(2).InexactFloat64(),
		TransferFees:   c.fees.Round(2).InexactFloat64(),
		WhaleCount:     c.whales,
		Directions:     make(map[string]int64, len(c.dirs)),
		Recent:         make([]models.TransferRow, 0, len(c.recent)),
		Since:          c.startedAt,
		TakenAt:        time.Now(),
	}
	for dir, n := range c.dirs {
		s.Directions[dir.Label(c.chain)] = n
	}

	n := len(c.recent)
	for i := 1; i <= n; i++ {
		t := c.recent[(c.next-i+n)%n]
		s.Recent = append(s.Recent, t.ToTransferRow(1, 5))
	}

	if !c.firstSeen.IsZero() {
		first, last := c.firstSeen, c.lastSeen
		s.FirstSeen, s.LastSeen = &first, &last
	}
	return s
}

// Reset drops all tallies and starts a new collection period
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}
