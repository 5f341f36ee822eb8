package stats

import (
	"sort"
	"strings"

	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// MetricSet names one dashboard view. Every view is a configuration of the same aggregation.
type MetricSet string

const (
	SetKPI              MetricSet = "kpi"
	SetOverTime         MetricSet = "over_time"
	SetByService        MetricSet = "by_service"
	SetByDirection      MetricSet = "by_direction"
	SetByPath           MetricSet = "by_path"
	SetBySourceChain    MetricSet = "by_source_chain"
	SetByUser           MetricSet = "by_user"
	SetTopPathsByCount  MetricSet = "top_paths_by_count"
	SetTopPathsByVolume MetricSet = "top_paths_by_volume"
	SetTopUsersByCount  MetricSet = "top_users_by_count"
	SetTopUsersByVolume MetricSet = "top_users_by_volume"
	SetWhales           MetricSet = "whales"
	SetRecent           MetricSet = "recent"
)

type listing int

const (
	listNone listing = iota
	listRecent
	listWhales
)

// Definition is the configuration behind a MetricSet
type Definition struct {
	GroupBy       []Dimension
	Precision     Precision
	WithMedian    bool
	WithMax       bool
	RequireAmount bool
	InboundOnly   bool
	Rank          RankBy
	DefaultLimit  int
	list          listing
}

func withPrecision(mod func(p *Precision)) Precision {
	p := DefaultPrecision()
	mod(&p)
	return p
}

var definitions = map[MetricSet]Definition{
	SetKPI: {
		Precision: DefaultPrecision(),
	},
	SetOverTime: {
		GroupBy:    []Dimension{DimensionTime, DimensionService},
		Precision:  DefaultPrecision(),
		WithMedian: true,
		WithMax:    true,
	},
	SetByService: {
		GroupBy: []Dimension{DimensionService},
		Precision: withPrecision(func(p *Precision) {
			p.Volume = 1
			p.MaxFee = Unrounded
		}),
		WithMedian: true,
		WithMax:    true,
	},
	SetByDirection: {
		GroupBy:   []Dimension{DimensionDirection},
		Precision: DefaultPrecision(),
	},
	SetByPath: {
		GroupBy:   []Dimension{DimensionPath},
		Precision: DefaultPrecision(),
		Rank:      RankCount,
	},
	SetBySourceChain: {
		GroupBy:     []Dimension{DimensionSourceChain},
		Precision:   withPrecision(func(p *Precision) { p.Volume = 2 }),
		InboundOnly: true,
		Rank:        RankCount,
	},
	SetByUser: {
		GroupBy:   []Dimension{DimensionUser},
		Precision: DefaultPrecision(),
		Rank:      RankCount,
	},
	SetTopPathsByCount: {
		GroupBy:      []Dimension{DimensionPath},
		Precision:    DefaultPrecision(),
		Rank:         RankCount,
		DefaultLimit: 10,
	},
	SetTopPathsByVolume: {
		GroupBy:      []Dimension{DimensionPath},
		Precision:    DefaultPrecision(),
		Rank:         RankVolume,
		DefaultLimit: 10,
	},
	SetTopUsersByCount: {
		GroupBy:       []Dimension{DimensionUser},
		Precision:     withPrecision(func(p *Precision) { p.Volume = 1 }),
		RequireAmount: true,
		Rank:          RankCount,
		DefaultLimit:  5,
	},
	SetTopUsersByVolume: {
		GroupBy:       []Dimension{DimensionUser},
		Precision:     withPrecision(func(p *Precision) { p.Volume = 1 }),
		RequireAmount: true,
		Rank:          RankVolume,
		DefaultLimit:  5,
	},
	SetWhales: {
		Precision: Precision{Volume: 1, Fees: 3},
		list:      listWhales,
	},
	SetRecent: {
		Precision:    Precision{Volume: 1, Fees: 5},
		DefaultLimit: DefaultRecentLimit,
		list:         listRecent,
	},
}

// ParseMetricSet validates a metric set name
func ParseMetricSet(s string) (MetricSet, error) {
	set := MetricSet(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := definitions[set]; !ok {
		return "", utils.NewInputError("INVALID_METRIC_SET", "unknown metric set %q", s)
	}
	return set, nil
}

// AllMetricSets lists every known set in name order
func AllMetricSets() []MetricSet {
	sets := make([]MetricSet, 0, len(definitions))
	for s := range definitions {
		sets = append(sets, s)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i] < sets[j] })
	return sets
}

// Definition returns the configuration of s
func (s MetricSet) Definition() (Definition, error) {
	def, ok := definitions[s]
	if !ok {
		return Definition{}, utils.NewInputError("INVALID_METRIC_SET", "unknown metric set %q", s)
	}
	return def, nil
}

// UsesGranularity reports whether s buckets by time
func (s MetricSet) UsesGranularity() bool {
	for _, d := range definitions[s].GroupBy {
		if d == DimensionTime {
			return true
		}
	}
	return false
}

// Ranked reports whether s is a ranking view that honours a limit
func (s MetricSet) Ranked() bool {
	def := definitions[s]
	return def.Rank != RankNone || def.list == listRecent
}

// Compute evaluates a metric set over an already filtered transfer stream.
// limit overrides the set's default cutoff; 0 keeps the default, negative is an input error.
func Compute(transfers []models.NormalizedTransfer, set MetricSet, chain string, g Granularity, limit int) (Result, error) {
	def, err := set.Definition()
	if err != nil {
		return Result{}, err
	}
	if limit < 0 {
		return Result{}, utils.NewInputError("INVALID_LIMIT", "limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = def.DefaultLimit
	}

	switch def.list {
	case listRecent:
		return Result{Transfers: Recent(transfers, limit, def.Precision)}, nil
	case listWhales:
		return Result{Transfers: Whales(transfers, def.Precision)}, nil
	}

	rows, err := Aggregate(transfers, Options{
		Chain:         chain,
		GroupBy:       def.GroupBy,
		Granularity:   g,
		Precision:     def.Precision,
		WithMedian:    def.WithMedian,
		WithMax:       def.WithMax,
		RequireAmount: def.RequireAmount,
		InboundOnly:   def.InboundOnly,
	})
	if err != nil {
		return Result{}, err
	}
	if def.Rank != RankNone {
		Rank(rows, def.Rank)
		rows = TopN(rows, limit)
	}
	return Result{Rows: rows}, nil
}
