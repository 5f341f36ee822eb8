package stats

import (
	"time"

	"transfer-dashboard-backend/models"
)

// Granularity is the width of a time bucket
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Dimension is one axis a metric set can group by
type Dimension string

const (
	DimensionTime        Dimension = "time"
	DimensionService     Dimension = "service"
	DimensionPath        Dimension = "path"
	DimensionDirection   Dimension = "direction"
	DimensionUser        Dimension = "user"
	DimensionSourceChain Dimension = "source_chain"
)

// MetricRow is one group of an aggregation. Group fields are set only for the dimensions grouped by.
type MetricRow struct {
	Bucket         *time.Time       `json:"bucket,omitempty"`
	Service        models.Service   `json:"service,omitempty"`
	Path           string           `json:"path,omitempty"`
	Direction      models.Direction `json:"direction,omitempty"`
	DirectionLabel string           `json:"directionLabel,omitempty"`
	User           string           `json:"user,omitempty"`
	UserDisplay    string           `json:"userDisplay,omitempty"`
	SourceChain    string           `json:"sourceChain,omitempty"`

	PathCount      int64    `json:"pathCount"`
	UserCount      int64    `json:"userCount"`
	TransferCount  int64    `json:"transferCount"`
	TransferVolume float64  `json:"transferVolume"`
	TransferFees   float64  `json:"transferFees"`
	AvgFee         *float64 `json:"avgFee"`
	MedianFee      *float64 `json:"medianFee,omitempty"`
	MaxFee         *float64 `json:"maxFee,omitempty"`
}

// Unrounded disables rounding for a Precision field
const Unrounded int32 = -1

// Precision is the number of decimals each money column is rounded to
type Precision struct {
	Volume    int32 `json:"volume"`
	Fees      int32 `json:"fees"`
	AvgFee    int32 `json:"avgFee"`
	MedianFee int32 `json:"medianFee"`
	MaxFee    int32 `json:"maxFee"`
}

// DefaultPrecision rounds volume to whole units, fees to 1 decimal, avg and max fee to 2
func DefaultPrecision() Precision {
	return Precision{
		Volume:    0,
		Fees:      1,
		AvgFee:    2,
		MedianFee: Unrounded,
		MaxFee:    2,
	}
}

// Options controls a single aggregation pass
type Options struct {
	Chain       string
	GroupBy     []Dimension
	Granularity Granularity
	Precision   Precision
	WithMedian  bool
	WithMax     bool
	// RequireAmount drops transfers without a USD amount before grouping
	RequireAmount bool
	// InboundOnly keeps transfers arriving on Chain from another chain
	InboundOnly bool
}

// RankBy selects the sort key of a ranking view
type RankBy string

const (
	RankNone   RankBy = ""
	RankCount  RankBy = "count"
	RankVolume RankBy = "volume"
)

// Result is what a metric set produces: aggregate rows or transfer listings
type Result struct {
	Rows      []MetricRow          `json:"rows,omitempty"`
	Transfers []models.TransferRow `json:"transfers,omitempty"`
}

// Len counts rows or transfers, whichever the set produced
func (r Result) Len() int {
	return len(r.Rows) + len(r.Transfers)
}

// Empty reports whether the result has nothing to show
func (r Result) Empty() bool {
	return r.Len() == 0
}
