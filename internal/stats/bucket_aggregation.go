package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// ParseGranularity validates a granularity name
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	default:
		return "", utils.NewInputError("INVALID_GRANULARITY", "unknown granularity %q (want day, week or month)", s)
	}
}

// Truncate returns the start of the bucket holding ts, in ts's own location
func (g Granularity) Truncate(ts time.Time) time.Time {
	y, m, d := ts.Date()
	loc := ts.Location()
	switch g {
	case GranularityWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		// ISO weeks start on Monday
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

func (o Options) groups(d Dimension) bool {
	for _, g := range o.GroupBy {
		if g == d {
			return true
		}
	}
	return false
}

func (o Options) validate() error {
	for _, d := range o.GroupBy {
		switch d {
		case DimensionTime, DimensionService, DimensionPath, DimensionUser, DimensionSourceChain:
		case DimensionDirection:
			if o.Chain == "" {
				return utils.NewInputError("INVALID_GROUPING", "direction grouping needs a chain of interest")
			}
		default:
			return utils.NewInputError("INVALID_GROUPING", "unknown grouping dimension %q", d)
		}
	}
	if o.groups(DimensionTime) {
		if _, err := ParseGranularity(string(o.Granularity)); err != nil {
			return err
		}
	}
	if o.InboundOnly && o.Chain == "" {
		return utils.NewInputError("INVALID_GROUPING", "inbound breakdown needs a chain of interest")
	}
	return nil
}

// accumulator collects one group
type accumulator struct {
	row   MetricRow
	paths distinct
	users distinct
	ids   distinct

	volume decimal.Decimal
	fees   decimal.Decimal
	feeSet []decimal.Decimal
	maxFee decimal.Decimal
}

func newAccumulator(row MetricRow) *accumulator {
	return &accumulator{
		row:   row,
		paths: make(distinct),
		users: make(distinct),
		ids:   make(distinct),
	}
}

func (a *accumulator) add(t *models.NormalizedTransfer) {
	a.paths.add(t.Path)
	a.users.add(t.User)
	a.ids.add(t.Key())

	if t.HasAmount() {
		a.volume = a.volume.Add(decimal.NewFromFloat(*t.AmountUSD))
	}
	if t.HasFee() {
		fee := decimal.NewFromFloat(*t.FeeUSD)
		a.fees = a.fees.Add(fee)
		if len(a.feeSet) == 0 || fee.GreaterThan(a.maxFee) {
			a.maxFee = fee
		}
		a.feeSet = append(a.feeSet, fee)
	}
}

func (a *accumulator) finish(o Options) MetricRow {
	row := a.row
	p := o.Precision
	row.PathCount = a.paths.count()
	row.UserCount = a.users.count()
	row.TransferCount = a.ids.count()
	row.TransferVolume = round(a.volume, p.Volume)
	row.TransferFees = round(a.fees, p.Fees)

	if n := len(a.feeSet); n > 0 {
		row.AvgFee = models.Float(round(a.fees.Div(decimal.NewFromInt(int64(n))), p.AvgFee))
		if o.WithMedian {
			row.MedianFee = models.Float(round(median(a.feeSet), p.MedianFee))
		}
		if o.WithMax {
			row.MaxFee = models.Float(round(a.maxFee, p.MaxFee))
		}
	}
	return row
}

// groupOf returns the group key of t and the row carrying its group fields.
// ok is false when t has no place in the grouping (a transfer not touching the chain under direction grouping).
func (o Options) groupOf(t *models.NormalizedTransfer, dir models.Direction) (string, MetricRow, bool) {
	var (
		parts []string
		row   MetricRow
	)
	for _, d := range o.GroupBy {
		switch d {
		case DimensionTime:
			b := o.Granularity.Truncate(t.Timestamp)
			row.Bucket = &b
			// wall-clock date, so buckets from different zones with the same local date collapse
			parts = append(parts, b.Format("2006-01-02"))
		case DimensionService:
			row.Service = t.Service
			parts = append(parts, string(t.Service))
		case DimensionPath:
			row.Path = t.Path
			parts = append(parts, t.Path)
		case DimensionDirection:
			if dir == models.DirectionNone {
				return "", MetricRow{}, false
			}
			row.Direction = dir
			row.DirectionLabel = dir.Label(models.NormalizeChain(o.Chain))
			parts = append(parts, string(dir))
		case DimensionUser:
			row.User = t.User
			row.UserDisplay = models.ShortenAddress(t.User)
			parts = append(parts, t.User)
		case DimensionSourceChain:
			row.SourceChain = t.SourceChain
			parts = append(parts, t.SourceChain)
		}
	}
	return strings.Join(parts, "\x1f"), row, true
}

// Aggregate groups transfers along opts.GroupBy and computes the metrics of each group.
// Rows come back ordered by group key (chronological first when grouping by time).
// An empty input yields an empty, non-nil slice.
func Aggregate(transfers []models.NormalizedTransfer, opts Options) ([]MetricRow, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	groups := make(map[string]*accumulator)
	for i := range transfers {
		t := &transfers[i]
		if opts.RequireAmount && !t.HasAmount() {
			continue
		}
		dir := models.DirectionNone
		if opts.Chain != "" {
			dir = t.DirectionFor(opts.Chain)
		}
		if opts.InboundOnly && dir != models.DirectionInbound {
			continue
		}

		key, row, ok := opts.groupOf(t, dir)
		if !ok {
			continue
		}
		acc, exists := groups[key]
		if !exists {
			acc = newAccumulator(row)
			groups[key] = acc
		}
		acc.add(t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]MetricRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, groups[k].finish(opts))
	}
	return rows, nil
}
