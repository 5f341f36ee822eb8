package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

const chain = "filecoin"

func f(v float64) *float64 { return &v }

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func transfer(id string, ts time.Time, src, dst, user string, amount, fee *float64) models.NormalizedTransfer {
	return models.NormalizedTransfer{
		Timestamp:        ts,
		SourceChain:      src,
		DestinationChain: dst,
		User:             user,
		AmountUSD:        amount,
		FeeUSD:           fee,
		ID:               id,
		Service:          models.ServiceTokenTransfer,
		Path:             models.PathKey(src, dst),
	}
}

func kpi(t *testing.T, transfers []models.NormalizedTransfer) MetricRow {
	t.Helper()
	res, err := Compute(transfers, SetKPI, chain, GranularityDay, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	return res.Rows[0]
}

func TestEndToEndSingleDayWindow(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(100), f(1)),
		transfer("2", day(2), "ethereum", chain, "0xb", f(200), f(2)),
	}
	filtered := filter.Apply(transfers, chain, filter.MustWindow("2024-03-01", "2024-03-01"))

	rows, err := Aggregate(filtered, Options{
		Chain:       chain,
		GroupBy:     []Dimension{DimensionTime},
		Granularity: GranularityDay,
		Precision:   DefaultPrecision(),
	})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *row.Bucket)
	assert.Equal(t, int64(1), row.TransferCount)
	assert.Equal(t, 100.0, row.TransferVolume)
	assert.Equal(t, 1.0, row.TransferFees)
	require.NotNil(t, row.AvgFee)
	assert.Equal(t, 1.0, *row.AvgFee)
}

func TestComputeIsIdempotent(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(100.123), f(0.3)),
		transfer("2", day(9), chain, "moonbeam", "0xb", f(0.1), f(0.2)),
		transfer("3", day(20), "osmosis", chain, "0xa", nil, f(1.7)),
		transfer("4", day(20), chain, "ethereum", "0xc", f(7), nil),
	}

	for _, set := range AllMetricSets() {
		a, err := Compute(transfers, set, chain, GranularityWeek, 0)
		require.NoError(t, err, set)
		b, err := Compute(transfers, set, chain, GranularityWeek, 0)
		require.NoError(t, err, set)
		assert.Equal(t, a, b, set)
	}
}

func TestCountIsMonotonicOverNestedWindows(t *testing.T) {
	var transfers []models.NormalizedTransfer
	for d := 1; d <= 28; d++ {
		for i := 0; i < d%4+1; i++ {
			transfers = append(transfers, transfer(fmt.Sprintf("%d-%d", d, i), day(d), "ethereum", chain, "0xa", f(1), f(1)))
		}
	}

	count := func(start, end string) int64 {
		filtered := filter.Apply(transfers, chain, filter.MustWindow(start, end))
		if len(filtered) == 0 {
			return 0
		}
		return kpi(t, filtered).TransferCount
	}

	inner := count("2024-03-10", "2024-03-12")
	middle := count("2024-03-05", "2024-03-20")
	outer := count("2024-03-01", "2024-03-31")
	assert.LessOrEqual(t, inner, middle)
	assert.LessOrEqual(t, middle, outer)
	assert.Equal(t, int64(len(transfers)), outer)
}

func TestAbsentAmountCountsButAddsNoVolume(t *testing.T) {
	row := kpi(t, []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", nil, nil),
	})

	assert.Equal(t, int64(1), row.TransferCount)
	assert.Equal(t, 0.0, row.TransferVolume)
	assert.Equal(t, 0.0, row.TransferFees)
	assert.Nil(t, row.AvgFee)
}

func TestDirectionPartition(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(1), nil),
		transfer("2", day(1), "moonbeam", chain, "0xb", f(1), nil),
		transfer("3", day(1), chain, "ethereum", "0xc", f(1), nil),
	}

	res, err := Compute(transfers, SetByDirection, chain, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	byDir := map[models.Direction]MetricRow{}
	for _, r := range res.Rows {
		byDir[r.Direction] = r
	}
	assert.Equal(t, int64(2), byDir[models.DirectionInbound].TransferCount)
	assert.Equal(t, "⛓➡filecoin", byDir[models.DirectionInbound].DirectionLabel)
	assert.Equal(t, int64(1), byDir[models.DirectionOutbound].TransferCount)
	assert.Equal(t, "filecoin➡⛓", byDir[models.DirectionOutbound].DirectionLabel)

	total := kpi(t, transfers).TransferCount
	assert.Equal(t, total, byDir[models.DirectionInbound].TransferCount+byDir[models.DirectionOutbound].TransferCount)
}

func TestSelfLoopIsItsOwnDirection(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(1), nil),
		transfer("2", day(1), chain, chain, "0xb", f(1), nil),
		transfer("3", day(1), chain, "ethereum", "0xc", f(1), nil),
	}

	res, err := Compute(transfers, SetByDirection, chain, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	var sum int64
	for _, r := range res.Rows {
		assert.Equal(t, int64(1), r.TransferCount, r.Direction)
		sum += r.TransferCount
	}
	assert.Equal(t, kpi(t, transfers).TransferCount, sum)
}

func TestWhaleThresholdIsExclusive(t *testing.T) {
	atThreshold := transfer("1", day(1), "ethereum", chain, "0xa", f(100000.00), nil)
	above := transfer("2", day(2), "ethereum", chain, "0xb", f(100000.01), f(0.12345))
	unknown := transfer("3", day(3), "ethereum", chain, "0xc", nil, nil)

	assert.False(t, IsWhale(&atThreshold))
	assert.True(t, IsWhale(&above))
	assert.False(t, IsWhale(&unknown))

	res, err := Compute([]models.NormalizedTransfer{atThreshold, above, unknown}, SetWhales, chain, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Transfers, 1)
	assert.Equal(t, "2", res.Transfers[0].ID)
	assert.Equal(t, "100000.0", res.Transfers[0].AmountLabel)
	assert.Equal(t, 0.123, *res.Transfers[0].FeeUSD)
}

func TestTopPathsByCountTruncatesToTen(t *testing.T) {
	var transfers []models.NormalizedTransfer
	for p := 0; p < 15; p++ {
		src := fmt.Sprintf("chain%02d", p)
		for i := 0; i < 15-p; i++ {
			transfers = append(transfers, transfer(fmt.Sprintf("%d-%d", p, i), day(1), src, chain, "0xa", f(1), nil))
		}
	}

	res, err := Compute(transfers, SetTopPathsByCount, chain, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 10)
	for i, row := range res.Rows {
		assert.Equal(t, int64(15-i), row.TransferCount)
		assert.Equal(t, fmt.Sprintf("chain%02d➡filecoin", i), row.Path)
	}
}

func TestTopPathsLimitOverride(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(10), nil),
		transfer("2", day(1), "moonbeam", chain, "0xa", f(500), nil),
		transfer("3", day(1), "osmosis", chain, "0xa", f(50), nil),
	}

	res, err := Compute(transfers, SetTopPathsByVolume, chain, "", 2)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "moonbeam➡filecoin", res.Rows[0].Path)
	assert.Equal(t, "osmosis➡filecoin", res.Rows[1].Path)

	_, err = Compute(transfers, SetTopPathsByVolume, chain, "", -1)
	assert.True(t, utils.IsInputError(err))
}

func TestRoundingIsHalfAwayFromZero(t *testing.T) {
	row := kpi(t, []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(1.5), f(1.25)),
		transfer("2", day(1), "ethereum", chain, "0xb", f(1.0), f(1.0)),
	})

	assert.Equal(t, 3.0, row.TransferVolume)
	assert.Equal(t, 2.3, row.TransferFees)
	assert.Equal(t, 1.13, *row.AvgFee)
}

func TestByServiceFeeStatistics(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(10.26), f(1)),
		transfer("2", day(1), "ethereum", chain, "0xa", f(0.01), f(2)),
		transfer("3", day(2), chain, "ethereum", "0xb", nil, f(3)),
		transfer("4", day(3), chain, "ethereum", "0xc", nil, f(10.555)),
		transfer("5", day(3), chain, "ethereum", "0xc", nil, nil),
	}

	res, err := Compute(transfers, SetByService, chain, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.Equal(t, models.ServiceTokenTransfer, row.Service)
	assert.Equal(t, int64(5), row.TransferCount)
	assert.Equal(t, int64(3), row.UserCount)
	assert.Equal(t, int64(2), row.PathCount)
	assert.Equal(t, 10.3, row.TransferVolume)
	assert.Equal(t, 16.6, row.TransferFees)
	assert.Equal(t, 4.14, *row.AvgFee)
	assert.Equal(t, 2.5, *row.MedianFee)
	assert.Equal(t, 10.555, *row.MaxFee)
}

func TestOverTimeGroupsByBucketAndService(t *testing.T) {
	msg := transfer("1", day(4), "ethereum", chain, "0xa", f(5), f(1))
	msg.Service = models.ServiceMessagePass
	transfers := []models.NormalizedTransfer{
		transfer("1", day(4), "ethereum", chain, "0xa", f(5), f(1)),
		msg,
		transfer("2", day(10), "ethereum", chain, "0xa", f(5), f(3)),
		transfer("3", day(11), "ethereum", chain, "0xa", f(5), f(1)),
	}

	res, err := Compute(transfers, SetOverTime, chain, GranularityWeek, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	// 2024-03-04 is a Monday
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), *res.Rows[0].Bucket)
	assert.Equal(t, models.ServiceMessagePass, res.Rows[0].Service)
	assert.Equal(t, models.ServiceTokenTransfer, res.Rows[1].Service)

	// Sunday 10th and Monday 11th fall in different ISO weeks
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), *res.Rows[1].Bucket)
	assert.Equal(t, int64(2), res.Rows[1].TransferCount)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), *res.Rows[2].Bucket)
	assert.Equal(t, 2.0, *res.Rows[1].MedianFee)
	assert.Equal(t, 3.0, *res.Rows[1].MaxFee)
}

func TestIdsAreNamespacedByService(t *testing.T) {
	a := transfer("42", day(1), "ethereum", chain, "0xa", f(1), nil)
	b := transfer("42", day(1), "ethereum", chain, "0xa", f(1), nil)
	b.Service = models.ServiceMessagePass

	assert.Equal(t, int64(2), kpi(t, []models.NormalizedTransfer{a, b}).TransferCount)
	assert.Equal(t, int64(1), kpi(t, []models.NormalizedTransfer{a, a}).TransferCount)
}

func TestBySourceChainCountsInboundOnly(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0xa", f(1.005), nil),
		transfer("2", day(1), "ethereum", chain, "0xb", nil, nil),
		transfer("3", day(1), "moonbeam", chain, "0xa", f(3), nil),
		transfer("4", day(1), chain, "ethereum", "0xa", f(99), nil),
		transfer("5", day(1), chain, chain, "0xa", f(99), nil),
	}

	res, err := Compute(transfers, SetBySourceChain, chain, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "ethereum", res.Rows[0].SourceChain)
	assert.Equal(t, int64(2), res.Rows[0].TransferCount)
	assert.Equal(t, int64(2), res.Rows[0].UserCount)
	assert.Equal(t, 1.01, res.Rows[0].TransferVolume)
	assert.Equal(t, "moonbeam", res.Rows[1].SourceChain)
}

func TestTopUsersRequireAmount(t *testing.T) {
	transfers := []models.NormalizedTransfer{
		transfer("1", day(1), "ethereum", chain, "0x1234567890abcdef", f(1), nil),
		transfer("2", day(1), "ethereum", chain, "0x1234567890abcdef", f(2.25), nil),
		transfer("3", day(1), "ethereum", chain, "0xshort", nil, nil),
		transfer("4", day(1), "ethereum", chain, "0xshort", nil, nil),
		transfer("5", day(1), "ethereum", chain, "0xshort", nil, nil),
	}

	res, err := Compute(transfers, SetTopUsersByCount, chain, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "0x1234567890abcdef", res.Rows[0].User)
	assert.Equal(t, "0x123456...", res.Rows[0].UserDisplay)
	assert.Equal(t, 3.3, res.Rows[0].TransferVolume)
	assert.Equal(t, int64(2), res.Rows[0].TransferCount)
}

func TestRecentIsNewestFirstAndCapped(t *testing.T) {
	var transfers []models.NormalizedTransfer
	for d := 1; d <= 5; d++ {
		transfers = append(transfers, transfer(fmt.Sprint(d), day(d), "ethereum", chain, "0xa", nil, f(0.123456)))
	}

	res, err := Compute(transfers, SetRecent, chain, "", 3)
	require.NoError(t, err)
	require.Len(t, res.Transfers, 3)
	assert.Equal(t, "5", res.Transfers[0].ID)
	assert.Equal(t, "3", res.Transfers[2].ID)
	assert.Equal(t, models.NoVolumeLabel, res.Transfers[0].AmountLabel)
	assert.Equal(t, 0.12346, *res.Transfers[0].FeeUSD)
}

func TestEmptyInputGivesEmptyRows(t *testing.T) {
	for _, set := range AllMetricSets() {
		res, err := Compute(nil, set, chain, GranularityMonth, 0)
		require.NoError(t, err, set)
		assert.True(t, res.Empty(), set)
	}
}

func TestInvalidParameters(t *testing.T) {
	_, err := ParseGranularity("fortnight")
	assert.True(t, utils.IsInputError(err))

	_, err = ParseMetricSet("pie")
	assert.True(t, utils.IsInputError(err))

	_, err = Compute(nil, SetOverTime, chain, "hourly", 0)
	assert.True(t, utils.IsInputError(err))

	_, err = Aggregate(nil, Options{GroupBy: []Dimension{DimensionDirection}})
	assert.True(t, utils.IsInputError(err))
}

func TestTruncateKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	ts := time.Date(2024, 2, 29, 23, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, loc), GranularityDay.Truncate(ts))
	assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, loc), GranularityWeek.Truncate(ts))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), GranularityMonth.Truncate(ts))
}
