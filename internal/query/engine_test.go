package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-dashboard-backend/internal/cache"
	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
	"transfer-dashboard-backend/storage"
)

// countingSource records how often the upstream is read
type countingSource struct {
	storage.Source
	reads atomic.Int32
}

func (c *countingSource) SimpleTransfers(ctx context.Context, q storage.Query) ([]models.RawSimpleTransferEvent, error) {
	c.reads.Add(1)
	return c.Source.SimpleTransfers(ctx, q)
}

func simple(id string, ts time.Time, amount, fee string) models.RawSimpleTransferEvent {
	return models.RawSimpleTransferEvent{
		Timestamp:        ts,
		SourceChain:      "ethereum",
		DestinationChain: "filecoin",
		SenderAddress:    "0xsender" + id,
		TokenAmount:      models.RawNumber(amount),
		TokenUnitPrice:   "1",
		FeeValue:         models.RawNumber(fee),
		EventID:          id,
		Status:           models.StatusExecuted,
		SimplifiedStatus: models.SimplifiedStatusReceived,
	}
}

func fixture() *storage.Memory {
	return storage.NewMemoryFromFixture(storage.Fixture{
		SimpleTransfers: []models.RawSimpleTransferEvent{
			simple("1", time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), "100", "1"),
			simple("2", time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), "200", "2"),
		},
		MessageEvents: []models.RawMessageEvent{{
			Timestamp:        time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC),
			SourceChain:      "filecoin",
			DestinationChain: "moonbeam",
			SenderAddress:    "0xgmp",
			NativeValue:      "50",
			ExpressFeeUSD:    "12.5",
			EventID:          "1",
			Status:           models.StatusExecuted,
			SimplifiedStatus: models.SimplifiedStatusReceived,
		}},
	})
}

func request(set stats.MetricSet, start, end string) Request {
	return Request{
		Chain:       "filecoin",
		Window:      filter.MustWindow(start, end),
		Granularity: stats.GranularityDay,
		Set:         set,
	}
}

func TestRunSingleDayScenario(t *testing.T) {
	engine := NewEngine(fixture(), nil)

	resp, err := engine.Run(context.Background(), request(stats.SetKPI, "2024-03-01", "2024-03-01"))
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	row := resp.Rows[0]
	assert.Equal(t, int64(1), row.TransferCount)
	assert.Equal(t, 100.0, row.TransferVolume)
	assert.Equal(t, 1.0, row.TransferFees)
	assert.Equal(t, 1.0, *row.AvgFee)
	assert.False(t, resp.Empty)
	assert.False(t, resp.Cached)
}

func TestRunAppliesFeeFallbackAndNamespacedIds(t *testing.T) {
	engine := NewEngine(fixture(), nil)

	resp, err := engine.Run(context.Background(), request(stats.SetByService, "2024-03-01", "2024-03-31"))
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)

	gmp := resp.Rows[0]
	assert.Equal(t, models.ServiceMessagePass, gmp.Service)
	assert.Equal(t, 12.5, gmp.TransferFees)

	kpi, err := engine.Run(context.Background(), request(stats.SetKPI, "2024-03-01", "2024-03-31"))
	require.NoError(t, err)
	// event id "1" exists in both feeds
	assert.Equal(t, int64(3), kpi.Rows[0].TransferCount)
}

func TestRunMemoizesByParameters(t *testing.T) {
	src := &countingSource{Source: fixture()}
	engine := NewEngine(src, cache.NewMemoryCache())
	ctx := context.Background()

	first, err := engine.Run(ctx, request(stats.SetByPath, "2024-03-01", "2024-03-31"))
	require.NoError(t, err)
	second, err := engine.Run(ctx, request(stats.SetByPath, "2024-03-01", "2024-03-31"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.reads.Load())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Rows, second.Rows)

	_, err = engine.Run(ctx, request(stats.SetByPath, "2024-03-01", "2024-03-02"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.reads.Load())

	n, err := engine.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = engine.Run(ctx, request(stats.SetByPath, "2024-03-01", "2024-03-31"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.reads.Load())
}

func TestGranularityOnlyKeysTimeSets(t *testing.T) {
	day := request(stats.SetKPI, "2024-03-01", "2024-03-31")
	month := day
	month.Granularity = stats.GranularityMonth
	assert.Equal(t, day.CacheKey(), month.CacheKey())

	day.Set, month.Set = stats.SetOverTime, stats.SetOverTime
	assert.NotEqual(t, day.CacheKey(), month.CacheKey())
}

func TestRunUnavailableUpstreamIsEmptyAndNotCached(t *testing.T) {
	src := fixture()
	src.FailWith(errors.New("connection refused"))
	c := cache.NewMemoryCache()
	engine := NewEngine(src, c)
	ctx := context.Background()

	resp, err := engine.Run(ctx, request(stats.SetKPI, "2024-03-01", "2024-03-31"))
	require.NoError(t, err)
	assert.True(t, resp.Empty)
	assert.True(t, resp.Unavailable)
	assert.Equal(t, []stats.MetricRow{}, resp.Data())

	n, _ := c.Len(ctx)
	assert.Equal(t, 0, n)

	src.FailWith(nil)
	resp, err = engine.Run(ctx, request(stats.SetKPI, "2024-03-01", "2024-03-31"))
	require.NoError(t, err)
	assert.False(t, resp.Unavailable)
	assert.False(t, resp.Cached)
	assert.Len(t, resp.Rows, 1)
}

func TestRunEmptyWindowIsValid(t *testing.T) {
	engine := NewEngine(fixture(), cache.NewMemoryCache())

	resp, err := engine.Run(context.Background(), request(stats.SetRecent, "2023-01-01", "2023-01-31"))
	require.NoError(t, err)
	assert.True(t, resp.Empty)
	assert.False(t, resp.Unavailable)
	assert.Equal(t, []models.TransferRow{}, resp.Data())
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	engine := NewEngine(fixture(), nil)
	ctx := context.Background()

	bad := request(stats.SetOverTime, "2024-03-01", "2024-03-31")
	bad.Granularity = "hour"
	_, err := engine.Run(ctx, bad)
	assert.True(t, utils.IsInputError(err))

	bad = request(stats.SetKPI, "2024-03-01", "2024-03-31")
	bad.Granularity = "fortnight"
	_, err = engine.Run(ctx, bad)
	assert.True(t, utils.IsInputError(err))

	ok := request(stats.SetKPI, "2024-03-01", "2024-03-31")
	ok.Granularity = ""
	_, err = engine.Run(ctx, ok)
	assert.NoError(t, err)

	bad = request("pie_chart", "2024-03-01", "2024-03-31")
	_, err = engine.Run(ctx, bad)
	assert.True(t, utils.IsInputError(err))

	bad = request(stats.SetKPI, "2024-03-01", "2024-03-31")
	bad.Chain = " "
	_, err = engine.Run(ctx, bad)
	assert.True(t, utils.IsInputError(err))

	bad = request(stats.SetTopUsersByCount, "2024-03-01", "2024-03-31")
	bad.Limit = -5
	_, err = engine.Run(ctx, bad)
	assert.True(t, utils.IsInputError(err))
}

func TestRunIsIdempotent(t *testing.T) {
	engine := NewEngine(fixture(), nil)
	ctx := context.Background()

	for _, set := range stats.AllMetricSets() {
		a, err := engine.Run(ctx, request(set, "2024-03-01", "2024-03-31"))
		require.NoError(t, err, set)
		b, err := engine.Run(ctx, request(set, "2024-03-01", "2024-03-31"))
		require.NoError(t, err, set)
		assert.Equal(t, a, b, set)
	}
}

func TestRunMany(t *testing.T) {
	engine := NewEngine(fixture(), cache.NewMemoryCache())

	sets := []stats.MetricSet{stats.SetKPI, stats.SetByDirection, stats.SetTopPathsByVolume}
	results, err := engine.RunMany(context.Background(), request("", "2024-03-01", "2024-03-31"), sets)
	require.NoError(t, err)
	require.Len(t, results, 3)

	dirs := results[stats.SetByDirection].Rows
	require.Len(t, dirs, 2)
	assert.Equal(t, models.DirectionInbound, dirs[0].Direction)
	assert.Equal(t, int64(2), dirs[0].TransferCount)
	assert.Equal(t, models.DirectionOutbound, dirs[1].Direction)

	_, err = engine.RunMany(context.Background(), request("", "2024-03-01", "2024-03-31"), []stats.MetricSet{stats.SetKPI, "nope"})
	assert.True(t, utils.IsInputError(err))
}

func TestRunTreatsOverflowingAmountsAsAbsent(t *testing.T) {
	huge := simple("big", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), "1e200", "1")
	huge.TokenUnitPrice = "1e200"
	src := fixture()
	_, err := src.AppendSimple(context.Background(), []models.RawSimpleTransferEvent{huge})
	require.NoError(t, err)
	engine := NewEngine(src, nil)
	ctx := context.Background()

	resp, err := engine.Run(ctx, request(stats.SetKPI, "2024-03-01", "2024-03-01"))
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, int64(2), resp.Rows[0].TransferCount)
	assert.Equal(t, 100.0, resp.Rows[0].TransferVolume)
	assert.Equal(t, 2.0, resp.Rows[0].TransferFees)
	assert.Equal(t, 1, resp.Degraded)

	for _, set := range stats.AllMetricSets() {
		_, err := engine.Run(ctx, request(set, "2024-03-01", "2024-03-01"))
		require.NoError(t, err, set)
	}
}
