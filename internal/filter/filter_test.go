package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

func transferAt(ts time.Time, src, dst string) models.NormalizedTransfer {
	return models.NormalizedTransfer{
		Timestamp:        ts,
		SourceChain:      src,
		DestinationChain: dst,
		ID:               ts.String(),
		Service:          models.ServiceTokenTransfer,
		Path:             models.PathKey(src, dst),
	}
}

func TestNewWindowRejectsReversedRange(t *testing.T) {
	_, err := ParseWindow("2024-03-02", "2024-03-01")
	require.Error(t, err)
	assert.True(t, utils.IsInputError(err))
}

func TestParseWindowRejectsMalformedDate(t *testing.T) {
	_, err := ParseWindow("2024-13-01", "2024-03-01")
	require.Error(t, err)
	assert.True(t, utils.IsInputError(err))
}

func TestSingleDayWindowIncludesWholeDay(t *testing.T) {
	w := MustWindow("2024-03-01", "2024-03-01")

	assert.True(t, w.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestContainsUsesTimestampLocation(t *testing.T) {
	w := MustWindow("2024-03-01", "2024-03-01")
	tokyo := time.FixedZone("JST", 9*3600)

	// 2024-03-01 08:00 in Tokyo is still 2024-02-29 in UTC; the local date counts
	assert.True(t, w.Contains(time.Date(2024, 3, 1, 8, 0, 0, 0, tokyo)))
	assert.False(t, w.Contains(time.Date(2024, 3, 2, 1, 0, 0, 0, tokyo)))
}

func TestApplyFiltersChainAndWindow(t *testing.T) {
	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []models.NormalizedTransfer{
		transferAt(day, "ethereum", "filecoin"),
		transferAt(day, "filecoin", "moonbeam"),
		transferAt(day, "ethereum", "moonbeam"),
		transferAt(day.AddDate(0, 0, 5), "filecoin", "osmosis"),
	}

	out := Apply(in, "filecoin", MustWindow("2024-03-01", "2024-03-02"))

	require.Len(t, out, 2)
	assert.Equal(t, "ethereum➡filecoin", out[0].Path)
	assert.Equal(t, "filecoin➡moonbeam", out[1].Path)
}

func TestApplyEmptyResultIsNotNil(t *testing.T) {
	out := Apply(nil, "filecoin", MustWindow("2024-03-01", "2024-03-02"))
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestIsFinal(t *testing.T) {
	assert.True(t, IsFinal("executed", "received"))
	assert.False(t, IsFinal("executed", "pending"))
	assert.False(t, IsFinal("failed", "received"))
	assert.False(t, IsFinal("", ""))
}

func TestQueryBoundsArePadded(t *testing.T) {
	w := MustWindow("2024-03-01", "2024-03-01")
	start, end := w.QueryBounds()
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), end)
}
