package stats

import (
	"sort"

	"transfer-dashboard-backend/models"
)

// DefaultRecentLimit caps the recent transfers listing
const DefaultRecentLimit = 1000

// newestFirst returns a copy of transfers sorted by timestamp, latest first
func newestFirst(transfers []models.NormalizedTransfer) []*models.NormalizedTransfer {
	sorted := make([]*models.NormalizedTransfer, len(transfers))
	for i := range transfers {
		sorted[i] = &transfers[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	return sorted
}

// Recent lists up to limit transfers, newest first. limit <= 0 lists everything.
func Recent(transfers []models.NormalizedTransfer, limit int, p Precision) []models.TransferRow {
	sorted := newestFirst(transfers)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	rows := make([]models.TransferRow, 0, len(sorted))
	for _, t := range sorted {
		rows = append(rows, t.ToTransferRow(p.Volume, p.Fees))
	}
	return rows
}

// Whales lists whale transfers, newest first
func Whales(transfers []models.NormalizedTransfer, p Precision) []models.TransferRow {
	rows := make([]models.TransferRow, 0)
	for _, t := range newestFirst(transfers) {
		if IsWhale(t) {
			rows = append(rows, t.ToTransferRow(p.Volume, p.Fees))
		}
	}
	return rows
}
