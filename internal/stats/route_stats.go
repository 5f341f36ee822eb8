package stats

import "sort"

// Rank sorts rows descending by transfer count or volume.
// The sort is stable, so ties keep the group-key order from Aggregate. Callers must not rely on it.
func Rank(rows []MetricRow, by RankBy) {
	switch by {
	case RankCount:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].TransferCount > rows[j].TransferCount
		})
	case RankVolume:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].TransferVolume > rows[j].TransferVolume
		})
	}
}

// TopN truncates already ranked rows to at most n. n <= 0 keeps everything.
func TopN(rows []MetricRow, n int) []MetricRow {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
