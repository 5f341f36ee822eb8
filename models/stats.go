package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NoVolumeLabel is shown in place of an unknown amount
const NoVolumeLabel = "No Volume"

// TransferRow is a single transfer as the monitoring tables show it
type TransferRow struct {
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	UserDisplay string    `json:"userDisplay"`
	Path        string    `json:"path"`
	Service     Service   `json:"service"`
	Asset       string    `json:"asset,omitempty"`
	AmountUSD   *float64  `json:"amountUsd"`
	AmountLabel string    `json:"amountLabel"`
	FeeUSD      *float64  `json:"feeUsd"`
	ID          string    `json:"id"`
}

// ToTransferRow converts a NormalizedTransfer to its display row.
// amountPlaces and feePlaces control rounding of the two money columns.
func (t *NormalizedTransfer) ToTransferRow(amountPlaces, feePlaces int32) TransferRow {
	row := TransferRow{
		Timestamp:   t.Timestamp,
		User:        t.User,
		UserDisplay: ShortenAddress(t.User),
		Path:        t.Path,
		Service:     t.Service,
		Asset:       t.Asset,
		ID:          t.ID,
		AmountLabel: NoVolumeLabel,
	}
	if t.HasAmount() {
		d := decimal.NewFromFloat(*t.AmountUSD).Round(amountPlaces)
		row.AmountUSD = Float(d.InexactFloat64())
		row.AmountLabel = d.StringFixed(amountPlaces)
	}
	if t.HasFee() {
		row.FeeUSD = Float(decimal.NewFromFloat(*t.FeeUSD).Round(feePlaces).InexactFloat64())
	}
	return row
}

// ShortenAddress keeps the first 8 characters of long addresses
func ShortenAddress(addr string) string {
	if r := []rune(addr); len(r) > 10 {
		return string(r[:8]) + "..."
	}
	return addr
}
