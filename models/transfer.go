package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Service identifies the origin feed of a transfer
type Service string

const (
	ServiceTokenTransfer Service = "TokenTransfer"
	ServiceMessagePass   Service = "MessagePass"
)

// PathSeparator joins source and destination chain in a path key
const PathSeparator = "➡"

// Terminal status values of a completed transfer
const (
	StatusExecuted           = "executed"
	SimplifiedStatusReceived = "received"
)

// RawNumber is a numeric field as the warehouse hands it over (text).
// An empty or unparseable value is treated as absent.
type RawNumber string


// Float parses the value. ok is false when the value is absent, non-numeric or not finite.
func (n RawNumber) Float() (float64, bool) {
	s := strings.TrimSpace(string(n))
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// UnmarshalJSON accepts strings, bare numbers and null. Anything else is kept as text and
// degrades to absent when parsed.
func (n *RawNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = RawNumber(str)
		return nil
	}
	*n = RawNumber(s)
	return nil
}

// Present reports whether the field carries any text at all
func (n RawNumber) Present() bool {
	s := strings.TrimSpace(string(n))
	return s != "" && !strings.EqualFold(s, "null")
}

// RawSimpleTransferEvent is a row of the simple token transfer feed
type RawSimpleTransferEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	SourceChain      string    `json:"source_chain"`
	DestinationChain string    `json:"destination_chain"`
	SenderAddress    string    `json:"sender_address"`
	TokenAmount      RawNumber `json:"token_amount"`
	TokenUnitPrice   RawNumber `json:"token_unit_price"`
	FeeValue         RawNumber `json:"fee_value"`
	EventID          string    `json:"event_id"`
	Asset            string    `json:"asset,omitempty"`
	Status           string    `json:"status"`
	SimplifiedStatus string    `json:"simplified_status"`
}

// RawMessageEvent is a row of the general message passing feed
type RawMessageEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	SourceChain      string    `json:"source_chain"`
	DestinationChain string    `json:"destination_chain"`
	SenderAddress    string    `json:"sender_address"`
	NativeValue      RawNumber `json:"native_value"`
	GasUsedAmount    RawNumber `json:"gas_used_amount"`
	GasTokenPriceUSD RawNumber `json:"gas_token_price_usd"`
	ExpressFeeUSD    RawNumber `json:"express_fee_usd"`
	EventID          string    `json:"event_id"`
	AssetSymbol      string    `json:"asset_symbol,omitempty"`
	Status           string    `json:"status"`
	SimplifiedStatus string    `json:"simplified_status"`
}

// NormalizedTransfer is the unified view over both feeds.
// AmountUSD and FeeUSD are nil when absent.
type NormalizedTransfer struct {
	Timestamp        time.Time `json:"timestamp"`
	SourceChain      string    `json:"source_chain"`
	DestinationChain string    `json:"destination_chain"`
	User             string    `json:"user"`
	AmountUSD        *float64  `json:"amount_usd"`
	FeeUSD           *float64  `json:"fee_usd"`
	ID               string    `json:"id"`
	Service          Service   `json:"service"`
	Path             string    `json:"path"`
	Asset            string    `json:"asset,omitempty"`
}

// Key namespaces the feed-local id by service so ids from the two feeds never collide
func (t *NormalizedTransfer) Key() string {
	return string(t.Service) + ":" + t.ID
}

// HasAmount reports whether the USD amount is known and finite
func (t *NormalizedTransfer) HasAmount() bool {
	return finite(t.AmountUSD)
}

// HasFee reports whether the USD fee is known and finite
func (t *NormalizedTransfer) HasFee() bool {
	return finite(t.FeeUSD)
}

func finite(v *float64) bool {
	return v != nil && !math.IsInf(*v, 0) && !math.IsNaN(*v)
}

// PathKey builds the path grouping key for a chain pair
func PathKey(source, destination string) string {
	return source + PathSeparator + destination
}

// Float returns a pointer to v, for populating optional fields
func Float(v float64) *float64 {
	return &v
}
