package normalize

import (
	"math"

	"transfer-dashboard-backend/internal/filter"
	"transfer-dashboard-backend/models"
)

// Degraded field names reported when a present numeric value fails to parse
const (
	FieldTokenAmount      = "token_amount"
	FieldTokenUnitPrice   = "token_unit_price"
	FieldFeeValue         = "fee_value"
	FieldNativeValue      = "native_value"
	FieldGasUsedAmount    = "gas_used_amount"
	FieldGasTokenPriceUSD = "gas_token_price_usd"
	FieldExpressFeeUSD    = "express_fee_usd"
	// the product of two finite operands overflowed
	FieldAmountUSD = "amount_usd"
	FieldFeeUSD    = "fee_usd"
)

// parse reads a numeric field. A present but unparseable value is recorded in degraded.
func parse(n models.RawNumber, field string, degraded *[]string) (float64, bool) {
	v, ok := n.Float()
	if !ok && n.Present() {
		*degraded = append(*degraded, field)
	}
	return v, ok
}

// product multiplies two parsed operands. A non-finite result is treated as absent and recorded under field.
func product(a float64, aok bool, b float64, bok bool, field string, degraded *[]string) *float64 {
	if !aok || !bok {
		return nil
	}
	v := a * b
	if math.IsInf(v, 0) || math.IsNaN(v) {
		*degraded = append(*degraded, field)
		return nil
	}
	return models.Float(v)
}

func common(ts models.NormalizedTransfer) models.NormalizedTransfer {
	ts.SourceChain = models.NormalizeChain(ts.SourceChain)
	ts.DestinationChain = models.NormalizeChain(ts.DestinationChain)
	ts.Path = models.PathKey(ts.SourceChain, ts.DestinationChain)
	return ts
}

// NormalizeSimple maps a simple token transfer row.
// amount = token_amount * token_unit_price, fee = fee_value.
// It returns the names of fields that were present but could not be parsed.
func NormalizeSimple(raw models.RawSimpleTransferEvent) (models.NormalizedTransfer, []string) {
	var degraded []string
	amount, aok := parse(raw.TokenAmount, FieldTokenAmount, &degraded)
	price, pok := parse(raw.TokenUnitPrice, FieldTokenUnitPrice, &degraded)

	t := common(models.NormalizedTransfer{
		Timestamp:        raw.Timestamp,
		SourceChain:      raw.SourceChain,
		DestinationChain: raw.DestinationChain,
		User:             raw.SenderAddress,
		AmountUSD:        product(amount, aok, price, pok, FieldAmountUSD, &degraded),
		ID:               raw.EventID,
		Service:          models.ServiceTokenTransfer,
		Asset:            raw.Asset,
	})
	if fee, ok := parse(raw.FeeValue, FieldFeeValue, &degraded); ok {
		t.FeeUSD = models.Float(fee)
	}
	return t, degraded
}

// NormalizeMessage maps a general message passing row.
// amount = native_value (already USD). fee = gas_used_amount * gas_token_price_usd,
// falling back to express_fee_usd when the product cannot be computed.
func NormalizeMessage(raw models.RawMessageEvent) (models.NormalizedTransfer, []string) {
	var degraded []string

	t := common(models.NormalizedTransfer{
		Timestamp:        raw.Timestamp,
		SourceChain:      raw.SourceChain,
		DestinationChain: raw.DestinationChain,
		User:             raw.SenderAddress,
		ID:               raw.EventID,
		Service:          models.ServiceMessagePass,
		Asset:            raw.AssetSymbol,
	})
	if v, ok := parse(raw.NativeValue, FieldNativeValue, &degraded); ok {
		t.AmountUSD = models.Float(v)
	}

	gas, gok := parse(raw.GasUsedAmount, FieldGasUsedAmount, &degraded)
	price, pok := parse(raw.GasTokenPriceUSD, FieldGasTokenPriceUSD, &degraded)
	t.FeeUSD = product(gas, gok, price, pok, FieldFeeUSD, &degraded)
	if t.FeeUSD == nil {
		if express, ok := parse(raw.ExpressFeeUSD, FieldExpressFeeUSD, &degraded); ok {
			t.FeeUSD = models.Float(express)
		}
	}
	return t, degraded
}

// Result is the unified stream plus bookkeeping about what was left out or degraded
type Result struct {
	Transfers       []models.NormalizedTransfer
	Degraded        map[string]int
	DroppedNonFinal int
	DroppedOffChain int
}

// DegradedTotal sums all degraded field counts
func (r Result) DegradedTotal() int {
	n := 0
	for _, c := range r.Degraded {
		n += c
	}
	return n
}

// Normalize unions both feeds, keeping only final transfers that touch chain.
// Simple transfers come first, each feed in its input order.
func Normalize(simple []models.RawSimpleTransferEvent, messages []models.RawMessageEvent, chain string) Result {
	res := Result{
		Transfers: make([]models.NormalizedTransfer, 0, len(simple)+len(messages)),
		Degraded:  make(map[string]int),
	}
	cf := &models.ChainFilter{Chain: chain}

	keep := func(t models.NormalizedTransfer, degraded []string) {
		if !t.MatchesFilter(cf) {
			res.DroppedOffChain++
			return
		}
		for _, f := range degraded {
			res.Degraded[f]++
		}
		res.Transfers = append(res.Transfers, t)
	}

	for i := range simple {
		if !filter.IsFinal(simple[i].Status, simple[i].SimplifiedStatus) {
			res.DroppedNonFinal++
			continue
		}
		keep(NormalizeSimple(simple[i]))
	}
	for i := range messages {
		if !filter.IsFinal(messages[i].Status, messages[i].SimplifiedStatus) {
			res.DroppedNonFinal++
			continue
		}
		keep(NormalizeMessage(messages[i]))
	}
	return res
}
