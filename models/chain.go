package models

import "strings"

// Direction is the flow of a transfer relative to the chain of interest
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
	// DirectionSelfLoop marks transfers whose source and destination are both the chain of interest.
	// They are reported on their own and never counted as Inbound or Outbound.
	DirectionSelfLoop Direction = "SelfLoop"
	DirectionNone     Direction = ""
)

// Label renders a direction the way the dashboard charts show it
func (d Direction) Label(chain string) string {
	switch d {
	case DirectionInbound:
		return "⛓" + PathSeparator + chain
	case DirectionOutbound:
		return chain + PathSeparator + "⛓"
	case DirectionSelfLoop:
		return chain + PathSeparator + chain
	default:
		return ""
	}
}

// NormalizeChain lower-cases and trims a chain identifier. Source feeds mix case.
func NormalizeChain(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain))
}

// ChainFilter selects transfers touching a single chain of interest
type ChainFilter struct {
	Chain string `json:"chain"`
}

// MatchesFilter checks if a transfer touches the filter's chain on either side
func (t *NormalizedTransfer) MatchesFilter(filter *ChainFilter) bool {
	if filter == nil || filter.Chain == "" {
		return true
	}
	chain := NormalizeChain(filter.Chain)
	return t.SourceChain == chain || t.DestinationChain == chain
}

// DirectionFor classifies a transfer relative to chain
func (t *NormalizedTransfer) DirectionFor(chain string) Direction {
	chain = NormalizeChain(chain)
	in := t.DestinationChain == chain
	out := t.SourceChain == chain
	switch {
	case in && out:
		return DirectionSelfLoop
	case in:
		return DirectionInbound
	case out:
		return DirectionOutbound
	default:
		return DirectionNone
	}
}
