package engine

import "fmt"

// InvalidRangeError reports a query with an inverted time range or a symbol
// that has no price history at all. An empty result for a valid query is
// not an error.
type InvalidRangeError struct {
	StartMs int64
	EndMs   int64
	Symbol  string
}

func (e *InvalidRangeError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("invalid query: unknown symbol %q", e.Symbol)
	}
	return fmt.Sprintf("invalid query: start %d after end %d", e.StartMs, e.EndMs)
}
