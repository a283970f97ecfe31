package shipping

import (
	"strings"

	"github.com/noah-isme/shipment-discounts/internal/shipment"
)

// IgnoredMarker is appended to malformed input lines in the output.
const IgnoredMarker = "Ignored"

// Result is the outcome of processing one input line.
type Result struct {
	Original string
	Shipment *shipment.Shipment
	Ignored  bool
	Reason   error
}

// String formats the output row for the result.
func (r Result) String() string {
	if r.Ignored || r.Shipment == nil {
		return strings.TrimSpace(r.Original) + " " + IgnoredMarker
	}
	return r.Shipment.Row()
}

// Rows formats every result in order.
func Rows(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.String())
	}
	return out
}
