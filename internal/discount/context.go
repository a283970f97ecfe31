package discount

import (
	"time"

	"github.com/noah-isme/shipment-discounts/internal/pricing"
	"github.com/noah-isme/shipment-discounts/internal/shipment"
)

// Context carries one shipment through the rule chain.
// Rules read Shipment and History and only ever write CurrentDiscount.
type Context struct {
	Shipment        *shipment.Shipment
	History         []shipment.Shipment
	CurrentDiscount pricing.Money
}

// NewContext seeds a context. Production callers pass a zero seed.
func NewContext(s *shipment.Shipment, history []shipment.Shipment, seed pricing.Money) *Context {
	return &Context{Shipment: s, History: history, CurrentDiscount: seed}
}

// MonthWindow returns [first day of t's month, first day of the next month).
func MonthWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
