package shipment

import (
	"fmt"
	"time"

	"github.com/noah-isme/shipment-discounts/internal/pricing"
)

// DateLayout is the canonical day-level date representation.
const DateLayout = "2006-01-02"

// Shipment is one priced parcel. Price and Discount are fixed by Finalize.
type Shipment struct {
	Date     time.Time
	Size     pricing.PackageSize
	Provider pricing.Provider
	Price    pricing.Money
	Discount pricing.Money
}

// New returns an undiscounted shipment priced at base.
func New(date time.Time, size pricing.PackageSize, provider pricing.Provider, base pricing.Money) Shipment {
	return Shipment{
		Date:     Day(date),
		Size:     size,
		Provider: provider,
		Price:    base,
	}
}

// Finalize assigns the discount and reduces the price so that Price+Discount equals base.
// The discount is clamped into [0, base].
func (s *Shipment) Finalize(base, discount pricing.Money) {
	if discount < 0 {
		discount = 0
	}
	if discount > base {
		discount = base
	}
	s.Discount = discount
	s.Price = base - discount
}

// Row renders the shipment as "<date> <size> <provider> <price> <discount|->".
func (s Shipment) Row() string {
	discount := "-"
	if s.Discount > 0 {
		discount = s.Discount.String()
	}
	return fmt.Sprintf("%s %s %s %s %s", s.Date.Format(DateLayout), s.Size, s.Provider, s.Price, discount)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
