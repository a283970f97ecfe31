package discount

import "github.com/noah-isme/shipment-discounts/internal/pricing"

// DefaultMonthlyLimit caps the discounts granted per calendar month (10.00).
const DefaultMonthlyLimit pricing.Money = 1000

// LowerSmallPrice discounts every Small shipment down to the cheapest Small rate in the table.
type LowerSmallPrice struct {
	Table *pricing.Table
}

// Apply implements Rule.
func (r LowerSmallPrice) Apply(c *Context) {
	s := c.Shipment
	if s.Size != pricing.Small {
		return
	}
	lowest := r.Table.LowestSmallPrice()
	if s.Price > lowest {
		c.CurrentDiscount += s.Price - lowest
	}
}

// ThirdLargeFree makes the third Size/Provider shipment of a calendar month free,
// at most once per month.
type ThirdLargeFree struct {
	Table    *pricing.Table
	Provider pricing.Provider
	Size     pricing.PackageSize
}

// NewThirdLargeFree returns the rule for Large LP shipments.
func NewThirdLargeFree(table *pricing.Table) ThirdLargeFree {
	return ThirdLargeFree{Table: table, Provider: pricing.ProviderLP, Size: pricing.Large}
}

// Apply implements Rule.
//
// A previous free shipment is recognised by a recorded discount equal to the
// full table price, not by a flag. A coincidental discount of the same amount
// from other rules would also count as the month's free shipment.
func (r ThirdLargeFree) Apply(c *Context) {
	s := c.Shipment
	if s.Size != r.Size || s.Provider != r.Provider {
		return
	}
	fullPrice, err := r.Table.Lookup(r.Provider, r.Size)
	if err != nil {
		return
	}
	start, end := MonthWindow(s.Date)
	matched := 0
	for _, prev := range c.History {
		if prev.Size != r.Size || prev.Provider != r.Provider || !within(prev.Date, start, end) {
			continue
		}
		if prev.Discount == fullPrice {
			return
		}
		matched++
	}
	if matched == 2 {
		c.CurrentDiscount += s.Price
	}
}

// MonthlyLimit clamps the running discount so that the month's discounts never exceed Limit.
type MonthlyLimit struct {
	Limit pricing.Money
}

// Apply implements Rule.
func (r MonthlyLimit) Apply(c *Context) {
	start, end := MonthWindow(c.Shipment.Date)
	var used pricing.Money
	for _, prev := range c.History {
		if within(prev.Date, start, end) {
			used += prev.Discount
		}
	}
	available := r.Limit - used
	if available < 0 {
		available = 0
	}
	c.CurrentDiscount = pricing.MinMoney(c.CurrentDiscount, available)
}
