package discount

import "github.com/noah-isme/shipment-discounts/internal/pricing"

// Handler is one link of the discount chain.
type Handler interface {
	// SetNext replaces the successor and returns it so links can be chained fluently.
	SetNext(next Handler) Handler
	// Process applies this link's rule and then always forwards to the successor.
	Process(c *Context)
}

// Rule is the business logic of a single link.
type Rule interface {
	Apply(c *Context)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(c *Context)

// Apply calls f(c).
func (f RuleFunc) Apply(c *Context) { f(c) }

// Link binds a Rule into the chain.
type Link struct {
	rule Rule
	next Handler
}

// NewLink wraps rule in a chain link with no successor.
func NewLink(rule Rule) *Link {
	return &Link{rule: rule}
}

// SetNext implements Handler.
func (l *Link) SetNext(next Handler) Handler {
	l.next = next
	return next
}

// Process implements Handler. There is no short-circuit: every link runs.
func (l *Link) Process(c *Context) {
	l.rule.Apply(c)
	if l.next != nil {
		l.next.Process(c)
	}
}

// Chain links rules in the given order and returns the head, or nil when no
// rules are given. Nil rules are skipped.
//
// Order matters: MonthlyLimit clamps whatever the preceding rules produced, so
// it must be the last rule. Nothing here enforces that.
func Chain(rules ...Rule) Handler {
	var head, tail *Link
	for _, r := range rules {
		if r == nil {
			continue
		}
		l := NewLink(r)
		if head == nil {
			head = l
		} else {
			tail.SetNext(l)
		}
		tail = l
	}
	if head == nil {
		return nil
	}
	return head
}

// DefaultChain is the production order: lower Small price, third Large free, monthly cap.
func DefaultChain(table *pricing.Table, limit pricing.Money) Handler {
	return Chain(
		LowerSmallPrice{Table: table},
		NewThirdLargeFree(table),
		MonthlyLimit{Limit: limit},
	)
}
