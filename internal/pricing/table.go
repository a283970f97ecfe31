package pricing

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRate is returned when the table has no price for a provider and size.
var ErrUnknownRate = errors.New("no rate for provider and package size")

// PackageSize is the closed set of parcel sizes.
type PackageSize string

const (
	Small  PackageSize = "S"
	Medium PackageSize = "M"
	Large  PackageSize = "L"
)

// Sizes lists every supported package size.
func Sizes() []PackageSize {
	return []PackageSize{Small, Medium, Large}
}

// ParseSize maps a raw token onto a PackageSize.
func ParseSize(value string) (PackageSize, bool) {
	for _, s := range Sizes() {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Provider identifies a courier in the price table.
type Provider string

const (
	ProviderLP Provider = "LP"
	ProviderMR Provider = "MR"
)

// Table is an immutable base price lookup keyed by provider and package size.
type Table struct {
	rates       map[Provider]map[PackageSize]Money
	lowestSmall Money
}

// NewTable copies the provided rates and precomputes derived values.
func NewTable(rates map[Provider]map[PackageSize]Money) *Table {
	t := &Table{rates: make(map[Provider]map[PackageSize]Money, len(rates))}
	for provider, sizes := range rates {
		row := make(map[PackageSize]Money, len(sizes))
		for size, price := range sizes {
			row[size] = price
		}
		t.rates[provider] = row
	}
	t.lowestSmall, _ = t.LowestPrice(Small)
	return t
}

// DefaultTable returns the courier rates used in production.
func DefaultTable() *Table {
	return NewTable(map[Provider]map[PackageSize]Money{
		ProviderLP: {Small: 150, Medium: 490, Large: 690},
		ProviderMR: {Small: 200, Medium: 300, Large: 400},
	})
}

// Lookup returns the base price for the provider and size.
func (t *Table) Lookup(provider Provider, size PackageSize) (Money, error) {
	price, ok := t.rates[provider][size]
	if !ok {
		return 0, fmt.Errorf("%w: %s %s", ErrUnknownRate, provider, size)
	}
	return price, nil
}

// Has reports whether the provider is present in the table.
func (t *Table) Has(provider Provider) bool {
	_, ok := t.rates[provider]
	return ok
}

// Providers returns the table providers in lexical order.
func (t *Table) Providers() []Provider {
	out := make([]Provider, 0, len(t.rates))
	for p := range t.rates {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LowestPrice scans all providers for the cheapest rate of the given size.
func (t *Table) LowestPrice(size PackageSize) (Money, bool) {
	var (
		lowest Money
		found  bool
	)
	for _, sizes := range t.rates {
		price, ok := sizes[size]
		if !ok {
			continue
		}
		if !found || price < lowest {
			lowest = price
			found = true
		}
	}
	return lowest, found
}

// LowestSmallPrice is the cheapest Small rate across providers.
func (t *Table) LowestSmallPrice() Money {
	return t.lowestSmall
}
