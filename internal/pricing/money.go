package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a purchased line used for total calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// LineTotal returns the minor-unit total for a single line.
func LineTotal(it Item) Money {
	if it.Qty <= 0 {
		return 0
	}
	return Money(it.Qty) * it.UnitPrice
}

// Total sums the minor-unit totals of all lines.
func Total(items []Item) Money {
	var total Money
	for _, it := range items {
		total += LineTotal(it)
	}
	return total
}

// MajorUnits converts a minor-unit amount to major currency units.
// Stripe reports USD amounts in cents; order payloads expose dollars.
func MajorUnits(m Money) float64 {
	return float64(m) / 100
}

// FromMajor converts a major-unit amount to minor units, rounding half up.
func FromMajor(v float64) Money {
	if v < 0 {
		return Money(v*100 - 0.5)
	}
	return Money(v*100 + 0.5)
}
