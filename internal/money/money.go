// Package money holds the fixed-precision arithmetic used everywhere
// prices and quantities meet. Prices carry 2 decimal places,
// quantities 4 (fractional shares). The only division rounding rule in
// the codebase is round-half-to-even at the target precision.
package money

import "github.com/shopspring/decimal"

const (
	PricePrecision    = 2
	QuantityPrecision = 4

	// guard digits carried through division before the final
	// half-to-even rounding
	_divPrecision = PricePrecision + 4
)

var Hundred = decimal.NewFromInt(100)

func QuantizePrice(p decimal.Decimal) decimal.Decimal {
	return p.RoundBank(PricePrecision)
}

func QuantizeQuantity(q decimal.Decimal) decimal.Decimal {
	return q.RoundBank(QuantityPrecision)
}

// WeightedAverage merges an existing lot (avgCost, qty) with a new lot
// (price, addQty) and returns the quantity-weighted average cost of
// the combined lot, rounded half-to-even to price precision.
func WeightedAverage(avgCost, qty, price, addQty decimal.Decimal) decimal.Decimal {
	total := avgCost.Mul(qty).Add(price.Mul(addQty))
	return total.DivRound(qty.Add(addQty), _divPrecision).RoundBank(PricePrecision)
}

func MarketValue(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).RoundBank(PricePrecision)
}

// PLPercent is (current/avgCost - 1) * 100, and 0 when avgCost is 0.
func PLPercent(current, avgCost decimal.Decimal) decimal.Decimal {
	if avgCost.IsZero() {
		return decimal.Zero
	}
	return current.DivRound(avgCost, _divPrecision).Sub(decimal.New(1, 0)).Mul(Hundred).RoundBank(PricePrecision)
}

// AllocationPercent is value/total * 100, and 0 when total is 0.
func AllocationPercent(value, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return value.DivRound(total, _divPrecision).Mul(Hundred).RoundBank(PricePrecision)
}
