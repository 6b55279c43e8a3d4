package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// GenerateLevels returns n price levels evenly spaced across [min, max].
// A single-level ladder sits at min.
func GenerateLevels(min, max decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []decimal.Decimal{min}
	}
	step := max.Sub(min).Div(decimal.NewFromInt(int64(n - 1)))
	levels := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		levels[i] = min.Add(step.Mul(decimal.NewFromInt(int64(i))))
	}
	return levels
}

// DistributionWeights returns n weights summing to 1 for the given shape:
// "uniform" spreads evenly, "bell" samples a gaussian centered on the
// middle level with sigma = max(1, n/6).
func DistributionWeights(n int, kind string) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	if kind != "bell" {
		w := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(n)))
		weights := make([]decimal.Decimal, n)
		for i := range weights {
			weights[i] = w
		}
		return weights
	}

	center := float64(n-1) / 2.0
	sigma := math.Max(1.0, float64(n)/6.0)
	raw := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		z := (float64(i) - center) / sigma
		raw[i] = math.Exp(-0.5 * z * z)
		sum += raw[i]
	}
	weights := make([]decimal.Decimal, n)
	for i := range raw {
		weights[i] = decimal.NewFromFloat(raw[i] / sum)
	}
	return weights
}

// ComputeSpendAmount converts a user-entered amount (denominated in base
// or quote) into the amount of the spend-side token, using price as quote
// per one base. Returns zero for a non-positive price.
func ComputeSpendAmount(priceQuotePerBase, amount decimal.Decimal, basisIsBase, spendIsBase bool) decimal.Decimal {
	if priceQuotePerBase.Sign() <= 0 {
		return decimal.Zero
	}
	if basisIsBase == spendIsBase {
		return amount
	}
	if spendIsBase {
		// amount is in quote, convert to base
		return amount.Div(priceQuotePerBase)
	}
	// amount is in base, convert to quote
	return amount.Mul(priceQuotePerBase)
}

// IsExactOutputCase reports whether the user fixed the receive side: the
// amount basis is the token being received, not the one being spent. Such
// swaps prefer an exact-output route over a price-converted market swap.
func IsExactOutputCase(basisIsBase, spendIsBase bool) bool {
	return basisIsBase != spendIsBase
}
