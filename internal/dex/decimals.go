package dex

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Base-unit <-> human-unit conversion for ERC20 amounts.
//
// Quantization always rounds down: spending slightly less than requested is
// safe, spending more than the wallet holds is not.

// ToBaseUnits converts a human-unit amount to base units (wei-style integer)
// for a token with the given number of decimals, rounding down.
func ToBaseUnits(amount decimal.Decimal, decimals int) *big.Int {
	scaled := amount.Shift(int32(decimals)).Floor()
	return scaled.BigInt()
}

// FromBaseUnits converts a base-unit integer to a human-unit decimal.
func FromBaseUnits(amount *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(amount, 0).Shift(int32(-decimals))
}

// Quantize floors a human-unit amount to the token's decimal precision.
// Quantize(1.23456789, 6) == 1.234567.
func Quantize(amount decimal.Decimal, decimals int) decimal.Decimal {
	return amount.Shift(int32(decimals)).Floor().Shift(int32(-decimals))
}

// PriceFromAmounts derives a quote-per-one-base price from a pair of
// base-unit amounts. The division rounds toward zero. Returns zero when the
// base amount is zero.
func PriceFromAmounts(baseAmount *big.Int, baseDecimals int, quoteAmount *big.Int, quoteDecimals int) decimal.Decimal {
	baseHuman := FromBaseUnits(baseAmount, baseDecimals)
	if baseHuman.IsZero() {
		return decimal.Zero
	}
	quoteHuman := FromBaseUnits(quoteAmount, quoteDecimals)
	// DivisionPrecision defaults to 16 which is below 18-decimal tokens.
	precision := int32(baseDecimals)
	if int32(quoteDecimals) > precision {
		precision = int32(quoteDecimals)
	}
	if precision < 18 {
		precision = 18
	}
	return quoteHuman.DivRound(baseHuman, precision+1).RoundDown(precision)
}
