/*
This file contains common utility functions for converting between token precisions and the vault's
common 18-decimal unit, and for basis-point arithmetic on SDK integers.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// CommonDecimals is the precision of vault shares and of every value figure.
const CommonDecimals = 18

// BasisPoints is the denominator for all bps figures.
const BasisPoints = 10_000

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

func pow10(n uint32) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, int(n))
}

// ToCommonUnits scales an amount with the given precision to 18 decimals.
// Precisions above 18 are truncated.
func ToCommonUnits(amount sdkmath.Int, decimals uint32) sdkmath.Int {
	switch {
	case decimals == CommonDecimals:
		return amount
	case decimals < CommonDecimals:
		return amount.Mul(pow10(CommonDecimals - decimals))
	default:
		return amount.Quo(pow10(decimals - CommonDecimals))
	}
}

// FromCommonUnits scales an 18 decimal value down (or up) to the given precision, truncating.
func FromCommonUnits(value sdkmath.Int, decimals uint32) sdkmath.Int {
	switch {
	case decimals == CommonDecimals:
		return value
	case decimals < CommonDecimals:
		return value.Quo(pow10(CommonDecimals - decimals))
	default:
		return value.Mul(pow10(decimals - CommonDecimals))
	}
}

// MulBps returns amount * bps / 10000, truncated.
func MulBps(amount sdkmath.Int, bps uint16) sdkmath.Int {
	return amount.MulRaw(int64(bps)).QuoRaw(BasisPoints)
}

// ReduceByBps returns amount * (10000 - bps) / 10000, truncated.
func ReduceByBps(amount sdkmath.Int, bps uint16) sdkmath.Int {
	if bps >= BasisPoints {
		return sdkmath.ZeroInt()
	}
	return amount.MulRaw(int64(BasisPoints - int(bps))).QuoRaw(BasisPoints)
}

// ParseAmount converts a human readable decimal string ("1.5") into base units of the given precision.
func ParseAmount(s string, decimals uint32) (sdkmath.Int, error) {
	if decimals > CommonDecimals {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	dec, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q: %w", ErrConversionFailed, s, err)
	}
	if dec.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return dec.MulInt(pow10(decimals)).TruncateInt(), nil
}

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision handling
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	result := sdkmath.LegacyNewDecFromInt(amount).QuoInt(pow10(uint32(precision)))
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}
