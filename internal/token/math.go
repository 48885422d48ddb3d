package token

import sdkmath "cosmossdk.io/math"

var (
	ray     = sdkmath.NewIntWithDecimal(1, 27)
	halfRay = ray.QuoRaw(2)
)

// Ray is the resolution of the supply index.
func Ray() sdkmath.Int { return ray }

func rayMul(a, b sdkmath.Int) sdkmath.Int {
	return a.Mul(b).Add(halfRay).Quo(ray)
}

func rayDiv(a, b sdkmath.Int) sdkmath.Int {
	if b.IsZero() {
		return sdkmath.ZeroInt()
	}
	return a.Mul(ray).Add(b.QuoRaw(2)).Quo(b)
}
