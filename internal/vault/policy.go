package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/stablevault/internal/types"
)

// Portion is the common-unit value a redemption pays in one asset.
type Portion struct {
	Denom string
	Value sdkmath.Int
}

// RedemptionPolicy decides the asset mix paid out for a redemption of value.
type RedemptionPolicy interface {
	Name() string
	Split(value sdkmath.Int, holdings []types.AssetCollateral) ([]Portion, error)
}

// ProportionalPolicy pays each asset in proportion to its share of total holdings.
type ProportionalPolicy struct{}

func (ProportionalPolicy) Name() string { return "proportional" }

func (ProportionalPolicy) Split(value sdkmath.Int, holdings []types.AssetCollateral) ([]Portion, error) {
	total := sdkmath.ZeroInt()
	for _, h := range holdings {
		total = total.Add(h.Value)
	}
	if total.IsZero() || value.GT(total) {
		return nil, fmt.Errorf("%w: redeem %s from holdings of %s", types.ErrInsufficientBalance, value, total)
	}
	out := make([]Portion, 0, len(holdings))
	for _, h := range holdings {
		if h.Value.IsZero() {
			continue
		}
		out = append(out, Portion{Denom: h.Denom, Value: value.Mul(h.Value).Quo(total)})
	}
	return out, nil
}

// PreferredAssetPolicy drains one asset first and spills over the others in registration order.
type PreferredAssetPolicy struct {
	Denom string
}

func (p PreferredAssetPolicy) Name() string { return "preferred:" + p.Denom }

func (p PreferredAssetPolicy) Split(value sdkmath.Int, holdings []types.AssetCollateral) ([]Portion, error) {
	ordered := make([]types.AssetCollateral, 0, len(holdings))
	for _, h := range holdings {
		if h.Denom == p.Denom {
			ordered = append(ordered, h)
		}
	}
	for _, h := range holdings {
		if h.Denom != p.Denom {
			ordered = append(ordered, h)
		}
	}

	remaining := value
	var out []Portion
	for _, h := range ordered {
		if remaining.IsZero() {
			break
		}
		take := sdkmath.MinInt(remaining, h.Value)
		if take.IsPositive() {
			out = append(out, Portion{Denom: h.Denom, Value: take})
			remaining = remaining.Sub(take)
		}
	}
	if remaining.IsPositive() {
		return nil, fmt.Errorf("%w: %s short after draining all assets", types.ErrInsufficientBalance, remaining)
	}
	return out, nil
}
