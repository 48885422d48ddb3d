package swap

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/stablevault/internal/types"
)

// PriceOracle prices one whole token in USD.
type PriceOracle interface {
	Price(ctx context.Context, denom string) (sdkmath.LegacyDec, error)
}

// StaticOracle serves fixed prices.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]sdkmath.LegacyDec
}

func NewStaticOracle(prices map[string]sdkmath.LegacyDec) *StaticOracle {
	o := &StaticOracle{prices: make(map[string]sdkmath.LegacyDec)}
	for d, p := range prices {
		o.prices[d] = p
	}
	return o
}

func (o *StaticOracle) Set(denom string, price sdkmath.LegacyDec) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[denom] = price
}

func (o *StaticOracle) Price(_ context.Context, denom string) (sdkmath.LegacyDec, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[denom]
	if !ok || p.IsNil() || !p.IsPositive() {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s", types.ErrNoPrice, denom)
	}
	return p, nil
}
