/*

RewardConverter: turns reward token balances into a vault asset through a configured venue while
enforcing each token's slippage floor and per-call liquidation cap.

*/

package swap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// Leg is one planned reward token conversion.
type Leg struct {
	Venue    string
	AmountIn sdk.Coin
	DenomOut string
	Quote    sdkmath.Int
	Expected sdkmath.Int
	MinOut   sdkmath.Int
	// Oracle reports whether Expected came from the price oracle rather than the venue quote.
	Oracle bool
}

type Converter struct {
	mu     sync.RWMutex
	venues map[string]Venue
	oracle PriceOracle
	tokens types.TokenRegistry
	log    zerolog.Logger
}

// NewConverter builds a converter. oracle may be nil, in which case venue quotes set the floor.
func NewConverter(tokens types.TokenRegistry, oracle PriceOracle) *Converter {
	return &Converter{
		venues: make(map[string]Venue),
		oracle: oracle,
		tokens: tokens,
		log:    logger.GetForComponent("reward_converter"),
	}
}

func (c *Converter) RegisterVenue(v Venue) error {
	if v == nil || v.Name() == "" {
		return fmt.Errorf("%w: unnamed venue", types.ErrInvalidConfig)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.venues[v.Name()] = v
	return nil
}

func (c *Converter) Venue(name string) (Venue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.venues[name]
	return v, ok
}

// Venues lists registered venue names, sorted.
func (c *Converter) Venues() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.venues))
	for n := range c.venues {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Plan sizes a conversion of balance under cfg. ok is false when nothing should be swapped:
// an inactive config or an empty amount. A venue quote below the floor fails with ErrSlippageExceeded.
func (c *Converter) Plan(ctx context.Context, cfg types.RewardTokenConfig, balance sdkmath.Int, denomOut string) (Leg, bool, error) {
	if !cfg.Active {
		return Leg{}, false, nil
	}
	amount := cfg.AmountToSwap(balance)
	if !amount.IsPositive() {
		return Leg{}, false, nil
	}
	in := sdk.NewCoin(cfg.Token, amount)

	if cfg.Token == denomOut {
		return Leg{Venue: cfg.SwapVenue, AmountIn: in, DenomOut: denomOut, Quote: amount, Expected: amount, MinOut: amount}, true, nil
	}

	venue, ok := c.Venue(cfg.SwapVenue)
	if !ok {
		return Leg{}, false, fmt.Errorf("%w: %s", types.ErrUnknownVenue, cfg.SwapVenue)
	}
	quote, err := venue.Quote(ctx, in, denomOut)
	if err != nil {
		return Leg{}, false, err
	}

	leg := Leg{Venue: venue.Name(), AmountIn: in, DenomOut: denomOut, Quote: quote, Expected: quote}
	if expected, ok, err := c.oracleOut(ctx, in, denomOut); err != nil {
		return Leg{}, false, err
	} else if ok {
		leg.Expected = expected
		leg.Oracle = true
	}
	leg.MinOut = utils.ReduceByBps(leg.Expected, cfg.MaxSlippageBps)

	if quote.LT(leg.MinOut) {
		c.log.Warn().
			Str("token", cfg.Token).
			Str("venue", leg.Venue).
			Str("quote", quote.String()).
			Str("min_out", leg.MinOut.String()).
			Msg("Venue quote below slippage floor")
		return Leg{}, false, fmt.Errorf("%w: %s quote %s below minimum %s", types.ErrSlippageExceeded, cfg.Token, quote, leg.MinOut)
	}
	return leg, true, nil
}

// oracleOut prices in as denomOut. ok is false when the oracle cannot price either side.
func (c *Converter) oracleOut(ctx context.Context, in sdk.Coin, denomOut string) (sdkmath.Int, bool, error) {
	if c.oracle == nil {
		return sdkmath.ZeroInt(), false, nil
	}
	inDec, okIn := c.tokens.Decimals(in.Denom)
	outDec, okOut := c.tokens.Decimals(denomOut)
	if !okIn || !okOut {
		return sdkmath.ZeroInt(), false, nil
	}
	priceIn, err := c.oracle.Price(ctx, in.Denom)
	if errors.Is(err, types.ErrNoPrice) {
		return sdkmath.ZeroInt(), false, nil
	} else if err != nil {
		return sdkmath.ZeroInt(), false, err
	}
	priceOut, err := c.oracle.Price(ctx, denomOut)
	if errors.Is(err, types.ErrNoPrice) {
		return sdkmath.ZeroInt(), false, nil
	} else if err != nil {
		return sdkmath.ZeroInt(), false, err
	}

	value := priceIn.Quo(priceOut).MulInt(utils.ToCommonUnits(in.Amount, inDec)).TruncateInt()
	return utils.FromCommonUnits(value, outDec), true, nil
}

// CheckLiquidity fails with ErrInsufficientLiquidity when the venues cannot pay out every leg's quote
// together. Venues that do not report liquidity are not checked.
func (c *Converter) CheckLiquidity(ctx context.Context, legs []Leg) error {
	type payout struct{ venue, denom string }
	owed := make(map[payout]sdkmath.Int)
	var order []payout
	for _, leg := range legs {
		if leg.AmountIn.Denom == leg.DenomOut {
			continue
		}
		k := payout{leg.Venue, leg.DenomOut}
		if _, ok := owed[k]; !ok {
			owed[k] = sdkmath.ZeroInt()
			order = append(order, k)
		}
		owed[k] = owed[k].Add(leg.Quote)
	}
	for _, k := range order {
		venue, ok := c.Venue(k.venue)
		if !ok {
			return fmt.Errorf("%w: %s", types.ErrUnknownVenue, k.venue)
		}
		reporter, ok := venue.(LiquidityReporter)
		if !ok {
			continue
		}
		held, err := reporter.Liquidity(ctx, k.denom)
		if err != nil {
			return err
		}
		if held.LT(owed[k]) {
			c.log.Warn().
				Str("venue", k.venue).
				Str("denom", k.denom).
				Str("held", held.String()).
				Str("owed", owed[k].String()).
				Msg("Venue liquidity short of planned swaps")
			return fmt.Errorf("%w: %s holds %s%s, planned swaps need %s", types.ErrInsufficientLiquidity, k.venue, held, k.denom, owed[k])
		}
	}
	return nil
}

// Execute performs a planned leg for trader and returns the amount received.
func (c *Converter) Execute(ctx context.Context, trader string, leg Leg) (sdkmath.Int, error) {
	if leg.AmountIn.Denom == leg.DenomOut {
		return leg.AmountIn.Amount, nil
	}
	venue, ok := c.Venue(leg.Venue)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", types.ErrUnknownVenue, leg.Venue)
	}
	out, err := venue.Swap(ctx, trader, leg.AmountIn, leg.DenomOut, leg.MinOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if out.LT(leg.MinOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s returned %s below minimum %s", types.ErrSlippageExceeded, leg.Venue, out, leg.MinOut)
	}
	c.log.Info().
		Str("in", leg.AmountIn.String()).
		Str("out", out.String()+leg.DenomOut).
		Str("min_out", leg.MinOut.String()).
		Str("venue", leg.Venue).
		Msg("Reward token converted")
	return out, nil
}
