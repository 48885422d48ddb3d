package swap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

var ErrNoRoute = errors.New("no swap route")

// Venue is a minimum-output-bounded swap primitive.
type Venue interface {
	Name() string
	Quote(ctx context.Context, in sdk.Coin, denomOut string) (sdkmath.Int, error)
	// Swap takes in from trader and pays at least minOut of denomOut back, or fails with ErrSlippageExceeded.
	Swap(ctx context.Context, trader string, in sdk.Coin, denomOut string, minOut sdkmath.Int) (sdkmath.Int, error)
}

// LiquidityReporter is implemented by venues that can report what they are able to pay out.
type LiquidityReporter interface {
	Liquidity(ctx context.Context, denom string) (sdkmath.Int, error)
}

type pair struct{ in, out string }

// FixedRateVenue is a bank-backed router quoting configured rates, expressed as whole output
// tokens per whole input token, less a fee. It pays out of its own liquidity.
type FixedRateVenue struct {
	mu     sync.RWMutex
	name   string
	addr   string
	bank   *bank.Bank
	tokens types.TokenRegistry
	rates  map[pair]sdkmath.LegacyDec
	feeBps uint16
	log    zerolog.Logger
}

func NewFixedRateVenue(name, addr string, b *bank.Bank, tokens types.TokenRegistry, feeBps uint16) *FixedRateVenue {
	return &FixedRateVenue{
		name:   name,
		addr:   addr,
		bank:   b,
		tokens: tokens,
		rates:  make(map[pair]sdkmath.LegacyDec),
		feeBps: feeBps,
		log:    logger.GetForComponent("swap_venue").With().Str("venue", name).Logger(),
	}
}

func (v *FixedRateVenue) Name() string    { return v.name }
func (v *FixedRateVenue) Address() string { return v.addr }

// SetRate sets the price of in expressed in out.
func (v *FixedRateVenue) SetRate(in, out string, rate sdkmath.LegacyDec) error {
	if _, ok := v.tokens.Decimals(in); !ok {
		return fmt.Errorf("%w: unknown token %s", types.ErrInvalidConfig, in)
	}
	if _, ok := v.tokens.Decimals(out); !ok {
		return fmt.Errorf("%w: unknown token %s", types.ErrInvalidConfig, out)
	}
	if rate.IsNil() || !rate.IsPositive() {
		return fmt.Errorf("%w: rate %s->%s must be positive", types.ErrInvalidConfig, in, out)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rates[pair{in, out}] = rate
	return nil
}

func (v *FixedRateVenue) Quote(_ context.Context, in sdk.Coin, denomOut string) (sdkmath.Int, error) {
	v.mu.RLock()
	rate, ok := v.rates[pair{in.Denom, denomOut}]
	v.mu.RUnlock()
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s->%s on %s", ErrNoRoute, in.Denom, denomOut, v.name)
	}
	inDec, _ := v.tokens.Decimals(in.Denom)
	outDec, _ := v.tokens.Decimals(denomOut)

	value := rate.MulInt(utils.ToCommonUnits(in.Amount, inDec)).TruncateInt()
	value = utils.ReduceByBps(value, v.feeBps)
	return utils.FromCommonUnits(value, outDec), nil
}

// Liquidity is the venue's own balance of denom.
func (v *FixedRateVenue) Liquidity(_ context.Context, denom string) (sdkmath.Int, error) {
	return v.bank.Balance(v.addr, denom), nil
}

func (v *FixedRateVenue) Swap(ctx context.Context, trader string, in sdk.Coin, denomOut string, minOut sdkmath.Int) (sdkmath.Int, error) {
	out, err := v.Quote(ctx, in, denomOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if out.LT(minOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s out %s below minimum %s", types.ErrSlippageExceeded, v.name, out, minOut)
	}
	if held := v.bank.Balance(v.addr, denomOut); held.LT(out) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s holds %s%s", types.ErrInsufficientLiquidity, v.name, held, denomOut)
	}
	if err := v.bank.Send(trader, v.addr, in); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.bank.Send(v.addr, trader, sdk.NewCoin(denomOut, out)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.log.Debug().Str("trader", trader).Str("in", in.String()).Str("out", out.String()+denomOut).Msg("Swap executed")
	return out, nil
}
