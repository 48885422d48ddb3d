package strategy

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// StablePool is an in-process constant-sum pool of pegged assets. Single-sided deposits pay an
// imbalance penalty of v / (depth + poolValue + v), which stays in the pool for existing LPs.
type StablePool struct {
	mu      sync.Mutex
	addr    string
	lpDenom string
	bank    *bank.Bank
	tokens  types.TokenRegistry
	denoms  []string
	depth   sdkmath.Int
}

func NewStablePool(addr, lpDenom string, b *bank.Bank, tokens types.TokenRegistry, denoms []string, depth sdkmath.Int) (*StablePool, error) {
	if err := sdk.ValidateDenom(lpDenom); err != nil {
		return nil, fmt.Errorf("%w: lp denom %s: %w", types.ErrInvalidConfig, lpDenom, err)
	}
	if len(denoms) == 0 {
		return nil, fmt.Errorf("%w: pool %s has no assets", types.ErrInvalidConfig, addr)
	}
	for _, d := range denoms {
		if _, ok := tokens.Decimals(d); !ok {
			return nil, fmt.Errorf("%w: no decimals for %s", types.ErrInvalidConfig, d)
		}
	}
	if depth.IsNil() || depth.IsNegative() {
		depth = sdkmath.ZeroInt()
	}
	return &StablePool{addr: addr, lpDenom: lpDenom, bank: b, tokens: tokens, denoms: denoms, depth: depth}, nil
}

func (p *StablePool) Address() string  { return p.addr }
func (p *StablePool) Denoms() []string { return append([]string(nil), p.denoms...) }
func (p *StablePool) LPDenom() string  { return p.lpDenom }

func (p *StablePool) value() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, d := range p.denoms {
		dec, _ := p.tokens.Decimals(d)
		total = total.Add(utils.ToCommonUnits(p.bank.Balance(p.addr, d), dec))
	}
	return total
}

func (p *StablePool) virtualPrice() sdkmath.LegacyDec {
	supply := p.bank.Supply(p.lpDenom)
	value := p.value()
	if supply.IsZero() || value.IsZero() {
		return sdkmath.LegacyOneDec()
	}
	return sdkmath.LegacyNewDecFromInt(value).QuoInt(supply)
}

func (p *StablePool) VirtualPrice(context.Context) (sdkmath.LegacyDec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.virtualPrice(), nil
}

// lpFor is the LP that value v redeems at the current virtual price, rounded up.
func (p *StablePool) lpFor(v sdkmath.Int) sdkmath.Int {
	supply := p.bank.Supply(p.lpDenom)
	value := p.value()
	if supply.IsZero() || value.IsZero() {
		return v
	}
	num := v.Mul(supply)
	burn := num.Quo(value)
	if !num.Mod(value).IsZero() {
		burn = burn.AddRaw(1)
	}
	return burn
}

// Claim is provider's pro rata share of the pool's reserve of denom, in native units.
func (p *StablePool) Claim(_ context.Context, provider, denom string) (sdkmath.Int, error) {
	if !p.supports(denom) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s not in pool %s", types.ErrUnsupportedAsset, denom, p.addr)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	lp := p.bank.Balance(provider, p.lpDenom)
	supply := p.bank.Supply(p.lpDenom)
	if lp.IsZero() || supply.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return p.bank.Balance(p.addr, denom).Mul(lp).Quo(supply), nil
}

func (p *StablePool) supports(denom string) bool {
	for _, d := range p.denoms {
		if d == denom {
			return true
		}
	}
	return false
}

func (p *StablePool) AddLiquidity(_ context.Context, provider string, coin sdk.Coin, minLP sdkmath.Int) (sdkmath.Int, error) {
	if !p.supports(coin.Denom) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s not in pool %s", types.ErrUnsupportedAsset, coin.Denom, p.addr)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	dec, _ := p.tokens.Decimals(coin.Denom)
	v := utils.ToCommonUnits(coin.Amount, dec)
	held := p.depth.Add(p.value())
	if held.Add(v).IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty deposit", types.ErrInvalidAmount)
	}
	effective := v.Mul(held).Quo(held.Add(v))
	lp := sdkmath.LegacyNewDecFromInt(effective).Quo(p.virtualPrice()).TruncateInt()
	if lp.LT(minLP) || !lp.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: lp out %s below minimum %s", types.ErrSlippageExceeded, lp, minLP)
	}

	if err := p.bank.Send(provider, p.addr, coin); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := p.bank.Mint(provider, sdk.NewCoin(p.lpDenom, lp)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return lp, nil
}

func (p *StablePool) RemoveLiquidity(_ context.Context, provider, recipient string, coin sdk.Coin, maxLP sdkmath.Int) (sdkmath.Int, error) {
	if !p.supports(coin.Denom) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s not in pool %s", types.ErrUnsupportedAsset, coin.Denom, p.addr)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if reserve := p.bank.Balance(p.addr, coin.Denom); reserve.LT(coin.Amount) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: pool %s holds %s%s", types.ErrInsufficientLiquidity, p.addr, reserve, coin.Denom)
	}
	dec, _ := p.tokens.Decimals(coin.Denom)
	burn := p.lpFor(utils.ToCommonUnits(coin.Amount, dec))
	if burn.GT(maxLP) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: lp burn %s above maximum %s", types.ErrSlippageExceeded, burn, maxLP)
	}
	if err := p.bank.Burn(provider, sdk.NewCoin(p.lpDenom, burn)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := p.bank.Send(p.addr, recipient, coin); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return burn, nil
}

func (p *StablePool) RemoveAll(_ context.Context, provider, recipient string) (sdk.Coins, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lp := p.bank.Balance(provider, p.lpDenom)
	supply := p.bank.Supply(p.lpDenom)
	if lp.IsZero() || supply.IsZero() {
		return sdk.NewCoins(), nil
	}
	out := sdk.NewCoins()
	for _, d := range p.denoms {
		share := p.bank.Balance(p.addr, d).Mul(lp).Quo(supply)
		if share.IsPositive() {
			out = out.Add(sdk.NewCoin(d, share))
		}
	}
	if err := p.bank.Burn(provider, sdk.NewCoin(p.lpDenom, lp)); err != nil {
		return nil, err
	}
	if err := p.bank.Send(p.addr, recipient, out...); err != nil {
		return nil, err
	}
	return out, nil
}
