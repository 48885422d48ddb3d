package strategy

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// LiquidityPool is the external venue a Pool strategy provides liquidity to.
// LP tokens use the common 18-decimal unit.
type LiquidityPool interface {
	Denoms() []string
	LPDenom() string
	// VirtualPrice is the common-unit value of one LP base unit.
	VirtualPrice(ctx context.Context) (sdkmath.LegacyDec, error)
	// Claim is provider's share of the pool's reserve of denom, in native units.
	Claim(ctx context.Context, provider, denom string) (sdkmath.Int, error)
	AddLiquidity(ctx context.Context, provider string, coin sdk.Coin, minLP sdkmath.Int) (sdkmath.Int, error)
	// RemoveLiquidity burns at most maxLP of provider's LP to pay coin to recipient.
	RemoveLiquidity(ctx context.Context, provider, recipient string, coin sdk.Coin, maxLP sdkmath.Int) (sdkmath.Int, error)
	RemoveAll(ctx context.Context, provider, recipient string) (sdk.Coins, error)
}

// Pool deposits single-sided into a stable liquidity pool. Its balance of each asset is its pro rata
// claim on the pool's reserve of that asset, which is what a withdrawal can actually pay out.
type Pool struct {
	*base
	pool           LiquidityPool
	tokens         types.TokenRegistry
	maxSlippageBps uint16
}

func NewPool(addr, vault string, b *bank.Bank, pool LiquidityPool, tokens types.TokenRegistry, maxSlippageBps uint16, rewardTokens []string) (*Pool, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: pool strategy %s has no pool", types.ErrInvalidConfig, addr)
	}
	for _, d := range pool.Denoms() {
		if _, ok := tokens.Decimals(d); !ok {
			return nil, fmt.Errorf("%w: no decimals for %s", types.ErrInvalidConfig, d)
		}
	}
	bs, err := newBase("pool_strategy", addr, vault, b, pool.Denoms(), rewardTokens)
	if err != nil {
		return nil, err
	}
	return &Pool{base: bs, pool: pool, tokens: tokens, maxSlippageBps: maxSlippageBps}, nil
}

func (p *Pool) lpBalance() sdkmath.Int {
	return p.bank.Balance(p.addr, p.pool.LPDenom())
}

func (p *Pool) Deposit(ctx context.Context, coin sdk.Coin) error {
	if err := p.requireAsset(coin.Denom); err != nil {
		return err
	}
	vp, err := p.pool.VirtualPrice(ctx)
	if err != nil {
		return err
	}
	dec, _ := p.tokens.Decimals(coin.Denom)
	value := utils.ToCommonUnits(coin.Amount, dec)
	expected := sdkmath.LegacyNewDecFromInt(value).Quo(vp).TruncateInt()
	minLP := utils.ReduceByBps(expected, p.maxSlippageBps)

	lp, err := p.pool.AddLiquidity(ctx, p.addr, coin, minLP)
	if err != nil {
		return err
	}
	p.log.Info().
		Str("amount", coin.String()).
		Str("lp_minted", lp.String()).
		Str("min_lp", minLP.String()).
		Msg("Liquidity added")
	return nil
}

func (p *Pool) Withdraw(ctx context.Context, recipient string, coin sdk.Coin) error {
	if err := p.requireAsset(coin.Denom); err != nil {
		return err
	}
	vp, err := p.pool.VirtualPrice(ctx)
	if err != nil {
		return err
	}
	dec, _ := p.tokens.Decimals(coin.Denom)
	value := utils.ToCommonUnits(coin.Amount, dec)
	needed := sdkmath.LegacyNewDecFromInt(value).Quo(vp).Ceil().TruncateInt()
	maxLP := needed.Add(utils.MulBps(needed, p.maxSlippageBps))

	claim, err := p.pool.Claim(ctx, p.addr, coin.Denom)
	if err != nil {
		return err
	}
	if claim.LT(coin.Amount) {
		return fmt.Errorf("%w: %s can claim %s%s, needs %s", types.ErrInsufficientBalance, p.addr, claim, coin.Denom, coin.Amount)
	}
	maxLP = sdkmath.MinInt(maxLP, p.lpBalance())

	burned, err := p.pool.RemoveLiquidity(ctx, p.addr, recipient, coin, maxLP)
	if err != nil {
		return err
	}
	p.log.Info().Str("amount", coin.String()).Str("lp_burned", burned.String()).Str("recipient", recipient).Msg("Liquidity removed")
	return nil
}

func (p *Pool) WithdrawAll(ctx context.Context) error {
	if p.lpBalance().IsZero() {
		return nil
	}
	out, err := p.pool.RemoveAll(ctx, p.addr, p.vault)
	if err != nil {
		return err
	}
	p.log.Info().Str("amounts", out.String()).Msg("All liquidity removed")
	return nil
}

func (p *Pool) CheckBalance(ctx context.Context, denom string) (sdkmath.Int, error) {
	if err := p.requireAsset(denom); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if p.lpBalance().IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return p.pool.Claim(ctx, p.addr, denom)
}
