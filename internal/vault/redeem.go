package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// Redeem burns shares for their current value, less the redeem fee, paid in the asset mix chosen by
// the redemption policy. Every check, including minValueOut, runs before any funds move.
func (v *Vault) Redeem(ctx context.Context, caller string, shares, minValueOut sdkmath.Int) (sdk.Coins, error) {
	ctx, release, err := v.guard.Enter(ctx)
	defer release()
	if err != nil {
		return nil, err
	}

	if shares.IsNil() || !shares.IsPositive() {
		return nil, fmt.Errorf("%w: redeem %v shares", types.ErrInvalidAmount, shares)
	}
	if held := v.token.BalanceOf(caller); held.LT(shares) {
		return nil, fmt.Errorf("%w: %s holds %s, redeem %s", types.ErrInsufficientShares, caller, held, shares)
	}

	collateral, total, err := v.holdings(ctx)
	if err != nil {
		return nil, err
	}
	supply := v.token.TotalSupply()
	// A threshold rebase is priced in up front and committed only after the withdrawals succeed.
	rebase := v.crossesThreshold(shares)
	if rebase {
		projected := v.projectedSupply(total)
		if projected.LT(supply) {
			if held := v.token.BalanceOf(caller).Mul(projected).Quo(supply); held.LT(shares) {
				return nil, fmt.Errorf("%w: %s holds %s after rebase, redeem %s", types.ErrInsufficientShares, caller, held, shares)
			}
		}
		supply = projected
	}
	value := shares.Mul(total).Quo(supply)
	fee := utils.MulBps(value, v.Parameters().RedeemFeeBps)
	net := value.Sub(fee)

	outputs, valueOut, err := v.redeemOutputs(net, collateral)
	if err != nil {
		return nil, err
	}
	if !minValueOut.IsNil() && valueOut.LT(minValueOut) {
		return nil, fmt.Errorf("%w: redeem value %s below minimum %s", types.ErrSlippageExceeded, valueOut, minValueOut)
	}

	byDenom := make(map[string]types.AssetCollateral, len(collateral))
	for _, c := range collateral {
		byDenom[c.Denom] = c
	}
	for _, out := range outputs {
		if c := byDenom[out.Denom]; c.Total.LT(out.Amount) {
			return nil, fmt.Errorf("%w: vault holds %s%s, owes %s", types.ErrInsufficientBalance, c.Total, out.Denom, out)
		}
	}

	for _, out := range outputs {
		if err := v.gather(ctx, out, byDenom[out.Denom]); err != nil {
			return nil, err
		}
	}

	if rebase {
		if _, err := v.rebaseTo(ctx, total); err != nil {
			return nil, err
		}
	}
	if err := v.token.Burn(caller, shares); err != nil {
		return nil, err
	}
	for _, out := range outputs {
		asset, _ := v.ledger.Asset(out.Denom)
		v.ledger.Debit(out.Denom, utils.ToCommonUnits(out.Amount, asset.Decimals))
	}
	if err := v.bank.Send(v.addr, caller, outputs...); err != nil {
		return nil, err
	}
	v.emitter.Emit(ctx, types.Redeemed{Account: caller, Shares: shares, Outputs: outputs, Fee: fee})

	v.logger.Info().
		Str("caller", caller).
		Str("shares", shares.String()).
		Str("outputs", outputs.String()).
		Str("fee", fee.String()).
		Msg("Redeemed")
	return outputs, nil
}

// redeemOutputs converts the policy's split into coins and their realized common-unit value.
func (v *Vault) redeemOutputs(value sdkmath.Int, collateral []types.AssetCollateral) (sdk.Coins, sdkmath.Int, error) {
	portions, err := v.redemptionPolicy().Split(value, collateral)
	if err != nil {
		return nil, sdkmath.ZeroInt(), err
	}
	outputs := sdk.NewCoins()
	realized := sdkmath.ZeroInt()
	for _, p := range portions {
		asset, ok := v.ledger.Asset(p.Denom)
		if !ok {
			return nil, sdkmath.ZeroInt(), fmt.Errorf("%w: %s", types.ErrInvalidAsset, p.Denom)
		}
		amount := utils.FromCommonUnits(p.Value, asset.Decimals)
		if !amount.IsPositive() {
			continue
		}
		outputs = outputs.Add(sdk.NewCoin(p.Denom, amount))
		realized = realized.Add(utils.ToCommonUnits(amount, asset.Decimals))
	}
	return outputs, realized, nil
}

// gather makes sure the vault holds out, pulling the shortfall from strategies: the asset's default
// first, then the others in registration order.
func (v *Vault) gather(ctx context.Context, out sdk.Coin, c types.AssetCollateral) error {
	need := out.Amount.Sub(v.bank.Balance(v.addr, out.Denom))
	for _, s := range v.ledger.WithdrawalOrder(out.Denom) {
		if !need.IsPositive() {
			return nil
		}
		avail, ok := c.Strategies[s.Address()]
		if !ok || !avail.IsPositive() {
			continue
		}
		take := sdkmath.MinInt(need, avail)
		if err := s.Withdraw(ctx, v.addr, sdk.NewCoin(out.Denom, take)); err != nil {
			v.logger.Warn().Err(err).Str("strategy", s.Address()).Str("denom", out.Denom).Str("amount", take.String()).Msg("Strategy withdrawal failed")
			return err
		}
		need = need.Sub(take)
	}
	if need.IsPositive() {
		return fmt.Errorf("%w: %s short by %s", types.ErrInsufficientBalance, out.Denom, need)
	}
	return nil
}
