package vault

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// Mint deposits coin into its asset's default strategy and credits the caller with shares equal
// to its value in common units. It fails with ErrSlippageExceeded when that is below minShares,
// and returns strategy errors unchanged after refunding the caller.
func (v *Vault) Mint(ctx context.Context, caller string, coin sdk.Coin, minShares sdkmath.Int) (sdkmath.Int, error) {
	ctx, release, err := v.guard.Enter(ctx)
	defer release()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := coin.Validate(); err != nil || !coin.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: mint %s", types.ErrInvalidAmount, coin)
	}
	asset, ok := v.ledger.Asset(coin.Denom)
	if !ok || !asset.Supported {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", types.ErrInvalidAsset, coin.Denom)
	}
	target, err := v.ledger.DefaultStrategy(coin.Denom)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	shares := utils.ToCommonUnits(coin.Amount, asset.Decimals)
	if !shares.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s is worth no shares", types.ErrInvalidAmount, coin)
	}
	if !minShares.IsNil() && shares.LT(minShares) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s shares below minimum %s", types.ErrSlippageExceeded, shares, minShares)
	}

	// Yield accrued so far belongs to existing holders. It is measured before the deposit and only
	// applied once the deposit has gone through.
	rebase := v.crossesThreshold(shares)
	var before sdkmath.Int
	if rebase {
		if _, before, err = v.holdings(ctx); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	if err := v.bank.Send(caller, target.Address(), coin); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := target.Deposit(ctx, coin); err != nil {
		if refundErr := v.bank.Send(target.Address(), caller, coin); refundErr != nil {
			v.logger.Error().Err(refundErr).Str("caller", caller).Str("amount", coin.String()).Msg("Refund after failed deposit failed")
			return sdkmath.ZeroInt(), errors.Join(err, refundErr)
		}
		v.logger.Warn().Err(err).Str("caller", caller).Str("strategy", target.Address()).Str("amount", coin.String()).Msg("Strategy rejected deposit")
		return sdkmath.ZeroInt(), err
	}

	if rebase {
		if _, err := v.rebaseTo(ctx, before); err != nil {
			v.logger.Error().Err(err).Str("caller", caller).Msg("Rebase before mint failed, minting at the current index")
		}
	}
	if err := v.token.Mint(caller, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.ledger.Credit(coin.Denom, shares)
	v.emitter.Emit(ctx, types.Minted{Account: caller, Amount: coin, Shares: shares})

	v.logger.Info().
		Str("caller", caller).
		Str("amount", coin.String()).
		Str("shares", shares.String()).
		Str("strategy", target.Address()).
		Msg("Minted")
	return shares, nil
}

func (v *Vault) crossesThreshold(value sdkmath.Int) bool {
	threshold := v.Parameters().RebaseThreshold
	return !threshold.IsNil() && threshold.IsPositive() && value.GTE(threshold)
}
