package vault

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/types"
)

// checkReserveCall evaluates, in order: the caller is an approved strategy, the designated reserve
// is registered, and the reserve supports the asset.
func (v *Vault) checkReserveCall(caller string, coin sdk.Coin) (strategy.Strategy, error) {
	if err := auth.RequireApprovedStrategy(v.auth, caller); err != nil {
		return nil, err
	}
	reserve, err := v.ledger.Reserve()
	if err != nil {
		return nil, err
	}
	if !reserve.SupportsAsset(coin.Denom) {
		return nil, fmt.Errorf("%w: %s by reserve %s", types.ErrUnsupportedAsset, coin.Denom, reserve.Address())
	}
	if err := coin.Validate(); err != nil || !coin.IsPositive() {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidAmount, coin)
	}
	return reserve, nil
}

// DepositToReserve moves coin from the calling strategy into the reserve strategy.
func (v *Vault) DepositToReserve(ctx context.Context, caller string, coin sdk.Coin) error {
	ctx, release, err := v.guard.Enter(ctx)
	defer release()
	if err != nil {
		return err
	}
	reserve, err := v.checkReserveCall(caller, coin)
	if err != nil {
		return err
	}

	if err := v.bank.Send(caller, reserve.Address(), coin); err != nil {
		return err
	}
	if err := reserve.Deposit(ctx, coin); err != nil {
		if refundErr := v.bank.Send(reserve.Address(), caller, coin); refundErr != nil {
			v.logger.Error().Err(refundErr).Str("strategy", caller).Msg("Refund after failed reserve deposit failed")
		}
		return err
	}
	v.emitter.Emit(ctx, types.ReserveDeposited{Strategy: caller, Reserve: reserve.Address(), Amount: coin})
	v.logger.Info().Str("strategy", caller).Str("reserve", reserve.Address()).Str("amount", coin.String()).Msg("Deposited to reserve")
	return nil
}

// WithdrawFromReserve returns coin from the reserve strategy to the calling strategy.
func (v *Vault) WithdrawFromReserve(ctx context.Context, caller string, coin sdk.Coin) error {
	ctx, release, err := v.guard.Enter(ctx)
	defer release()
	if err != nil {
		return err
	}
	reserve, err := v.checkReserveCall(caller, coin)
	if err != nil {
		return err
	}

	if err := reserve.Withdraw(ctx, caller, coin); err != nil {
		return err
	}
	v.emitter.Emit(ctx, types.ReserveWithdrawn{Strategy: caller, Reserve: reserve.Address(), Amount: coin})
	v.logger.Info().Str("strategy", caller).Str("reserve", reserve.Address()).Str("amount", coin.String()).Msg("Withdrawn from reserve")
	return nil
}
