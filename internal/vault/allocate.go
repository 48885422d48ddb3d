package vault

import (
	"context"
	"errors"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// Allocate moves idle vault balances into each asset's default strategy, keeping VaultBufferBps of
// that asset's holdings idle. Assets are independent: a failed leg is refunded to the vault and
// reported, the others still run.
func (v *Vault) Allocate(ctx context.Context, caller string) ([]types.Allocated, error) {
	var done []types.Allocated
	err := v.governed(ctx, caller, func(ctx context.Context) error {
		collateral, _, err := v.holdings(ctx)
		if err != nil {
			return err
		}
		buffer := v.Parameters().VaultBufferBps

		var errs []error
		for _, c := range collateral {
			keep := utils.MulBps(c.Total, buffer)
			excess := c.Idle.Sub(keep)
			if !excess.IsPositive() {
				continue
			}
			target, err := v.ledger.DefaultStrategy(c.Denom)
			if err != nil {
				continue
			}
			coin := sdk.NewCoin(c.Denom, excess)
			if err := v.bank.Send(v.addr, target.Address(), coin); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := target.Deposit(ctx, coin); err != nil {
				if refundErr := v.bank.Send(target.Address(), v.addr, coin); refundErr != nil {
					err = errors.Join(err, refundErr)
				}
				v.logger.Warn().Err(err).Str("strategy", target.Address()).Str("amount", coin.String()).Msg("Allocation failed")
				errs = append(errs, err)
				continue
			}
			ev := types.Allocated{Strategy: target.Address(), Amount: coin}
			done = append(done, ev)
			v.emitter.Emit(ctx, ev)
			v.logger.Info().Str("strategy", target.Address()).Str("amount", coin.String()).Msg("Allocated")
		}
		return errors.Join(errs...)
	})
	return done, err
}
