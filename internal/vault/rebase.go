package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// RebaseAction is what a rebase did.
type RebaseAction string

const (
	RebaseNoop            RebaseAction = "noop"
	RebaseYield           RebaseAction = "yield"
	RebaseWithinTolerance RebaseAction = "within_tolerance"
	RebaseFrozen          RebaseAction = "frozen"
	RebaseAbsorbed        RebaseAction = "absorbed"
)

type RebaseResult struct {
	Action     RebaseAction `json:"action"`
	OldSupply  sdkmath.Int  `json:"old_supply"`
	NewSupply  sdkmath.Int  `json:"new_supply"`
	Value      sdkmath.Int  `json:"value"`
	TrusteeFee sdkmath.Int  `json:"trustee_fee"`
	Shortfall  sdkmath.Int  `json:"shortfall"`
}

// Rebase brings supply in line with managed value. Yield inflates every balance pro rata after
// the trustee's cut. A shortfall beyond the drift tolerance is reported and then either freezes
// the vault as impaired or deflates supply, depending on the loss policy.
func (v *Vault) Rebase(ctx context.Context) (RebaseResult, error) {
	ctx, release, err := v.guard.Enter(ctx)
	defer release()
	if err != nil {
		return RebaseResult{}, err
	}
	return v.rebaseLocked(ctx)
}

func (v *Vault) rebaseLocked(ctx context.Context) (RebaseResult, error) {
	_, value, err := v.holdings(ctx)
	if err != nil {
		return RebaseResult{}, err
	}
	return v.rebaseTo(ctx, value)
}

// projectedSupply is the supply rebaseTo(value) would leave, before index rounding.
func (v *Vault) projectedSupply(value sdkmath.Int) sdkmath.Int {
	supply := v.token.TotalSupply()
	if supply.IsZero() {
		return supply
	}
	if value.GTE(supply) {
		return value
	}
	params := v.Parameters()
	if params.LossPolicy != types.LossPolicyAbsorb || supply.Sub(value).LTE(utils.MulBps(supply, params.DriftToleranceBps)) {
		return supply
	}
	return value
}

// rebaseTo rebases against value, a managed value the caller measured.
func (v *Vault) rebaseTo(ctx context.Context, value sdkmath.Int) (RebaseResult, error) {
	supply := v.token.TotalSupply()
	res := RebaseResult{
		Action:     RebaseNoop,
		OldSupply:  supply,
		NewSupply:  supply,
		Value:      value,
		TrusteeFee: sdkmath.ZeroInt(),
		Shortfall:  sdkmath.ZeroInt(),
	}
	if supply.IsZero() {
		return res, nil
	}
	params := v.Parameters()

	switch {
	case value.GT(supply):
		fee := sdkmath.ZeroInt()
		if params.Trustee != "" {
			fee = utils.MulBps(value.Sub(supply), params.TrusteeFeeBps)
		}
		if err := v.token.ChangeSupply(value.Sub(fee)); err != nil {
			return res, fmt.Errorf("rebase to %s: %w", value.Sub(fee), err)
		}
		if fee.IsPositive() {
			if err := v.token.Mint(params.Trustee, fee); err != nil {
				return res, fmt.Errorf("trustee fee: %w", err)
			}
		}
		res.Action = RebaseYield
		res.TrusteeFee = fee
		res.NewSupply = v.token.TotalSupply()
		v.setRebaseState(false, sdkmath.ZeroInt(), value)
		v.emitter.Emit(ctx, types.Rebased{OldSupply: supply, NewSupply: res.NewSupply})

		v.logger.Info().
			Str("oldSupply", supply.String()).
			Str("newSupply", res.NewSupply.String()).
			Str("trusteeFee", fee.String()).
			Msg("Rebased")

	case value.Equal(supply):
		v.setRebaseState(false, sdkmath.ZeroInt(), value)

	default:
		shortfall := supply.Sub(value)
		res.Shortfall = shortfall
		if shortfall.LTE(utils.MulBps(supply, params.DriftToleranceBps)) {
			res.Action = RebaseWithinTolerance
			st := v.RebaseState()
			v.setRebaseState(st.Impaired, st.Shortfall, value)
			v.logger.Debug().Str("shortfall", shortfall.String()).Msg("Shortfall within drift tolerance")
			return res, nil
		}

		v.emitter.Emit(ctx, types.RebaseLossDetected{Supply: supply, Value: value, Shortfall: shortfall, Policy: params.LossPolicy})
		v.logger.Warn().
			Str("supply", supply.String()).
			Str("value", value.String()).
			Str("shortfall", shortfall.String()).
			Str("policy", string(params.LossPolicy)).
			Msg("Rebase detected a loss")

		if params.LossPolicy == types.LossPolicyAbsorb {
			if err := v.token.ChangeSupply(value); err != nil {
				return res, fmt.Errorf("absorb loss of %s: %w", shortfall, err)
			}
			res.Action = RebaseAbsorbed
			res.NewSupply = v.token.TotalSupply()
			v.setRebaseState(false, sdkmath.ZeroInt(), value)
			v.emitter.Emit(ctx, types.Rebased{OldSupply: supply, NewSupply: res.NewSupply})
			return res, nil
		}

		res.Action = RebaseFrozen
		v.setRebaseState(true, shortfall, value)
	}
	return res, nil
}

func (v *Vault) setRebaseState(impaired bool, shortfall, value sdkmath.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rebase = types.RebaseState{Impaired: impaired, Shortfall: shortfall, LastValue: value, At: v.now()}
}
