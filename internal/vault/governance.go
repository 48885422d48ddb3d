package vault

import (
	"context"
	"fmt"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/types"
)

// governed runs fn under the guard after the governor check.
func (v *Vault) governed(ctx context.Context, caller string, fn func(context.Context) error) error {
	ctx, release, err := v.guard.Enter(ctx)
	defer release()
	if err != nil {
		return err
	}
	if err := auth.RequireGovernor(v.auth, caller); err != nil {
		return err
	}
	return fn(ctx)
}

func (v *Vault) SupportAsset(ctx context.Context, caller, denom string, decimals uint32) error {
	return v.governed(ctx, caller, func(ctx context.Context) error {
		if err := v.ledger.AddAsset(denom, decimals); err != nil {
			return err
		}
		v.emitter.Emit(ctx, types.AssetSupported{Denom: denom, Decimals: decimals})
		v.logger.Info().Str("denom", denom).Uint32("decimals", decimals).Msg("Asset supported")
		return nil
	})
}

// RemoveAsset drops an asset the vault no longer holds anywhere.
func (v *Vault) RemoveAsset(ctx context.Context, caller, denom string) error {
	return v.governed(ctx, caller, func(ctx context.Context) error {
		if _, ok := v.ledger.Asset(denom); !ok {
			return fmt.Errorf("%w: %s", types.ErrInvalidAsset, denom)
		}
		collateral, _, err := v.holdings(ctx)
		if err != nil {
			return err
		}
		for _, c := range collateral {
			if c.Denom == denom && c.Total.IsPositive() {
				return fmt.Errorf("%w: %s%s", types.ErrAssetHasFunds, c.Total, denom)
			}
		}
		if err := v.ledger.RemoveAsset(denom); err != nil {
			return err
		}
		v.emitter.Emit(ctx, types.AssetRemoved{Denom: denom})
		v.logger.Info().Str("denom", denom).Msg("Asset removed")
		return nil
	})
}

func (v *Vault) AddStrategy(ctx context.Context, caller string, s strategy.Strategy) error {
	return v.governed(ctx, caller, func(ctx context.Context) error {
		if err := v.ledger.AddStrategy(s); err != nil {
			return err
		}
		v.emitter.Emit(ctx, types.StrategyAdded{Strategy: s.Address()})
		v.logger.Info().Str("strategy", s.Address()).Msg("Strategy added")
		return nil
	})
}

// RemoveStrategy pulls everything out of addr back to the vault before unregistering it, and
// refuses while addr is still an asset's default or still reports a balance.
func (v *Vault) RemoveStrategy(ctx context.Context, caller, addr string) error {
	return v.governed(ctx, caller, func(ctx context.Context) error {
		s, ok := v.ledger.Strategy(addr)
		if !ok {
			return fmt.Errorf("%w: %s", types.ErrUnknownStrategy, addr)
		}
		if denoms := v.ledger.DefaultFor(addr); len(denoms) > 0 {
			return fmt.Errorf("%w: %s routes %v", types.ErrStrategyIsDefault, addr, denoms)
		}
		if err := s.WithdrawAll(ctx); err != nil {
			return err
		}
		for _, a := range v.ledger.Assets() {
			if !s.SupportsAsset(a.Denom) {
				continue
			}
			bal, err := s.CheckBalance(ctx, a.Denom)
			if err != nil {
				return err
			}
			if bal.IsPositive() {
				return fmt.Errorf("%w: %s still holds %s%s", types.ErrStrategyHasFunds, addr, bal, a.Denom)
			}
		}
		if err := v.ledger.RemoveStrategy(addr); err != nil {
			return err
		}
		v.emitter.Emit(ctx, types.StrategyRemoved{Strategy: addr})
		v.logger.Info().Str("strategy", addr).Msg("Strategy removed")
		return nil
	})
}

// SetDefaultStrategy routes denom deposits to addr; an empty addr clears the route.
func (v *Vault) SetDefaultStrategy(ctx context.Context, caller, denom, addr string) error {
	return v.governed(ctx, caller, func(ctx context.Context) error {
		if err := v.ledger.SetDefaultStrategy(denom, addr); err != nil {
			return err
		}
		v.emitter.Emit(ctx, types.DefaultStrategyUpdated{Denom: denom, Strategy: addr})
		v.logger.Info().Str("denom", denom).Str("strategy", addr).Msg("Default strategy set")
		return nil
	})
}

func (v *Vault) SetReserveStrategy(ctx context.Context, caller, addr string) error {
	return v.governed(ctx, caller, func(ctx context.Context) error {
		if addr != "" {
			if _, ok := v.ledger.Strategy(addr); !ok {
				return fmt.Errorf("%w: %s", types.ErrUnknownStrategy, addr)
			}
		}
		v.ledger.SetReserve(addr)
		v.emitter.Emit(ctx, types.ReserveStrategyUpdated{Strategy: addr})
		v.logger.Info().Str("reserve", addr).Msg("Reserve strategy set")
		return nil
	})
}

func (v *Vault) SetParameters(ctx context.Context, caller string, p types.VaultParameters) error {
	return v.governed(ctx, caller, func(context.Context) error {
		if err := p.Validate(); err != nil {
			return err
		}
		v.mu.Lock()
		v.params = p
		v.mu.Unlock()
		v.logger.Info().Interface("parameters", p).Msg("Vault parameters updated")
		return nil
	})
}

func (v *Vault) SetRedemptionPolicy(ctx context.Context, caller string, policy RedemptionPolicy) error {
	return v.governed(ctx, caller, func(context.Context) error {
		if policy == nil {
			return fmt.Errorf("%w: nil redemption policy", types.ErrInvalidConfig)
		}
		v.mu.Lock()
		v.policy = policy
		v.mu.Unlock()
		v.logger.Info().Str("policy", policy.Name()).Msg("Redemption policy updated")
		return nil
	})
}
