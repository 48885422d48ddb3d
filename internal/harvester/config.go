package harvester

import (
	"context"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/types"
)

// SetRewardTokenConfig replaces the conversion policy for cfg.Token. The config is persisted
// before it takes effect.
func (h *Harvester) SetRewardTokenConfig(ctx context.Context, caller string, cfg types.RewardTokenConfig) error {
	ctx, release, err := h.guard.Enter(ctx)
	defer release()
	if err != nil {
		return err
	}
	if err := auth.RequireGovernor(h.auth, caller); err != nil {
		return err
	}
	cfg, err = h.checkConfig(cfg)
	if err != nil {
		return err
	}

	if h.store != nil {
		if err := h.store.SaveRewardTokenConfig(ctx, cfg); err != nil {
			return fmt.Errorf("persist reward token config %s: %w", cfg.Token, err)
		}
	}
	h.mu.Lock()
	h.configs[cfg.Token] = cfg
	h.mu.Unlock()

	h.emitter.Emit(ctx, types.RewardTokenConfigUpdated{
		Token:            cfg.Token,
		MaxSlippageBps:   cfg.MaxSlippageBps,
		IncentiveBps:     cfg.HarvesterIncentiveBps,
		Venue:            cfg.SwapVenue,
		LiquidationLimit: cfg.LiquidationLimit,
		Active:           cfg.Active,
	})
	h.logger.Info().
		Str("token", cfg.Token).
		Uint16("maxSlippageBps", cfg.MaxSlippageBps).
		Uint16("incentiveBps", cfg.HarvesterIncentiveBps).
		Str("venue", cfg.SwapVenue).
		Str("liquidationLimit", cfg.LiquidationLimit.String()).
		Bool("active", cfg.Active).
		Msg("Reward token config updated")
	return nil
}

// Restore loads previously persisted configs. It is meant for startup and skips authorization.
func (h *Harvester) Restore(cfgs []types.RewardTokenConfig) error {
	checked := make([]types.RewardTokenConfig, 0, len(cfgs))
	for _, cfg := range cfgs {
		c, err := h.checkConfig(cfg)
		if err != nil {
			return err
		}
		checked = append(checked, c)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range checked {
		h.configs[c.Token] = c
	}
	h.logger.Info().Int("count", len(checked)).Msg("Reward token configs restored")
	return nil
}

func (h *Harvester) checkConfig(cfg types.RewardTokenConfig) (types.RewardTokenConfig, error) {
	if cfg.Token == "" {
		return cfg, fmt.Errorf("%w: empty reward token", types.ErrInvalidToken)
	}
	if err := sdk.ValidateDenom(cfg.Token); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", types.ErrInvalidToken, cfg.Token, err)
	}
	if cfg.LiquidationLimit.IsNil() {
		cfg.LiquidationLimit = sdkmath.ZeroInt()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if _, ok := h.converter.Venue(cfg.SwapVenue); !ok {
		return cfg, fmt.Errorf("%w: %s", types.ErrUnknownVenue, cfg.SwapVenue)
	}
	return cfg, nil
}

func (h *Harvester) RewardTokenConfig(token string) (types.RewardTokenConfig, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cfg, ok := h.configs[token]
	return cfg, ok
}

// RewardTokenConfigs returns every config sorted by token.
func (h *Harvester) RewardTokenConfigs() []types.RewardTokenConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.RewardTokenConfig, 0, len(h.configs))
	for _, c := range h.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}
