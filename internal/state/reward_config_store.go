package state

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/stablevault/internal/types"
)

// RewardConfigStore persists harvester reward token configs in reward_token_configs.
type RewardConfigStore struct{}

func (RewardConfigStore) SaveRewardTokenConfig(ctx context.Context, cfg types.RewardTokenConfig) error {
	return SaveRewardTokenConfig(ctx, cfg)
}

// SaveRewardTokenConfig upserts cfg.
func SaveRewardTokenConfig(ctx context.Context, cfg types.RewardTokenConfig) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
		INSERT INTO reward_token_configs (
			token, max_slippage_bps, harvester_incentive_bps, swap_venue, liquidation_limit, active, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (token) DO UPDATE SET
			max_slippage_bps = EXCLUDED.max_slippage_bps,
			harvester_incentive_bps = EXCLUDED.harvester_incentive_bps,
			swap_venue = EXCLUDED.swap_venue,
			liquidation_limit = EXCLUDED.liquidation_limit,
			active = EXCLUDED.active,
			updated_at = CURRENT_TIMESTAMP;`

	_, err := DB.ExecContext(ctx, stmt,
		cfg.Token, int(cfg.MaxSlippageBps), int(cfg.HarvesterIncentiveBps), cfg.SwapVenue,
		numeric(cfg.LiquidationLimit), cfg.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save reward token config %s: %w", cfg.Token, err)
	}
	log.Debug().Str("token", cfg.Token).Msg("Reward token config saved")
	return nil
}

// LoadRewardTokenConfigs returns every stored config ordered by token.
func LoadRewardTokenConfigs(ctx context.Context) ([]types.RewardTokenConfig, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.QueryContext(ctx, `
		SELECT token, max_slippage_bps, harvester_incentive_bps, swap_venue, liquidation_limit, active
		FROM reward_token_configs
		ORDER BY token`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward token configs: %w", err)
	}
	defer rows.Close()

	var out []types.RewardTokenConfig
	for rows.Next() {
		var (
			cfg                 types.RewardTokenConfig
			slippage, incentive int
			limit               string
		)
		if err := rows.Scan(&cfg.Token, &slippage, &incentive, &cfg.SwapVenue, &limit, &cfg.Active); err != nil {
			return nil, fmt.Errorf("failed to scan reward token config: %w", err)
		}
		if slippage < 0 || slippage > types.BasisPoints || incentive < 0 || incentive > types.BasisPoints {
			return nil, fmt.Errorf("reward token config %s has out of range bps", cfg.Token)
		}
		cfg.MaxSlippageBps = uint16(slippage)
		cfg.HarvesterIncentiveBps = uint16(incentive)
		if cfg.LiquidationLimit, err = parseNumeric(limit); err != nil {
			return nil, fmt.Errorf("reward token config %s: %w", cfg.Token, err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Info().Int("count", len(out)).Msg("Loaded reward token configs")
	return out, nil
}
