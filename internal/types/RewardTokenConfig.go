package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Upper bounds accepted for reward token policies.
const (
	MaxRewardSlippageBps  = 1000
	MaxHarvesterIncentive = 1000
	BasisPoints           = 10_000
)

// RewardTokenConfig is the conversion policy for one reward token.
type RewardTokenConfig struct {
	Token                 string      `json:"token"`
	MaxSlippageBps        uint16      `json:"max_slippage_bps"`
	HarvesterIncentiveBps uint16      `json:"harvester_incentive_bps"`
	SwapVenue             string      `json:"swap_venue"`
	LiquidationLimit      sdkmath.Int `json:"liquidation_limit"` // zero means no cap
	Active                bool        `json:"active"`
}

// Validate checks the bounds that do not depend on registered venues.
func (c RewardTokenConfig) Validate() error {
	if c.MaxSlippageBps > MaxRewardSlippageBps {
		return fmt.Errorf("%w: max slippage %d bps above %d", ErrInvalidConfig, c.MaxSlippageBps, MaxRewardSlippageBps)
	}
	if c.HarvesterIncentiveBps > MaxHarvesterIncentive {
		return fmt.Errorf("%w: harvester incentive %d bps above %d", ErrInvalidConfig, c.HarvesterIncentiveBps, MaxHarvesterIncentive)
	}
	if int(c.MaxSlippageBps)+int(c.HarvesterIncentiveBps) >= BasisPoints {
		return fmt.Errorf("%w: slippage and incentive consume all proceeds", ErrInvalidConfig)
	}
	if !c.LiquidationLimit.IsNil() && c.LiquidationLimit.IsNegative() {
		return fmt.Errorf("%w: negative liquidation limit", ErrInvalidConfig)
	}
	if c.SwapVenue == "" {
		return fmt.Errorf("%w: empty swap venue", ErrUnknownVenue)
	}
	return nil
}

// AmountToSwap caps balance at the liquidation limit.
func (c RewardTokenConfig) AmountToSwap(balance sdkmath.Int) sdkmath.Int {
	if c.LiquidationLimit.IsNil() || c.LiquidationLimit.IsZero() {
		return balance
	}
	return sdkmath.MinInt(balance, c.LiquidationLimit)
}
