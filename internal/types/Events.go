/*

Notifications emitted by the vault and the harvester. Emitters switch on the concrete type.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Event is a vault or harvester notification.
type Event interface {
	EventType() string
}

type RewardTokenConfigUpdated struct {
	Token            string      `json:"token"`
	MaxSlippageBps   uint16      `json:"max_slippage_bps"`
	IncentiveBps     uint16      `json:"incentive_bps"`
	Venue            string      `json:"venue"`
	LiquidationLimit sdkmath.Int `json:"liquidation_limit"`
	Active           bool        `json:"active"`
}

type Rebased struct {
	OldSupply sdkmath.Int `json:"old_supply"`
	NewSupply sdkmath.Int `json:"new_supply"`
}

// RebaseLossDetected is emitted whenever managed value is below supply by more than the drift tolerance.
type RebaseLossDetected struct {
	Supply    sdkmath.Int `json:"supply"`
	Value     sdkmath.Int `json:"value"`
	Shortfall sdkmath.Int `json:"shortfall"`
	Policy    LossPolicy  `json:"policy"`
}

type StrategyAdded struct {
	Strategy string `json:"strategy"`
}

type StrategyRemoved struct {
	Strategy string `json:"strategy"`
}

type AssetSupported struct {
	Denom    string `json:"denom"`
	Decimals uint32 `json:"decimals"`
}

type AssetRemoved struct {
	Denom string `json:"denom"`
}

type DefaultStrategyUpdated struct {
	Denom    string `json:"denom"`
	Strategy string `json:"strategy"`
}

type ReserveStrategyUpdated struct {
	Strategy string `json:"strategy"`
}

type Minted struct {
	Account string      `json:"account"`
	Amount  sdk.Coin    `json:"amount"`
	Shares  sdkmath.Int `json:"shares"`
}

type Redeemed struct {
	Account string      `json:"account"`
	Shares  sdkmath.Int `json:"shares"`
	Outputs sdk.Coins   `json:"outputs"`
	Fee     sdkmath.Int `json:"fee"`
}

type Allocated struct {
	Strategy string   `json:"strategy"`
	Amount   sdk.Coin `json:"amount"`
}

type ReserveDeposited struct {
	Strategy string   `json:"strategy"`
	Reserve  string   `json:"reserve"`
	Amount   sdk.Coin `json:"amount"`
}

type ReserveWithdrawn struct {
	Strategy string   `json:"strategy"`
	Reserve  string   `json:"reserve"`
	Amount   sdk.Coin `json:"amount"`
}

type RewardTokensCollected struct {
	Strategy string    `json:"strategy"`
	Amounts  sdk.Coins `json:"amounts"`
}

type RewardTokenSwapped struct {
	Token      string   `json:"token"`
	AmountIn   sdk.Coin `json:"amount_in"`
	AmountOut  sdk.Coin `json:"amount_out"`
	Incentive  sdk.Coin `json:"incentive"`
	Rewardee   string   `json:"rewardee,omitempty"`
	Venue      string   `json:"venue"`
	VaultShare sdk.Coin `json:"vault_share"`
}

func (RewardTokenConfigUpdated) EventType() string { return "reward_token_config_updated" }
func (Rebased) EventType() string                  { return "rebased" }
func (RebaseLossDetected) EventType() string       { return "rebase_loss_detected" }
func (StrategyAdded) EventType() string            { return "strategy_added" }
func (StrategyRemoved) EventType() string          { return "strategy_removed" }
func (AssetSupported) EventType() string           { return "asset_supported" }
func (AssetRemoved) EventType() string             { return "asset_removed" }
func (DefaultStrategyUpdated) EventType() string   { return "default_strategy_updated" }
func (ReserveStrategyUpdated) EventType() string   { return "reserve_strategy_updated" }
func (Minted) EventType() string                   { return "minted" }
func (Redeemed) EventType() string                 { return "redeemed" }
func (Allocated) EventType() string                { return "allocated" }
func (ReserveDeposited) EventType() string         { return "reserve_deposited" }
func (ReserveWithdrawn) EventType() string         { return "reserve_withdrawn" }
func (RewardTokensCollected) EventType() string    { return "reward_tokens_collected" }
func (RewardTokenSwapped) EventType() string       { return "reward_token_swapped" }
