package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// AssetCollateral is the holdings breakdown for one collateral asset, in native units unless noted.
type AssetCollateral struct {
	Denom      string                 `json:"denom"`
	Idle       sdkmath.Int            `json:"idle"`
	Strategies map[string]sdkmath.Int `json:"strategies"`
	Total      sdkmath.Int            `json:"total"`
	Value      sdkmath.Int            `json:"value"`     // common units
	Deposited  sdkmath.Int            `json:"deposited"` // common units credited by mint
}

// RebaseState reports the outcome of the latest rebase.
type RebaseState struct {
	Impaired  bool        `json:"impaired"`
	Shortfall sdkmath.Int `json:"shortfall"`
	LastValue sdkmath.Int `json:"last_value"`
	At        time.Time   `json:"at"`
}

// CycleSnapshot is what the keeper records after each cycle.
type CycleSnapshot struct {
	CycleID        string            `json:"cycle_id"`
	CycleNumber    int               `json:"cycle_number"`
	Timestamp      time.Time         `json:"timestamp"`
	TotalSupply    sdkmath.Int       `json:"total_supply"`
	TotalValue     sdkmath.Int       `json:"total_value"`
	SupplyIndex    sdkmath.Int       `json:"supply_index"` // balance per credit, 1e27 resolution
	HarvestedValue sdkmath.Int       `json:"harvested_value"`
	Impaired       bool              `json:"impaired"`
	Collateral     []AssetCollateral `json:"collateral"`
	Status         string            `json:"status"`
	Error          string            `json:"error,omitempty"`
}
