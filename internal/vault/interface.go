package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/stablevault/internal/types"
)

// Manager is the read-only view of the vault used by the keeper and the web API.
type Manager interface {
	Address() string
	TotalSupply() sdkmath.Int
	SupplyIndex() sdkmath.Int
	TotalValue(ctx context.Context) (sdkmath.Int, error)
	Collateral(ctx context.Context) ([]types.AssetCollateral, error)
	Assets() []types.Asset
	StrategyAddresses() []string
	ReserveStrategy() string
	Parameters() types.VaultParameters
	RebaseState() types.RebaseState
}

var _ Manager = (*Vault)(nil)
