/*

This file contains the default parameters for the vault.

A bootstrap file may override any of them. Values are chosen for a stablecoin vault whose collateral
trades within a few basis points of the peg.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/stablevault/internal/types"
)

// DefaultVaultParameters returns the baseline vault parameters. Trustee is left empty, so no
// trustee fee is taken until a bootstrap file names one.
func DefaultVaultParameters() types.VaultParameters {
	return types.VaultParameters{
		RedeemFeeBps: 25, // 0.25% retained in the vault on every redemption.
		// Rationale: Redemptions can force withdrawals from pools at a slippage cost that the
		// remaining holders would otherwise carry.

		TrusteeFeeBps: 1000, // 10% of each positive rebase goes to the trustee.
		// Only charged when a trustee is configured.

		DriftToleranceBps: 5, // Shortfalls up to 0.05% of supply are treated as rounding.
		// Rationale: Pool virtual prices and truncation move value by dust. Freezing on dust
		// would mark a healthy vault impaired.

		VaultBufferBps: 200, // Keep 2% of each asset idle in the vault.
		// Rationale: Small redemptions are paid from idle balances without touching strategies.

		RebaseThreshold: sdkmath.NewIntWithDecimal(25_000, 18), // Mints/redeems of $25k or more rebase first.
		// Rationale: Large entries would otherwise capture yield accrued before they arrived.

		LossPolicy: types.LossPolicyFreeze,
		// Rationale: A loss may be temporary (a depegged pool asset). Freezing keeps balances
		// intact until governance decides, instead of socializing the loss immediately.
	}
}
