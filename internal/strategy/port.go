/*

Capability contract every yield strategy satisfies. The vault is the only depositor and withdrawer;
a strategy owns whatever position it opens in its venue.

*/

package strategy

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Strategy is a yield venue adapter.
//
// Deposit is called after the vault has transferred the coin to Address(). Deposit and Withdraw
// either move the whole amount or fail; ErrSlippageExceeded from a venue is returned as is.
type Strategy interface {
	Address() string
	Deposit(ctx context.Context, coin sdk.Coin) error
	Withdraw(ctx context.Context, recipient string, coin sdk.Coin) error
	// WithdrawAll returns every supported asset to the vault.
	WithdrawAll(ctx context.Context) error
	// CheckBalance reports the strategy's holdings of denom in the asset's native units.
	CheckBalance(ctx context.Context, denom string) (sdkmath.Int, error)
	SupportsAsset(denom string) bool
	// CollectRewardTokens transfers all accrued reward tokens to recipient and reports what moved.
	CollectRewardTokens(ctx context.Context, recipient string) (sdk.Coins, error)
	RewardTokens() []string
}

// Accruer is implemented by strategies whose rewards can be credited from outside, as a gauge would.
type Accruer interface {
	AccrueRewards(coins ...sdk.Coin) error
}
