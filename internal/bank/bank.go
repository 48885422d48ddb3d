/*

In-process coin ledger shared by the vault, its strategies, the harvester and swap venues.
Every participant is identified by an address string and holds an sdk.Coins balance.

*/

package bank

import (
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/types"
)

// Bank holds balances for every address.
type Bank struct {
	mu       sync.RWMutex
	balances map[string]sdk.Coins
	supply   sdk.Coins
	log      zerolog.Logger
}

func New() *Bank {
	return &Bank{
		balances: make(map[string]sdk.Coins),
		supply:   sdk.NewCoins(),
		log:      logger.GetForComponent("bank"),
	}
}

// Balance returns the amount of denom held by addr. Invalid denoms hold nothing.
func (b *Bank) Balance(addr, denom string) sdkmath.Int {
	if sdk.ValidateDenom(denom) != nil {
		return sdkmath.ZeroInt()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[addr].AmountOf(denom)
}

// Balances returns a copy of everything addr holds.
func (b *Bank) Balances(addr string) sdk.Coins {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sdk.NewCoins(b.balances[addr]...)
}

// Supply returns the total amount of denom in existence.
func (b *Bank) Supply(denom string) sdkmath.Int {
	if sdk.ValidateDenom(denom) != nil {
		return sdkmath.ZeroInt()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.supply.AmountOf(denom)
}

// Accounts lists addresses with a non-empty balance, sorted.
func (b *Bank) Accounts() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.balances))
	for addr, coins := range b.balances {
		if !coins.IsZero() {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

// Send moves coins from one address to another. Either every coin moves or none does.
func (b *Bank) Send(from, to string, coins ...sdk.Coin) error {
	if err := validate(coins); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	debited, err := sub(b.balances[from], coins)
	if err != nil {
		return fmt.Errorf("send from %s: %w", from, err)
	}
	b.balances[from] = debited
	b.balances[to] = add(b.balances[to], coins)

	b.log.Debug().Str("from", from).Str("to", to).Str("coins", sdk.NewCoins(nonZero(coins)...).String()).Msg("Coins sent")
	return nil
}

// Mint creates coins at addr.
func (b *Bank) Mint(to string, coins ...sdk.Coin) error {
	if err := validate(coins); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.balances[to] = add(b.balances[to], coins)
	b.supply = add(b.supply, coins)
	return nil
}

// Burn destroys coins held by addr.
func (b *Bank) Burn(from string, coins ...sdk.Coin) error {
	if err := validate(coins); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	debited, err := sub(b.balances[from], coins)
	if err != nil {
		return fmt.Errorf("burn from %s: %w", from, err)
	}
	supply, err := sub(b.supply, coins)
	if err != nil {
		return fmt.Errorf("burn supply: %w", err)
	}
	b.balances[from] = debited
	b.supply = supply
	return nil
}

func validate(coins []sdk.Coin) error {
	for _, c := range coins {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", types.ErrInvalidAmount, err)
		}
	}
	return nil
}

func nonZero(coins []sdk.Coin) []sdk.Coin {
	out := make([]sdk.Coin, 0, len(coins))
	for _, c := range coins {
		if !c.IsZero() {
			out = append(out, c)
		}
	}
	return out
}

func add(balance sdk.Coins, coins []sdk.Coin) sdk.Coins {
	out := sdk.NewCoins(balance...)
	for _, c := range nonZero(coins) {
		out = out.Add(c)
	}
	return out
}

func sub(balance sdk.Coins, coins []sdk.Coin) (sdk.Coins, error) {
	out := sdk.NewCoins(balance...)
	for _, c := range nonZero(coins) {
		next, hasNeg := out.SafeSub(c)
		if hasNeg {
			return nil, fmt.Errorf("%w: have %s, need %s", types.ErrInsufficientBalance, out.AmountOf(c.Denom), c)
		}
		out = next
	}
	return out, nil
}
