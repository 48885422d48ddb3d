/*

Rebasing share token. Holders own credits; a balance is credits scaled by the supply index.
Changing the supply moves the index, so every balance grows or shrinks in the same proportion
without touching individual accounts.

*/

package token

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/stablevault/internal/types"
)

var ErrNoCredits = errors.New("cannot change supply without credits")

// Token is the vault's receipt token.
type Token struct {
	mu           sync.RWMutex
	credits      map[string]sdkmath.Int
	totalCredits sdkmath.Int
	index        sdkmath.Int
	totalSupply  sdkmath.Int
}

func New() *Token {
	return &Token{
		credits:      make(map[string]sdkmath.Int),
		totalCredits: sdkmath.ZeroInt(),
		index:        ray,
		totalSupply:  sdkmath.ZeroInt(),
	}
}

func (t *Token) TotalSupply() sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSupply
}

// Index returns the balance per credit at 1e27 resolution.
func (t *Token) Index() sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index
}

func (t *Token) BalanceOf(account string) sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceOf(account)
}

func (t *Token) balanceOf(account string) sdkmath.Int {
	c, ok := t.credits[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return rayMul(c, t.index)
}

// Holders lists accounts holding credits, sorted.
func (t *Token) Holders() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.credits))
	for a := range t.credits {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Mint credits amount to account.
func (t *Token) Mint(account string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: mint %v", types.ErrInvalidAmount, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	minted := rayDiv(amount, t.index)
	if prev, ok := t.credits[account]; ok {
		t.credits[account] = prev.Add(minted)
	} else {
		t.credits[account] = minted
	}
	t.totalCredits = t.totalCredits.Add(minted)
	t.totalSupply = t.totalSupply.Add(amount)
	return nil
}

// Burn removes amount from account. Burning the whole balance clears the account's credits exactly.
func (t *Token) Burn(account string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: burn %v", types.ErrInvalidAmount, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	balance := t.balanceOf(account)
	if amount.GT(balance) {
		return fmt.Errorf("%w: balance %s, burn %s", types.ErrInsufficientShares, balance, amount)
	}

	held := t.credits[account]
	burned := held
	if amount.LT(balance) {
		burned = sdkmath.MinInt(rayDiv(amount, t.index), held)
	}
	if remaining := held.Sub(burned); remaining.IsPositive() {
		t.credits[account] = remaining
	} else {
		delete(t.credits, account)
	}

	t.totalCredits = t.totalCredits.Sub(burned)
	if t.totalCredits.IsZero() {
		t.totalSupply = sdkmath.ZeroInt()
		return nil
	}
	t.totalSupply = sdkmath.MaxInt(t.totalSupply.Sub(amount), sdkmath.ZeroInt())
	return nil
}

// ChangeSupply rescales every balance so that the total becomes newSupply.
func (t *Token) ChangeSupply(newSupply sdkmath.Int) error {
	if newSupply.IsNil() || !newSupply.IsPositive() {
		return fmt.Errorf("%w: supply %v", types.ErrInvalidAmount, newSupply)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.totalCredits.IsZero() {
		return ErrNoCredits
	}
	index := rayDiv(newSupply, t.totalCredits)
	if index.IsZero() {
		return fmt.Errorf("%w: supply %s too small for %s credits", types.ErrInvalidAmount, newSupply, t.totalCredits)
	}
	t.index = index
	t.totalSupply = newSupply
	return nil
}
