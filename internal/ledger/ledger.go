/*

AllocationLedger is the vault's registry: which assets are accepted, which strategies are
registered, where each asset's deposits are routed, which strategy acts as the reserve, and how
much value each asset has contributed through mints. It performs no transfers.

*/

package ledger

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/types"
)

type Ledger struct {
	mu            sync.RWMutex
	assets        map[string]*types.Asset
	assetOrder    []string
	strategies    map[string]strategy.Strategy
	strategyOrder []string
	reserve       string
	deposited     map[string]sdkmath.Int
}

func New() *Ledger {
	return &Ledger{
		assets:     make(map[string]*types.Asset),
		strategies: make(map[string]strategy.Strategy),
		deposited:  make(map[string]sdkmath.Int),
	}
}

// AddAsset registers a supported asset.
func (l *Ledger) AddAsset(denom string, decimals uint32) error {
	if err := sdk.ValidateDenom(denom); err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrInvalidAsset, denom, err)
	}
	if decimals > 18 {
		return fmt.Errorf("%w: %s has %d decimals", types.ErrInvalidAsset, denom, decimals)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.assets[denom]; ok {
		return fmt.Errorf("%w: %s", types.ErrAssetExists, denom)
	}
	l.assets[denom] = &types.Asset{Denom: denom, Decimals: decimals, Supported: true}
	l.assetOrder = append(l.assetOrder, denom)
	l.deposited[denom] = sdkmath.ZeroInt()
	return nil
}

// RemoveAsset drops an asset from the registry.
func (l *Ledger) RemoveAsset(denom string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.assets[denom]; !ok {
		return fmt.Errorf("%w: %s", types.ErrInvalidAsset, denom)
	}
	delete(l.assets, denom)
	delete(l.deposited, denom)
	for i, d := range l.assetOrder {
		if d == denom {
			l.assetOrder = append(l.assetOrder[:i], l.assetOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Asset returns a copy of the registered asset.
func (l *Ledger) Asset(denom string) (types.Asset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[denom]
	if !ok {
		return types.Asset{}, false
	}
	return *a, true
}

// Assets returns every registered asset in registration order.
func (l *Ledger) Assets() []types.Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Asset, 0, len(l.assetOrder))
	for _, d := range l.assetOrder {
		out = append(out, *l.assets[d])
	}
	return out
}

func (l *Ledger) IsSupportedAsset(denom string) bool {
	a, ok := l.Asset(denom)
	return ok && a.Supported
}

// AddStrategy registers s.
func (l *Ledger) AddStrategy(s strategy.Strategy) error {
	if s == nil || s.Address() == "" {
		return fmt.Errorf("%w: empty strategy", types.ErrInvalidConfig)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.strategies[s.Address()]; ok {
		return fmt.Errorf("%w: %s", types.ErrStrategyExists, s.Address())
	}
	l.strategies[s.Address()] = s
	l.strategyOrder = append(l.strategyOrder, s.Address())
	return nil
}

// RemoveStrategy unregisters addr. It refuses while addr is any asset's default.
// The reserve designation is kept so that later reserve calls fail as unknown.
func (l *Ledger) RemoveStrategy(addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.strategies[addr]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownStrategy, addr)
	}
	for _, d := range l.assetOrder {
		if l.assets[d].DefaultStrategy == addr {
			return fmt.Errorf("%w: %s routes %s", types.ErrStrategyIsDefault, addr, d)
		}
	}
	delete(l.strategies, addr)
	for i, a := range l.strategyOrder {
		if a == addr {
			l.strategyOrder = append(l.strategyOrder[:i], l.strategyOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (l *Ledger) Strategy(addr string) (strategy.Strategy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.strategies[addr]
	return s, ok
}

// Strategies returns registered strategies in registration order.
func (l *Ledger) Strategies() []strategy.Strategy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]strategy.Strategy, 0, len(l.strategyOrder))
	for _, a := range l.strategyOrder {
		out = append(out, l.strategies[a])
	}
	return out
}

// SetDefaultStrategy routes denom to addr. An empty addr clears the route.
func (l *Ledger) SetDefaultStrategy(denom, addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.assets[denom]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrInvalidAsset, denom)
	}
	if addr == "" {
		a.DefaultStrategy = ""
		return nil
	}
	s, ok := l.strategies[addr]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownStrategy, addr)
	}
	if !s.SupportsAsset(denom) {
		return fmt.Errorf("%w: %s by %s", types.ErrUnsupportedAsset, denom, addr)
	}
	a.DefaultStrategy = addr
	return nil
}

// DefaultStrategy resolves where denom deposits go.
func (l *Ledger) DefaultStrategy(denom string) (strategy.Strategy, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.assets[denom]
	if !ok || !a.Supported {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidAsset, denom)
	}
	if a.DefaultStrategy == "" {
		return nil, fmt.Errorf("%w: %s", types.ErrNoDefaultStrategy, denom)
	}
	s, ok := l.strategies[a.DefaultStrategy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNoDefaultStrategy, denom)
	}
	return s, nil
}

// WithdrawalOrder lists strategies supporting denom: its default first, then the rest in
// registration order.
func (l *Ledger) WithdrawalOrder(denom string) []strategy.Strategy {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []strategy.Strategy
	def := ""
	if a, ok := l.assets[denom]; ok && a.DefaultStrategy != "" {
		if s, ok := l.strategies[a.DefaultStrategy]; ok && s.SupportsAsset(denom) {
			def = a.DefaultStrategy
			out = append(out, s)
		}
	}
	for _, addr := range l.strategyOrder {
		s := l.strategies[addr]
		if addr != def && s.SupportsAsset(denom) {
			out = append(out, s)
		}
	}
	return out
}

// DefaultFor lists the assets routed to addr.
func (l *Ledger) DefaultFor(addr string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for _, d := range l.assetOrder {
		if l.assets[d].DefaultStrategy == addr {
			out = append(out, d)
		}
	}
	return out
}

func (l *Ledger) SetReserve(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserve = addr
}

// Reserve returns the designated reserve strategy. It fails with ErrUnknownReserve when none is
// designated or the designated strategy is no longer registered.
func (l *Ledger) Reserve() (strategy.Strategy, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reserve == "" {
		return nil, fmt.Errorf("%w: none designated", types.ErrUnknownReserve)
	}
	s, ok := l.strategies[l.reserve]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownReserve, l.reserve)
	}
	return s, nil
}

func (l *Ledger) ReserveAddress() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reserve
}

// Credit adds minted value to denom's running total.
func (l *Ledger) Credit(denom string, value sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.deposited[denom]; ok {
		l.deposited[denom] = cur.Add(value)
	}
}

// Debit subtracts redeemed value, flooring at zero since yield can be redeemed above what was deposited.
func (l *Ledger) Debit(denom string, value sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.deposited[denom]; ok {
		l.deposited[denom] = sdkmath.MaxInt(cur.Sub(value), sdkmath.ZeroInt())
	}
}

func (l *Ledger) Deposited(denom string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cur, ok := l.deposited[denom]; ok {
		return cur
	}
	return sdkmath.ZeroInt()
}
