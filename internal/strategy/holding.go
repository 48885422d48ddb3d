package strategy

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/types"
)

// Holding keeps deposited assets at its own address. It serves as a low-risk reserve and as a
// lending-style strategy whose yield is credited in the collateral asset itself.
type Holding struct {
	*base
}

func NewHolding(addr, vault string, b *bank.Bank, assets, rewardTokens []string) (*Holding, error) {
	bs, err := newBase("holding_strategy", addr, vault, b, assets, rewardTokens)
	if err != nil {
		return nil, err
	}
	return &Holding{base: bs}, nil
}

func (h *Holding) Deposit(_ context.Context, coin sdk.Coin) error {
	if err := h.requireAsset(coin.Denom); err != nil {
		return err
	}
	if held := h.bank.Balance(h.addr, coin.Denom); held.LT(coin.Amount) {
		return fmt.Errorf("%w: %s holds %s, deposit %s", types.ErrInsufficientBalance, h.addr, held, coin)
	}
	h.log.Debug().Str("amount", coin.String()).Msg("Deposit recorded")
	return nil
}

func (h *Holding) Withdraw(_ context.Context, recipient string, coin sdk.Coin) error {
	if err := h.requireAsset(coin.Denom); err != nil {
		return err
	}
	return h.bank.Send(h.addr, recipient, coin)
}

func (h *Holding) WithdrawAll(_ context.Context) error {
	for _, denom := range h.supported() {
		bal := h.bank.Balance(h.addr, denom)
		if !bal.IsPositive() {
			continue
		}
		if err := h.bank.Send(h.addr, h.vault, sdk.NewCoin(denom, bal)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Holding) CheckBalance(_ context.Context, denom string) (sdkmath.Int, error) {
	if err := h.requireAsset(denom); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return h.bank.Balance(h.addr, denom), nil
}

// AddAsset starts accepting denom.
func (h *Holding) AddAsset(denom string) error {
	if err := sdk.ValidateDenom(denom); err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrInvalidAsset, denom, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.assets[denom] {
		h.assets[denom] = true
		h.assetOrder = append(h.assetOrder, denom)
	}
	return nil
}

// RemoveAsset stops accepting denom. The strategy must not hold any of it.
func (h *Holding) RemoveAsset(denom string) error {
	if h.SupportsAsset(denom) && h.bank.Balance(h.addr, denom).IsPositive() {
		return fmt.Errorf("%w: %s holds %s", types.ErrStrategyHasFunds, h.addr, denom)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.assets, denom)
	for i, a := range h.assetOrder {
		if a == denom {
			h.assetOrder = append(h.assetOrder[:i], h.assetOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AccrueYield credits interest in a supported asset.
func (h *Holding) AccrueYield(coin sdk.Coin) error {
	if err := h.requireAsset(coin.Denom); err != nil {
		return err
	}
	return h.bank.Mint(h.addr, coin)
}

// Impair destroys part of the position, as a venue loss would.
func (h *Holding) Impair(coin sdk.Coin) error {
	if err := h.requireAsset(coin.Denom); err != nil {
		return err
	}
	return h.bank.Burn(h.addr, coin)
}
