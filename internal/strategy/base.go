package strategy

import (
	"context"
	"fmt"
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/types"
)

// base carries what every adapter shares: identity, the asset set and reward collection.
type base struct {
	mu           sync.RWMutex
	addr         string
	vault        string
	bank         *bank.Bank
	assets       map[string]bool
	assetOrder   []string
	rewardTokens []string
	log          zerolog.Logger
}

func newBase(kind, addr, vault string, b *bank.Bank, assets, rewardTokens []string) (*base, error) {
	if addr == "" || vault == "" || b == nil {
		return nil, fmt.Errorf("%w: strategy needs an address, a vault and a bank", types.ErrInvalidConfig)
	}
	s := &base{
		addr:   addr,
		vault:  vault,
		bank:   b,
		assets: make(map[string]bool),
		log:    logger.GetForComponent(kind).With().Str("strategy", addr).Logger(),
	}
	for _, a := range assets {
		if err := sdk.ValidateDenom(a); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidAsset, a, err)
		}
		if !s.assets[a] {
			s.assets[a] = true
			s.assetOrder = append(s.assetOrder, a)
		}
	}
	for _, r := range rewardTokens {
		if err := sdk.ValidateDenom(r); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrInvalidToken, r, err)
		}
		if s.assets[r] {
			return nil, fmt.Errorf("%w: reward token %s is also a supported asset", types.ErrInvalidToken, r)
		}
		s.rewardTokens = append(s.rewardTokens, r)
	}
	return s, nil
}

func (s *base) Address() string { return s.addr }

func (s *base) SupportsAsset(denom string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assets[denom]
}

func (s *base) supported() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.assetOrder))
	copy(out, s.assetOrder)
	return out
}

func (s *base) RewardTokens() []string {
	out := make([]string, len(s.rewardTokens))
	copy(out, s.rewardTokens)
	return out
}

func (s *base) requireAsset(denom string) error {
	if !s.SupportsAsset(denom) {
		return fmt.Errorf("%w: %s by %s", types.ErrUnsupportedAsset, denom, s.addr)
	}
	return nil
}

// AccrueRewards credits reward tokens to the strategy.
func (s *base) AccrueRewards(coins ...sdk.Coin) error {
	for _, c := range coins {
		if !s.isRewardToken(c.Denom) {
			return fmt.Errorf("%w: %s is not a reward token of %s", types.ErrInvalidToken, c.Denom, s.addr)
		}
	}
	return s.bank.Mint(s.addr, coins...)
}

func (s *base) isRewardToken(denom string) bool {
	for _, r := range s.rewardTokens {
		if r == denom {
			return true
		}
	}
	return false
}

func (s *base) CollectRewardTokens(_ context.Context, recipient string) (sdk.Coins, error) {
	collected := sdk.NewCoins()
	for _, r := range s.rewardTokens {
		bal := s.bank.Balance(s.addr, r)
		if !bal.IsPositive() {
			continue
		}
		c := sdk.NewCoin(r, bal)
		if err := s.bank.Send(s.addr, recipient, c); err != nil {
			return collected, err
		}
		collected = collected.Add(c)
	}
	if !collected.IsZero() {
		s.log.Info().Str("recipient", recipient).Str("rewards", collected.String()).Msg("Reward tokens collected")
	}
	return collected, nil
}
