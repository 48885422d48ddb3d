package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/suite"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/events"
	"github.com/elys-network/stablevault/internal/harvester"
	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/swap"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/vault"
)

const governor = "governor"

func units(s string, decimals int) sdkmath.Int {
	return sdkmath.LegacyMustNewDecFromStr(s).MulInt(sdkmath.NewIntWithDecimal(1, decimals)).TruncateInt()
}

func usdt(s string) sdk.Coin { return sdk.NewCoin("usdt", units(s, 6)) }
func crv(s string) sdk.Coin  { return sdk.NewCoin("crv", units(s, 18)) }

type memCycleStore struct {
	next  int
	err   error
	saved []types.CycleSnapshot
}

func (m *memCycleStore) NextCycleNumber(context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.next++
	return m.next, nil
}

func (m *memCycleStore) SaveCycleSnapshot(_ context.Context, snap types.CycleSnapshot) (int64, error) {
	m.saved = append(m.saved, snap)
	return int64(len(m.saved)), nil
}

type recordingObserver struct {
	statuses []string
	values   []sdkmath.Int
}

func (o *recordingObserver) ObserveCycle(status string, _ time.Duration) {
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) ObserveVault(_, value, _ sdkmath.Int, _ bool) {
	o.values = append(o.values, value)
}

type failingHarvester struct{}

func (failingHarvester) HarvestAndSwap(context.Context, string, string) (harvester.Result, error) {
	return harvester.Result{}, errors.New("venue offline")
}

type failingRebase struct{ *vault.Vault }

func (failingRebase) Rebase(context.Context) (vault.RebaseResult, error) {
	return vault.RebaseResult{}, errors.New("oracle stale")
}

type KeeperTestSuite struct {
	suite.Suite
	ctx       context.Context
	bank      *bank.Bank
	vault     *vault.Vault
	convex    *strategy.Holding
	harvester *harvester.Harvester
	store     *memCycleStore
	observer  *recordingObserver
}

func TestKeeperTestSuite(t *testing.T) {
	suite.Run(t, new(KeeperTestSuite))
}

func (s *KeeperTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bank = bank.New()
	s.store = &memCycleStore{}
	s.observer = &recordingObserver{}
	authz := auth.NewStatic(governor)
	tokens := types.TokenRegistry{
		"usdt": {Denom: "usdt", Decimals: 6},
		"crv":  {Denom: "crv", Decimals: 18},
	}

	var err error
	s.vault, err = vault.New(vault.Config{
		Address: "vault",
		Bank:    s.bank,
		Auth:    authz,
		Parameters: types.VaultParameters{
			RebaseThreshold: sdkmath.ZeroInt(),
			LossPolicy:      types.LossPolicyFreeze,
		},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.vault.SupportAsset(s.ctx, governor, "usdt", 6))

	s.convex, err = strategy.NewHolding("convex", "vault", s.bank, []string{"usdt"}, []string{"crv"})
	s.Require().NoError(err)
	s.Require().NoError(s.vault.AddStrategy(s.ctx, governor, s.convex))
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdt", "convex"))

	router := swap.NewFixedRateVenue("uniswap", "uniswap-router", s.bank, tokens, 0)
	s.Require().NoError(router.SetRate("crv", "usdt", sdkmath.LegacyOneDec()))
	s.Require().NoError(s.bank.Mint("uniswap-router", usdt("1000")))
	converter := swap.NewConverter(tokens, nil)
	s.Require().NoError(converter.RegisterVenue(router))

	s.harvester, err = harvester.New(harvester.Config{
		Address:     "harvester",
		Vault:       s.vault,
		Bank:        s.bank,
		Converter:   converter,
		Auth:        authz,
		Emitter:     events.Discard{},
		TargetAsset: "usdt",
	})
	s.Require().NoError(err)
	s.Require().NoError(s.harvester.SetRewardTokenConfig(s.ctx, governor, types.RewardTokenConfig{
		Token:            "crv",
		MaxSlippageBps:   100,
		SwapVenue:        "uniswap",
		LiquidationLimit: sdkmath.ZeroInt(),
		Active:           true,
	}))

	s.Require().NoError(s.bank.Mint("alice", usdt("100")))
	_, err = s.vault.Mint(s.ctx, "alice", usdt("100"), sdkmath.ZeroInt())
	s.Require().NoError(err)
}

func (s *KeeperTestSuite) newKeeper(cfg Config) *Keeper {
	if cfg.Vault == nil {
		cfg.Vault = s.vault
	}
	cfg.Operator = governor
	cfg.Store = s.store
	cfg.Observer = s.observer
	k, err := NewKeeper(cfg)
	s.Require().NoError(err)
	return k
}

func (s *KeeperTestSuite) TestRunCycleHarvestsAllocatesAndRebases() {
	s.Require().NoError(s.convex.AccrueRewards(crv("2")))
	k := s.newKeeper(Config{Harvester: s.harvester})

	snap := k.RunCycle(s.ctx)

	s.Equal(StatusCompleted, snap.Status)
	s.Empty(snap.Error)
	s.NotEmpty(snap.CycleID)
	s.Equal(1, snap.CycleNumber)
	s.True(units("2", 18).Equal(snap.HarvestedValue), snap.HarvestedValue.String())
	s.True(units("102", 18).Equal(snap.TotalSupply), snap.TotalSupply.String())
	s.True(units("102", 18).Equal(snap.TotalValue), snap.TotalValue.String())
	s.False(snap.Impaired)
	s.Require().Len(snap.Collateral, 1)
	s.True(units("102", 6).Equal(s.bank.Balance("convex", "usdt")))
	s.True(s.bank.Balance("vault", "usdt").IsZero())
	// alice's balance rebased with the supply
	s.True(units("102", 18).Equal(s.vault.BalanceOf("alice")))

	s.Require().Len(s.store.saved, 1)
	s.Equal(snap.CycleID, s.store.saved[0].CycleID)
	s.Equal([]string{StatusCompleted}, s.observer.statuses)
}

func (s *KeeperTestSuite) TestCyclesGetDistinctIDsAndNumbers() {
	k := s.newKeeper(Config{})
	first := k.RunCycle(s.ctx)
	second := k.RunCycle(s.ctx)
	s.NotEqual(first.CycleID, second.CycleID)
	s.Equal(1, first.CycleNumber)
	s.Equal(2, second.CycleNumber)
	s.True(first.HarvestedValue.IsZero())
}

func (s *KeeperTestSuite) TestHarvestFailureDegradesCycle() {
	s.Require().NoError(s.convex.AccrueYield(usdt("1")))
	k := s.newKeeper(Config{Harvester: failingHarvester{}})

	snap := k.RunCycle(s.ctx)

	s.Equal(StatusDegraded, snap.Status)
	s.Contains(snap.Error, "harvest: venue offline")
	// the rebase still ran
	s.True(units("101", 18).Equal(snap.TotalSupply), snap.TotalSupply.String())
}

func (s *KeeperTestSuite) TestAllocationRequiresGovernor() {
	k, err := NewKeeper(Config{Vault: s.vault, Operator: "mallory"})
	s.Require().NoError(err)
	s.Require().NoError(s.bank.Mint("vault", usdt("5")))

	snap := k.RunCycle(s.ctx)

	s.Equal(StatusDegraded, snap.Status)
	s.Contains(snap.Error, "allocate")
	s.True(units("5", 6).Equal(s.bank.Balance("vault", "usdt")))
}

func (s *KeeperTestSuite) TestRebaseFailureFailsCycle() {
	k := s.newKeeper(Config{Vault: failingRebase{s.vault}})

	snap := k.RunCycle(s.ctx)

	s.Equal(StatusFailed, snap.Status)
	s.Contains(snap.Error, "rebase: oracle stale")
	s.Require().Len(s.store.saved, 1)
	s.Equal(StatusFailed, s.store.saved[0].Status)
	s.Equal([]string{StatusFailed}, s.observer.statuses)
}

func (s *KeeperTestSuite) TestLossFreezesVault() {
	s.Require().NoError(s.convex.Impair(usdt("10")))
	k := s.newKeeper(Config{})

	snap := k.RunCycle(s.ctx)

	s.Equal(StatusCompleted, snap.Status)
	s.True(snap.Impaired)
	s.True(units("100", 18).Equal(snap.TotalSupply))
	s.True(units("90", 18).Equal(snap.TotalValue))
}

func (s *KeeperTestSuite) TestCycleNumberFallsBackWithoutCounter() {
	s.store.err = errors.New("connection refused")
	k := s.newKeeper(Config{})

	s.Equal(1, k.RunCycle(s.ctx).CycleNumber)
	s.Equal(2, k.RunCycle(s.ctx).CycleNumber)
	s.Len(s.store.saved, 2)
}

func (s *KeeperTestSuite) TestBeforeCycleRunsFirst() {
	calls := 0
	k := s.newKeeper(Config{BeforeCycle: func(context.Context) error {
		calls++
		return s.convex.AccrueYield(usdt("1"))
	}})

	snap := k.RunCycle(s.ctx)
	s.Equal(1, calls)
	s.True(units("101", 18).Equal(snap.TotalSupply))

	k = s.newKeeper(Config{BeforeCycle: func(context.Context) error { return errors.New("feed down") }})
	snap = k.RunCycle(s.ctx)
	s.Equal(StatusDegraded, snap.Status)
	s.Contains(snap.Error, "feed down")
}

func (s *KeeperTestSuite) TestRunLoopStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	k := s.newKeeper(Config{BeforeCycle: func(context.Context) error {
		cancel()
		return nil
	}})

	done := make(chan struct{})
	go func() {
		k.RunLoop(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("keeper loop did not stop")
	}
	s.Len(s.store.saved, 1)
}

func TestNewKeeperValidatesConfig(t *testing.T) {
	if _, err := NewKeeper(Config{Operator: governor}); err == nil {
		t.Fatal("expected an error without a vault")
	}
	v, err := vault.New(vault.Config{
		Address: "vault",
		Bank:    bank.New(),
		Auth:    auth.NewStatic(governor),
		Parameters: types.VaultParameters{
			RebaseThreshold: sdkmath.ZeroInt(),
			LossPolicy:      types.LossPolicyFreeze,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewKeeper(Config{Vault: v}); err == nil {
		t.Fatal("expected an error without an operator")
	}
	if _, err := NewKeeper(Config{Vault: v, Operator: governor}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
