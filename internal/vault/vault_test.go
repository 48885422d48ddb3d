package vault

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/suite"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/events"
	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/types"
)

const governor = "governor"

func shares(n int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, 18) }

func usdc(n int64) sdk.Coin { return sdk.NewCoin("usdc", sdkmath.NewInt(n*1_000_000)) }
func usdt(n int64) sdk.Coin { return sdk.NewCoin("usdt", sdkmath.NewInt(n*1_000_000)) }
func dai(n int64) sdk.Coin  { return sdk.NewCoin("dai", sdkmath.NewIntWithDecimal(n, 18)) }

func testParams() types.VaultParameters {
	return types.VaultParameters{
		DriftToleranceBps: 10,
		RebaseThreshold:   sdkmath.ZeroInt(),
		LossPolicy:        types.LossPolicyFreeze,
	}
}

type VaultTestSuite struct {
	suite.Suite
	ctx     context.Context
	bank    *bank.Bank
	auth    *auth.Static
	rec     *events.Recorder
	vault   *Vault
	aave    *strategy.Holding
	comp    *strategy.Holding
	reserve *strategy.Holding
	curve   *strategy.Pool
}

func TestVaultTestSuite(t *testing.T) {
	suite.Run(t, new(VaultTestSuite))
}

func (s *VaultTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bank = bank.New()
	s.auth = auth.NewStatic(governor, "uniswap")
	s.rec = &events.Recorder{}

	tokens := types.TokenRegistry{
		"usdc": {Denom: "usdc", Decimals: 6},
		"usdt": {Denom: "usdt", Decimals: 6},
		"dai":  {Denom: "dai", Decimals: 18},
	}

	var err error
	s.vault, err = New(Config{Address: "vault", Bank: s.bank, Auth: s.auth, Emitter: s.rec, Parameters: testParams()})
	s.Require().NoError(err)

	s.aave, err = strategy.NewHolding("aave", "vault", s.bank, []string{"usdc", "dai"}, []string{"comp"})
	s.Require().NoError(err)
	s.comp, err = strategy.NewHolding("compound", "vault", s.bank, []string{"usdc"}, nil)
	s.Require().NoError(err)
	s.reserve, err = strategy.NewHolding("reserve", "vault", s.bank, []string{"usdc"}, nil)
	s.Require().NoError(err)
	pool, err := strategy.NewStablePool("3pool", "lp/3pool", s.bank, tokens, []string{"usdt"}, sdkmath.NewIntWithDecimal(1_000_000, 18))
	s.Require().NoError(err)
	s.curve, err = strategy.NewPool("curve", "vault", s.bank, pool, tokens, 100, []string{"crv"})
	s.Require().NoError(err)

	for _, a := range []types.Token{tokens["usdc"], tokens["dai"], tokens["usdt"]} {
		s.Require().NoError(s.vault.SupportAsset(s.ctx, governor, a.Denom, a.Decimals))
	}
	for _, st := range []strategy.Strategy{s.aave, s.comp, s.reserve, s.curve} {
		s.Require().NoError(s.vault.AddStrategy(s.ctx, governor, st))
	}
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdc", "aave"))
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "dai", "aave"))
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdt", "curve"))
	s.Require().NoError(s.vault.SetReserveStrategy(s.ctx, governor, "reserve"))

	s.Require().NoError(s.bank.Mint("alice", usdc(1000), dai(1000), usdt(300_000)))
	s.Require().NoError(s.bank.Mint("bob", usdc(1000)))
	s.rec.Reset()
}

func (s *VaultTestSuite) balance(st strategy.Strategy, denom string) sdkmath.Int {
	bal, err := st.CheckBalance(s.ctx, denom)
	s.Require().NoError(err)
	return bal
}

func (s *VaultTestSuite) TestMintIsProportional() {
	minted, err := s.vault.Mint(s.ctx, "alice", usdc(100), shares(100))
	s.Require().NoError(err)
	s.True(shares(100).Equal(minted))
	s.True(shares(100).Equal(s.vault.TotalSupply()))
	s.True(shares(100).Equal(s.vault.BalanceOf("alice")))
	s.True(usdc(100).Amount.Equal(s.balance(s.aave, "usdc")))
	s.True(usdc(900).Amount.Equal(s.bank.Balance("alice", "usdc")))

	_, err = s.vault.Mint(s.ctx, "alice", dai(50), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.True(shares(150).Equal(s.vault.TotalSupply()))
	s.Len(s.rec.OfType("minted"), 2)

	total, err := s.vault.TotalValue(s.ctx)
	s.Require().NoError(err)
	s.True(shares(150).Equal(total))
}

func (s *VaultTestSuite) TestMintRejections() {
	_, err := s.vault.Mint(s.ctx, "alice", sdk.NewCoin("wbtc", sdkmath.OneInt()), sdkmath.ZeroInt())
	s.ErrorIs(err, types.ErrInvalidAsset)

	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "dai", ""))
	_, err = s.vault.Mint(s.ctx, "alice", dai(1), sdkmath.ZeroInt())
	s.ErrorIs(err, types.ErrNoDefaultStrategy)

	_, err = s.vault.Mint(s.ctx, "alice", usdc(10), shares(11))
	s.ErrorIs(err, types.ErrSlippageExceeded)

	_, err = s.vault.Mint(s.ctx, "carol", usdc(10), sdkmath.ZeroInt())
	s.ErrorIs(err, types.ErrInsufficientBalance)

	s.True(s.vault.TotalSupply().IsZero())
	s.Empty(s.rec.OfType("minted"))
}

func (s *VaultTestSuite) TestMintBelowMinimumLPLeavesNoTrace() {
	_, err := s.vault.Mint(s.ctx, "alice", usdt(1000), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.InDelta(1_000_000_000, s.balance(s.curve, "usdt").Int64(), 2)
	supply := s.vault.TotalSupply()

	_, err = s.vault.Mint(s.ctx, "alice", usdt(200_000), sdkmath.ZeroInt())
	s.ErrorIs(err, types.ErrSlippageExceeded)

	s.True(supply.Equal(s.vault.TotalSupply()))
	s.True(usdt(299_000).Amount.Equal(s.bank.Balance("alice", "usdt")))
	s.True(s.bank.Balance("curve", "usdt").IsZero())
	s.InDelta(1_000_000_000, s.balance(s.curve, "usdt").Int64(), 2)
}

func (s *VaultTestSuite) TestRedeemProportional() {
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	_, err = s.vault.Mint(s.ctx, "alice", dai(50), sdkmath.ZeroInt())
	s.Require().NoError(err)

	_, err = s.vault.Redeem(s.ctx, "alice", shares(30), shares(31))
	s.ErrorIs(err, types.ErrSlippageExceeded)
	s.True(shares(150).Equal(s.vault.TotalSupply()))
	s.True(usdc(100).Amount.Equal(s.balance(s.aave, "usdc")))

	out, err := s.vault.Redeem(s.ctx, "alice", shares(30), shares(30))
	s.Require().NoError(err)
	s.True(out.Equal(sdk.NewCoins(usdc(20), dai(10))), out.String())
	s.True(shares(120).Equal(s.vault.TotalSupply()))
	s.True(usdc(80).Amount.Equal(s.balance(s.aave, "usdc")))
	s.True(dai(40).Amount.Equal(s.balance(s.aave, "dai")))
	s.True(usdc(920).Amount.Equal(s.bank.Balance("alice", "usdc")))
	s.True(dai(960).Amount.Equal(s.bank.Balance("alice", "dai")))
	s.Len(s.rec.OfType("redeemed"), 1)

	_, err = s.vault.Redeem(s.ctx, "bob", shares(1), sdkmath.ZeroInt())
	s.ErrorIs(err, types.ErrInsufficientShares)
}

func (s *VaultTestSuite) TestMintRedeemRoundTrip() {
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	_, err = s.vault.Redeem(s.ctx, "alice", shares(100), shares(100))
	s.Require().NoError(err)

	s.True(s.vault.TotalSupply().IsZero())
	s.True(s.vault.BalanceOf("alice").IsZero())
	s.True(usdc(1000).Amount.Equal(s.bank.Balance("alice", "usdc")))
	s.True(s.balance(s.aave, "usdc").IsZero())
}

func (s *VaultTestSuite) TestRedeemFromPool() {
	_, err := s.vault.Mint(s.ctx, "alice", usdt(1000), sdkmath.ZeroInt())
	s.Require().NoError(err)

	out, err := s.vault.Redeem(s.ctx, "alice", shares(500), shares(499))
	s.Require().NoError(err)
	s.InDelta(500_000_000, out.AmountOf("usdt").Int64(), 2)
	s.True(shares(500).Equal(s.vault.TotalSupply()))
}

func (s *VaultTestSuite) TestMintRedeemThroughMultiAssetPool() {
	tokens := types.TokenRegistry{
		"usdc": {Denom: "usdc", Decimals: 6},
		"usdt": {Denom: "usdt", Decimals: 6},
	}
	pool, err := strategy.NewStablePool("2pool", "lp/2pool", s.bank, tokens, []string{"usdc", "usdt"}, sdkmath.NewIntWithDecimal(1_000_000, 18))
	s.Require().NoError(err)
	stable, err := strategy.NewPool("stable", "vault", s.bank, pool, tokens, 100, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.vault.AddStrategy(s.ctx, governor, stable))
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdc", "stable"))
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdt", "stable"))

	_, err = s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.True(usdc(100).Amount.Equal(s.balance(stable, "usdc")), s.balance(stable, "usdc").String())
	s.True(s.balance(stable, "usdt").IsZero())

	_, err = s.vault.Mint(s.ctx, "alice", usdt(50), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.True(usdt(50).Amount.Equal(s.balance(stable, "usdt")))

	total, err := s.vault.TotalValue(s.ctx)
	s.Require().NoError(err)
	s.True(shares(150).Equal(total), total.String())
	res, err := s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.NotEqual(RebaseFrozen, res.Action)
	s.False(s.vault.RebaseState().Impaired)

	_, err = s.vault.Redeem(s.ctx, "alice", shares(10), shares(9))
	s.Require().NoError(err)
	_, err = s.vault.Redeem(s.ctx, "alice", s.vault.BalanceOf("alice"), sdkmath.ZeroInt())
	s.Require().NoError(err)

	s.True(s.vault.TotalSupply().IsZero())
	s.InDelta(1_000_000_000, s.bank.Balance("alice", "usdc").Int64(), 2)
	s.InDelta(300_000_000_000, s.bank.Balance("alice", "usdt").Int64(), 2)
}

func (s *VaultTestSuite) TestRedeemReflectsUnrebasedYield() {
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.aave.AccrueYield(usdc(10)))

	out, err := s.vault.Redeem(s.ctx, "alice", shares(50), shares(55))
	s.Require().NoError(err)
	s.True(out.Equal(sdk.NewCoins(usdc(55))), out.String())
}

func (s *VaultTestSuite) TestRedeemFeeStaysInVault() {
	p := testParams()
	p.RedeemFeeBps = 50
	s.Require().NoError(s.vault.SetParameters(s.ctx, governor, p))
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)

	out, err := s.vault.Redeem(s.ctx, "alice", shares(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Equal("99500000", out.AmountOf("usdc").String())
	s.Equal("500000", s.balance(s.aave, "usdc").String())
}

func (s *VaultTestSuite) TestPreferredAssetPolicy() {
	s.Require().NoError(s.vault.SetRedemptionPolicy(s.ctx, governor, PreferredAssetPolicy{Denom: "dai"}))
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	_, err = s.vault.Mint(s.ctx, "alice", dai(50), sdkmath.ZeroInt())
	s.Require().NoError(err)

	out, err := s.vault.Redeem(s.ctx, "alice", shares(60), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.True(out.Equal(sdk.NewCoins(dai(50), usdc(10))), out.String())
}

func (s *VaultTestSuite) TestRebaseDistributesYield() {
	p := testParams()
	p.TrusteeFeeBps = 1000
	p.Trustee = "trustee"
	s.Require().NoError(s.vault.SetParameters(s.ctx, governor, p))

	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	_, err = s.vault.Mint(s.ctx, "bob", usdc(300), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.aave.AccrueYield(usdc(40)))

	res, err := s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.Equal(RebaseYield, res.Action)
	s.True(shares(440).Equal(res.NewSupply))
	s.True(shares(440).Equal(s.vault.TotalSupply()))
	s.True(shares(4).Equal(res.TrusteeFee))
	s.True(shares(109).Equal(s.vault.BalanceOf("alice")), s.vault.BalanceOf("alice").String())
	s.True(shares(327).Equal(s.vault.BalanceOf("bob")))
	s.LessOrEqual(shares(4).Sub(s.vault.BalanceOf("trustee")).Abs().Int64(), int64(1))

	rebased := s.rec.OfType("rebased")
	s.Require().Len(rebased, 1)
	s.True(shares(400).Equal(rebased[0].(types.Rebased).OldSupply))
	s.False(s.vault.RebaseState().Impaired)
}

func (s *VaultTestSuite) TestRebaseWithoutSupplyIsNoop() {
	s.Require().NoError(s.bank.Mint("vault", usdc(5)))
	res, err := s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.Equal(RebaseNoop, res.Action)
	s.Empty(s.rec.Events())
}

func (s *VaultTestSuite) TestRebaseLossFreezes() {
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)

	s.Require().NoError(s.aave.Impair(sdk.NewCoin("usdc", sdkmath.NewInt(50_000))))
	res, err := s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.Equal(RebaseWithinTolerance, res.Action)
	s.Empty(s.rec.OfType("rebase_loss_detected"))

	s.Require().NoError(s.aave.Impair(sdk.NewCoin("usdc", sdkmath.NewInt(4_950_000))))
	res, err = s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.Equal(RebaseFrozen, res.Action)
	s.True(shares(100).Equal(s.vault.TotalSupply()))
	s.True(s.vault.RebaseState().Impaired)
	s.True(shares(5).Equal(s.vault.RebaseState().Shortfall))
	s.Len(s.rec.OfType("rebase_loss_detected"), 1)
	s.Empty(s.rec.OfType("rebased"))

	s.Require().NoError(s.aave.AccrueYield(usdc(5)))
	res, err = s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.Equal(RebaseNoop, res.Action)
	s.False(s.vault.RebaseState().Impaired)
}

func (s *VaultTestSuite) TestRebaseLossAbsorbs() {
	p := testParams()
	p.LossPolicy = types.LossPolicyAbsorb
	s.Require().NoError(s.vault.SetParameters(s.ctx, governor, p))
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.aave.Impair(usdc(5)))

	res, err := s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.Equal(RebaseAbsorbed, res.Action)
	s.True(shares(95).Equal(s.vault.TotalSupply()))
	s.True(shares(95).Equal(s.vault.BalanceOf("alice")))
	s.Len(s.rec.OfType("rebase_loss_detected"), 1)
	s.Len(s.rec.OfType("rebased"), 1)
	s.False(s.vault.RebaseState().Impaired)
}

func (s *VaultTestSuite) TestRebaseThresholdOnMint() {
	p := testParams()
	p.RebaseThreshold = shares(50)
	s.Require().NoError(s.vault.SetParameters(s.ctx, governor, p))
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.aave.AccrueYield(usdc(10)))

	_, err = s.vault.Mint(s.ctx, "bob", usdc(10), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Empty(s.rec.OfType("rebased"))

	_, err = s.vault.Mint(s.ctx, "bob", usdc(60), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Len(s.rec.OfType("rebased"), 1)
	s.True(shares(180).Equal(s.vault.TotalSupply()))
	// bob's first 10 shares took part in the 110 -> 120 rebase.
	s.True(s.vault.BalanceOf("bob").GT(shares(70)))
	s.True(s.vault.BalanceOf("bob").LT(shares(71)))
}

func (s *VaultTestSuite) TestRejectedMintLeavesRebasePending() {
	p := testParams()
	p.RebaseThreshold = shares(50)
	s.Require().NoError(s.vault.SetParameters(s.ctx, governor, p))
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.aave.AccrueYield(usdc(10)))
	index := s.vault.SupplyIndex()

	// Too deep for the pool's 1% slippage bound.
	_, err = s.vault.Mint(s.ctx, "alice", usdt(300_000), sdkmath.ZeroInt())
	s.ErrorIs(err, types.ErrSlippageExceeded)
	s.Empty(s.rec.OfType("rebased"))
	s.True(index.Equal(s.vault.SupplyIndex()))
	s.True(shares(100).Equal(s.vault.TotalSupply()))
	s.True(usdt(300_000).Amount.Equal(s.bank.Balance("alice", "usdt")))

	res, err := s.vault.Rebase(s.ctx)
	s.Require().NoError(err)
	s.Equal(RebaseYield, res.Action)
	s.True(shares(110).Equal(s.vault.TotalSupply()))
}

func (s *VaultTestSuite) TestRebaseThresholdOnRedeem() {
	p := testParams()
	p.RebaseThreshold = shares(50)
	s.Require().NoError(s.vault.SetParameters(s.ctx, governor, p))
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.aave.AccrueYield(usdc(10)))
	index := s.vault.SupplyIndex()

	_, err = s.vault.Redeem(s.ctx, "alice", shares(60), shares(61))
	s.ErrorIs(err, types.ErrSlippageExceeded)
	s.Empty(s.rec.OfType("rebased"))
	s.True(index.Equal(s.vault.SupplyIndex()))

	out, err := s.vault.Redeem(s.ctx, "alice", shares(60), shares(60))
	s.Require().NoError(err)
	s.True(out.Equal(sdk.NewCoins(usdc(60))), out.String())
	s.Len(s.rec.OfType("rebased"), 1)
	s.True(shares(50).Equal(s.vault.TotalSupply()), s.vault.TotalSupply().String())
	s.LessOrEqual(shares(50).Sub(s.vault.BalanceOf("alice")).Abs().Int64(), int64(1))
}

func (s *VaultTestSuite) TestGovernanceIsGated() {
	extra, err := strategy.NewHolding("extra", "vault", s.bank, []string{"usdc"}, nil)
	s.Require().NoError(err)

	calls := map[string]func() error{
		"support asset": func() error { return s.vault.SupportAsset(s.ctx, "mallory", "frax", 18) },
		"remove asset":  func() error { return s.vault.RemoveAsset(s.ctx, "mallory", "dai") },
		"add strategy":  func() error { return s.vault.AddStrategy(s.ctx, "mallory", extra) },
		"remove":        func() error { return s.vault.RemoveStrategy(s.ctx, "mallory", "compound") },
		"default":       func() error { return s.vault.SetDefaultStrategy(s.ctx, "mallory", "usdc", "compound") },
		"reserve":       func() error { return s.vault.SetReserveStrategy(s.ctx, "mallory", "aave") },
		"parameters":    func() error { return s.vault.SetParameters(s.ctx, "mallory", testParams()) },
		"policy":        func() error { return s.vault.SetRedemptionPolicy(s.ctx, "mallory", ProportionalPolicy{}) },
		"allocate": func() error {
			_, err := s.vault.Allocate(s.ctx, "mallory")
			return err
		},
	}
	for name, call := range calls {
		s.ErrorIs(call(), types.ErrNotGovernor, name)
	}

	s.Len(s.vault.Assets(), 3)
	s.Equal([]string{"aave", "compound", "reserve", "curve"}, s.vault.StrategyAddresses())
	s.Equal("reserve", s.vault.ReserveStrategy())
	asset, _ := s.vault.ledger.Asset("usdc")
	s.Equal("aave", asset.DefaultStrategy)
	s.Empty(s.rec.Events())

	s.Require().NoError(s.vault.AddStrategy(s.ctx, governor, extra))
	s.Len(s.rec.OfType("strategy_added"), 1)
}

func (s *VaultTestSuite) TestRemoveStrategyWithdrawsFunds() {
	s.ErrorIs(s.vault.RemoveStrategy(s.ctx, governor, "aave"), types.ErrStrategyIsDefault)
	s.ErrorIs(s.vault.RemoveStrategy(s.ctx, governor, "nope"), types.ErrUnknownStrategy)

	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdc", "compound"))
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdc", "aave"))

	s.Require().NoError(s.vault.RemoveStrategy(s.ctx, governor, "compound"))
	s.True(usdc(100).Amount.Equal(s.bank.Balance("vault", "usdc")))
	s.NotContains(s.vault.StrategyAddresses(), "compound")
	s.Len(s.rec.OfType("strategy_removed"), 1)

	total, err := s.vault.TotalValue(s.ctx)
	s.Require().NoError(err)
	s.True(shares(100).Equal(total))

	allocated, err := s.vault.Allocate(s.ctx, governor)
	s.Require().NoError(err)
	s.Require().Len(allocated, 1)
	s.True(usdc(100).Amount.Equal(s.balance(s.aave, "usdc")))
	s.True(s.bank.Balance("vault", "usdc").IsZero())
}

func (s *VaultTestSuite) TestAllocateKeepsBuffer() {
	p := testParams()
	p.VaultBufferBps = 1000
	s.Require().NoError(s.vault.SetParameters(s.ctx, governor, p))
	s.Require().NoError(s.bank.Mint("vault", usdc(100)))

	allocated, err := s.vault.Allocate(s.ctx, governor)
	s.Require().NoError(err)
	s.Require().Len(allocated, 1)
	s.True(usdc(90).Amount.Equal(allocated[0].Amount.Amount))
	s.True(usdc(10).Amount.Equal(s.bank.Balance("vault", "usdc")))
	s.True(usdc(90).Amount.Equal(s.balance(s.aave, "usdc")))
}

func (s *VaultTestSuite) TestRemoveAsset() {
	_, err := s.vault.Mint(s.ctx, "alice", dai(1), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.ErrorIs(s.vault.RemoveAsset(s.ctx, governor, "dai"), types.ErrAssetHasFunds)
	s.Require().NoError(s.vault.RemoveAsset(s.ctx, governor, "usdt"))
	s.False(s.vault.IsSupportedAsset("usdt"))
}

func (s *VaultTestSuite) TestReserveChannel() {
	s.Require().NoError(s.bank.Mint("uniswap", usdc(50), dai(5)))
	s.Require().NoError(s.bank.Mint("mallory", usdc(50)))

	s.ErrorIs(s.vault.DepositToReserve(s.ctx, "mallory", usdc(1)), types.ErrNotAuthorizedStrategy)
	s.ErrorIs(s.vault.DepositToReserve(s.ctx, "mallory", dai(1)), types.ErrNotAuthorizedStrategy)
	s.ErrorIs(s.vault.WithdrawFromReserve(s.ctx, "mallory", usdc(1)), types.ErrNotAuthorizedStrategy)
	s.ErrorIs(s.vault.DepositToReserve(s.ctx, "uniswap", dai(1)), types.ErrUnsupportedAsset)

	s.Require().NoError(s.vault.DepositToReserve(s.ctx, "uniswap", usdc(20)))
	s.True(usdc(20).Amount.Equal(s.balance(s.reserve, "usdc")))
	s.True(usdc(30).Amount.Equal(s.bank.Balance("uniswap", "usdc")))

	s.Require().NoError(s.vault.WithdrawFromReserve(s.ctx, "uniswap", usdc(5)))
	s.True(usdc(15).Amount.Equal(s.balance(s.reserve, "usdc")))
	s.True(usdc(35).Amount.Equal(s.bank.Balance("uniswap", "usdc")))
	s.ErrorIs(s.vault.WithdrawFromReserve(s.ctx, "uniswap", usdc(500)), types.ErrInsufficientBalance)

	s.Require().NoError(s.vault.RemoveStrategy(s.ctx, governor, "reserve"))
	s.ErrorIs(s.vault.DepositToReserve(s.ctx, "uniswap", usdc(1)), types.ErrUnknownReserve)
	s.ErrorIs(s.vault.DepositToReserve(s.ctx, "uniswap", dai(1)), types.ErrUnknownReserve)

	s.Require().NoError(s.reserve.RemoveAsset("usdc"))
	s.Require().NoError(s.vault.AddStrategy(s.ctx, governor, s.reserve))
	s.ErrorIs(s.vault.DepositToReserve(s.ctx, "uniswap", usdc(1)), types.ErrUnsupportedAsset)
}

type reentrantStrategy struct {
	*strategy.Holding
	vault *Vault
}

func (r *reentrantStrategy) Deposit(ctx context.Context, coin sdk.Coin) error {
	_, err := r.vault.Mint(ctx, r.Address(), coin, sdkmath.ZeroInt())
	return err
}

func (s *VaultTestSuite) TestReentrantDepositIsRejected() {
	h, err := strategy.NewHolding("evil", "vault", s.bank, []string{"usdc"}, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.vault.AddStrategy(s.ctx, governor, &reentrantStrategy{Holding: h, vault: s.vault}))
	s.Require().NoError(s.vault.SetDefaultStrategy(s.ctx, governor, "usdc", "evil"))

	_, err = s.vault.Mint(s.ctx, "alice", usdc(10), sdkmath.ZeroInt())
	s.ErrorIs(err, types.ErrReentrantCall)
	s.True(usdc(1000).Amount.Equal(s.bank.Balance("alice", "usdc")))
	s.True(s.vault.TotalSupply().IsZero())
}

func (s *VaultTestSuite) TestCollateral() {
	_, err := s.vault.Mint(s.ctx, "alice", usdc(100), sdkmath.ZeroInt())
	s.Require().NoError(err)
	s.Require().NoError(s.bank.Mint("vault", usdc(5)))

	collateral, err := s.vault.Collateral(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(collateral, 3)
	c := collateral[0]
	s.Equal("usdc", c.Denom)
	s.True(usdc(5).Amount.Equal(c.Idle))
	s.True(usdc(100).Amount.Equal(c.Strategies["aave"]))
	s.True(usdc(105).Amount.Equal(c.Total))
	s.True(shares(105).Equal(c.Value))
	s.True(shares(100).Equal(c.Deposited))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Bank: bank.New(), Auth: auth.NewStatic(governor), Parameters: testParams()})
	if err == nil {
		t.Fatal("expected an error for an empty address")
	}
	bad := testParams()
	bad.LossPolicy = "ignore"
	_, err = New(Config{Address: "vault", Bank: bank.New(), Auth: auth.NewStatic(governor), Parameters: bad})
	if err == nil {
		t.Fatal("expected an error for an unknown loss policy")
	}
}
