/*

The bootstrap file describes the vault deployment the daemon builds at startup: tokens, collateral
assets, strategies and their pools, swap venues, reward token policies and, for demo deployments,
initial balances and per-cycle simulated accruals.

Deposits are minted through the vault at startup, so each depositor needs a matching balance.

Amounts are human readable decimals in the token's own units ("1000.5" usdc), except pool depth and the
rebase threshold, which are in the vault's common unit (dollars).

*/

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"gopkg.in/yaml.v3"

	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

const (
	StrategyKindHolding = "holding"
	StrategyKindPool    = "pool"

	AccrualYield   = "yield"
	AccrualRewards = "rewards"

	DEFAULT_VAULT_ADDRESS     = "vault"
	DEFAULT_HARVESTER_ADDRESS = "harvester"
)

type Bootstrap struct {
	Vault              VaultSection      `yaml:"vault"`
	Harvester          HarvesterSection  `yaml:"harvester"`
	Tokens             []types.Token     `yaml:"tokens"`
	Assets             []AssetSpec       `yaml:"assets"`
	Pools              []PoolSpec        `yaml:"pools"`
	Strategies         []StrategySpec    `yaml:"strategies"`
	ReserveStrategy    string            `yaml:"reserve_strategy"`
	ApprovedStrategies []string          `yaml:"approved_strategies"`
	Venues             []VenueSpec       `yaml:"venues"`
	RewardTokens       []RewardTokenSpec `yaml:"reward_tokens"`
	Prices             map[string]string `yaml:"prices"` // denom -> USD, used when no price API is configured
	Balances           []BalanceSpec     `yaml:"balances"`
	Deposits           []BalanceSpec     `yaml:"deposits"` // minted into the vault at startup, from Balances
	Accruals           []AccrualSpec     `yaml:"accruals"`
}

type VaultSection struct {
	Address string `yaml:"address"`
	// RedemptionPolicy is "proportional" (default) or "preferred:<denom>".
	RedemptionPolicy string             `yaml:"redemption_policy"`
	Parameters       ParameterOverrides `yaml:"parameters"`
}

// ParameterOverrides replace individual DefaultVaultParameters. Unset fields keep the default.
type ParameterOverrides struct {
	RedeemFeeBps      *uint16 `yaml:"redeem_fee_bps"`
	TrusteeFeeBps     *uint16 `yaml:"trustee_fee_bps"`
	Trustee           string  `yaml:"trustee"`
	DriftToleranceBps *uint16 `yaml:"drift_tolerance_bps"`
	VaultBufferBps    *uint16 `yaml:"vault_buffer_bps"`
	RebaseThreshold   string  `yaml:"rebase_threshold"`
	LossPolicy        string  `yaml:"loss_policy"`
}

type HarvesterSection struct {
	Address     string `yaml:"address"`
	TargetAsset string `yaml:"target_asset"`
}

type AssetSpec struct {
	Denom           string `yaml:"denom"`
	DefaultStrategy string `yaml:"default_strategy"`
}

type PoolSpec struct {
	Address string   `yaml:"address"`
	LPDenom string   `yaml:"lp_denom"`
	Denoms  []string `yaml:"denoms"`
	Depth   string   `yaml:"depth"`
}

type StrategySpec struct {
	Address        string   `yaml:"address"`
	Kind           string   `yaml:"kind"`
	Assets         []string `yaml:"assets"` // holding only; a pool strategy supports its pool's denoms
	RewardTokens   []string `yaml:"reward_tokens"`
	Pool           string   `yaml:"pool"`
	MaxSlippageBps uint16   `yaml:"max_slippage_bps"`
}

// SupportedAssets returns the denoms the strategy accepts.
func (s StrategySpec) SupportedAssets(b *Bootstrap) []string {
	if s.Kind == StrategyKindPool {
		if p, ok := b.pool(s.Pool); ok {
			return p.Denoms
		}
		return nil
	}
	return s.Assets
}

type VenueSpec struct {
	Name      string     `yaml:"name"`
	Address   string     `yaml:"address"`
	FeeBps    uint16     `yaml:"fee_bps"`
	Rates     []RateSpec `yaml:"rates"`
	Liquidity []CoinSpec `yaml:"liquidity"`
}

type RateSpec struct {
	In   string `yaml:"in"`
	Out  string `yaml:"out"`
	Rate string `yaml:"rate"`
}

type CoinSpec struct {
	Denom  string `yaml:"denom"`
	Amount string `yaml:"amount"`
}

type RewardTokenSpec struct {
	Token                 string `yaml:"token"`
	MaxSlippageBps        uint16 `yaml:"max_slippage_bps"`
	HarvesterIncentiveBps uint16 `yaml:"harvester_incentive_bps"`
	SwapVenue             string `yaml:"swap_venue"`
	LiquidationLimit      string `yaml:"liquidation_limit"` // empty or "0" means no cap
	Active                bool   `yaml:"active"`
}

type BalanceSpec struct {
	Account string `yaml:"account"`
	Denom   string `yaml:"denom"`
	Amount  string `yaml:"amount"`
}

// AccrualSpec is credited to a strategy before every keeper cycle.
type AccrualSpec struct {
	Strategy string `yaml:"strategy"`
	Kind     string `yaml:"kind"`
	Denom    string `yaml:"denom"`
	Amount   string `yaml:"amount"`
}

// LoadBootstrap reads, decodes and validates a bootstrap file.
func LoadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap file %s: %w", path, err)
	}
	b, err := ParseBootstrap(data)
	if err != nil {
		return nil, fmt.Errorf("bootstrap file %s: %w", path, err)
	}
	return b, nil
}

// ParseBootstrap decodes a bootstrap document. Unknown keys are rejected.
func ParseBootstrap(data []byte) (*Bootstrap, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var b Bootstrap
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}
	if b.Vault.Address == "" {
		b.Vault.Address = DEFAULT_VAULT_ADDRESS
	}
	if b.Harvester.Address == "" {
		b.Harvester.Address = DEFAULT_HARVESTER_ADDRESS
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks that every reference resolves and every amount parses.
func (b *Bootstrap) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{types.ErrInvalidConfig}, args...)...))
	}

	tokens := b.TokenRegistry()
	if len(tokens) != len(b.Tokens) {
		fail("duplicate token denoms")
	}
	for _, t := range b.Tokens {
		if err := sdk.ValidateDenom(t.Denom); err != nil {
			fail("token %q: %v", t.Denom, err)
		}
		if t.Decimals > utils.CommonDecimals {
			fail("token %s: %d decimals above %d", t.Denom, t.Decimals, utils.CommonDecimals)
		}
	}

	if len(b.Assets) == 0 {
		fail("no collateral assets")
	}
	assets := make(map[string]bool)
	for _, a := range b.Assets {
		if _, ok := tokens[a.Denom]; !ok {
			fail("asset %s is not a token", a.Denom)
		}
		if assets[a.Denom] {
			fail("asset %s listed twice", a.Denom)
		}
		assets[a.Denom] = true
	}

	pools := make(map[string]bool)
	for _, p := range b.Pools {
		if p.Address == "" || pools[p.Address] {
			fail("pool address %q empty or duplicate", p.Address)
		}
		pools[p.Address] = true
		if _, ok := tokens[p.LPDenom]; ok {
			fail("pool %s: lp denom %s collides with a token", p.Address, p.LPDenom)
		}
		if err := sdk.ValidateDenom(p.LPDenom); err != nil {
			fail("pool %s: lp denom: %v", p.Address, err)
		}
		if len(p.Denoms) == 0 {
			fail("pool %s has no denoms", p.Address)
		}
		for _, d := range p.Denoms {
			if _, ok := tokens[d]; !ok {
				fail("pool %s: %s is not a token", p.Address, d)
			}
		}
		if depth, err := b.CommonAmount(p.Depth); err != nil || !depth.IsPositive() {
			fail("pool %s: depth %q must be a positive amount", p.Address, p.Depth)
		}
	}

	strategies := make(map[string]StrategySpec)
	for _, s := range b.Strategies {
		if s.Address == "" {
			fail("strategy without address")
			continue
		}
		if _, dup := strategies[s.Address]; dup || s.Address == b.Vault.Address || s.Address == b.Harvester.Address {
			fail("strategy address %s is not unique", s.Address)
		}
		strategies[s.Address] = s
		switch s.Kind {
		case StrategyKindHolding:
			if len(s.Assets) == 0 {
				fail("strategy %s supports no assets", s.Address)
			}
			for _, d := range s.Assets {
				if _, ok := tokens[d]; !ok {
					fail("strategy %s: %s is not a token", s.Address, d)
				}
			}
		case StrategyKindPool:
			if !pools[s.Pool] {
				fail("strategy %s: unknown pool %q", s.Address, s.Pool)
			}
			if s.MaxSlippageBps > types.BasisPoints {
				fail("strategy %s: max slippage %d bps", s.Address, s.MaxSlippageBps)
			}
		default:
			fail("strategy %s: unknown kind %q", s.Address, s.Kind)
		}
		for _, r := range s.RewardTokens {
			if _, ok := tokens[r]; !ok {
				fail("strategy %s: reward token %s is not a token", s.Address, r)
			}
			if assets[r] {
				fail("strategy %s: reward token %s is a collateral asset", s.Address, r)
			}
		}
	}

	for _, a := range b.Assets {
		if a.DefaultStrategy == "" {
			continue
		}
		s, ok := strategies[a.DefaultStrategy]
		if !ok {
			fail("asset %s: unknown default strategy %s", a.Denom, a.DefaultStrategy)
			continue
		}
		if !contains(s.SupportedAssets(b), a.Denom) {
			fail("asset %s: default strategy %s does not support it", a.Denom, a.DefaultStrategy)
		}
	}
	if b.ReserveStrategy != "" {
		if _, ok := strategies[b.ReserveStrategy]; !ok {
			fail("unknown reserve strategy %s", b.ReserveStrategy)
		}
	}
	for _, addr := range b.ApprovedStrategies {
		if _, ok := strategies[addr]; !ok {
			fail("approved strategy %s is not configured", addr)
		}
	}

	if b.Harvester.TargetAsset != "" && !assets[b.Harvester.TargetAsset] {
		fail("harvester target %s is not a collateral asset", b.Harvester.TargetAsset)
	}

	venues := make(map[string]bool)
	for _, v := range b.Venues {
		if v.Name == "" || v.Address == "" || venues[v.Name] {
			fail("venue %q needs a unique name and an address", v.Name)
		}
		venues[v.Name] = true
		if v.FeeBps >= types.BasisPoints {
			fail("venue %s: fee %d bps", v.Name, v.FeeBps)
		}
		for _, r := range v.Rates {
			_, okIn := tokens[r.In]
			_, okOut := tokens[r.Out]
			if !okIn || !okOut {
				fail("venue %s: rate %s->%s references an unknown token", v.Name, r.In, r.Out)
			}
			if rate, err := sdkmath.LegacyNewDecFromStr(r.Rate); err != nil || !rate.IsPositive() {
				fail("venue %s: rate %s->%s %q must be positive", v.Name, r.In, r.Out, r.Rate)
			}
		}
		for _, c := range v.Liquidity {
			if _, err := b.Amount(c.Denom, c.Amount); err != nil {
				fail("venue %s liquidity: %v", v.Name, err)
			}
		}
	}

	if len(b.RewardTokens) > 0 && b.Harvester.TargetAsset == "" {
		fail("reward tokens configured without a harvester target asset")
	}
	seen := make(map[string]bool)
	for _, r := range b.RewardTokens {
		if seen[r.Token] {
			fail("reward token %s configured twice", r.Token)
		}
		seen[r.Token] = true
		if _, ok := tokens[r.Token]; !ok {
			fail("reward token %s is not a token", r.Token)
		}
		if !venues[r.SwapVenue] {
			fail("reward token %s: unknown venue %q", r.Token, r.SwapVenue)
		}
	}
	if _, err := b.RewardTokenConfigs(); err != nil {
		errs = append(errs, err)
	}
	if _, err := b.VaultParameters(); err != nil {
		errs = append(errs, err)
	}
	if _, err := b.StaticPrices(); err != nil {
		errs = append(errs, err)
	}
	if p := b.Vault.RedemptionPolicy; p != "" && p != "proportional" {
		denom, ok := strings.CutPrefix(p, "preferred:")
		if !ok || !assets[denom] {
			fail("unknown redemption policy %q", p)
		}
	}

	for _, bal := range b.Balances {
		if bal.Account == "" {
			fail("balance without account")
		}
		if _, err := b.Amount(bal.Denom, bal.Amount); err != nil {
			fail("balance of %s: %v", bal.Account, err)
		}
	}
	for _, d := range b.Deposits {
		if !assets[d.Denom] {
			fail("deposit of %s by %s: not a collateral asset", d.Denom, d.Account)
		}
		if amt, err := b.Amount(d.Denom, d.Amount); err != nil || !amt.IsPositive() {
			fail("deposit of %s by %s: amount %q must be positive", d.Denom, d.Account, d.Amount)
		}
	}
	for _, a := range b.Accruals {
		s, ok := strategies[a.Strategy]
		if !ok {
			fail("accrual for unknown strategy %s", a.Strategy)
			continue
		}
		switch a.Kind {
		case AccrualYield:
			if s.Kind != StrategyKindHolding || !contains(s.Assets, a.Denom) {
				fail("yield accrual for %s: %s is not held by a holding strategy", a.Strategy, a.Denom)
			}
		case AccrualRewards:
			if !contains(s.RewardTokens, a.Denom) {
				fail("reward accrual for %s: %s is not one of its reward tokens", a.Strategy, a.Denom)
			}
		default:
			fail("accrual for %s: unknown kind %q", a.Strategy, a.Kind)
		}
		if _, err := b.Amount(a.Denom, a.Amount); err != nil {
			fail("accrual for %s: %v", a.Strategy, err)
		}
	}

	return errors.Join(errs...)
}

// TokenRegistry returns the configured tokens by denom.
func (b *Bootstrap) TokenRegistry() types.TokenRegistry {
	r := make(types.TokenRegistry, len(b.Tokens))
	for _, t := range b.Tokens {
		r.Add(t)
	}
	return r
}

// Amount parses a human readable amount of denom into base units.
func (b *Bootstrap) Amount(denom, s string) (sdkmath.Int, error) {
	decimals, ok := b.TokenRegistry().Decimals(denom)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: unknown token %s", types.ErrInvalidConfig, denom)
	}
	return utils.ParseAmount(s, decimals)
}

// CommonAmount parses an amount in the vault's common unit.
func (b *Bootstrap) CommonAmount(s string) (sdkmath.Int, error) {
	return utils.ParseAmount(s, utils.CommonDecimals)
}

// VaultParameters applies the overrides to DefaultVaultParameters and validates the result.
func (b *Bootstrap) VaultParameters() (types.VaultParameters, error) {
	p := DefaultVaultParameters()
	o := b.Vault.Parameters
	if o.RedeemFeeBps != nil {
		p.RedeemFeeBps = *o.RedeemFeeBps
	}
	if o.TrusteeFeeBps != nil {
		p.TrusteeFeeBps = *o.TrusteeFeeBps
	}
	if o.DriftToleranceBps != nil {
		p.DriftToleranceBps = *o.DriftToleranceBps
	}
	if o.VaultBufferBps != nil {
		p.VaultBufferBps = *o.VaultBufferBps
	}
	p.Trustee = o.Trustee
	if p.Trustee == "" {
		p.TrusteeFeeBps = 0
	}
	if o.RebaseThreshold != "" {
		threshold, err := b.CommonAmount(o.RebaseThreshold)
		if err != nil {
			return p, fmt.Errorf("%w: rebase threshold: %w", types.ErrInvalidConfig, err)
		}
		p.RebaseThreshold = threshold
	}
	if o.LossPolicy != "" {
		p.LossPolicy = types.LossPolicy(o.LossPolicy)
	}
	return p, p.Validate()
}

// RewardTokenConfigs converts the reward token section into harvester configs.
func (b *Bootstrap) RewardTokenConfigs() ([]types.RewardTokenConfig, error) {
	out := make([]types.RewardTokenConfig, 0, len(b.RewardTokens))
	for _, r := range b.RewardTokens {
		limit := sdkmath.ZeroInt()
		if r.LiquidationLimit != "" {
			var err error
			if limit, err = b.Amount(r.Token, r.LiquidationLimit); err != nil {
				return nil, fmt.Errorf("%w: reward token %s limit: %w", types.ErrInvalidConfig, r.Token, err)
			}
		}
		cfg := types.RewardTokenConfig{
			Token:                 r.Token,
			MaxSlippageBps:        r.MaxSlippageBps,
			HarvesterIncentiveBps: r.HarvesterIncentiveBps,
			SwapVenue:             r.SwapVenue,
			LiquidationLimit:      limit,
			Active:                r.Active,
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("reward token %s: %w", r.Token, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// StaticPrices parses the prices section.
func (b *Bootstrap) StaticPrices() (map[string]sdkmath.LegacyDec, error) {
	out := make(map[string]sdkmath.LegacyDec, len(b.Prices))
	for denom, s := range b.Prices {
		price, err := sdkmath.LegacyNewDecFromStr(s)
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("%w: price of %s %q must be positive", types.ErrInvalidConfig, denom, s)
		}
		out[denom] = price
	}
	return out, nil
}

func (b *Bootstrap) pool(addr string) (PoolSpec, bool) {
	for _, p := range b.Pools {
		if p.Address == addr {
			return p, true
		}
	}
	return PoolSpec{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
