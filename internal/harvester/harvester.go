package harvester

import (
	"context"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/events"
	"github.com/elys-network/stablevault/internal/guard"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/swap"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// Registry is the part of the vault the harvester works against.
type Registry interface {
	Address() string
	Strategies() []strategy.Strategy
	Strategy(addr string) (strategy.Strategy, bool)
	IsSupportedAsset(denom string) bool
}

// ConfigStore persists reward token configs before they take effect.
type ConfigStore interface {
	SaveRewardTokenConfig(ctx context.Context, cfg types.RewardTokenConfig) error
}

// Config holds the dependencies for creating a Harvester.
type Config struct {
	Address     string
	Vault       Registry
	Bank        *bank.Bank
	Converter   *swap.Converter
	Auth        auth.Authorizer
	Emitter     events.Emitter
	Store       ConfigStore
	TargetAsset string

	// PublicRate bounds public harvest-and-swap calls. Zero means unlimited.
	PublicRate  rate.Limit
	PublicBurst int
}

// Harvester pulls reward tokens out of strategies and converts them into the vault's target asset.
type Harvester struct {
	addr      string
	target    string
	vault     Registry
	bank      *bank.Bank
	converter *swap.Converter
	auth      auth.Authorizer
	emitter   events.Emitter
	store     ConfigStore
	guard     *guard.Guard
	limiter   *rate.Limiter
	logger    zerolog.Logger

	mu      sync.RWMutex
	configs map[string]types.RewardTokenConfig
}

// Result reports one harvest-and-swap call.
type Result struct {
	Collected sdk.Coins                  `json:"collected"`
	Swaps     []types.RewardTokenSwapped `json:"swaps"`
}

func New(cfg Config) (*Harvester, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("harvester configuration validation failed: %w", err)
	}
	limit, burst := cfg.PublicRate, cfg.PublicBurst
	if limit == 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	h := &Harvester{
		addr:      cfg.Address,
		target:    cfg.TargetAsset,
		vault:     cfg.Vault,
		bank:      cfg.Bank,
		converter: cfg.Converter,
		auth:      cfg.Auth,
		emitter:   cfg.Emitter,
		store:     cfg.Store,
		guard:     guard.New(),
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger.GetForComponent("harvester"),
		configs:   make(map[string]types.RewardTokenConfig),
	}
	if h.emitter == nil {
		h.emitter = events.Discard{}
	}
	h.logger.Info().
		Str("address", h.addr).
		Str("target", h.target).
		Float64("publicRate", float64(limit)).
		Msg("Harvester created")
	return h, nil
}

func validateConfig(cfg Config) error {
	if cfg.Address == "" {
		return fmt.Errorf("%w: harvester address cannot be empty", types.ErrInvalidConfig)
	}
	if cfg.Vault == nil {
		return fmt.Errorf("%w: vault cannot be nil", types.ErrInvalidConfig)
	}
	if cfg.Bank == nil {
		return fmt.Errorf("%w: bank cannot be nil", types.ErrInvalidConfig)
	}
	if cfg.Converter == nil {
		return fmt.Errorf("%w: converter cannot be nil", types.ErrInvalidConfig)
	}
	if cfg.Auth == nil {
		return fmt.Errorf("%w: authorizer cannot be nil", types.ErrInvalidConfig)
	}
	if err := sdk.ValidateDenom(cfg.TargetAsset); err != nil {
		return fmt.Errorf("%w: target asset %q: %w", types.ErrInvalidConfig, cfg.TargetAsset, err)
	}
	if cfg.PublicRate < 0 {
		return fmt.Errorf("%w: negative public rate", types.ErrInvalidConfig)
	}
	return nil
}

func (h *Harvester) Address() string     { return h.addr }
func (h *Harvester) TargetAsset() string { return h.target }

// Harvest collects reward tokens from addr, or from every registered strategy when addr is empty,
// into the harvester's own holding.
func (h *Harvester) Harvest(ctx context.Context, caller, addr string) (sdk.Coins, error) {
	ctx, release, err := h.guard.Enter(ctx)
	defer release()
	if err != nil {
		return nil, err
	}
	if err := auth.RequireGovernor(h.auth, caller); err != nil {
		return nil, err
	}
	targets, err := h.strategies(addr)
	if err != nil {
		return nil, err
	}
	return h.collect(ctx, targets)
}

// HarvestAndSwap harvests, then converts every active reward token held into the target asset.
//
// With an empty addr it harvests all strategies, is governor-only and sends all proceeds to the vault.
// Naming a strategy makes the call public and rate limited, and pays the caller each token's
// harvester incentive. The governor is not rate limited. Every leg is quoted against its slippage
// floor and checked against venue liquidity before the first swap, so a failed check aborts the
// call with the collected rewards left in the harvester.
func (h *Harvester) HarvestAndSwap(ctx context.Context, caller, addr string) (Result, error) {
	ctx, release, err := h.guard.Enter(ctx)
	defer release()
	if err != nil {
		return Result{}, err
	}

	if addr == "" {
		if err := auth.RequireGovernor(h.auth, caller); err != nil {
			return Result{}, err
		}
		return h.harvestAndSwap(ctx, caller, addr, "", h.vault.Strategies())
	}
	targets, err := h.strategies(addr)
	if err != nil {
		return Result{}, err
	}
	if !h.auth.IsGovernor(caller) && !h.limiter.Allow() {
		return Result{}, fmt.Errorf("%w: harvest of %s by %s", types.ErrRateLimited, addr, caller)
	}
	return h.harvestAndSwap(ctx, caller, addr, caller, targets)
}

// PublicHarvestAndSwap is the unauthenticated form of HarvestAndSwap for a single strategy. The
// rewardee only names where incentives go, so every call draws from the public rate limit.
func (h *Harvester) PublicHarvestAndSwap(ctx context.Context, rewardee, addr string) (Result, error) {
	ctx, release, err := h.guard.Enter(ctx)
	defer release()
	if err != nil {
		return Result{}, err
	}
	if addr == "" || rewardee == "" {
		return Result{}, fmt.Errorf("%w: public harvest needs a strategy and a rewardee", types.ErrInvalidConfig)
	}
	targets, err := h.strategies(addr)
	if err != nil {
		return Result{}, err
	}
	if !h.limiter.Allow() {
		return Result{}, fmt.Errorf("%w: harvest of %s for %s", types.ErrRateLimited, addr, rewardee)
	}
	return h.harvestAndSwap(ctx, rewardee, addr, rewardee, targets)
}

func (h *Harvester) harvestAndSwap(ctx context.Context, caller, addr, rewardee string, targets []strategy.Strategy) (Result, error) {
	if !h.vault.IsSupportedAsset(h.target) {
		return Result{}, fmt.Errorf("%w: target %s", types.ErrUnsupportedAsset, h.target)
	}

	collected, err := h.collect(ctx, targets)
	if err != nil {
		return Result{}, err
	}
	res := Result{Collected: collected}

	legs, cfgs, err := h.plan(ctx)
	if err != nil {
		return res, err
	}
	for i, leg := range legs {
		swapped, err := h.execute(ctx, leg, cfgs[i], rewardee)
		if err != nil {
			h.logger.Error().Err(err).Str("token", leg.AmountIn.Denom).Str("venue", leg.Venue).Msg("Reward swap failed")
			return res, err
		}
		res.Swaps = append(res.Swaps, swapped)
	}

	h.logger.Info().
		Str("caller", caller).
		Str("strategy", addr).
		Str("collected", collected.String()).
		Int("swaps", len(res.Swaps)).
		Msg("Harvest and swap complete")
	return res, nil
}

func (h *Harvester) strategies(addr string) ([]strategy.Strategy, error) {
	if addr == "" {
		return h.vault.Strategies(), nil
	}
	s, ok := h.vault.Strategy(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownStrategy, addr)
	}
	return []strategy.Strategy{s}, nil
}

func (h *Harvester) collect(ctx context.Context, targets []strategy.Strategy) (sdk.Coins, error) {
	total := sdk.NewCoins()
	for _, s := range targets {
		coins, err := s.CollectRewardTokens(ctx, h.addr)
		if err != nil {
			h.logger.Warn().Err(err).Str("strategy", s.Address()).Msg("Reward collection failed")
			return total, err
		}
		if coins.IsZero() {
			continue
		}
		total = total.Add(coins...)
		h.emitter.Emit(ctx, types.RewardTokensCollected{Strategy: s.Address(), Amounts: coins})
		h.logger.Info().Str("strategy", s.Address()).Str("amounts", coins.String()).Msg("Reward tokens collected")
	}
	return total, nil
}

// plan quotes every active token held, in token order, and checks the venues can pay for all of them.
func (h *Harvester) plan(ctx context.Context) ([]swap.Leg, []types.RewardTokenConfig, error) {
	var (
		legs []swap.Leg
		cfgs []types.RewardTokenConfig
	)
	for _, cfg := range h.RewardTokenConfigs() {
		leg, ok, err := h.converter.Plan(ctx, cfg, h.bank.Balance(h.addr, cfg.Token), h.target)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		legs = append(legs, leg)
		cfgs = append(cfgs, cfg)
	}
	if err := h.converter.CheckLiquidity(ctx, legs); err != nil {
		return nil, nil, err
	}
	return legs, cfgs, nil
}

func (h *Harvester) execute(ctx context.Context, leg swap.Leg, cfg types.RewardTokenConfig, rewardee string) (types.RewardTokenSwapped, error) {
	out, err := h.converter.Execute(ctx, h.addr, leg)
	if err != nil {
		return types.RewardTokenSwapped{}, err
	}
	incentive := sdkmath.ZeroInt()
	if rewardee != "" {
		incentive = utils.MulBps(out, cfg.HarvesterIncentiveBps)
	}
	toVault := out.Sub(incentive)

	if toVault.IsPositive() {
		if err := h.bank.Send(h.addr, h.vault.Address(), sdk.NewCoin(h.target, toVault)); err != nil {
			return types.RewardTokenSwapped{}, err
		}
	}
	if incentive.IsPositive() {
		if err := h.bank.Send(h.addr, rewardee, sdk.NewCoin(h.target, incentive)); err != nil {
			return types.RewardTokenSwapped{}, err
		}
	}

	ev := types.RewardTokenSwapped{
		Token:      cfg.Token,
		AmountIn:   leg.AmountIn,
		AmountOut:  sdk.NewCoin(h.target, out),
		Incentive:  sdk.NewCoin(h.target, incentive),
		Rewardee:   rewardee,
		Venue:      leg.Venue,
		VaultShare: sdk.NewCoin(h.target, toVault),
	}
	h.emitter.Emit(ctx, ev)
	return ev, nil
}
