package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/config"
	"github.com/elys-network/stablevault/internal/events"
	"github.com/elys-network/stablevault/internal/harvester"
	"github.com/elys-network/stablevault/internal/ledger"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/metrics"
	"github.com/elys-network/stablevault/internal/state"
	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/swap"
	"github.com/elys-network/stablevault/internal/token"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/vault"
)

type wiringOptions struct {
	Governor string
	// PriceAPIURL switches the harvester floor from the bootstrap prices to the live price API.
	PriceAPIURL string
	PriceAPIKey string
	// PublicHarvestPerMinute bounds public harvest calls, zero means unlimited.
	PublicHarvestPerMinute float64
	// Persist routes events and reward token configs to the database.
	Persist bool
	// ProcessMetrics adds the Go runtime and process collectors to the registry.
	ProcessMetrics bool
	Now            func() time.Time
}

type rewardAccruer interface {
	AccrueRewards(coins ...sdk.Coin) error
}

// app is the in-process deployment described by a bootstrap file.
type app struct {
	bank       *bank.Bank
	tokens     types.TokenRegistry
	vault      *vault.Vault
	harvester  *harvester.Harvester // nil without a target asset
	indicators *metrics.Indicators
	registry   *prometheus.Registry

	holdings  map[string]*strategy.Holding
	accruers  map[string]rewardAccruer
	accruals  []config.AccrualSpec
	bootstrap *config.Bootstrap
}

func buildApp(ctx context.Context, b *config.Bootstrap, opts wiringOptions) (*app, error) {
	log := logger.GetForComponent("wiring")
	if opts.Governor == "" {
		return nil, fmt.Errorf("%w: governor address is required", types.ErrInvalidConfig)
	}

	a := &app{
		bank:      bank.New(),
		tokens:    b.TokenRegistry(),
		registry:  prometheus.NewRegistry(),
		holdings:  make(map[string]*strategy.Holding),
		accruers:  make(map[string]rewardAccruer),
		accruals:  b.Accruals,
		bootstrap: b,
	}
	if opts.ProcessMetrics {
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.indicators = metrics.New(a.registry, a.tokens)

	emitter := events.Multi{events.NewLogEmitter(), a.indicators}
	if opts.Persist {
		emitter = append(emitter, state.EventLog{})
	}
	authz := auth.NewStatic(opts.Governor, b.ApprovedStrategies...)

	params, err := b.VaultParameters()
	if err != nil {
		return nil, err
	}
	v, err := vault.New(vault.Config{
		Address:    b.Vault.Address,
		Bank:       a.bank,
		Token:      token.New(),
		Ledger:     ledger.New(),
		Auth:       authz,
		Emitter:    emitter,
		Parameters: params,
		Policy:     redemptionPolicy(b.Vault.RedemptionPolicy),
		Now:        opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vault: %w", err)
	}
	a.vault = v

	if err := a.addStrategies(ctx, b, opts.Governor); err != nil {
		return nil, err
	}
	if err := a.buildHarvester(ctx, b, opts, authz, emitter); err != nil {
		return nil, err
	}

	for _, bal := range b.Balances {
		amt, err := b.Amount(bal.Denom, bal.Amount)
		if err != nil {
			return nil, err
		}
		if err := a.bank.Mint(bal.Account, sdk.NewCoin(bal.Denom, amt)); err != nil {
			return nil, fmt.Errorf("balance of %s: %w", bal.Account, err)
		}
	}
	for _, d := range b.Deposits {
		amt, err := b.Amount(d.Denom, d.Amount)
		if err != nil {
			return nil, err
		}
		shares, err := a.vault.Mint(ctx, d.Account, sdk.NewCoin(d.Denom, amt), sdkmath.ZeroInt())
		if err != nil {
			return nil, fmt.Errorf("deposit of %s by %s: %w", d.Denom, d.Account, err)
		}
		log.Info().Str("account", d.Account).Str("deposit", d.Amount+d.Denom).Str("shares", shares.String()).Msg("Bootstrap deposit minted")
	}

	log.Info().
		Int("strategies", len(b.Strategies)).
		Int("venues", len(b.Venues)).
		Bool("harvester", a.harvester != nil).
		Bool("persist", opts.Persist).
		Msg("Vault deployment built")
	return a, nil
}

func redemptionPolicy(name string) vault.RedemptionPolicy {
	if denom, ok := strings.CutPrefix(name, "preferred:"); ok {
		return vault.PreferredAssetPolicy{Denom: denom}
	}
	return vault.ProportionalPolicy{}
}

func (a *app) addStrategies(ctx context.Context, b *config.Bootstrap, governor string) error {
	for _, asset := range b.Assets {
		decimals, _ := a.tokens.Decimals(asset.Denom)
		if err := a.vault.SupportAsset(ctx, governor, asset.Denom, decimals); err != nil {
			return fmt.Errorf("support asset %s: %w", asset.Denom, err)
		}
	}

	pools := make(map[string]*strategy.StablePool, len(b.Pools))
	for _, p := range b.Pools {
		depth, err := b.CommonAmount(p.Depth)
		if err != nil {
			return err
		}
		pool, err := strategy.NewStablePool(p.Address, p.LPDenom, a.bank, a.tokens, p.Denoms, depth)
		if err != nil {
			return fmt.Errorf("pool %s: %w", p.Address, err)
		}
		pools[p.Address] = pool
	}

	for _, s := range b.Strategies {
		var strat strategy.Strategy
		switch s.Kind {
		case config.StrategyKindHolding:
			h, err := strategy.NewHolding(s.Address, a.vault.Address(), a.bank, s.Assets, s.RewardTokens)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", s.Address, err)
			}
			a.holdings[s.Address] = h
			a.accruers[s.Address] = h
			strat = h
		case config.StrategyKindPool:
			p, err := strategy.NewPool(s.Address, a.vault.Address(), a.bank, pools[s.Pool], a.tokens, s.MaxSlippageBps, s.RewardTokens)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", s.Address, err)
			}
			a.accruers[s.Address] = p
			strat = p
		default:
			return fmt.Errorf("%w: strategy %s kind %q", types.ErrInvalidConfig, s.Address, s.Kind)
		}
		if err := a.vault.AddStrategy(ctx, governor, strat); err != nil {
			return fmt.Errorf("add strategy %s: %w", s.Address, err)
		}
	}

	for _, asset := range b.Assets {
		if asset.DefaultStrategy == "" {
			continue
		}
		if err := a.vault.SetDefaultStrategy(ctx, governor, asset.Denom, asset.DefaultStrategy); err != nil {
			return fmt.Errorf("default strategy for %s: %w", asset.Denom, err)
		}
	}
	if b.ReserveStrategy != "" {
		if err := a.vault.SetReserveStrategy(ctx, governor, b.ReserveStrategy); err != nil {
			return fmt.Errorf("reserve strategy: %w", err)
		}
	}
	return nil
}

func (a *app) buildHarvester(ctx context.Context, b *config.Bootstrap, opts wiringOptions, authz auth.Authorizer, emitter events.Emitter) error {
	if b.Harvester.TargetAsset == "" {
		return nil
	}

	var oracle swap.PriceOracle
	if opts.PriceAPIURL != "" {
		denoms := make([]string, 0, len(b.Tokens))
		for _, t := range b.Tokens {
			denoms = append(denoms, t.Denom)
		}
		oracle = swap.NewCryptoCompareOracle(opts.PriceAPIURL, opts.PriceAPIKey, config.PriceIDs(denoms))
	} else if len(b.Prices) > 0 {
		prices, err := b.StaticPrices()
		if err != nil {
			return err
		}
		oracle = swap.NewStaticOracle(prices)
	}
	converter := swap.NewConverter(a.tokens, oracle)

	for _, vs := range b.Venues {
		venue := swap.NewFixedRateVenue(vs.Name, vs.Address, a.bank, a.tokens, vs.FeeBps)
		for _, r := range vs.Rates {
			if err := venue.SetRate(r.In, r.Out, sdkmath.LegacyMustNewDecFromStr(r.Rate)); err != nil {
				return fmt.Errorf("venue %s: %w", vs.Name, err)
			}
		}
		for _, c := range vs.Liquidity {
			amt, err := b.Amount(c.Denom, c.Amount)
			if err != nil {
				return err
			}
			if err := a.bank.Mint(vs.Address, sdk.NewCoin(c.Denom, amt)); err != nil {
				return fmt.Errorf("venue %s liquidity: %w", vs.Name, err)
			}
		}
		if err := converter.RegisterVenue(venue); err != nil {
			return err
		}
	}

	cfg := harvester.Config{
		Address:     b.Harvester.Address,
		Vault:       a.vault,
		Bank:        a.bank,
		Converter:   converter,
		Auth:        authz,
		Emitter:     emitter,
		TargetAsset: b.Harvester.TargetAsset,
		PublicRate:  rate.Inf,
		PublicBurst: 1,
	}
	if opts.PublicHarvestPerMinute > 0 {
		cfg.PublicRate = rate.Limit(opts.PublicHarvestPerMinute / 60)
	}
	if opts.Persist {
		cfg.Store = state.RewardConfigStore{}
	}
	h, err := harvester.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create harvester: %w", err)
	}

	stored := make(map[string]bool)
	if opts.Persist {
		cfgs, err := state.LoadRewardTokenConfigs(ctx)
		if err != nil {
			return err
		}
		if err := h.Restore(cfgs); err != nil {
			return fmt.Errorf("restore reward token configs: %w", err)
		}
		for _, c := range cfgs {
			stored[c.Token] = true
		}
	}
	bootstrapCfgs, err := b.RewardTokenConfigs()
	if err != nil {
		return err
	}
	for _, c := range bootstrapCfgs {
		if stored[c.Token] {
			continue
		}
		if err := h.SetRewardTokenConfig(ctx, opts.Governor, c); err != nil {
			return err
		}
	}

	a.harvester = h
	return nil
}

// accrue credits the configured per-cycle yield and rewards. It runs before each keeper cycle.
func (a *app) accrue(_ context.Context) error {
	for _, acc := range a.accruals {
		amt, err := a.bootstrap.Amount(acc.Denom, acc.Amount)
		if err != nil {
			return err
		}
		coin := sdk.NewCoin(acc.Denom, amt)
		switch acc.Kind {
		case config.AccrualYield:
			h, ok := a.holdings[acc.Strategy]
			if !ok {
				return fmt.Errorf("%w: %s", types.ErrUnknownStrategy, acc.Strategy)
			}
			err = h.AccrueYield(coin)
		case config.AccrualRewards:
			s, ok := a.accruers[acc.Strategy]
			if !ok {
				return fmt.Errorf("%w: %s", types.ErrUnknownStrategy, acc.Strategy)
			}
			err = s.AccrueRewards(coin)
		}
		if err != nil {
			return fmt.Errorf("accrue %s to %s: %w", coin, acc.Strategy, err)
		}
	}
	return nil
}
