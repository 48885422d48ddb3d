package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/auth"
	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/events"
	"github.com/elys-network/stablevault/internal/guard"
	"github.com/elys-network/stablevault/internal/ledger"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/strategy"
	"github.com/elys-network/stablevault/internal/token"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

// Vault mints and redeems the receipt token against multi-asset collateral, routes deposits to
// strategies through the AllocationLedger and distributes yield by rebasing.
type Vault struct {
	addr    string
	bank    *bank.Bank
	token   *token.Token
	ledger  *ledger.Ledger
	auth    auth.Authorizer
	emitter events.Emitter
	guard   *guard.Guard
	now     func() time.Time
	logger  zerolog.Logger

	mu     sync.RWMutex
	params types.VaultParameters
	policy RedemptionPolicy
	rebase types.RebaseState
}

// Config holds the dependencies for creating a Vault.
type Config struct {
	Address    string
	Bank       *bank.Bank
	Token      *token.Token
	Ledger     *ledger.Ledger
	Auth       auth.Authorizer
	Emitter    events.Emitter
	Parameters types.VaultParameters
	Policy     RedemptionPolicy
	Now        func() time.Time
}

func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}
	v := &Vault{
		addr:    cfg.Address,
		bank:    cfg.Bank,
		token:   cfg.Token,
		ledger:  cfg.Ledger,
		auth:    cfg.Auth,
		emitter: cfg.Emitter,
		guard:   guard.New(),
		now:     cfg.Now,
		logger:  logger.GetForComponent("vault").With().Str("vault", cfg.Address).Logger(),
		params:  cfg.Parameters,
		policy:  cfg.Policy,
		rebase:  types.RebaseState{Shortfall: sdkmath.ZeroInt(), LastValue: sdkmath.ZeroInt()},
	}
	if v.token == nil {
		v.token = token.New()
	}
	if v.ledger == nil {
		v.ledger = ledger.New()
	}
	if v.emitter == nil {
		v.emitter = events.Discard{}
	}
	if v.policy == nil {
		v.policy = ProportionalPolicy{}
	}
	if v.now == nil {
		v.now = time.Now
	}

	v.logger.Info().
		Str("policy", v.policy.Name()).
		Str("lossPolicy", string(v.params.LossPolicy)).
		Msg("Vault created")
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Address == "" {
		return fmt.Errorf("%w: vault address cannot be empty", types.ErrInvalidConfig)
	}
	if cfg.Bank == nil {
		return fmt.Errorf("%w: bank cannot be nil", types.ErrInvalidConfig)
	}
	if cfg.Auth == nil {
		return fmt.Errorf("%w: authorizer cannot be nil", types.ErrInvalidConfig)
	}
	return cfg.Parameters.Validate()
}

func (v *Vault) Address() string          { return v.addr }
func (v *Vault) TotalSupply() sdkmath.Int { return v.token.TotalSupply() }
func (v *Vault) SupplyIndex() sdkmath.Int { return v.token.Index() }
func (v *Vault) Assets() []types.Asset    { return v.ledger.Assets() }
func (v *Vault) ReserveStrategy() string  { return v.ledger.ReserveAddress() }

func (v *Vault) IsSupportedAsset(denom string) bool {
	return v.ledger.IsSupportedAsset(denom)
}

func (v *Vault) BalanceOf(account string) sdkmath.Int {
	return v.token.BalanceOf(account)
}

func (v *Vault) Strategies() []strategy.Strategy {
	return v.ledger.Strategies()
}

func (v *Vault) Strategy(addr string) (strategy.Strategy, bool) {
	return v.ledger.Strategy(addr)
}

func (v *Vault) StrategyAddresses() []string {
	ss := v.ledger.Strategies()
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Address())
	}
	return out
}

func (v *Vault) Parameters() types.VaultParameters {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.params
}

func (v *Vault) RebaseState() types.RebaseState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rebase
}

func (v *Vault) redemptionPolicy() RedemptionPolicy {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.policy
}

// TotalValue sums idle vault balances and every strategy's reported balance in common units.
func (v *Vault) TotalValue(ctx context.Context) (sdkmath.Int, error) {
	_, total, err := v.holdings(ctx)
	return total, err
}

// Collateral reports holdings per asset.
func (v *Vault) Collateral(ctx context.Context) ([]types.AssetCollateral, error) {
	out, _, err := v.holdings(ctx)
	return out, err
}

func (v *Vault) holdings(ctx context.Context) ([]types.AssetCollateral, sdkmath.Int, error) {
	assets := v.ledger.Assets()
	strategies := v.ledger.Strategies()
	out := make([]types.AssetCollateral, 0, len(assets))
	total := sdkmath.ZeroInt()

	for _, a := range assets {
		c := types.AssetCollateral{
			Denom:      a.Denom,
			Idle:       v.bank.Balance(v.addr, a.Denom),
			Strategies: make(map[string]sdkmath.Int),
			Deposited:  v.ledger.Deposited(a.Denom),
		}
		c.Total = c.Idle
		for _, s := range strategies {
			if !s.SupportsAsset(a.Denom) {
				continue
			}
			bal, err := s.CheckBalance(ctx, a.Denom)
			if err != nil {
				return nil, sdkmath.ZeroInt(), fmt.Errorf("check balance of %s in %s: %w", a.Denom, s.Address(), err)
			}
			c.Strategies[s.Address()] = bal
			c.Total = c.Total.Add(bal)
		}
		c.Value = utils.ToCommonUnits(c.Total, a.Decimals)
		total = total.Add(c.Value)
		out = append(out, c)
	}
	return out, total, nil
}
