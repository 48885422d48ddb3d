package keeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/harvester"
	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
	"github.com/elys-network/stablevault/internal/vault"
)

// Cycle statuses. A degraded cycle still produced a trustworthy index.
const (
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
	StatusFailed    = "failed"
)

// VaultOps is the part of the vault a keeper cycle drives.
type VaultOps interface {
	vault.Manager
	Allocate(ctx context.Context, caller string) ([]types.Allocated, error)
	Rebase(ctx context.Context) (vault.RebaseResult, error)
}

// HarvestOps converts strategy rewards into vault collateral.
type HarvestOps interface {
	HarvestAndSwap(ctx context.Context, caller, strategy string) (harvester.Result, error)
}

// CycleStore numbers and records cycles.
type CycleStore interface {
	NextCycleNumber(ctx context.Context) (int, error)
	SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error)
}

// Observer receives the outcome of each cycle.
type Observer interface {
	ObserveCycle(status string, took time.Duration)
	ObserveVault(supply, value, index sdkmath.Int, impaired bool)
}

// Keeper runs the periodic harvest, allocate and rebase cycle on behalf of the governor.
type Keeper struct {
	logger    zerolog.Logger
	vault     VaultOps
	harvester HarvestOps
	operator  string
	store     CycleStore
	observer  Observer
	before    func(ctx context.Context) error
	now       func() time.Time

	// Runtime state
	cycleCount int
}

// Config holds the configuration for creating a new Keeper.
type Config struct {
	Vault     VaultOps
	Harvester HarvestOps // optional; cycles skip the harvest step without one
	// Operator is the address governed steps are issued from.
	Operator string
	Store    CycleStore // optional
	Observer Observer   // optional
	// BeforeCycle runs first in every cycle. Simulations use it to accrue yield.
	BeforeCycle func(ctx context.Context) error
	Now         func() time.Time
}

// NewKeeper creates a keeper.
func NewKeeper(cfg Config) (*Keeper, error) {
	if err := validateKeeperConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	k := &Keeper{
		logger:    logger.GetForComponent("keeper"),
		vault:     cfg.Vault,
		harvester: cfg.Harvester,
		operator:  cfg.Operator,
		store:     cfg.Store,
		observer:  cfg.Observer,
		before:    cfg.BeforeCycle,
		now:       now,
	}

	k.logger.Info().
		Str("vault", cfg.Vault.Address()).
		Str("operator", cfg.Operator).
		Bool("harvesting", cfg.Harvester != nil).
		Bool("persisting", cfg.Store != nil).
		Msg("Keeper created")
	return k, nil
}

func validateKeeperConfig(cfg Config) error {
	if cfg.Vault == nil {
		return fmt.Errorf("vault cannot be nil")
	}
	if cfg.Operator == "" {
		return fmt.Errorf("operator address cannot be empty")
	}
	return nil
}

// RunLoop runs a cycle immediately and then once per interval until ctx is done.
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	k.logger.Info().Dur("interval", interval).Msg("Starting keeper loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	k.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.RunCycle(ctx)
		}
	}
}

// RunCycle harvests rewards, allocates idle collateral, rebases and records the result.
// A failing harvest or allocation degrades the cycle but does not stop it.
func (k *Keeper) RunCycle(ctx context.Context) types.CycleSnapshot {
	start := k.now()
	k.cycleCount++

	cycleID := uuid.New().String()
	cycleLogger := k.logger.With().Str("cycle_id", cycleID).Logger()
	cycleLogger.Info().Msg("--- Starting keeper cycle ---")

	snap := types.CycleSnapshot{
		CycleID:        cycleID,
		CycleNumber:    k.getCycleNumber(ctx),
		Timestamp:      start.UTC(),
		TotalSupply:    sdkmath.ZeroInt(),
		TotalValue:     sdkmath.ZeroInt(),
		SupplyIndex:    sdkmath.ZeroInt(),
		HarvestedValue: sdkmath.ZeroInt(),
	}
	var degraded, failed []error

	if k.before != nil {
		if err := k.before(ctx); err != nil {
			cycleLogger.Warn().Err(err).Msg("Pre-cycle hook failed")
			degraded = append(degraded, fmt.Errorf("before cycle: %w", err))
		}
	}

	if k.harvester != nil {
		cycleLogger.Info().Msg("Step 1: Harvesting and swapping rewards...")
		res, err := k.harvester.HarvestAndSwap(ctx, k.operator, "")
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Harvest failed, rewards stay with the harvester")
			degraded = append(degraded, fmt.Errorf("harvest: %w", err))
		} else {
			snap.HarvestedValue = k.harvestedValue(res)
			cycleLogger.Info().
				Str("collected", res.Collected.String()).
				Int("swaps", len(res.Swaps)).
				Str("harvestedValue", snap.HarvestedValue.String()).
				Msg("Step 1: Harvest complete.")
		}
	}

	cycleLogger.Info().Msg("Step 2: Allocating idle collateral...")
	allocated, err := k.vault.Allocate(ctx, k.operator)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Allocation failed")
		degraded = append(degraded, fmt.Errorf("allocate: %w", err))
	} else {
		cycleLogger.Info().Int("deposits", len(allocated)).Msg("Step 2: Allocation complete.")
	}

	cycleLogger.Info().Msg("Step 3: Rebasing...")
	rebased, err := k.vault.Rebase(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Rebase failed")
		failed = append(failed, fmt.Errorf("rebase: %w", err))
	} else {
		cycleLogger.Info().
			Str("action", string(rebased.Action)).
			Str("oldSupply", rebased.OldSupply.String()).
			Str("newSupply", rebased.NewSupply.String()).
			Msg("Step 3: Rebase complete.")
	}

	cycleLogger.Info().Msg("Step 4: Capturing final state...")
	snap.TotalSupply = k.vault.TotalSupply()
	snap.SupplyIndex = k.vault.SupplyIndex()
	snap.Impaired = k.vault.RebaseState().Impaired
	if snap.Collateral, err = k.vault.Collateral(ctx); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to read collateral")
		failed = append(failed, fmt.Errorf("collateral: %w", err))
	}
	if snap.TotalValue, err = k.vault.TotalValue(ctx); err != nil {
		snap.TotalValue = sdkmath.ZeroInt()
		cycleLogger.Error().Err(err).Msg("Failed to read total value")
		failed = append(failed, fmt.Errorf("total value: %w", err))
	}

	switch {
	case len(failed) > 0:
		snap.Status = StatusFailed
	case len(degraded) > 0:
		snap.Status = StatusDegraded
	default:
		snap.Status = StatusCompleted
	}
	if errs := append(failed, degraded...); len(errs) > 0 {
		snap.Error = joinErrors(errs)
	}

	if k.store != nil {
		if _, err := k.store.SaveCycleSnapshot(ctx, snap); err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot")
		}
	}

	took := k.now().Sub(start)
	if k.observer != nil {
		k.observer.ObserveCycle(snap.Status, took)
		k.observer.ObserveVault(snap.TotalSupply, snap.TotalValue, snap.SupplyIndex, snap.Impaired)
	}

	cycleLogger.Info().
		Int("cycleNumber", snap.CycleNumber).
		Str("status", snap.Status).
		Str("totalSupply", snap.TotalSupply.String()).
		Str("totalValue", snap.TotalValue.String()).
		Bool("impaired", snap.Impaired).
		Str("cycleDuration", took.String()).
		Msg("--- Keeper cycle finished ---")
	return snap
}

// getCycleNumber increments the persistent counter, falling back to the in-process count.
func (k *Keeper) getCycleNumber(ctx context.Context) int {
	if k.store == nil {
		return k.cycleCount
	}
	n, err := k.store.NextCycleNumber(ctx)
	if err != nil {
		k.logger.Error().Err(err).Msg("Failed to increment cycle number, using fallback")
		return k.cycleCount
	}
	return n
}

// harvestedValue sums the vault's share of each swap in common units.
func (k *Keeper) harvestedValue(res harvester.Result) sdkmath.Int {
	decimals := make(map[string]uint32)
	for _, a := range k.vault.Assets() {
		decimals[a.Denom] = a.Decimals
	}
	total := sdkmath.ZeroInt()
	for _, s := range res.Swaps {
		d, ok := decimals[s.VaultShare.Denom]
		if !ok || s.VaultShare.Amount.IsNil() {
			continue
		}
		total = total.Add(utils.ToCommonUnits(s.VaultShare.Amount, d))
	}
	return total
}

func joinErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
