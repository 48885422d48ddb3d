package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/stablevault/internal/types"
)

// VaultSummary represents high-level vault statistics
type VaultSummary struct {
	TotalSupply  sdkmath.Int `json:"total_supply"`
	TotalValue   sdkmath.Int `json:"total_value"`
	SupplyIndex  sdkmath.Int `json:"supply_index"`
	Impaired     bool        `json:"impaired"`
	TotalCycles  int         `json:"total_cycles"`
	FailedCycles int         `json:"failed_cycles"`
	LastUpdated  string      `json:"last_updated"`
}

// IndexPoint is the supply index recorded at a point in time.
type IndexPoint struct {
	At    time.Time   `json:"at"`
	Index sdkmath.Int `json:"index"`
}

// APY is the annualized growth of value per share over a trailing window.
type APY struct {
	Days      int     `json:"days"`
	APY       float64 `json:"apy"`
	Available bool    `json:"available"`
}

// APYWindows are the trailing windows reported by default.
var APYWindows = []int{7, 30, 365}

// GetRecentCycles retrieves recent cycle snapshots, newest first.
func GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := DB.QueryContext(ctx, `SELECT `+snapshotColumns+` FROM cycle_snapshots ORDER BY snapshot_timestamp DESC LIMIT $1`, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent cycles")
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []types.CycleSnapshot
	for rows.Next() {
		snap, id, err := scanSnapshot(rows)
		if err != nil {
			log.Error().Err(err).Int64("snapshot_id", id).Msg("Failed to scan cycle row")
			continue
		}
		cycles = append(cycles, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(cycles)).Int("limit", limit).Msg("Retrieved recent cycles")
	return cycles, nil
}

// GetCycleByID retrieves the snapshot of one keeper cycle.
func GetCycleByID(ctx context.Context, cycleID string) (*types.CycleSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM cycle_snapshots WHERE cycle_id = $1`, cycleID)
	snap, _, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cycle %s not found", cycleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle %s: %w", cycleID, err)
	}
	return &snap, nil
}

// GetVaultSummary retrieves high-level vault statistics from the latest snapshot.
func GetVaultSummary(ctx context.Context) (*VaultSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	summary := &VaultSummary{
		TotalSupply: sdkmath.ZeroInt(),
		TotalValue:  sdkmath.ZeroInt(),
		SupplyIndex: sdkmath.ZeroInt(),
	}

	var (
		supply, value, index string
		lastUpdated          time.Time
	)
	err := DB.QueryRowContext(ctx, `
		SELECT total_supply, total_value, supply_index, impaired, snapshot_timestamp
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1`).Scan(&supply, &value, &index, &summary.Impaired, &lastUpdated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get latest vault values: %w", err)
	default:
		if summary.TotalSupply, err = parseNumeric(supply); err != nil {
			return nil, err
		}
		if summary.TotalValue, err = parseNumeric(value); err != nil {
			return nil, err
		}
		if summary.SupplyIndex, err = parseNumeric(index); err != nil {
			return nil, err
		}
		summary.LastUpdated = lastUpdated.UTC().Format(time.RFC3339)
	}

	err = DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM cycle_snapshots`).Scan(&summary.TotalCycles, &summary.FailedCycles)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get cycle counts")
	}
	return summary, nil
}

// GetIndexHistory returns the supply index of cycles that did not fail since the given time, oldest first.
func GetIndexHistory(ctx context.Context, since time.Time) ([]IndexPoint, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.QueryContext(ctx, `
		SELECT snapshot_timestamp, supply_index
		FROM cycle_snapshots
		WHERE snapshot_timestamp >= $1 AND status <> 'failed'
		ORDER BY snapshot_timestamp ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query index history: %w", err)
	}
	defer rows.Close()

	var points []IndexPoint
	for rows.Next() {
		var (
			p   IndexPoint
			raw string
		)
		if err := rows.Scan(&p.At, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		if p.Index, err = parseNumeric(raw); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// TrailingAPY annualizes supply index growth between the earliest point inside the trailing
// window and the latest point at or before now. It needs at least a day between the two.
func TrailingAPY(points []IndexPoint, now time.Time, days int) (float64, bool) {
	if days <= 0 {
		return 0, false
	}
	sorted := make([]IndexPoint, 0, len(points))
	for _, p := range points {
		if !p.Index.IsNil() && p.Index.IsPositive() && !p.At.After(now) {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) < 2 {
		return 0, false
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	from := now.Add(-time.Duration(days) * 24 * time.Hour)
	start := sort.Search(len(sorted), func(i int) bool { return !sorted[i].At.Before(from) })
	end := len(sorted) - 1
	if start >= end {
		return 0, false
	}

	elapsed := sorted[end].At.Sub(sorted[start].At)
	if elapsed < 24*time.Hour {
		return 0, false
	}
	growth, err := sdkmath.LegacyNewDecFromInt(sorted[end].Index).QuoInt(sorted[start].Index).Float64()
	if err != nil {
		return 0, false
	}
	years := elapsed.Hours() / (24 * 365)
	return math.Pow(growth, 1/years) - 1, true
}

// ComputeAPYs evaluates TrailingAPY for each window.
func ComputeAPYs(points []IndexPoint, now time.Time, windows ...int) []APY {
	if len(windows) == 0 {
		windows = APYWindows
	}
	out := make([]APY, 0, len(windows))
	for _, d := range windows {
		apy, ok := TrailingAPY(points, now, d)
		out = append(out, APY{Days: d, APY: apy, Available: ok})
	}
	return out
}

// Archive reads keeper history through the package level connection.
type Archive struct{}

func (Archive) RecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	return GetRecentCycles(ctx, limit)
}

func (Archive) Cycle(ctx context.Context, cycleID string) (*types.CycleSnapshot, error) {
	return GetCycleByID(ctx, cycleID)
}

func (Archive) Summary(ctx context.Context) (*VaultSummary, error) {
	return GetVaultSummary(ctx)
}

func (Archive) IndexHistory(ctx context.Context, since time.Time) ([]IndexPoint, error) {
	return GetIndexHistory(ctx, since)
}

func (Archive) RecentEvents(ctx context.Context, eventType string, limit int) ([]StoredEvent, error) {
	return GetRecentEvents(ctx, eventType, limit)
}

func (Archive) Healthy() error {
	return TestDBConnection()
}
