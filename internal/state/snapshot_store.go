// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/stablevault/internal/types"
)

const snapshotColumns = `
	snapshot_id, cycle_id, cycle_number, snapshot_timestamp,
	total_supply, total_value, supply_index, harvested_value,
	impaired, collateral, status, error_message`

// SaveCycleSnapshot saves a keeper cycle snapshot to the database.
func SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	collateralJSON, err := json.Marshal(snapshot.Collateral)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal collateral: %w", err)
	}
	var errMsg sql.NullString
	if snapshot.Error != "" {
		errMsg = sql.NullString{String: snapshot.Error, Valid: true}
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_id, cycle_number, snapshot_timestamp,
			total_supply, total_value, supply_index, harvested_value,
			impaired, collateral, status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRowContext(ctx, query,
		snapshot.CycleID, snapshot.CycleNumber, snapshot.Timestamp,
		numeric(snapshot.TotalSupply), numeric(snapshot.TotalValue), numeric(snapshot.SupplyIndex), numeric(snapshot.HarvestedValue),
		snapshot.Impaired, collateralJSON, snapshot.Status, errMsg,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("status", snapshot.Status).
		Str("total_value", numeric(snapshot.TotalValue)).
		Msg("Cycle snapshot saved to database")
	return snapshotID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (types.CycleSnapshot, int64, error) {
	var (
		snap                            types.CycleSnapshot
		id                              int64
		supply, value, index, harvested string
		collateralJSON                  []byte
		errMsg                          sql.NullString
	)
	err := row.Scan(
		&id, &snap.CycleID, &snap.CycleNumber, &snap.Timestamp,
		&supply, &value, &index, &harvested,
		&snap.Impaired, &collateralJSON, &snap.Status, &errMsg,
	)
	if err != nil {
		return snap, 0, err
	}
	if snap.TotalSupply, err = parseNumeric(supply); err != nil {
		return snap, id, fmt.Errorf("total_supply: %w", err)
	}
	if snap.TotalValue, err = parseNumeric(value); err != nil {
		return snap, id, fmt.Errorf("total_value: %w", err)
	}
	if snap.SupplyIndex, err = parseNumeric(index); err != nil {
		return snap, id, fmt.Errorf("supply_index: %w", err)
	}
	if snap.HarvestedValue, err = parseNumeric(harvested); err != nil {
		return snap, id, fmt.Errorf("harvested_value: %w", err)
	}
	if len(collateralJSON) > 0 {
		if err := json.Unmarshal(collateralJSON, &snap.Collateral); err != nil {
			return snap, id, fmt.Errorf("failed to unmarshal collateral: %w", err)
		}
	}
	snap.Error = errMsg.String
	return snap, id, nil
}

// CycleStore persists keeper cycles through the package level connection.
type CycleStore struct{}

func (CycleStore) NextCycleNumber(ctx context.Context) (int, error) {
	return IncrementCycleNumber(ctx)
}

func (CycleStore) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	return SaveCycleSnapshot(ctx, snapshot)
}
