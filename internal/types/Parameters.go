package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// LossPolicy decides what rebase does when managed value falls below supply.
type LossPolicy string

const (
	// LossPolicyFreeze leaves supply untouched and marks the vault impaired until value recovers.
	LossPolicyFreeze LossPolicy = "freeze"
	// LossPolicyAbsorb deflates supply down to managed value.
	LossPolicyAbsorb LossPolicy = "absorb"
)

// VaultParameters are the governance-tunable knobs of the vault.
type VaultParameters struct {
	RedeemFeeBps      uint16      `json:"redeem_fee_bps"`
	TrusteeFeeBps     uint16      `json:"trustee_fee_bps"`
	Trustee           string      `json:"trustee"`
	DriftToleranceBps uint16      `json:"drift_tolerance_bps"`
	VaultBufferBps    uint16      `json:"vault_buffer_bps"`
	RebaseThreshold   sdkmath.Int `json:"rebase_threshold"` // common units, zero disables
	LossPolicy        LossPolicy  `json:"loss_policy"`
}

func (p VaultParameters) Validate() error {
	for name, bps := range map[string]uint16{
		"redeem fee":      p.RedeemFeeBps,
		"trustee fee":     p.TrusteeFeeBps,
		"drift tolerance": p.DriftToleranceBps,
		"vault buffer":    p.VaultBufferBps,
	} {
		if bps > BasisPoints {
			return fmt.Errorf("%w: %s of %d bps", ErrInvalidConfig, name, bps)
		}
	}
	if p.TrusteeFeeBps > 0 && p.Trustee == "" {
		return fmt.Errorf("%w: trustee fee set without a trustee", ErrInvalidConfig)
	}
	if p.RebaseThreshold.IsNil() || p.RebaseThreshold.IsNegative() {
		return fmt.Errorf("%w: rebase threshold must be non-negative", ErrInvalidConfig)
	}
	switch p.LossPolicy {
	case LossPolicyFreeze, LossPolicyAbsorb:
	default:
		return fmt.Errorf("%w: unknown loss policy %q", ErrInvalidConfig, p.LossPolicy)
	}
	return nil
}
