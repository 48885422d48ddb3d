package metrics

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/stablevault/internal/token"
	"github.com/elys-network/stablevault/internal/types"
)

var tokens = types.TokenRegistry{
	"usdc": {Denom: "usdc", Decimals: 6},
	"crv":  {Denom: "crv", Decimals: 18},
}

func TestEmitCountsEvents(t *testing.T) {
	m := New(prometheus.NewRegistry(), tokens)
	ctx := context.Background()

	m.Emit(ctx, types.Minted{Account: "alice", Amount: sdk.NewCoin("usdc", sdkmath.NewInt(2_500_000)), Shares: sdkmath.NewIntWithDecimal(25, 17)})
	m.Emit(ctx, types.Minted{Account: "bob", Amount: sdk.NewCoin("usdc", sdkmath.NewInt(500_000)), Shares: sdkmath.NewIntWithDecimal(5, 17)})
	m.Emit(ctx, types.Redeemed{Account: "bob", Shares: sdkmath.NewIntWithDecimal(5, 17)})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("minted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("redeemed")))
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.mintedValue.WithLabelValues("usdc")), 1e-9)
	assert.InDelta(t, 0.5, testutil.ToFloat64(m.redeemedShares), 1e-9)
}

func TestEmitTracksRebaseState(t *testing.T) {
	m := New(prometheus.NewRegistry(), tokens)
	ctx := context.Background()

	m.Emit(ctx, types.RebaseLossDetected{
		Supply:    sdkmath.NewIntWithDecimal(100, 18),
		Value:     sdkmath.NewIntWithDecimal(95, 18),
		Shortfall: sdkmath.NewIntWithDecimal(5, 18),
		Policy:    types.LossPolicyFreeze,
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.impaired))
	assert.InDelta(t, 5.0, testutil.ToFloat64(m.shortfall), 1e-9)

	m.Emit(ctx, types.Rebased{OldSupply: sdkmath.NewIntWithDecimal(100, 18), NewSupply: sdkmath.NewIntWithDecimal(110, 18)})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.impaired))
	assert.InDelta(t, 110.0, testutil.ToFloat64(m.totalSupply), 1e-9)
}

func TestEmitHarvestProceeds(t *testing.T) {
	m := New(prometheus.NewRegistry(), tokens)
	m.Emit(context.Background(), types.RewardTokenSwapped{
		Token:      "crv",
		AmountIn:   sdk.NewCoin("crv", sdkmath.NewIntWithDecimal(8, 17)),
		AmountOut:  sdk.NewCoin("usdc", sdkmath.NewInt(800_000)),
		Incentive:  sdk.NewCoin("usdc", sdkmath.NewInt(8_000)),
		VaultShare: sdk.NewCoin("usdc", sdkmath.NewInt(792_000)),
	})
	assert.InDelta(t, 0.8, testutil.ToFloat64(m.harvestProceeds.WithLabelValues("crv")), 1e-9)
	assert.InDelta(t, 0.008, testutil.ToFloat64(m.incentivesPaid.WithLabelValues("crv")), 1e-9)
}

func TestObserveVaultAndCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, tokens)

	index := token.Ray().MulRaw(109).QuoRaw(100)
	m.ObserveVault(sdkmath.NewIntWithDecimal(440, 18), sdkmath.NewIntWithDecimal(441, 18), index, false)
	assert.InDelta(t, 440.0, testutil.ToFloat64(m.totalSupply), 1e-9)
	assert.InDelta(t, 441.0, testutil.ToFloat64(m.totalValue), 1e-9)
	assert.InDelta(t, 1.09, testutil.ToFloat64(m.supplyIndex), 1e-9)

	m.ObserveCycle("completed", 250*time.Millisecond)
	m.ObserveCycle("", time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("unknown")))

	count, err := testutil.GatherAndCount(reg, "stablevault_keeper_cycle_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilIndicatorsIgnoreCalls(t *testing.T) {
	var m *Indicators
	assert.NotPanics(t, func() {
		m.Emit(context.Background(), types.Rebased{})
		m.ObserveVault(sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), true)
		m.ObserveCycle("failed", time.Second)
	})
}
