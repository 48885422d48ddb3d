package metrics

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elys-network/stablevault/internal/token"
	"github.com/elys-network/stablevault/internal/types"
	"github.com/elys-network/stablevault/internal/utils"
)

const namespace = "stablevault"

// Indicators tracks vault and harvester activity. It is an events.Emitter, so it can sit in the
// same fan-out as the event log. A nil *Indicators ignores every call.
type Indicators struct {
	tokens types.TokenRegistry

	events          *prometheus.CounterVec
	totalSupply     prometheus.Gauge
	totalValue      prometheus.Gauge
	supplyIndex     prometheus.Gauge
	impaired        prometheus.Gauge
	shortfall       prometheus.Gauge
	mintedValue     *prometheus.CounterVec
	redeemedShares  prometheus.Counter
	harvestProceeds *prometheus.CounterVec
	incentivesPaid  *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
}

// New registers the indicators on reg. tokens supplies decimals for per-denom amounts.
func New(reg prometheus.Registerer, tokens types.TokenRegistry) *Indicators {
	f := promauto.With(reg)
	return &Indicators{
		tokens: tokens,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Count of vault and harvester notifications by type.",
		}, []string{"type"}),
		totalSupply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_supply",
			Help:      "Receipt token supply in whole tokens.",
		}),
		totalValue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_value",
			Help:      "Managed value in whole common units.",
		}),
		supplyIndex: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "supply_index",
			Help:      "Receipt token balance per credit.",
		}),
		impaired: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "impaired",
			Help:      "1 while a rebase loss is frozen.",
		}),
		shortfall: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shortfall",
			Help:      "Last detected shortfall of managed value below supply.",
		}),
		mintedValue: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "minted_value_total",
			Help:      "Deposited value by collateral asset, in whole tokens.",
		}, []string{"denom"}),
		redeemedShares: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redeemed_shares_total",
			Help:      "Receipt tokens burned by redemptions.",
		}),
		harvestProceeds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvester",
			Name:      "proceeds_total",
			Help:      "Swap output by reward token, in whole target asset units.",
		}, []string{"token"}),
		incentivesPaid: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harvester",
			Name:      "incentives_total",
			Help:      "Harvester incentives paid by reward token, in whole target asset units.",
		}, []string{"token"}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "cycles_total",
			Help:      "Keeper cycles by outcome.",
		}, []string{"status"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of keeper cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

func (m *Indicators) Emit(_ context.Context, ev types.Event) {
	if m == nil || ev == nil {
		return
	}
	m.events.WithLabelValues(ev.EventType()).Inc()

	switch e := ev.(type) {
	case types.Minted:
		m.mintedValue.WithLabelValues(e.Amount.Denom).Add(m.coinFloat(e.Amount))
	case types.Redeemed:
		m.redeemedShares.Add(commonFloat(e.Shares))
	case types.Rebased:
		m.totalSupply.Set(commonFloat(e.NewSupply))
		m.impaired.Set(0)
	case types.RebaseLossDetected:
		m.shortfall.Set(commonFloat(e.Shortfall))
		if e.Policy == types.LossPolicyFreeze {
			m.impaired.Set(1)
		}
	case types.RewardTokenSwapped:
		m.harvestProceeds.WithLabelValues(e.Token).Add(m.coinFloat(e.AmountOut))
		m.incentivesPaid.WithLabelValues(e.Token).Add(m.coinFloat(e.Incentive))
	}
}

// ObserveVault records a point-in-time view of the vault.
func (m *Indicators) ObserveVault(supply, value, index sdkmath.Int, impaired bool) {
	if m == nil {
		return
	}
	m.totalSupply.Set(commonFloat(supply))
	m.totalValue.Set(commonFloat(value))
	if !index.IsNil() {
		f, _ := sdkmath.LegacyNewDecFromInt(index).QuoInt(token.Ray()).Float64()
		m.supplyIndex.Set(f)
	}
	if impaired {
		m.impaired.Set(1)
	} else {
		m.impaired.Set(0)
	}
}

// ObserveCycle records one keeper cycle.
func (m *Indicators) ObserveCycle(status string, took time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.cycles.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(took.Seconds())
}

func (m *Indicators) coinFloat(c sdk.Coin) float64 {
	if c.Amount.IsNil() {
		return 0
	}
	dec, ok := m.tokens.Decimals(c.Denom)
	if !ok {
		dec = utils.CommonDecimals
	}
	f, err := utils.SDKIntToFloat64(c.Amount, int(dec))
	if err != nil {
		return 0
	}
	return f
}

func commonFloat(v sdkmath.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, err := utils.SDKIntToFloat64(v, utils.CommonDecimals)
	if err != nil {
		return 0
	}
	return f
}
