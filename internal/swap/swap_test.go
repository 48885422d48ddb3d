package swap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/stablevault/internal/bank"
	"github.com/elys-network/stablevault/internal/types"
)

func registry() types.TokenRegistry {
	return types.TokenRegistry{
		"usdt": {Symbol: "USDT", Denom: "usdt", Decimals: 6},
		"crv":  {Symbol: "CRV", Denom: "crv", Decimals: 18},
		"cvx":  {Symbol: "CVX", Denom: "cvx", Decimals: 18},
	}
}

func whole(n int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, 18) }

func tokensOf(denom string, s string) sdk.Coin {
	d, _ := registry().Decimals(denom)
	amt, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		panic(err)
	}
	return sdk.NewCoin(denom, amt.MulInt(sdkmath.NewIntWithDecimal(1, int(d))).TruncateInt())
}

func newVenue(t *testing.T, b *bank.Bank, feeBps uint16) *FixedRateVenue {
	t.Helper()
	v := NewFixedRateVenue("uniswap", "router", b, registry(), feeBps)
	require.NoError(t, v.SetRate("crv", "usdt", sdkmath.LegacyOneDec()))
	require.NoError(t, v.SetRate("cvx", "usdt", sdkmath.LegacyOneDec()))
	require.NoError(t, b.Mint("router", tokensOf("usdt", "1000")))
	return v
}

func TestFixedRateVenueQuoteAndSwap(t *testing.T) {
	ctx := context.Background()
	b := bank.New()
	v := newVenue(t, b, 30)

	q, err := v.Quote(ctx, tokensOf("crv", "1"), "usdt")
	require.NoError(t, err)
	assert.Equal(t, "997000", q.String())

	_, err = v.Quote(ctx, tokensOf("usdt", "1"), "crv")
	require.ErrorIs(t, err, ErrNoRoute)

	require.NoError(t, b.Mint("trader", tokensOf("crv", "2")))
	_, err = v.Swap(ctx, "trader", tokensOf("crv", "2"), "usdt", sdkmath.NewInt(2_000_000))
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
	assert.True(t, whole(2).Equal(b.Balance("trader", "crv")))

	out, err := v.Swap(ctx, "trader", tokensOf("crv", "2"), "usdt", sdkmath.NewInt(1_990_000))
	require.NoError(t, err)
	assert.Equal(t, "1994000", out.String())
	assert.True(t, b.Balance("trader", "crv").IsZero())
	assert.True(t, out.Equal(b.Balance("trader", "usdt")))

	require.ErrorIs(t, v.SetRate("crv", "usdt", sdkmath.LegacyZeroDec()), types.ErrInvalidConfig)
	require.ErrorIs(t, v.SetRate("abc", "usdt", sdkmath.LegacyOneDec()), types.ErrInvalidConfig)
}

func TestFixedRateVenueLiquidity(t *testing.T) {
	ctx := context.Background()
	b := bank.New()
	v := newVenue(t, b, 0)
	require.NoError(t, b.Mint("trader", tokensOf("crv", "5000")))

	_, err := v.Swap(ctx, "trader", tokensOf("crv", "5000"), "usdt", sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
	assert.True(t, whole(5000).Equal(b.Balance("trader", "crv")))
}

func config(token string, limit sdkmath.Int) types.RewardTokenConfig {
	return types.RewardTokenConfig{
		Token:                 token,
		MaxSlippageBps:        300,
		HarvesterIncentiveBps: 100,
		SwapVenue:             "uniswap",
		LiquidationLimit:      limit,
		Active:                true,
	}
}

func TestConverterPlanRespectsLimit(t *testing.T) {
	ctx := context.Background()
	b := bank.New()
	c := NewConverter(registry(), nil)
	require.NoError(t, c.RegisterVenue(newVenue(t, b, 0)))

	leg, ok, err := c.Plan(ctx, config("crv", tokensOf("crv", "0.8").Amount), whole(2), "usdt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, tokensOf("crv", "0.8").Amount.Equal(leg.AmountIn.Amount))
	assert.Equal(t, "800000", leg.Quote.String())
	assert.Equal(t, "776000", leg.MinOut.String())
	assert.False(t, leg.Oracle)

	leg, ok, err = c.Plan(ctx, config("crv", sdkmath.ZeroInt()), whole(2), "usdt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, whole(2).Equal(leg.AmountIn.Amount))
}

func TestConverterPlanSkips(t *testing.T) {
	ctx := context.Background()
	c := NewConverter(registry(), nil)

	inactive := config("crv", sdkmath.ZeroInt())
	inactive.Active = false
	_, ok, err := c.Plan(ctx, inactive, whole(1), "usdt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Plan(ctx, config("crv", sdkmath.ZeroInt()), sdkmath.ZeroInt(), "usdt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.Plan(ctx, config("crv", sdkmath.ZeroInt()), whole(1), "usdt")
	require.ErrorIs(t, err, types.ErrUnknownVenue)
}

func TestConverterOracleFloor(t *testing.T) {
	ctx := context.Background()
	b := bank.New()
	oracle := NewStaticOracle(map[string]sdkmath.LegacyDec{
		"crv":  sdkmath.LegacyMustNewDecFromStr("1.10"),
		"usdt": sdkmath.LegacyOneDec(),
	})
	c := NewConverter(registry(), oracle)
	require.NoError(t, c.RegisterVenue(newVenue(t, b, 0)))

	// The venue pays 1.00 while the oracle says 1.10; 3% slippage allows down to 1.067.
	_, _, err := c.Plan(ctx, config("crv", sdkmath.ZeroInt()), whole(1), "usdt")
	require.ErrorIs(t, err, types.ErrSlippageExceeded)

	oracle.Set("crv", sdkmath.LegacyMustNewDecFromStr("1.02"))
	leg, ok, err := c.Plan(ctx, config("crv", sdkmath.ZeroInt()), whole(1), "usdt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, leg.Oracle)
	assert.Equal(t, "1020000", leg.Expected.String())
	assert.Equal(t, "989400", leg.MinOut.String())

	// cvx has no oracle price, so the quote sets the floor.
	leg, ok, err = c.Plan(ctx, config("cvx", sdkmath.ZeroInt()), whole(1), "usdt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, leg.Oracle)
}

func TestConverterCheckLiquidity(t *testing.T) {
	ctx := context.Background()
	b := bank.New()
	c := NewConverter(registry(), nil)
	require.NoError(t, c.RegisterVenue(newVenue(t, b, 0)))

	crvLeg, _, err := c.Plan(ctx, config("crv", sdkmath.ZeroInt()), whole(600), "usdt")
	require.NoError(t, err)
	cvxLeg, _, err := c.Plan(ctx, config("cvx", sdkmath.ZeroInt()), whole(600), "usdt")
	require.NoError(t, err)
	same, _, err := c.Plan(ctx, config("usdt", sdkmath.ZeroInt()), sdkmath.NewInt(5_000_000_000), "usdt")
	require.NoError(t, err)

	require.NoError(t, c.CheckLiquidity(ctx, []Leg{crvLeg, same}))
	require.NoError(t, c.CheckLiquidity(ctx, []Leg{cvxLeg}))
	require.ErrorIs(t, c.CheckLiquidity(ctx, []Leg{crvLeg, cvxLeg}), types.ErrInsufficientLiquidity)

	require.NoError(t, b.Mint("router", tokensOf("usdt", "200")))
	require.NoError(t, c.CheckLiquidity(ctx, []Leg{crvLeg, cvxLeg}))
}

type failingOracle struct{}

func (failingOracle) Price(context.Context, string) (sdkmath.LegacyDec, error) {
	return sdkmath.LegacyZeroDec(), errors.New("oracle down")
}

func TestConverterPropagatesOracleFailure(t *testing.T) {
	b := bank.New()
	c := NewConverter(registry(), failingOracle{})
	require.NoError(t, c.RegisterVenue(newVenue(t, b, 0)))
	_, _, err := c.Plan(context.Background(), config("crv", sdkmath.ZeroInt()), whole(1), "usdt")
	require.EqualError(t, err, "oracle down")
}

func TestConverterExecute(t *testing.T) {
	ctx := context.Background()
	b := bank.New()
	c := NewConverter(registry(), nil)
	require.NoError(t, c.RegisterVenue(newVenue(t, b, 0)))
	require.NoError(t, b.Mint("harvester", tokensOf("crv", "1.5")))

	leg, ok, err := c.Plan(ctx, config("crv", sdkmath.ZeroInt()), b.Balance("harvester", "crv"), "usdt")
	require.NoError(t, err)
	require.True(t, ok)

	out, err := c.Execute(ctx, "harvester", leg)
	require.NoError(t, err)
	assert.Equal(t, "1500000", out.String())
	assert.True(t, b.Balance("harvester", "crv").IsZero())

	same, ok, err := c.Plan(ctx, config("usdt", sdkmath.ZeroInt()), sdkmath.NewInt(7), "usdt")
	require.NoError(t, err)
	require.True(t, ok)
	out, err = c.Execute(ctx, "harvester", same)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Int64())
	assert.Equal(t, []string{"uniswap"}, c.Venues())
}

func TestCryptoCompareOracle(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "CRV", r.URL.Query().Get("fsyms"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `{"CRV":{"USD":0.52}}`)
	}))
	defer srv.Close()

	o := NewCryptoCompareOracle(srv.URL, "secret", map[string]string{"crv": "crv"})
	o.Backoff = time.Millisecond

	p, err := o.Price(context.Background(), "crv")
	require.NoError(t, err)
	assert.True(t, sdkmath.LegacyMustNewDecFromStr("0.52").Equal(p), p.String())
	assert.Equal(t, int32(2), calls.Load())

	_, err = o.Price(context.Background(), "crv")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "cached price should not hit the API")

	_, err = o.Price(context.Background(), "usdt")
	require.ErrorIs(t, err, types.ErrNoPrice)
}

func TestParsePriceMulti(t *testing.T) {
	_, err := parsePriceMulti([]byte(`{"Response":"Error","Message":"rate limit"}`), "CRV")
	require.ErrorContains(t, err, "rate limit")

	_, err = parsePriceMulti([]byte(`{"CRV":{"USD":-1}}`), "CRV")
	require.ErrorIs(t, err, ErrInvalidPriceData)

	_, err = parsePriceMulti([]byte(`{"CVX":{"USD":1}}`), "CRV")
	require.ErrorIs(t, err, types.ErrNoPrice)

	_, err = parsePriceMulti([]byte(`not json`), "CRV")
	require.ErrorIs(t, err, ErrInvalidPriceData)
}

func TestFloatToDec(t *testing.T) {
	d, err := floatToDec(1e-20)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = floatToDec(1234.5)
	require.NoError(t, err)
	assert.Equal(t, "1234.500000000000000000", d.String())
}
