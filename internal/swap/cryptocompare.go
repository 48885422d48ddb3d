/*
This file fetches spot prices from the CryptoCompare pricemulti API.

Prices bound how little the harvester accepts for a reward token, so any malformed, non-finite
or non-positive quote is rejected rather than used.
*/

package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/types"
)

var ErrInvalidPriceData = errors.New("invalid price data received")

const (
	DefaultPriceURL = "https://min-api.cryptocompare.com/data/pricemulti"
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
)

type cachedPrice struct {
	price sdkmath.LegacyDec
	at    time.Time
}

// CryptoCompareOracle resolves denoms to CryptoCompare symbols and caches quotes for CacheTTL.
type CryptoCompareOracle struct {
	BaseURL    string
	APIKey     string
	Symbols    map[string]string // denom -> CryptoCompare id
	Client     *http.Client
	MaxRetries int
	Backoff    time.Duration
	CacheTTL   time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice
	log   zerolog.Logger
}

func NewCryptoCompareOracle(baseURL, apiKey string, symbols map[string]string) *CryptoCompareOracle {
	if baseURL == "" {
		baseURL = DefaultPriceURL
	}
	return &CryptoCompareOracle{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Symbols:    symbols,
		Client:     &http.Client{Timeout: TIMEOUT_SECONDS * time.Second},
		MaxRetries: MAX_RETRIES,
		Backoff:    time.Second,
		CacheTTL:   time.Minute,
		cache:      make(map[string]cachedPrice),
		log:        logger.GetForComponent("price_oracle"),
	}
}

func (o *CryptoCompareOracle) Price(ctx context.Context, denom string) (sdkmath.LegacyDec, error) {
	symbol, ok := o.Symbols[denom]
	if !ok || symbol == "" {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: no symbol for %s", types.ErrNoPrice, denom)
	}
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	o.mu.Lock()
	if c, ok := o.cache[symbol]; ok && time.Since(c.at) < o.CacheTTL {
		o.mu.Unlock()
		return c.price, nil
	}
	o.mu.Unlock()

	price, err := o.fetch(ctx, symbol)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}

	o.mu.Lock()
	o.cache[symbol] = cachedPrice{price: price, at: time.Now()}
	o.mu.Unlock()
	return price, nil
}

func (o *CryptoCompareOracle) fetch(ctx context.Context, symbol string) (sdkmath.LegacyDec, error) {
	q := url.Values{}
	q.Set("fsyms", symbol)
	q.Set("tsyms", "USD")
	if o.APIKey != "" {
		q.Set("api_key", o.APIKey)
	}
	endpoint := o.BaseURL + "?" + q.Encode()

	retries := o.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		price, err := o.request(ctx, endpoint, symbol)
		if err == nil {
			o.log.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("Price fetched")
			return price, nil
		}
		lastErr = err
		o.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Int("attempt", attempt).
			Int("maxRetries", retries).
			Msg("Price request failed, will retry if attempts remain")

		if attempt < retries {
			select {
			case <-ctx.Done():
				return sdkmath.LegacyZeroDec(), ctx.Err()
			case <-time.After(time.Duration(attempt) * o.Backoff):
			}
		}
	}

	o.log.Error().Err(lastErr).Str("symbol", symbol).Msg("All retry attempts failed")
	return sdkmath.LegacyZeroDec(), fmt.Errorf("failed to fetch price for %s after %d attempts: %w", symbol, retries, lastErr)
}

func (o *CryptoCompareOracle) request(ctx context.Context, endpoint, symbol string) (sdkmath.LegacyDec, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("API returned status %d for %s", resp.StatusCode, symbol)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("failed to read response body for %s: %w", symbol, err)
	}
	return parsePriceMulti(body, symbol)
}

// parsePriceMulti reads {"SYM":{"USD":1.0}} or an error envelope.
func parsePriceMulti(body []byte, symbol string) (sdkmath.LegacyDec, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %w", ErrInvalidPriceData, err)
	}
	if r, ok := raw["Response"]; ok {
		var status, msg string
		_ = json.Unmarshal(r, &status)
		_ = json.Unmarshal(raw["Message"], &msg)
		if status == "Error" {
			return sdkmath.LegacyZeroDec(), fmt.Errorf("API error for %s: %s", symbol, msg)
		}
	}
	entry, ok := raw[symbol]
	if !ok {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %s", types.ErrNoPrice, symbol)
	}
	var quotes map[string]float64
	if err := json.Unmarshal(entry, &quotes); err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %w", ErrInvalidPriceData, err)
	}
	usd, ok := quotes["USD"]
	if !ok {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: no USD quote for %s", types.ErrNoPrice, symbol)
	}
	if math.IsNaN(usd) || math.IsInf(usd, 0) || usd <= 0 {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: price %f for %s", ErrInvalidPriceData, usd, symbol)
	}
	return floatToDec(usd)
}

// floatToDec uses the shortest decimal form of v, cut to the 18 places LegacyDec holds.
func floatToDec(v float64) (sdkmath.LegacyDec, error) {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > 18 {
		s = s[:dot+19]
	}
	return sdkmath.LegacyNewDecFromStr(s)
}
