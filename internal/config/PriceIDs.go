/*
The price oracle queries CryptoCompare style APIs by symbol.

This file maps denoms to their price API symbol. A denom without an entry falls back to its upper-cased
name, which is right for most tokens. Keep it up to date for wrapped and bridged denoms.
*/

package config

import "strings"

var (
	DenomToPriceID = map[string]string{
		"usdc":  "USDC",
		"usdt":  "USDT",
		"dai":   "DAI",
		"crv":   "CRV",
		"cvx":   "CVX",
		"comp":  "COMP",
		"uusdc": "USDC",
		"uusdt": "USDT",
		"weth":  "ETH",
		"wbtc":  "WBTC",

		"ibc/usdc": "USDC", // This is for TESTNET compatibility
	}
)

// PriceID returns the price API symbol for denom.
func PriceID(denom string) string {
	if id, ok := DenomToPriceID[denom]; ok {
		return id
	}
	return strings.ToUpper(denom)
}

// PriceIDs returns the symbols for the given denoms.
func PriceIDs(denoms []string) map[string]string {
	out := make(map[string]string, len(denoms))
	for _, d := range denoms {
		out[d] = PriceID(d)
	}
	return out
}
