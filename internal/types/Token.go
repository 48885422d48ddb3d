/*

Token metadata needed to move between a token's native precision and the vault's common unit.

*/

package types

// Token describes a denom known to the vault, either as collateral or as a reward token.
type Token struct {
	Symbol   string `json:"symbol" yaml:"symbol"`     // e.g., "USDC"
	Denom    string `json:"denom" yaml:"denom"`       // e.g., "uusdc"
	Decimals uint32 `json:"decimals" yaml:"decimals"` // e.g., 6
}

// TokenRegistry maps a denom to its metadata.
type TokenRegistry map[string]Token

// Decimals returns the precision for denom.
func (r TokenRegistry) Decimals(denom string) (uint32, bool) {
	t, ok := r[denom]
	if !ok {
		return 0, false
	}
	return t.Decimals, true
}

// Add registers or replaces a token.
func (r TokenRegistry) Add(t Token) {
	r[t.Denom] = t
}
