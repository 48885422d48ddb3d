package types

// Asset is a collateral unit accepted by the vault.
type Asset struct {
	Denom    string `json:"denom"`
	Decimals uint32 `json:"decimals"`
	// Supported gates mint. An asset can stay registered but unsupported while balances are wound down.
	Supported bool `json:"supported"`
	// DefaultStrategy is the address deposits of this asset route to. Empty means unassigned.
	DefaultStrategy string `json:"default_strategy,omitempty"`
}
