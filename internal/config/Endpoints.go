package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PriceAPIURL is the base URL of the CryptoCompare style price API. Empty keeps the static
	// prices of the bootstrap file.
	PriceAPIURL string
	// PriceAPIKey authenticates against the price API.
	PriceAPIKey string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	PriceAPIURL = getEnvOrDefault("PRICE_API_URL", "")
	PriceAPIKey = getEnvOrDefault("PRICE_API_KEY", "")

	log.Debug().
		Str("PriceAPIURL", PriceAPIURL).
		Bool("PriceAPIKeySet", PriceAPIKey != "").
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
