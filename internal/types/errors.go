package types

import "errors"

// Core error kinds. Callers match them with errors.Is.
var (
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrNotGovernor           = errors.New("caller is not the governor")
	ErrNotAuthorizedStrategy = errors.New("caller is not an authorized strategy")
	ErrUnknownReserve        = errors.New("unknown reserve strategy")
	ErrUnsupportedAsset      = errors.New("unsupported asset")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidAsset          = errors.New("asset is not supported")
	ErrNoDefaultStrategy     = errors.New("asset has no default strategy")
	ErrInsufficientBalance   = errors.New("insufficient balance")
)

var (
	ErrUnknownStrategy       = errors.New("unknown strategy")
	ErrStrategyExists        = errors.New("strategy already registered")
	ErrStrategyIsDefault     = errors.New("strategy is a default strategy")
	ErrStrategyHasFunds      = errors.New("strategy still holds funds")
	ErrAssetExists           = errors.New("asset already registered")
	ErrAssetHasFunds         = errors.New("vault still holds asset")
	ErrUnknownVenue          = errors.New("unknown swap venue")
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrReentrantCall         = errors.New("reentrant call")
	ErrRateLimited           = errors.New("rate limited")
	ErrNoPrice               = errors.New("no price available")
	ErrInvalidAmount         = errors.New("invalid amount")
)
