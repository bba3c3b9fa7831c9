package domain

import "errors"

// Error kinds. Callers wrap these with context via fmt.Errorf("...: %w", ...)
// and check with errors.Is.
var (
	// ErrConfiguration covers missing markets, missing price columns,
	// inconsistent data lengths or intervals, invalid fee rates and unknown
	// risk parameters. Raised during pre-run checks; fatal.
	ErrConfiguration = errors.New("configuration error")

	// ErrInsufficientBalance is returned when a wallet subtraction would go
	// below zero and negative balances are not allowed.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDomainViolation covers operations a protocol would revert: negative
	// liquidity, withdrawing below the health factor floor, unsafe or dusty
	// vaults, collecting more than pending.
	ErrDomainViolation = errors.New("domain violation")

	// ErrDataFormat is returned for missing or malformed input files.
	ErrDataFormat = errors.New("malformed data")
)
