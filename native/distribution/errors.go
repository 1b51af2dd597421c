package distribution

import "errors"

var (
	ErrClaimAlreadyExists  = errors.New("distribution: claim already exists")
	ErrClaimExpired        = errors.New("distribution: claim expired")
	ErrInsufficientBalance = errors.New("distribution: insufficient vault balance")
	ErrBadSignature        = errors.New("distribution: malformed signature")
	ErrUnauthorized        = errors.New("distribution: signer not authorized")
	ErrVoucherDomain       = errors.New("distribution: voucher domain invalid")
	ErrNotStarted          = errors.New("distribution: not started")
	ErrNoRewardsAvailable  = errors.New("distribution: no rewards available")
	ErrExceedsClaimable    = errors.New("distribution: amount exceeds claimable rewards")
	ErrExceedsPoolCap      = errors.New("distribution: amount exceeds pool cap")
	ErrInvalidPool         = errors.New("distribution: invalid pool")
	ErrInvalidAmount       = errors.New("distribution: amount must be positive")
	ErrOwnerOnly           = errors.New("distribution: owner only")
	ErrMigrationStarted    = errors.New("distribution: migration already started")
	ErrMigrationNotStarted = errors.New("distribution: migration not started")
	ErrMigrationGrace      = errors.New("distribution: migration grace period too short")
	ErrMigrationPending    = errors.New("distribution: migration grace period not elapsed")
	ErrNothingToSweep      = errors.New("distribution: no remaining tokens")
	ErrReentrantCall       = errors.New("distribution: reentrant call")
)
