package distribution

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"tokendrop/core/events"
	"tokendrop/native/common"
)

var (
	errNilLedger     = errors.New("distribution engine: ledger not configured")
	errNilAuthorizer = errors.New("distribution engine: authorizer not configured")
	errNilToken      = errors.New("distribution engine: token ledger not configured")
)

// TokenLedger abstracts the fungible-token collaborator holding the
// pre-funded allocation.
type TokenLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// OwnerGate abstracts the administrator identity collaborator wrapping the
// migration entry points.
type OwnerGate interface {
	IsOwner(addr [20]byte) bool
}

// Params carries the immutable distribution parameters fixed at construction.
type Params struct {
	// LaunchTime is the unix second both unlock curves measure elapsed time from.
	LaunchTime int64
	// Emission drives the mining pool unlock curve.
	Emission EmissionSchedule
	// MiningCap is the mining pool hard cap. Configured separately from the
	// schedule so the cap check at claim time stays independent of curve
	// correctness.
	MiningCap *big.Int
	// Vesting drives the referral/staking pool unlock curve and carries its cap.
	Vesting VestingTerms
	// MigrationGrace is the minimum delay, in seconds, between starting a
	// migration and the sweep becoming available.
	MigrationGrace int64
}

// DefaultMigrationGrace is the fallback sweep grace period.
const DefaultMigrationGrace = 7 * 24 * 60 * 60

// Validate ensures the parameters are internally consistent.
func (p Params) Validate() error {
	if p.LaunchTime <= 0 {
		return errors.New("launch time required")
	}
	if err := p.Emission.Validate(); err != nil {
		return fmt.Errorf("emission schedule: %w", err)
	}
	if p.MiningCap == nil || p.MiningCap.Sign() <= 0 {
		return errors.New("mining cap must be positive")
	}
	if err := p.Vesting.Validate(); err != nil {
		return fmt.Errorf("vesting terms: %w", err)
	}
	if p.MigrationGrace < 0 {
		return errors.New("migration grace cannot be negative")
	}
	return nil
}

// Clone returns a deep copy of the parameters.
func (p Params) Clone() Params {
	return Params{
		LaunchTime:     p.LaunchTime,
		Emission:       p.Emission.Clone(),
		MiningCap:      copyBigInt(p.MiningCap),
		Vesting:        p.Vesting.Clone(),
		MigrationGrace: p.MigrationGrace,
	}
}

// Engine wires the distribution accounting with the ledger, the claim
// authorizer and the external token and admin collaborators. Every mutating
// operation runs under a reentrancy flag and reads the clock exactly once.
type Engine struct {
	ledger       *Ledger
	authorizer   *Authorizer
	token        TokenLedger
	tokenFactory func(Storage) TokenLedger
	owner        OwnerGate
	pauses       common.PauseView
	emitter      events.Emitter
	vault        [20]byte
	params       Params
	nowFn        func() int64
	busy         bool
}

// NewEngine constructs a distribution engine. Configuration errors are fatal
// and reject construction entirely.
func NewEngine(ledger *Ledger, authorizer *Authorizer, token TokenLedger, vault [20]byte, params Params) (*Engine, error) {
	if ledger == nil {
		return nil, errNilLedger
	}
	if authorizer == nil {
		return nil, errNilAuthorizer
	}
	if token == nil {
		return nil, errNilToken
	}
	if vault == ([20]byte{}) {
		return nil, errors.New("distribution engine: vault address required")
	}
	if params.MigrationGrace == 0 {
		params.MigrationGrace = DefaultMigrationGrace
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("distribution engine: %w", err)
	}
	return &Engine{
		ledger:     ledger,
		authorizer: authorizer,
		token:      token,
		emitter:    events.NoopEmitter{},
		vault:      vault,
		params:     params.Clone(),
		nowFn:      func() int64 { return time.Now().Unix() },
	}, nil
}

// SetOwnerGate configures the administrator gate for migration entry points.
func (e *Engine) SetOwnerGate(gate OwnerGate) { e.owner = gate }

// SetTokenFactory supplies a constructor binding the token ledger to an
// arbitrary storage view. When the token ledger shares the engine's key-value
// store, setting this lets Claim and SweepRemaining run the payout transfer
// against the staged view, so the balance writes land in the same atomic
// flush as the claim bookkeeping.
func (e *Engine) SetTokenFactory(factory func(Storage) TokenLedger) { e.tokenFactory = factory }

// SetPauses configures the pause view consulted before claims.
func (e *Engine) SetPauses(pauses common.PauseView) { e.pauses = pauses }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns a copy of the immutable distribution parameters.
func (e *Engine) Params() Params {
	if e == nil {
		return Params{}
	}
	return e.params.Clone()
}

// Vault returns the treasury address holding the undistributed allocation.
func (e *Engine) Vault() [20]byte {
	if e == nil {
		return [20]byte{}
	}
	return e.vault
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

// enter acquires the reentrancy flag. A nested invocation triggered during
// the token-transfer side effect is rejected outright.
func (e *Engine) enter() error {
	if e.busy {
		return ErrReentrantCall
	}
	e.busy = true
	return nil
}

func (e *Engine) leave() { e.busy = false }

// Claim validates the voucher against the replay ledger, the authorizer and
// the pool's unlock curve, then pays out the amount from the vault. Every
// rejection leaves persisted state unchanged.
func (e *Engine) Claim(caller [20]byte, voucher *ClaimVoucher, signature []byte) (*ClaimRecord, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	now := e.now()
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if voucher == nil {
		return nil, ErrBadSignature
	}
	if !voucher.Pool.Valid() {
		return nil, ErrInvalidPool
	}
	if voucher.Amount == nil || voucher.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	claimID := ClaimID(signature)
	exists, err := e.ledger.ClaimExists(claimID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrClaimAlreadyExists
	}
	if voucher.ValidUntil < now {
		return nil, ErrClaimExpired
	}
	balance, err := e.token.BalanceOf(e.vault)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Cmp(voucher.Amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	if err := e.authorizer.Verify(voucher, signature); err != nil {
		return nil, err
	}
	if now <= e.params.LaunchTime {
		return nil, ErrNotStarted
	}
	distributed, err := e.ledger.Distributed(voucher.Pool)
	if err != nil {
		return nil, err
	}
	unlocked, err := e.unlockedAt(voucher.Pool, now)
	if err != nil {
		return nil, err
	}
	claimable := new(big.Int).Sub(unlocked, distributed)
	if claimable.Sign() <= 0 {
		return nil, ErrNoRewardsAvailable
	}
	if voucher.Amount.Cmp(claimable) > 0 {
		return nil, ErrExceedsClaimable
	}
	// Independent of curve correctness: the cap and the schedule are
	// configured separately, so the cap bound is checked on its own.
	poolCap := e.poolCap(voucher.Pool)
	nextDistributed := new(big.Int).Add(distributed, voucher.Amount)
	if nextDistributed.Cmp(poolCap) > 0 {
		return nil, ErrExceedsPoolCap
	}

	// Commit. The transfer and the bookkeeping are buffered in a staged view
	// and flushed together, so a failure anywhere before the flush leaves
	// persisted state untouched and the voucher unconsumed.
	staged := newStagedState(e.ledger.store)
	token := e.token
	if e.tokenFactory != nil {
		token = e.tokenFactory(staged)
	}
	if err := token.Transfer(e.vault, voucher.Receiver, voucher.Amount); err != nil {
		return nil, fmt.Errorf("distribution: transfer: %w", err)
	}
	record := &ClaimRecord{
		ID:         claimID,
		Pool:       voucher.Pool,
		Receiver:   voucher.Receiver,
		Claimant:   caller,
		Amount:     new(big.Int).Set(voucher.Amount),
		ValidUntil: voucher.ValidUntil,
		ClaimedAt:  now,
	}
	stagedLedger := NewLedger(staged)
	if err := stagedLedger.PutClaim(record); err != nil {
		return nil, err
	}
	if err := stagedLedger.SetDistributed(voucher.Pool, nextDistributed); err != nil {
		return nil, err
	}
	if err := staged.Commit(); err != nil {
		return nil, err
	}
	e.emit(newClaimedEvent(record))
	return record.Copy(), nil
}

// UnlockedMining returns the cumulative mining-pool amount unlocked at the
// current (migration-adjusted) time. Safe to call before launch.
func (e *Engine) UnlockedMining() (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	return e.unlockedAt(PoolMining, e.now())
}

// UnlockedReferral returns the cumulative referral-pool amount unlocked at
// the current (migration-adjusted) time. Safe to call before launch.
func (e *Engine) UnlockedReferral() (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	return e.unlockedAt(PoolReferral, e.now())
}

// Distributed returns the cumulative amount paid out of the pool.
func (e *Engine) Distributed(pool PoolKind) (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	return e.ledger.Distributed(pool)
}

// MigrationState returns the persisted migration lock, if any.
func (e *Engine) MigrationState() (*MigrationLock, bool, error) {
	if e == nil || e.ledger == nil {
		return nil, false, errNilLedger
	}
	return e.ledger.Migration()
}

// ListClaims exposes the ledger's paginated claim history.
func (e *Engine) ListClaims(startTs, endTs int64, cursor string, limit int) ([]*ClaimRecord, string, error) {
	if e == nil || e.ledger == nil {
		return nil, "", errNilLedger
	}
	return e.ledger.ListClaims(startTs, endTs, cursor, limit)
}

// StartMigration freezes the unlock clock at the current time and schedules
// the remaining-balance sweep for targetTime. Irreversible; a second attempt
// fails.
func (e *Engine) StartMigration(caller [20]byte, targetTime int64) error {
	if e == nil || e.ledger == nil {
		return errNilLedger
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	now := e.now()
	if e.owner == nil || !e.owner.IsOwner(caller) {
		return ErrOwnerOnly
	}
	if _, exists, err := e.ledger.Migration(); err != nil {
		return err
	} else if exists {
		return ErrMigrationStarted
	}
	if targetTime < now+e.params.MigrationGrace {
		return ErrMigrationGrace
	}
	// The clock freezes now, not at targetTime: between the two, claimants
	// see a stable final claimable balance to withdraw before the sweep.
	lock := &MigrationLock{LockTime: now, MigrationTime: targetTime}
	if err := e.ledger.PutMigration(lock); err != nil {
		return err
	}
	e.emit(newMigrationStartedEvent(caller, lock))
	return nil
}

// SweepRemaining transfers the undistributed remainder of both pools, at the
// frozen clock, to the destination. Exactly-once effective: once the
// remainder reaches zero, further calls fail.
func (e *Engine) SweepRemaining(caller [20]byte, destination [20]byte) (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	now := e.now()
	if e.owner == nil || !e.owner.IsOwner(caller) {
		return nil, ErrOwnerOnly
	}
	if destination == ([20]byte{}) {
		return nil, errors.New("distribution: sweep destination required")
	}
	lock, exists, err := e.ledger.Migration()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrMigrationNotStarted
	}
	if now <= lock.MigrationTime {
		return nil, ErrMigrationPending
	}
	total := big.NewInt(0)
	targets := make(map[PoolKind]*big.Int, 2)
	for _, pool := range []PoolKind{PoolMining, PoolReferral} {
		unlocked, err := e.unlockedAt(pool, now)
		if err != nil {
			return nil, err
		}
		distributed, err := e.ledger.Distributed(pool)
		if err != nil {
			return nil, err
		}
		remaining := new(big.Int).Sub(unlocked, distributed)
		if remaining.Sign() > 0 {
			total.Add(total, remaining)
			targets[pool] = unlocked
		}
	}
	if total.Sign() == 0 {
		return nil, ErrNothingToSweep
	}
	// Staged like Claim: the transfer and the counter catch-up flush as one
	// write set, so a mid-operation failure leaves every pool's remainder
	// exactly once sweepable.
	staged := newStagedState(e.ledger.store)
	token := e.token
	if e.tokenFactory != nil {
		token = e.tokenFactory(staged)
	}
	if err := token.Transfer(e.vault, destination, total); err != nil {
		return nil, fmt.Errorf("distribution: sweep transfer: %w", err)
	}
	stagedLedger := NewLedger(staged)
	for pool, unlocked := range targets {
		if err := stagedLedger.SetDistributed(pool, unlocked); err != nil {
			return nil, err
		}
	}
	lock.Swept = true
	if err := stagedLedger.PutMigration(lock); err != nil {
		return nil, err
	}
	if err := staged.Commit(); err != nil {
		return nil, err
	}
	e.emit(newSweptEvent(caller, destination, total, now))
	return total, nil
}

// unlockedAt computes the pool's unlocked ceiling at the supplied wall-clock
// time, substituting the migration lock time once the lock is active.
func (e *Engine) unlockedAt(pool PoolKind, now int64) (*big.Int, error) {
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	effective := now
	lock, exists, err := e.ledger.Migration()
	if err != nil {
		return nil, err
	}
	if exists && lock.LockTime < effective {
		effective = lock.LockTime
	}
	if effective <= e.params.LaunchTime {
		return big.NewInt(0), nil
	}
	elapsed := uint64(effective - e.params.LaunchTime)
	switch pool {
	case PoolMining:
		return e.params.Emission.Unlocked(elapsed), nil
	default:
		return e.params.Vesting.Unlocked(elapsed), nil
	}
}

func (e *Engine) poolCap(pool PoolKind) *big.Int {
	if pool == PoolMining {
		return copyBigInt(e.params.MiningCap)
	}
	return copyBigInt(e.params.Vesting.Cap)
}
