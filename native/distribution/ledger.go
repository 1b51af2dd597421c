package distribution

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

// Storage abstracts the subset of key-value state functionality required by
// the distribution ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	claimRecordPrefix = []byte("distribution/claim/")
	claimIndexKey     = []byte("distribution/claim/index")
	distributedPrefix = []byte("distribution/distributed/")
	migrationKey      = []byte("distribution/migration")
)

type storedClaimRecord struct {
	ID         [32]byte
	Pool       uint8
	Receiver   [20]byte
	Claimant   [20]byte
	Amount     string
	ValidUntil uint64
	ClaimedAt  uint64
}

type claimIndexEntry struct {
	ID        [32]byte
	ClaimedAt uint64
}

type storedMigrationLock struct {
	LockTime      uint64
	MigrationTime uint64
	Swept         bool
}

// Ledger persists claim records, the per-pool distribution counters and the
// migration lock in the underlying key-value store.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// PutClaim stores the claim record, enforcing append-only semantics keyed by
// the claim identifier. A second put with the same identifier fails, which is
// the ledger's sole replay defense.
func (l *Ledger) PutClaim(record *ClaimRecord) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if record == nil {
		return fmt.Errorf("ledger: record must not be nil")
	}
	if record.ID == ([32]byte{}) {
		return fmt.Errorf("ledger: claim id required")
	}
	key := claimKey(record.ID)
	var existing storedClaimRecord
	ok, err := l.store.KVGet(key, &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrClaimAlreadyExists
	}
	stored, err := toStoredClaim(record)
	if err != nil {
		return err
	}
	if err := l.store.KVPut(key, stored); err != nil {
		return err
	}
	entry := claimIndexEntry{ID: record.ID, ClaimedAt: stored.ClaimedAt}
	encoded, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return err
	}
	return l.store.KVAppend(claimIndexKey, encoded)
}

// ClaimExists reports whether a claim with the supplied identifier has been
// recorded in the ledger.
func (l *Ledger) ClaimExists(id [32]byte) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("ledger not initialised")
	}
	var stored storedClaimRecord
	ok, err := l.store.KVGet(claimKey(id), &stored)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// GetClaim retrieves a claim record by identifier.
func (l *Ledger) GetClaim(id [32]byte) (*ClaimRecord, bool, error) {
	if l == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedClaimRecord
	ok, err := l.store.KVGet(claimKey(id), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	record, err := fromStoredClaim(&stored)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// ListClaims returns a paginated list of claim records within the supplied
// timestamp range. Both bounds are inclusive. The cursor is the hex claim ID
// of the last item from the previous page.
func (l *Ledger) ListClaims(startTs, endTs int64, cursor string, limit int) ([]*ClaimRecord, string, error) {
	if l == nil {
		return nil, "", fmt.Errorf("ledger not initialised")
	}
	entries, err := l.loadIndex()
	if err != nil {
		return nil, "", err
	}
	filtered := make([]claimIndexEntry, 0, len(entries))
	for _, entry := range entries {
		claimedAt, err := uint64ToInt64(entry.ClaimedAt)
		if err != nil {
			return nil, "", fmt.Errorf("ledger: index entry overflow: %w", err)
		}
		if startTs != 0 && claimedAt < startTs {
			continue
		}
		if endTs != 0 && claimedAt > endTs {
			continue
		}
		filtered = append(filtered, entry)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].ClaimedAt == filtered[j].ClaimedAt {
			return hex.EncodeToString(filtered[i].ID[:]) < hex.EncodeToString(filtered[j].ID[:])
		}
		return filtered[i].ClaimedAt < filtered[j].ClaimedAt
	})
	startIdx := 0
	cursorID := strings.TrimSpace(strings.ToLower(cursor))
	if cursorID != "" {
		for i, entry := range filtered {
			if hex.EncodeToString(entry.ID[:]) == cursorID {
				startIdx = i + 1
				break
			}
		}
	}
	nextCursor := ""
	pageSize := limit
	if pageSize <= 0 {
		pageSize = len(filtered) - startIdx
	}
	records := make([]*ClaimRecord, 0, pageSize)
	for i := startIdx; i < len(filtered) && len(records) < pageSize; i++ {
		entry := filtered[i]
		record, ok, err := l.GetClaim(entry.ID)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		records = append(records, record)
		nextCursor = hex.EncodeToString(entry.ID[:])
	}
	if startIdx+len(records) >= len(filtered) {
		nextCursor = ""
	}
	return records, nextCursor, nil
}

// Distributed returns the cumulative amount paid out of the pool so far.
func (l *Ledger) Distributed(pool PoolKind) (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger not initialised")
	}
	if !pool.Valid() {
		return nil, ErrInvalidPool
	}
	var stored string
	ok, err := l.store.KVGet(distributedKey(pool), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(stored) == "" {
		return big.NewInt(0), nil
	}
	amount, valid := new(big.Int).SetString(strings.TrimSpace(stored), 10)
	if !valid {
		return nil, fmt.Errorf("ledger: invalid distributed amount %q", stored)
	}
	return amount, nil
}

// SetDistributed overwrites the cumulative distribution counter for the pool.
// The counter is monotone: a value below the stored one is rejected.
func (l *Ledger) SetDistributed(pool PoolKind, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if !pool.Valid() {
		return ErrInvalidPool
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: distributed amount must be non-negative")
	}
	current, err := l.Distributed(pool)
	if err != nil {
		return err
	}
	if amount.Cmp(current) < 0 {
		return fmt.Errorf("ledger: distributed counter for %s cannot decrease (%s to %s)", pool, current, amount)
	}
	return l.store.KVPut(distributedKey(pool), amount.String())
}

// Migration returns the persisted migration lock, if any.
func (l *Ledger) Migration() (*MigrationLock, bool, error) {
	if l == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedMigrationLock
	ok, err := l.store.KVGet(migrationKey, &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	lockTime, err := uint64ToInt64(stored.LockTime)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: lock time overflow: %w", err)
	}
	migrationTime, err := uint64ToInt64(stored.MigrationTime)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: migration time overflow: %w", err)
	}
	return &MigrationLock{LockTime: lockTime, MigrationTime: migrationTime, Swept: stored.Swept}, true, nil
}

// PutMigration persists the migration lock.
func (l *Ledger) PutMigration(lock *MigrationLock) error {
	if l == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if lock == nil {
		return fmt.Errorf("ledger: migration lock must not be nil")
	}
	stored := storedMigrationLock{Swept: lock.Swept}
	if lock.LockTime > 0 {
		stored.LockTime = uint64(lock.LockTime)
	}
	if lock.MigrationTime > 0 {
		stored.MigrationTime = uint64(lock.MigrationTime)
	}
	return l.store.KVPut(migrationKey, stored)
}

func (l *Ledger) loadIndex() ([]claimIndexEntry, error) {
	var raw [][]byte
	if err := l.store.KVGetList(claimIndexKey, &raw); err != nil {
		return nil, err
	}
	entries := make([]claimIndexEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		var entry claimIndexEntry
		if err := rlp.DecodeBytes(encoded, &entry); err != nil {
			return nil, err
		}
		if entry.ID == ([32]byte{}) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func claimKey(id [32]byte) []byte {
	encoded := hex.EncodeToString(id[:])
	buf := make([]byte, len(claimRecordPrefix)+len(encoded))
	copy(buf, claimRecordPrefix)
	copy(buf[len(claimRecordPrefix):], encoded)
	return buf
}

func distributedKey(pool PoolKind) []byte {
	name := pool.String()
	buf := make([]byte, len(distributedPrefix)+len(name))
	copy(buf, distributedPrefix)
	copy(buf[len(distributedPrefix):], name)
	return buf
}

func toStoredClaim(record *ClaimRecord) (storedClaimRecord, error) {
	stored := storedClaimRecord{
		ID:       record.ID,
		Pool:     uint8(record.Pool),
		Receiver: record.Receiver,
		Claimant: record.Claimant,
	}
	if record.Amount != nil {
		stored.Amount = record.Amount.String()
	}
	if record.ValidUntil < 0 || record.ClaimedAt < 0 {
		return stored, fmt.Errorf("ledger: negative timestamp")
	}
	stored.ValidUntil = uint64(record.ValidUntil)
	stored.ClaimedAt = uint64(record.ClaimedAt)
	return stored, nil
}

func fromStoredClaim(stored *storedClaimRecord) (*ClaimRecord, error) {
	if stored == nil {
		return nil, fmt.Errorf("ledger: nil stored record")
	}
	validUntil, err := uint64ToInt64(stored.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("ledger: valid until overflow: %w", err)
	}
	claimedAt, err := uint64ToInt64(stored.ClaimedAt)
	if err != nil {
		return nil, fmt.Errorf("ledger: claimed at overflow: %w", err)
	}
	record := &ClaimRecord{
		ID:         stored.ID,
		Pool:       PoolKind(stored.Pool),
		Receiver:   stored.Receiver,
		Claimant:   stored.Claimant,
		ValidUntil: validUntil,
		ClaimedAt:  claimedAt,
	}
	if strings.TrimSpace(stored.Amount) != "" {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(stored.Amount), 10)
		if !ok {
			return nil, fmt.Errorf("ledger: invalid amount %q", stored.Amount)
		}
		record.Amount = amount
	} else {
		record.Amount = big.NewInt(0)
	}
	return record, nil
}

func uint64ToInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds int64 range", value)
	}
	return int64(value), nil
}
