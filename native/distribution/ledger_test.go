package distribution

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type mockStorage struct {
	kv    map[string][]byte
	lists map[string][][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{kv: make(map[string][]byte), lists: make(map[string][][]byte)}
}

func (m *mockStorage) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.kv[string(key)] = encoded
	return nil
}

func (m *mockStorage) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.kv[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *mockStorage) KVAppend(key []byte, value []byte) error {
	k := string(key)
	m.lists[k] = append(m.lists[k], append([]byte(nil), value...))
	return nil
}

func (m *mockStorage) KVGetList(key []byte, out interface{}) error {
	encoded, err := rlp.EncodeToBytes(m.lists[string(key)])
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(encoded, out)
}

func testClaimRecord(id byte, claimedAt int64) *ClaimRecord {
	record := &ClaimRecord{
		Pool:       PoolMining,
		Amount:     big.NewInt(1000),
		ValidUntil: claimedAt + 100,
		ClaimedAt:  claimedAt,
	}
	record.ID[0] = id
	record.Receiver[0] = 0xaa
	record.Claimant[0] = 0xbb
	return record
}

func TestLedgerPutAndGetClaim(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	record := testClaimRecord(1, 1700000000)
	if err := ledger.PutClaim(record); err != nil {
		t.Fatalf("put: %v", err)
	}
	fetched, ok, err := ledger.GetClaim(record.ID)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if fetched.Pool != PoolMining {
		t.Fatalf("unexpected pool %s", fetched.Pool)
	}
	if fetched.Amount.Cmp(record.Amount) != 0 {
		t.Fatalf("unexpected amount %s", fetched.Amount)
	}
	if fetched.Receiver != record.Receiver || fetched.Claimant != record.Claimant {
		t.Fatalf("unexpected parties: %+v", fetched)
	}
	if fetched.ValidUntil != record.ValidUntil || fetched.ClaimedAt != record.ClaimedAt {
		t.Fatalf("unexpected timestamps: %+v", fetched)
	}
}

func TestLedgerRejectsReplay(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	record := testClaimRecord(1, 1700000000)
	if err := ledger.PutClaim(record); err != nil {
		t.Fatalf("put: %v", err)
	}
	duplicate := testClaimRecord(1, 1700009999)
	duplicate.Amount = big.NewInt(5)
	if err := ledger.PutClaim(duplicate); !errors.Is(err, ErrClaimAlreadyExists) {
		t.Fatalf("expected replay rejection, got %v", err)
	}
	exists, err := ledger.ClaimExists(record.ID)
	if err != nil || !exists {
		t.Fatalf("exists: %v ok=%v", err, exists)
	}
}

func TestLedgerListClaimsCursor(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	for i := byte(1); i <= 3; i++ {
		record := testClaimRecord(i, 1700000000+int64(i)*100)
		if err := ledger.PutClaim(record); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	first, cursor, err := ledger.ListClaims(0, 0, "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 2 || cursor == "" {
		t.Fatalf("expected 2 records with cursor, got %d %q", len(first), cursor)
	}
	if first[0].ClaimedAt >= first[1].ClaimedAt {
		t.Fatalf("expected ascending order, got %d then %d", first[0].ClaimedAt, first[1].ClaimedAt)
	}
	rest, next, err := ledger.ListClaims(0, 0, cursor, 2)
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(rest) != 1 || next != "" {
		t.Fatalf("expected final page of 1, got %d %q", len(rest), next)
	}
	windowed, _, err := ledger.ListClaims(1700000150, 1700000250, "", 0)
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(windowed) != 1 || windowed[0].ClaimedAt != 1700000200 {
		t.Fatalf("unexpected window result: %+v", windowed)
	}
}

func TestLedgerDistributedCounters(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	initial, err := ledger.Distributed(PoolReferral)
	if err != nil {
		t.Fatalf("distributed: %v", err)
	}
	if initial.Sign() != 0 {
		t.Fatalf("expected zero initial counter, got %s", initial)
	}
	if err := ledger.SetDistributed(PoolReferral, big.NewInt(12345)); err != nil {
		t.Fatalf("set: %v", err)
	}
	updated, err := ledger.Distributed(PoolReferral)
	if err != nil {
		t.Fatalf("distributed: %v", err)
	}
	if updated.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("unexpected counter %s", updated)
	}
	if err := ledger.SetDistributed(PoolKind(9), big.NewInt(1)); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("expected invalid pool, got %v", err)
	}
}

func TestLedgerDistributedNeverDecreases(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	if err := ledger.SetDistributed(PoolMining, big.NewInt(100)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ledger.SetDistributed(PoolMining, big.NewInt(50)); err == nil {
		t.Fatal("expected decreasing counter to be rejected")
	}
	if err := ledger.SetDistributed(PoolMining, big.NewInt(100)); err != nil {
		t.Fatalf("equal value rewrite: %v", err)
	}
	if err := ledger.SetDistributed(PoolMining, big.NewInt(150)); err != nil {
		t.Fatalf("advance: %v", err)
	}
	current, err := ledger.Distributed(PoolMining)
	if err != nil {
		t.Fatalf("distributed: %v", err)
	}
	if current.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("unexpected counter %s", current)
	}
}

func TestLedgerMigrationRoundTrip(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	if _, exists, err := ledger.Migration(); err != nil || exists {
		t.Fatalf("expected no migration, got exists=%v err=%v", exists, err)
	}
	lock := &MigrationLock{LockTime: 1700000000, MigrationTime: 1700604800}
	if err := ledger.PutMigration(lock); err != nil {
		t.Fatalf("put: %v", err)
	}
	fetched, exists, err := ledger.Migration()
	if err != nil || !exists {
		t.Fatalf("get: %v exists=%v", err, exists)
	}
	if fetched.LockTime != lock.LockTime || fetched.MigrationTime != lock.MigrationTime || fetched.Swept {
		t.Fatalf("unexpected lock %+v", fetched)
	}
	fetched.Swept = true
	if err := ledger.PutMigration(fetched); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _, err := ledger.Migration()
	if err != nil || !again.Swept {
		t.Fatalf("expected swept flag, got %+v err=%v", again, err)
	}
}
