package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type mockStorage struct {
	kv map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{kv: make(map[string][]byte)}
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
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

func TestMintAndBalance(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	vault := addr(0x01)
	if err := ledger.Mint(vault, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint(vault, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	balance, err := ledger.BalanceOf(vault)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("balance = %s, want 1500", balance)
	}
}

func TestBalanceOfUnknownAddressIsZero(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	balance, err := ledger.BalanceOf(addr(0x09))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestTransfer(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	from, to := addr(0x01), addr(0x02)
	if err := ledger.Mint(from, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	fromBalance, _ := ledger.BalanceOf(from)
	toBalance, _ := ledger.BalanceOf(to)
	if fromBalance.Cmp(big.NewInt(600)) != 0 || toBalance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("balances = %s / %s, want 600 / 400", fromBalance, toBalance)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	from, to := addr(0x01), addr(0x02)
	if err := ledger.Mint(from, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(101)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	balance, _ := ledger.BalanceOf(from)
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance mutated by rejected transfer: %s", balance)
	}
}

func TestTransferRejectsBadAmount(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	from, to := addr(0x01), addr(0x02)
	if err := ledger.Transfer(from, to, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

// batchMockStorage mirrors storage.KV's atomic write path so transfer tests
// can assert the debit and credit land in a single batch.
type batchMockStorage struct {
	*mockStorage
	batchWrites int
	failBatch   bool
}

func (m *batchMockStorage) KVWriteRaw(keys, values [][]byte) error {
	if m.failBatch {
		return errors.New("batch unavailable")
	}
	if len(keys) != len(values) {
		return errors.New("mismatched batch")
	}
	for i := range keys {
		m.kv[string(keys[i])] = append([]byte(nil), values[i]...)
	}
	m.batchWrites++
	return nil
}

func TestTransferWritesBothBalancesInOneBatch(t *testing.T) {
	store := &batchMockStorage{mockStorage: newMockStorage()}
	ledger := NewLedger(store)
	from, to := addr(0x01), addr(0x02)
	if err := ledger.Mint(from, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if store.batchWrites != 1 {
		t.Fatalf("batch writes = %d, want 1", store.batchWrites)
	}
	fromBalance, _ := ledger.BalanceOf(from)
	toBalance, _ := ledger.BalanceOf(to)
	if fromBalance.Cmp(big.NewInt(600)) != 0 || toBalance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("balances = %s / %s, want 600 / 400", fromBalance, toBalance)
	}
}

func TestTransferBatchFailureLeavesBalances(t *testing.T) {
	store := &batchMockStorage{mockStorage: newMockStorage()}
	ledger := NewLedger(store)
	from, to := addr(0x01), addr(0x02)
	if err := ledger.Mint(from, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	store.failBatch = true
	if err := ledger.Transfer(from, to, big.NewInt(400)); err == nil {
		t.Fatal("expected batch failure to propagate")
	}
	fromBalance, _ := ledger.BalanceOf(from)
	toBalance, _ := ledger.BalanceOf(to)
	if fromBalance.Cmp(big.NewInt(1000)) != 0 || toBalance.Sign() != 0 {
		t.Fatalf("balances mutated by failed transfer: %s / %s", fromBalance, toBalance)
	}
}

func TestSelfTransferKeepsBalance(t *testing.T) {
	ledger := NewLedger(newMockStorage())
	account := addr(0x01)
	if err := ledger.Mint(account, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(account, account, big.NewInt(400)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	balance, _ := ledger.BalanceOf(account)
	if balance.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance = %s, want 1000", balance)
	}
}
