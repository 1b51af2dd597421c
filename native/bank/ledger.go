package bank

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrInvalidAmount     = errors.New("bank: amount must be positive")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
)

// Storage abstracts the key-value state access required by the token ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// rawBatchWriter is implemented by storage backends (storage.KV) that can
// apply both balance writes of a transfer in one atomic batch.
type rawBatchWriter interface {
	KVWriteRaw(keys, values [][]byte) error
}

var balancePrefix = []byte("bank/balance/")

// Ledger implements the fungible-token balance and transfer primitives over
// the key-value store. The distribution engine consumes it through its
// TokenLedger capability interface.
type Ledger struct {
	store Storage
}

// NewLedger constructs a token ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// BalanceOf returns the balance held by the address.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("bank: ledger not initialised")
	}
	var stored string
	ok, err := l.store.KVGet(balanceKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(stored) == "" {
		return big.NewInt(0), nil
	}
	balance, valid := new(big.Int).SetString(strings.TrimSpace(stored), 10)
	if !valid {
		return nil, fmt.Errorf("bank: invalid balance %q", stored)
	}
	return balance, nil
}

// Transfer moves amount from one address to another, rejecting overdrafts.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("bank: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	// A self-transfer must not double-apply the credit.
	if from == to {
		return nil
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance.Add(toBalance, amount)
	// Debit and credit must land together: a write failure between the two
	// would otherwise destroy or duplicate tokens.
	if writer, ok := l.store.(rawBatchWriter); ok {
		fromEncoded, err := rlp.EncodeToBytes(fromBalance.String())
		if err != nil {
			return err
		}
		toEncoded, err := rlp.EncodeToBytes(toBalance.String())
		if err != nil {
			return err
		}
		return writer.KVWriteRaw(
			[][]byte{balanceKey(from), balanceKey(to)},
			[][]byte{fromEncoded, toEncoded},
		)
	}
	if err := l.store.KVPut(balanceKey(from), fromBalance.String()); err != nil {
		return err
	}
	return l.store.KVPut(balanceKey(to), toBalance.String())
}

// Mint credits amount to the address. Used once at genesis to pre-fund the
// distribution vault.
func (l *Ledger) Mint(to [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("bank: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return l.store.KVPut(balanceKey(to), balance.String())
}

func balanceKey(addr [20]byte) []byte {
	encoded := hex.EncodeToString(addr[:])
	buf := make([]byte, len(balancePrefix)+len(encoded))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], encoded)
	return buf
}
