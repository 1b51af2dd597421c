package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KV layers RLP encoding and list semantics over a raw Database, providing
// the structured accessors the distribution ledger expects.
type KV struct {
	db Database
}

// NewKV wraps the supplied database.
func NewKV(db Database) *KV {
	return &KV{db: db}
}

// KVPut RLP-encodes the value and stores it under key.
func (kv *KV) KVPut(key []byte, value interface{}) error {
	if kv == nil || kv.db == nil {
		return fmt.Errorf("storage: kv not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return kv.db.Put(key, encoded)
}

// KVGet decodes the stored value into out. The boolean reports whether the
// key was present; a missing key is not an error.
func (kv *KV) KVGet(key []byte, out interface{}) (bool, error) {
	if kv == nil || kv.db == nil {
		return false, fmt.Errorf("storage: kv not initialised")
	}
	encoded, err := kv.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVWriteRaw applies pre-encoded key/value pairs, in one atomic batch when
// the backend supports batching. Values must already be RLP encoded.
func (kv *KV) KVWriteRaw(keys, values [][]byte) error {
	if kv == nil || kv.db == nil {
		return fmt.Errorf("storage: kv not initialised")
	}
	if len(keys) != len(values) {
		return fmt.Errorf("storage: %d keys for %d values", len(keys), len(values))
	}
	if batcher, ok := kv.db.(BatchDatabase); ok {
		batch := batcher.NewBatch()
		for i := range keys {
			if err := batch.Put(keys[i], values[i]); err != nil {
				return err
			}
		}
		return batch.Write()
	}
	for i := range keys {
		if err := kv.db.Put(keys[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

// KVAppend appends a raw entry to the list stored under key.
func (kv *KV) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := kv.KVGet(key, &list); err != nil {
		return err
	}
	list = append(list, append([]byte(nil), value...))
	return kv.KVPut(key, list)
}

// KVGetList decodes the list stored under key into out. A missing key yields
// an empty list.
func (kv *KV) KVGetList(key []byte, out interface{}) error {
	ok, err := kv.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		empty, err := rlp.EncodeToBytes([][]byte{})
		if err != nil {
			return err
		}
		return rlp.DecodeBytes(empty, out)
	}
	return nil
}
