package distribution

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// rawBatchWriter is implemented by storage backends (storage.KV) that can
// apply a set of pre-encoded writes in one atomic batch.
type rawBatchWriter interface {
	KVWriteRaw(keys, values [][]byte) error
}

// stagedState buffers every write of one engine operation over the base
// storage. Reads see the staged writes layered over the base; nothing reaches
// the base until Commit, so bailing out at any point before the final flush
// leaves persisted state untouched.
type stagedState struct {
	base        Storage
	putOrder    []string
	puts        map[string][]byte
	appendOrder []string
	appends     map[string][][]byte
}

func newStagedState(base Storage) *stagedState {
	return &stagedState{
		base:    base,
		puts:    make(map[string][]byte),
		appends: make(map[string][][]byte),
	}
}

func (s *stagedState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	k := string(key)
	if _, exists := s.puts[k]; !exists {
		s.putOrder = append(s.putOrder, k)
	}
	s.puts[k] = encoded
	return nil
}

func (s *stagedState) KVGet(key []byte, out interface{}) (bool, error) {
	if encoded, ok := s.puts[string(key)]; ok {
		if out == nil {
			return true, nil
		}
		if err := rlp.DecodeBytes(encoded, out); err != nil {
			return false, err
		}
		return true, nil
	}
	return s.base.KVGet(key, out)
}

func (s *stagedState) KVAppend(key []byte, value []byte) error {
	k := string(key)
	if _, exists := s.appends[k]; !exists {
		s.appendOrder = append(s.appendOrder, k)
	}
	s.appends[k] = append(s.appends[k], append([]byte(nil), value...))
	return nil
}

func (s *stagedState) KVGetList(key []byte, out interface{}) error {
	var list [][]byte
	if err := s.base.KVGetList(key, &list); err != nil {
		return err
	}
	list = append(list, s.appends[string(key)]...)
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(encoded, out)
}

// Commit flushes the staged writes to the base store. Batch-capable backends
// receive everything, staged list appends included, as one atomic write set.
func (s *stagedState) Commit() error {
	if len(s.puts) == 0 && len(s.appends) == 0 {
		return nil
	}
	if writer, ok := s.base.(rawBatchWriter); ok {
		keys := make([][]byte, 0, len(s.putOrder)+len(s.appendOrder))
		values := make([][]byte, 0, len(s.putOrder)+len(s.appendOrder))
		for _, k := range s.putOrder {
			keys = append(keys, []byte(k))
			values = append(values, s.puts[k])
		}
		for _, k := range s.appendOrder {
			var list [][]byte
			if err := s.base.KVGetList([]byte(k), &list); err != nil {
				return err
			}
			list = append(list, s.appends[k]...)
			encoded, err := rlp.EncodeToBytes(list)
			if err != nil {
				return err
			}
			keys = append(keys, []byte(k))
			values = append(values, encoded)
		}
		return writer.KVWriteRaw(keys, values)
	}
	for _, k := range s.putOrder {
		if err := s.base.KVPut([]byte(k), rlp.RawValue(s.puts[k])); err != nil {
			return err
		}
	}
	for _, k := range s.appendOrder {
		for _, entry := range s.appends[k] {
			if err := s.base.KVAppend([]byte(k), entry); err != nil {
				return err
			}
		}
	}
	return nil
}
