package distribution

import (
	"bytes"
	"testing"

	"tokendrop/storage"
)

func TestStagedWritesInvisibleUntilCommit(t *testing.T) {
	base := newMockStorage()
	staged := newStagedState(base)
	if err := staged.KVPut([]byte("counter"), "42"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := staged.KVAppend([]byte("index"), []byte("entry")); err != nil {
		t.Fatalf("append: %v", err)
	}

	var out string
	ok, err := staged.KVGet([]byte("counter"), &out)
	if err != nil || !ok {
		t.Fatalf("staged read: ok=%v err=%v", ok, err)
	}
	if out != "42" {
		t.Fatalf("staged read = %q, want 42", out)
	}
	if ok, _ := base.KVGet([]byte("counter"), &out); ok {
		t.Fatal("staged put leaked to base before commit")
	}
	var entries [][]byte
	if err := base.KVGetList([]byte("index"), &entries); err != nil {
		t.Fatalf("base list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("staged append leaked to base before commit")
	}

	if err := staged.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, err := base.KVGet([]byte("counter"), &out); err != nil || !ok || out != "42" {
		t.Fatalf("base read after commit: ok=%v err=%v out=%q", ok, err, out)
	}
	if err := base.KVGetList([]byte("index"), &entries); err != nil {
		t.Fatalf("base list: %v", err)
	}
	if len(entries) != 1 || !bytes.Equal(entries[0], []byte("entry")) {
		t.Fatalf("unexpected base list after commit: %v", entries)
	}
}

func TestStagedListMergesBaseAndStaged(t *testing.T) {
	base := newMockStorage()
	if err := base.KVAppend([]byte("index"), []byte("old")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	staged := newStagedState(base)
	if err := staged.KVAppend([]byte("index"), []byte("new")); err != nil {
		t.Fatalf("append: %v", err)
	}
	var entries [][]byte
	if err := staged.KVGetList([]byte("index"), &entries); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || !bytes.Equal(entries[0], []byte("old")) || !bytes.Equal(entries[1], []byte("new")) {
		t.Fatalf("unexpected merged list: %v", entries)
	}
}

func TestStagedCommitThroughBatchBackend(t *testing.T) {
	kv := storage.NewKV(storage.NewMemDB())
	if err := kv.KVAppend([]byte("index"), []byte("old")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	staged := newStagedState(kv)
	if err := staged.KVPut([]byte("counter"), "7"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := staged.KVAppend([]byte("index"), []byte("new")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := staged.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var out string
	ok, err := kv.KVGet([]byte("counter"), &out)
	if err != nil || !ok || out != "7" {
		t.Fatalf("base read after commit: ok=%v err=%v out=%q", ok, err, out)
	}
	var entries [][]byte
	if err := kv.KVGetList([]byte("index"), &entries); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || !bytes.Equal(entries[0], []byte("old")) || !bytes.Equal(entries[1], []byte("new")) {
		t.Fatalf("unexpected list after commit: %v", entries)
	}
}

func TestStagedEmptyCommitIsNoop(t *testing.T) {
	base := newMockStorage()
	staged := newStagedState(base)
	if err := staged.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(base.kv) != 0 || len(base.lists) != 0 {
		t.Fatal("empty commit mutated base")
	}
}
