// Copyright 2025 Certen Protocol

package ledger

// memKV is a minimal in-memory KV/Batch pair for tests, standing in for
// pkg/kvdb.KVAdapter so LedgerState tests never need a real CometBFT-DB
// instance on disk.
type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *memKV) Set(key, value []byte) error {
	m.data[string(key)] = value
	return nil
}

func (m *memKV) NewBatch() Batch {
	return &memBatch{kv: m, pending: make(map[string][]byte)}
}

type memBatch struct {
	kv      *memKV
	pending map[string][]byte
}

func (b *memBatch) Set(key, value []byte) error {
	b.pending[string(key)] = value
	return nil
}

func (b *memBatch) WriteSync() error {
	for k, v := range b.pending {
		b.kv.data[k] = v
	}
	return nil
}

func (b *memBatch) Close() error { return nil }
