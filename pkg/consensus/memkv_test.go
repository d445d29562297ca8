// Copyright 2025 Certen Protocol

package consensus

import "github.com/certen/ledgercore/pkg/ledger"

// memKVForConsensusTest is a trivial in-memory ledger.KV, standing in for
// pkg/kvdb.KVAdapter so consensus tests never need a real CometBFT-DB
// instance on disk.
type memKVForConsensusTest struct {
	data map[string][]byte
}

func newMemKVForConsensusTest() *memKVForConsensusTest {
	return &memKVForConsensusTest{data: make(map[string][]byte)}
}

func (m *memKVForConsensusTest) Get(key []byte) ([]byte, error) {
	return m.data[string(key)], nil
}

func (m *memKVForConsensusTest) Set(key, value []byte) error {
	m.data[string(key)] = value
	return nil
}

func (m *memKVForConsensusTest) NewBatch() ledger.Batch {
	return &consensusTestBatch{kv: m, pending: make(map[string][]byte)}
}

type consensusTestBatch struct {
	kv      *memKVForConsensusTest
	pending map[string][]byte
}

func (b *consensusTestBatch) Set(key, value []byte) error {
	b.pending[string(key)] = value
	return nil
}

func (b *consensusTestBatch) WriteSync() error {
	for k, v := range b.pending {
		b.kv.data[k] = v
	}
	return nil
}

func (b *consensusTestBatch) Close() error { return nil }
