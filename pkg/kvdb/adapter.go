// Copyright 2025 Certen Protocol
//
// KV Adapter for CometBFT Database Integration
// Wraps CometBFT's dbm.DB interface to implement ledger.KV and ledger.Batch

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/ledgercore/pkg/ledger"
)

// KVAdapter wraps a CometBFT dbm.DB and exposes the ledger.KV interface.
// This allows LedgerState to use CometBFT's persistent storage directly.
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter creates a new KVAdapter for the given underlying DB.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// Get implements ledger.KV.Get
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}

	// CometBFT DB returns (val, error)
	if v, err := a.db.Get(key); err != nil {
		return nil, err
	} else {
		// v may be nil if key not found – that's fine, ledger treats nil as "not present".
		return v, nil
	}
}

// Set implements ledger.KV.Set, for single-key writes outside a commit;
// commit-time writes go through
// a Batch instead so the whole finish_block persists atomically.
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// NewBatch implements ledger.KV.NewBatch, backed by CometBFT's atomic batch.
func (a *KVAdapter) NewBatch() ledger.Batch {
	return &BatchAdapter{batch: a.db.NewBatch()}
}

// BatchAdapter wraps a CometBFT dbm.Batch and exposes ledger.Batch.
type BatchAdapter struct {
	batch dbm.Batch
}

// Set stages key/value for the batch.
func (b *BatchAdapter) Set(key, value []byte) error {
	return b.batch.Set(key, value)
}

// WriteSync durably commits every staged write atomically.
func (b *BatchAdapter) WriteSync() error {
	return b.batch.WriteSync()
}

// Close releases the batch's resources.
func (b *BatchAdapter) Close() error {
	return b.batch.Close()
}
