// Copyright 2025 Certen Protocol
//
// KV key layout (§6 "Persisted state layout"). Keys are flat byte strings
// rather than a nested store, matching the teacher's own KV abstraction
// (pkg/kvdb wraps CometBFT's dbm.DB, which is itself a flat key space).

package ledger

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/certen/ledgercore/pkg/types"
)

// KV is the minimal persistence abstraction LedgerState depends on.
// pkg/kvdb.KVAdapter implements this over a CometBFT dbm.DB.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	NewBatch() Batch
}

// Batch accumulates writes that must durably land all-at-once or not at
// all (§5 "the KV engine is assumed to provide atomic multi-key batches").
// Commit stages every changed key into one Batch and only publishes the new
// state commitment after WriteSync returns.
type Batch interface {
	Set(key, value []byte) error
	WriteSync() error
	Close() error
}

// keyStatus is the only top-level singleton key. The transaction/block
// Merkle logs and the liveness bitmap are not given their own persisted
// keys: all three are fully and deterministically reconstructible from the
// utxo/txn/block records below (see LoadLedgerState), so persisting them
// again as separate blobs would just be a redundant, driftable cache.
var (
	keyStatus = []byte("status")

	prefixUtxo       = []byte("utxos:")
	prefixAsset      = []byte("asset_types:")
	prefixIssuance   = []byte("issuance_numbers:")
	prefixStakingVal = []byte("staking:validator:")
	prefixStakingDel = []byte("staking:delegation:")
	prefixTxn        = []byte("txn:")
	prefixBlock      = []byte("block:")
	prefixCommitment = []byte("state_commitments:")
)

func be64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func utxoKey(sid types.TxoSID) []byte {
	return append(append([]byte{}, prefixUtxo...), be64(uint64(sid))...)
}

func assetKey(code types.AssetTypeCode) []byte {
	return append(append([]byte{}, prefixAsset...), []byte(hex.EncodeToString(code[:]))...)
}

func issuanceKey(code types.AssetTypeCode) []byte {
	return append(append([]byte{}, prefixIssuance...), []byte(hex.EncodeToString(code[:]))...)
}

func stakingValidatorKey(v types.ValidatorID) []byte {
	return append(append([]byte{}, prefixStakingVal...), []byte(v)...)
}

func stakingDelegationKey(d types.DelegatorID, v types.ValidatorID) []byte {
	return append(append([]byte{}, prefixStakingDel...), []byte(delegationKey(d, v))...)
}

func txnKey(sid types.TxnSID) []byte {
	return append(append([]byte{}, prefixTxn...), be64(uint64(sid))...)
}

func blockKey(sid types.BlockSID) []byte {
	return append(append([]byte{}, prefixBlock...), be64(uint64(sid))...)
}

func commitmentKey(height uint64) []byte {
	return append(append([]byte{}, prefixCommitment...), be64(height)...)
}
