// Copyright 2025 Certen Protocol
//
// Recovery: LoadLedgerState reconstructs an in-memory LedgerState from a KV
// store written by a previous process. Every in-memory structure here
// (utxos, assetTypes, issuance, staking, the two Merkle logs, the bitmap)
// is rebuilt by replaying the persisted records rather than kept as a
// separate serialized blob, since the KV tables are already the durable
// source of truth (§6).

package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/certen/ledgercore/pkg/bitmap"
	"github.com/certen/ledgercore/pkg/hashing"
	"github.com/certen/ledgercore/pkg/merkle"
	"github.com/certen/ledgercore/pkg/types"
)

// LoadLedgerState reconstructs LedgerState from kv. If no status record has
// ever been written, it returns a fresh genesis LedgerState instead of an
// error — a brand-new chain has no prior commit to recover.
func LoadLedgerState(kv KV) (*LedgerState, error) {
	ls := NewLedgerState(kv)

	statusBytes, err := kv.Get(keyStatus)
	if err != nil {
		return nil, fmt.Errorf("ledger: read status: %w", err)
	}
	if len(statusBytes) == 0 {
		return ls, nil // genesis
	}

	var status StatusData
	if err := json.Unmarshal(statusBytes, &status); err != nil {
		return nil, fmt.Errorf("ledger: decode status: %w", err)
	}
	ls.status = status

	// Rebuild the UTXO map by replaying every assigned TxoSID's committed
	// record, spent or not — Commit never removes a utxo key, only flips
	// its Spent field. The bitmap is rebuilt from the recovered map's
	// Spent bits at the end of this function.
	for sid := uint64(0); sid < status.TxoCount; sid++ {
		b, err := kv.Get(utxoKey(types.TxoSID(sid)))
		if err != nil {
			return nil, fmt.Errorf("ledger: read utxo %d: %w", sid, err)
		}
		if len(b) == 0 {
			continue
		}
		var u types.Utxo
		if err := json.Unmarshal(b, &u); err != nil {
			return nil, fmt.Errorf("ledger: decode utxo %d: %w", sid, err)
		}
		ls.utxos[types.TxoSID(sid)] = u
	}

	// Rebuild the two Merkle logs from every committed transaction and
	// block's leaf hashes, in TxnSID/BlockSID order.
	txnLeaves := make([]hashing.Digest, status.TxnCount)
	for sid := uint64(0); sid < status.TxnCount; sid++ {
		b, err := kv.Get(txnKey(types.TxnSID(sid)))
		if err != nil {
			return nil, fmt.Errorf("ledger: read transaction %d: %w", sid, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("ledger: missing committed transaction %d", sid)
		}
		var ftx types.FinalizedTransaction
		if err := json.Unmarshal(b, &ftx); err != nil {
			return nil, fmt.Errorf("ledger: decode transaction %d: %w", sid, err)
		}
		txnLeaves[sid] = hashing.HashOf(ftx)
	}
	if len(txnLeaves) > 0 {
		tree, err := merkle.BuildTree(txnLeaves)
		if err != nil {
			return nil, fmt.Errorf("ledger: rebuild transaction merkle tree: %w", err)
		}
		ls.txnMerkle = tree
	}

	blockLeaves := make([]hashing.Digest, status.BlockCount)
	for sid := uint64(0); sid < status.BlockCount; sid++ {
		b, err := kv.Get(blockKey(types.BlockSID(sid)))
		if err != nil {
			return nil, fmt.Errorf("ledger: read block %d: %w", sid, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("ledger: missing committed block %d", sid)
		}
		var rec BlockRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("ledger: decode block %d: %w", sid, err)
		}
		blockLeaves[sid] = rec.Hash
	}
	if len(blockLeaves) > 0 {
		tree, err := merkle.BuildTree(blockLeaves)
		if err != nil {
			return nil, fmt.Errorf("ledger: rebuild block merkle tree: %w", err)
		}
		ls.blockMerkle = tree
	}

	// Rebuild the asset registry and issuance tables: every asset key is
	// discovered via the issuance/asset tables, which are both addressed by
	// the same AssetTypeCode space; without a key-iteration primitive in KV,
	// we recover the set of asset codes from the transactions themselves.
	seenAssets := map[types.AssetTypeCode]bool{}
	for sid := uint64(0); sid < status.TxnCount; sid++ {
		b, err := kv.Get(txnKey(types.TxnSID(sid)))
		if err != nil || len(b) == 0 {
			continue
		}
		var ftx types.FinalizedTransaction
		if err := json.Unmarshal(b, &ftx); err != nil {
			continue
		}
		for _, op := range ftx.Txn.Body.Operations {
			switch o := op.(type) {
			case types.DefineAsset:
				seenAssets[o.Code] = true
			case types.IssueAsset:
				seenAssets[o.Code] = true
			}
		}
	}
	for code := range seenAssets {
		b, err := kv.Get(assetKey(code))
		if err != nil {
			return nil, fmt.Errorf("ledger: read asset %s: %w", code, err)
		}
		if len(b) == 0 {
			continue
		}
		var def types.AssetType
		if err := json.Unmarshal(b, &def); err != nil {
			return nil, fmt.Errorf("ledger: decode asset %s: %w", code, err)
		}
		ls.assetTypes[code] = def

		ib, err := kv.Get(issuanceKey(code))
		if err != nil {
			return nil, fmt.Errorf("ledger: read issuance %s: %w", code, err)
		}
		if len(ib) > 0 {
			var seqs []uint64
			if err := json.Unmarshal(ib, &seqs); err != nil {
				return nil, fmt.Errorf("ledger: decode issuance %s: %w", code, err)
			}
			ls.issuance[code] = seqs
		}
	}

	// Rebuild the staking view from the set of (delegator, validator) pairs
	// referenced by committed Delegate/UnDelegate/ClaimRewards operations,
	// for the same reason as the asset registry above.
	type delegationPair struct {
		delegator types.DelegatorID
		validator types.ValidatorID
	}
	seenValidators := map[types.ValidatorID]bool{}
	seenDelegations := map[string]delegationPair{}
	for sid := uint64(0); sid < status.TxnCount; sid++ {
		b, err := kv.Get(txnKey(types.TxnSID(sid)))
		if err != nil || len(b) == 0 {
			continue
		}
		var ftx types.FinalizedTransaction
		if err := json.Unmarshal(b, &ftx); err != nil {
			continue
		}
		for _, op := range ftx.Txn.Body.Operations {
			switch o := op.(type) {
			case types.Delegate:
				seenValidators[o.Validator] = true
				d := types.DelegatorIDFromKey(o.DelegatorKey)
				seenDelegations[delegationKey(d, o.Validator)] = delegationPair{d, o.Validator}
			case types.UnDelegate:
				seenValidators[o.Validator] = true
				d := types.DelegatorIDFromKey(o.DelegatorKey)
				seenDelegations[delegationKey(d, o.Validator)] = delegationPair{d, o.Validator}
			case types.ClaimRewards:
				seenValidators[o.Validator] = true
			}
		}
	}
	for v := range seenValidators {
		b, err := kv.Get(stakingValidatorKey(v))
		if err != nil {
			return nil, fmt.Errorf("ledger: read validator %s: %w", v, err)
		}
		if len(b) == 0 {
			continue
		}
		var vs ValidatorStake
		if err := json.Unmarshal(b, &vs); err != nil {
			return nil, fmt.Errorf("ledger: decode validator %s: %w", v, err)
		}
		cp := vs
		ls.staking.Validators[v] = &cp
	}
	for key, pair := range seenDelegations {
		b, err := kv.Get(stakingDelegationKey(pair.delegator, pair.validator))
		if err != nil {
			return nil, fmt.Errorf("ledger: read delegation %s: %w", key, err)
		}
		if len(b) == 0 {
			continue // tombstoned by a later UnDelegate
		}
		var rec DelegationRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("ledger: decode delegation %s: %w", key, err)
		}
		cp := rec
		ls.staking.Delegations[key] = &cp
	}

	ls.live = rebuildBitmap(ls.utxos)

	return ls, nil
}

func rebuildBitmap(utxos map[types.TxoSID]types.Utxo) *bitmap.Bitmap {
	b := bitmap.New()
	for sid, u := range utxos {
		if !u.Spent {
			b.Set(sid)
		}
	}
	return b
}
