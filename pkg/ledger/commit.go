// Copyright 2025 Certen Protocol
//
// Commit implements finish_block (§4.3): the sole point at which TxoSIDs
// and TxnSIDs are assigned and the state commitment advances. pkg/blockcursor
// stages and validates every delta; by the time it calls Commit, every
// rejection case named in §4.2 has already been checked against a
// consistent committed snapshot, so Commit's job is purely mechanical
// application plus the durability/publish sequencing.

package ledger

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/certen/ledgercore/pkg/hashing"
	"github.com/certen/ledgercore/pkg/types"
)

// StagedTransaction is one delivered transaction's fully-resolved effect,
// ready to fold into committed state. NewOutputs excludes internally-spent
// outputs (§4.1 rule 3) — those never reach Commit since they never
// consume a TxoSID.
type StagedTransaction struct {
	Txn                  types.Transaction
	TxoInputsConsumed    []types.TxoSID
	NewOutputs           []types.TxOutput
	ConvertAccountEvents []types.ConvertAccountEvent
}

// DelegateDelta stages one Delegate operation's effect on the staking view.
type DelegateDelta struct {
	Delegator types.DelegatorID
	Validator types.ValidatorID
	Amount    uint64
}

// UnDelegateDelta stages one UnDelegate operation's effect: the named
// delegation is withdrawn in full (§9 supplement, no partial undelegation).
type UnDelegateDelta struct {
	Delegator types.DelegatorID
	Validator types.ValidatorID
}

// ClaimRewardsDelta stages one ClaimRewards operation's effect.
type ClaimRewardsDelta struct {
	Delegator types.DelegatorID
	Validator types.ValidatorID
	Amount    uint64
}

// StakingDelta is the staged staking mutation for one block, applied in the
// fixed order Delegate, UnDelegate, ClaimRewards.
type StakingDelta struct {
	Delegate     []DelegateDelta
	UnDelegate   []UnDelegateDelta
	ClaimRewards []ClaimRewardsDelta
}

// CommitBatch is everything pkg/blockcursor staged for one block, already
// validated against a committed snapshot taken at start_block.
type CommitBatch struct {
	Transactions []StagedTransaction
	AssetDefs    map[types.AssetTypeCode]types.AssetType
	IssuanceAdds map[types.AssetTypeCode][]uint64 // new seq numbers, ascending, per asset
	UnitsAdded   map[types.AssetTypeCode]uint64   // total units issued this block, per asset
	MemoUpdates  map[types.AssetTypeCode]types.MemoUpdate
	Staking      StakingDelta
}

// CommitResult maps each staged transaction (by its position in
// CommitBatch.Transactions, the TxnTempSID of §4.2) to its assigned TxnSID
// and output TxoSIDs.
type CommitResult struct {
	TxnSIDs             []types.TxnSID
	TxoIDs              [][]types.TxoSID
	BlockSID            types.BlockSID
	StateCommitment     hashing.Digest
	StateCommitmentData types.StateCommitmentData

	// ChangedValidators lists, in deterministic ascending order, every
	// validator whose TotalDelegated (hence voting power) changed this
	// block — the consensus layer turns each into an ABCI ValidatorUpdate.
	ChangedValidators []types.ValidatorID
}

// Commit performs finish_block atomically: on any error, no persisted or
// in-memory state has changed (validation happened before Commit was ever
// called, so every failure here is the Fatal kind — persistence or Merkle
// append failure — and the caller should treat it as §7 describes: abort
// the block, consider exiting the process rather than serve a divergent
// commitment).
func (ls *LedgerState) Commit(batch CommitBatch) (*CommitResult, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	kvBatch := ls.kv.NewBatch()
	defer kvBatch.Close()

	// Step 1: assign TxnSIDs contiguously from txn_count.
	txnBase := ls.status.TxnCount
	txoBase := ls.status.TxoCount

	result := &CommitResult{
		TxnSIDs: make([]types.TxnSID, len(batch.Transactions)),
		TxoIDs:  make([][]types.TxoSID, len(batch.Transactions)),
	}

	txnList := make(types.TransactionList, len(batch.Transactions))
	nextTxo := txoBase

	for i, staged := range batch.Transactions {
		txnSID := types.TxnSID(txnBase + uint64(i))
		result.TxnSIDs[i] = txnSID
		txnList[i] = staged.Txn

		// Step 2: assign TxoSIDs to non-internally-spent outputs, backfill.
		txoIDs := make([]types.TxoSID, len(staged.NewOutputs))
		outputs := make([]types.TxOutput, len(staged.NewOutputs))
		for j, out := range staged.NewOutputs {
			sid := types.TxoSID(nextTxo)
			nextTxo++
			out.TxoSID = &sid
			outputs[j] = out
			txoIDs[j] = sid
		}
		result.TxoIDs[i] = txoIDs

		ftx := types.FinalizedTransaction{
			Txn:                  staged.Txn,
			TxID:                 txnSID,
			TxoIDs:               txoIDs,
			ConvertAccountEvents: staged.ConvertAccountEvents,
		}

		// Step 3: clear consumed inputs' bits; insert new outputs, set bits.
		// Spent inputs are retained in ls.utxos with Spent set rather than
		// deleted, so get_utxo can still answer with a status-only proof
		// (§8 scenario S6) after the output is no longer live.
		for _, sid := range staged.TxoInputsConsumed {
			u, ok := ls.utxos[sid]
			if !ok {
				return nil, fmt.Errorf("ledger: spend unknown utxo %s", sid)
			}
			u.Spent = true
			ls.utxos[sid] = u
			ls.live.Clear(sid)
			ub, err := json.Marshal(u)
			if err != nil {
				return nil, fmt.Errorf("ledger: marshal spent utxo %s: %w", sid, err)
			}
			if err := kvBatch.Set(utxoKey(sid), ub); err != nil {
				return nil, fmt.Errorf("ledger: stage spent utxo %s: %w", sid, err)
			}
		}
		for j, out := range outputs {
			u := types.Utxo{Output: out, TxnSID: txnSID, Location: j}
			ls.utxos[txoIDs[j]] = u
			ls.live.Set(txoIDs[j])
			ub, err := json.Marshal(u)
			if err != nil {
				return nil, fmt.Errorf("ledger: marshal utxo %s: %w", txoIDs[j], err)
			}
			if err := kvBatch.Set(utxoKey(txoIDs[j]), ub); err != nil {
				return nil, fmt.Errorf("ledger: stage utxo %s: %w", txoIDs[j], err)
			}
		}

		// Step 5: append the finalized transaction's hash to the txn Merkle
		// tree, recording its merkle_id.
		leaf := hashing.HashOf(ftx)
		ftx.MerkleID = uint64(ls.txnMerkle.Append(leaf))

		b, err := json.Marshal(ftx)
		if err != nil {
			return nil, fmt.Errorf("ledger: marshal finalized transaction %s: %w", txnSID, err)
		}
		if err := kvBatch.Set(txnKey(txnSID), b); err != nil {
			return nil, fmt.Errorf("ledger: stage transaction %s: %w", txnSID, err)
		}
	}

	// Step 4: apply asset-registry, issuance-sequence, memo-update, and
	// staking deltas.
	for code, def := range batch.AssetDefs {
		ls.assetTypes[code] = def
		b, err := json.Marshal(def)
		if err != nil {
			return nil, fmt.Errorf("ledger: marshal asset %s: %w", code, err)
		}
		if err := kvBatch.Set(assetKey(code), b); err != nil {
			return nil, fmt.Errorf("ledger: stage asset %s: %w", code, err)
		}
	}
	for code, seqs := range batch.IssuanceAdds {
		merged := append(append([]uint64{}, ls.issuance[code]...), seqs...)
		ls.issuance[code] = merged
		if added, ok := batch.UnitsAdded[code]; ok {
			def := ls.assetTypes[code]
			def.UnitsIssued += added
			ls.assetTypes[code] = def
			b, err := json.Marshal(def)
			if err != nil {
				return nil, fmt.Errorf("ledger: marshal asset %s: %w", code, err)
			}
			if err := kvBatch.Set(assetKey(code), b); err != nil {
				return nil, fmt.Errorf("ledger: stage asset %s: %w", code, err)
			}
		}
		mb, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("ledger: marshal issuance seqs %s: %w", code, err)
		}
		if err := kvBatch.Set(issuanceKey(code), mb); err != nil {
			return nil, fmt.Errorf("ledger: stage issuance %s: %w", code, err)
		}
	}
	for code, mu := range batch.MemoUpdates {
		def, ok := ls.assetTypes[code]
		if !ok {
			return nil, fmt.Errorf("ledger: memo update for undefined asset %s", code)
		}
		def.Memo = mu.NewMemo
		ls.assetTypes[code] = def
		b, err := json.Marshal(def)
		if err != nil {
			return nil, fmt.Errorf("ledger: marshal asset %s: %w", code, err)
		}
		if err := kvBatch.Set(assetKey(code), b); err != nil {
			return nil, fmt.Errorf("ledger: stage asset %s: %w", code, err)
		}
	}
	changedValidators, err := ls.applyStakingDelta(batch.Staking, kvBatch)
	if err != nil {
		return nil, err
	}
	sort.Slice(changedValidators, func(i, j int) bool { return changedValidators[i] < changedValidators[j] })

	// Step 6: append the block's ordered-transaction-list hash to the block
	// Merkle tree. Step 7 reuses the same hash as txns_in_block_hash.
	txnsInBlockHash := hashing.HashOf(txnList)
	ls.blockMerkle.Append(txnsInBlockHash)

	blockSID := types.BlockSID(ls.status.BlockCount)
	blockRec := BlockRecord{TxnSIDs: result.TxnSIDs, Hash: txnsInBlockHash}
	brb, err := json.Marshal(blockRec)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal block record: %w", err)
	}
	if err := kvBatch.Set(blockKey(blockSID), brb); err != nil {
		return nil, fmt.Errorf("ledger: stage block record: %w", err)
	}

	newTxoCount := nextTxo
	newTxnCount := txnBase + uint64(len(batch.Transactions))
	newBlockCount := ls.status.BlockCount + 1

	commitData := types.StateCommitmentData{
		Version:                 types.StateCommitmentVersion,
		BitmapChecksum:          ls.live.Checksum(),
		BlockMerkleRoot:         ls.blockMerkle.Root(),
		TxnsInBlockHash:         txnsInBlockHash,
		PreviousStateCommitment: ls.status.LastStateCommitment,
		TxnMerkleRoot:           ls.txnMerkle.Root(),
		TxoCount:                newTxoCount,
		TxnCount:                newTxnCount,
		BlockCount:              newBlockCount,
		PulseCount:              ls.status.PulseCount,
	}
	stateCommitment := commitData.StateCommitment()

	cb, err := json.Marshal(commitData)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal state commitment data: %w", err)
	}
	if err := kvBatch.Set(commitmentKey(newBlockCount), cb); err != nil {
		return nil, fmt.Errorf("ledger: stage state commitment: %w", err)
	}

	newStatus := StatusData{
		TxoCount:            newTxoCount,
		TxnCount:            newTxnCount,
		BlockCount:          newBlockCount,
		PulseCount:          ls.status.PulseCount,
		CurrentSeqID:        ls.status.CurrentSeqID,
		LastStateCommitment: stateCommitment,
	}
	sb, err := json.Marshal(newStatus)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal status: %w", err)
	}
	if err := kvBatch.Set(keyStatus, sb); err != nil {
		return nil, fmt.Errorf("ledger: stage status: %w", err)
	}

	// Step 8: persist the whole batch atomically, then publish.
	if err := kvBatch.WriteSync(); err != nil {
		return nil, types.Fatal("ledger: commit batch write failed: %w", err)
	}

	ls.status = newStatus

	result.BlockSID = blockSID
	result.StateCommitment = stateCommitment
	result.StateCommitmentData = commitData
	result.ChangedValidators = changedValidators
	return result, nil
}

// AdvanceSeqID bumps the ledger's current admission-window reference point.
// Called once per block by the consensus callback layer, independent of
// transaction content, since the replay window (§4.5) tracks wall-clock/
// height progress rather than anything derived from staged effects.
func (ls *LedgerState) AdvanceSeqID(newSeqID uint64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if newSeqID > ls.status.CurrentSeqID {
		ls.status.CurrentSeqID = newSeqID
	}
}

func (ls *LedgerState) applyStakingDelta(d StakingDelta, kvBatch Batch) ([]types.ValidatorID, error) {
	touchedValidators := map[types.ValidatorID]bool{}
	votingPowerChanged := map[types.ValidatorID]bool{}
	touchedDelegations := map[string]struct {
		delegator types.DelegatorID
		validator types.ValidatorID
	}{}

	for _, dd := range d.Delegate {
		vs, ok := ls.staking.Validators[dd.Validator]
		if !ok {
			vs = &ValidatorStake{Validator: dd.Validator}
			ls.staking.Validators[dd.Validator] = vs
		}
		vs.TotalDelegated += dd.Amount
		touchedValidators[dd.Validator] = true
		votingPowerChanged[dd.Validator] = true

		key := delegationKey(dd.Delegator, dd.Validator)
		rec, ok := ls.staking.Delegations[key]
		if !ok {
			rec = &DelegationRecord{Delegator: dd.Delegator, Validator: dd.Validator}
			ls.staking.Delegations[key] = rec
		}
		rec.Amount += dd.Amount
		touchedDelegations[key] = struct {
			delegator types.DelegatorID
			validator types.ValidatorID
		}{dd.Delegator, dd.Validator}
	}

	for _, ud := range d.UnDelegate {
		key := delegationKey(ud.Delegator, ud.Validator)
		rec, ok := ls.staking.Delegations[key]
		if !ok {
			continue
		}
		if vs, ok := ls.staking.Validators[ud.Validator]; ok {
			vs.TotalDelegated -= rec.Amount
			touchedValidators[ud.Validator] = true
			votingPowerChanged[ud.Validator] = true
		}
		delete(ls.staking.Delegations, key)
		touchedDelegations[key] = struct {
			delegator types.DelegatorID
			validator types.ValidatorID
		}{ud.Delegator, ud.Validator}
	}

	for _, cr := range d.ClaimRewards {
		if vs, ok := ls.staking.Validators[cr.Validator]; ok {
			vs.PendingRewards -= cr.Amount
			touchedValidators[cr.Validator] = true
		}
	}

	for v := range touchedValidators {
		vs := ls.staking.Validators[v]
		b, err := json.Marshal(vs)
		if err != nil {
			return nil, fmt.Errorf("ledger: marshal validator stake %s: %w", v, err)
		}
		if err := kvBatch.Set(stakingValidatorKey(v), b); err != nil {
			return nil, fmt.Errorf("ledger: stage validator stake %s: %w", v, err)
		}
	}
	for key, ids := range touchedDelegations {
		kvKey := stakingDelegationKey(ids.delegator, ids.validator)
		rec, ok := ls.staking.Delegations[key]
		if !ok {
			// Deleted by UnDelegate: tombstone with an empty value so a
			// replica replaying the batch observes the removal too.
			if err := kvBatch.Set(kvKey, nil); err != nil {
				return nil, fmt.Errorf("ledger: stage delegation tombstone %s: %w", key, err)
			}
			continue
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("ledger: marshal delegation %s: %w", key, err)
		}
		if err := kvBatch.Set(kvKey, b); err != nil {
			return nil, fmt.Errorf("ledger: stage delegation %s: %w", key, err)
		}
	}

	changed := make([]types.ValidatorID, 0, len(votingPowerChanged))
	for v := range votingPowerChanged {
		changed = append(changed, v)
	}
	return changed, nil
}
