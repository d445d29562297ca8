// Copyright 2025 Certen Protocol
//
// Block cursor (§4.2): stages the effects of a sequence of transactions so
// that every transaction it accepted finalizes atomically in FinishBlock,
// or all of them are discarded together by AbortBlock. Exactly
// one Cursor may be open (StartBlock'd) against a LedgerState at a time —
// the caller (pkg/consensus) enforces that serially, matching the teacher's
// original single ABCI-application-instance assumption.

package blockcursor

import (
	"bytes"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/types"
)

// TxnTempSID identifies a transaction staged within one open block, before
// finish_block assigns its real TxnSID. It is simply the transaction's
// position in delivery order within this block.
type TxnTempSID uint64

// TxnRef is what finish_block reports for one staged transaction: its
// assigned TxnSID and the TxoSIDs backfilled into its outputs, in output
// order (§4.3 steps 1-2).
type TxnRef struct {
	TxnSID types.TxnSID
	TxoIDs []types.TxoSID
}

var (
	errCursorNotOpen     = fmt.Errorf("blockcursor: no block is open")
	errCursorAlreadyOpen = fmt.Errorf("blockcursor: a block is already open")
)

// Cursor is the single staging area for one in-flight block.
type Cursor struct {
	ls     *ledger.LedgerState
	logger *log.Logger

	mu   sync.Mutex
	open bool

	// correlationID is stamped fresh by every StartBlock call, so every
	// log line emitted while this block is open can be grepped together
	// even when blocks are processed back to back with no other
	// distinguishing detail.
	correlationID uuid.UUID

	consumed map[types.TxoSID]bool

	stagedAssetDefs  map[types.AssetTypeCode]types.AssetType
	stagedMaxSeq     map[types.AssetTypeCode]uint64
	stagedUnitsAdded map[types.AssetTypeCode]uint64
	stagedMemoUpdate map[types.AssetTypeCode]types.MemoUpdate

	stakeDelegationAmount map[string]uint64
	stakeDelegationLive   map[string]bool
	stakeValidatorRewards map[types.ValidatorID]uint64
	stakeSeeded           map[string]bool
	stakeValidatorSeeded  map[types.ValidatorID]bool

	transactions []ledger.StagedTransaction
	staking      ledger.StakingDelta
}

// NewCursor constructs a cursor over ls. The cursor itself holds no
// reference to committed mutable maps — every lookup goes through ls's
// read accessors, which take their own RLock.
func NewCursor(ls *ledger.LedgerState) *Cursor {
	return &Cursor{ls: ls, logger: log.New(log.Writer(), "[blockcursor] ", log.LstdFlags)}
}

// CorrelationID returns the uuid.UUID stamped on the block currently open,
// or the zero UUID if no block is open.
func (c *Cursor) CorrelationID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.correlationID
}

// StartBlock allocates an empty cursor against the current committed
// snapshot, stamping it with a fresh correlation id (§4.2). Fails if a
// block is already open.
func (c *Cursor) StartBlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return errCursorAlreadyOpen
	}
	c.open = true
	c.correlationID = uuid.New()
	c.logger.Printf("start_block correlation_id=%s", c.correlationID)
	c.consumed = make(map[types.TxoSID]bool)
	c.stagedAssetDefs = make(map[types.AssetTypeCode]types.AssetType)
	c.stagedMaxSeq = make(map[types.AssetTypeCode]uint64)
	c.stagedUnitsAdded = make(map[types.AssetTypeCode]uint64)
	c.stagedMemoUpdate = make(map[types.AssetTypeCode]types.MemoUpdate)
	c.stakeDelegationAmount = make(map[string]uint64)
	c.stakeDelegationLive = make(map[string]bool)
	c.stakeValidatorRewards = make(map[types.ValidatorID]uint64)
	c.stakeSeeded = make(map[string]bool)
	c.stakeValidatorSeeded = make(map[types.ValidatorID]bool)
	c.transactions = nil
	c.staking = ledger.StakingDelta{}
	return nil
}

// AbortBlock discards all staged state. Idempotent: aborting a cursor that
// is not open is a no-op, matching §5's cancellation contract.
func (c *Cursor) AbortBlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		c.logger.Printf("abort_block correlation_id=%s", c.correlationID)
	}
	c.open = false
	c.correlationID = uuid.Nil
	c.consumed = nil
	c.stagedAssetDefs = nil
	c.stagedMaxSeq = nil
	c.stagedUnitsAdded = nil
	c.stagedMemoUpdate = nil
	c.stakeDelegationAmount = nil
	c.stakeDelegationLive = nil
	c.stakeValidatorRewards = nil
	c.stakeSeeded = nil
	c.stakeValidatorSeeded = nil
	c.transactions = nil
	c.staking = ledger.StakingDelta{}
}

// outputSlot mirrors pkg/effect's transaction-wide output numbering, needed
// again here because apply-time transferability checks (unlike extraction)
// must resolve a relative input's owner and asset code, not just its bytes.
// Index validity (a relative input must reference an earlier operation) was
// already enforced by extraction; this rebuild only needs the slot's data.
type outputSlot struct {
	assetCode    types.AssetTypeCode
	owner        types.XfrPublicKey
	confidential bool
}

func collectSlots(tx types.Transaction) []outputSlot {
	var slots []outputSlot
	for _, op := range tx.Body.Operations {
		switch o := op.(type) {
		case types.IssueAsset:
			for _, out := range o.Outputs {
				slots = append(slots, outputSlot{
					assetCode:    out.Record.AssetType,
					owner:        out.Record.PublicKey,
					confidential: out.Record.AssetTypeConfidential,
				})
			}
		case types.TransferAsset:
			for _, out := range o.Outputs {
				slots = append(slots, outputSlot{
					assetCode:    out.Record.AssetType,
					owner:        out.Record.PublicKey,
					confidential: out.Record.AssetTypeConfidential,
				})
			}
		}
	}
	return slots
}

// ApplyEffect stages tx's already-extracted Effect, checking every
// apply-time rejection named in §4.2. On success it returns the
// TxnTempSID assigned to tx within this block.
func (c *Cursor) ApplyEffect(tx types.Transaction, eff *types.Effect) (TxnTempSID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return 0, errCursorNotOpen
	}

	// InputDoubleSpend: already consumed in this block, or absent from the
	// committed UTXO map (absolute inputs can never name a TxoSID from the
	// still-open block, since TxoSIDs are only assigned at finish_block).
	for _, sid := range eff.TxoInputsConsumed {
		if c.consumed[sid] {
			return 0, types.Conflict("InputDoubleSpend: txo %s already consumed earlier in this block", sid)
		}
		if _, ok := c.ls.GetUtxo(sid); !ok {
			return 0, types.Conflict("InputDoubleSpend: txo %s missing from committed utxo set", sid)
		}
	}

	// AssetRedefinition: collides with either the committed registry or an
	// earlier transaction staged in this same block.
	for code := range eff.NewAssetDefs {
		if _, ok := c.stagedAssetDefs[code]; ok {
			return 0, types.Conflict("AssetRedefinition: asset %s already staged earlier in this block", code)
		}
		if _, ok := c.ls.GetAssetType(code); ok {
			return 0, types.Conflict("AssetRedefinition: asset %s already defined", code)
		}
	}

	// resolveAssetDef checks this transaction's own new definitions first
	// (a DefineAsset and its IssueAsset may share one transaction), then
	// this block's earlier staged definitions, then the committed registry.
	resolveAssetDef := func(code types.AssetTypeCode) (types.AssetType, bool) {
		if def, ok := eff.NewAssetDefs[code]; ok {
			return def, true
		}
		if def, ok := c.stagedAssetDefs[code]; ok {
			return def, true
		}
		return c.ls.GetAssetType(code)
	}

	// IssuanceReplay + IssuerMismatch.
	for code, seqs := range eff.NewIssuanceNums {
		def, ok := resolveAssetDef(code)
		if !ok {
			return 0, types.Conflict("IssuerMismatch: asset %s is not defined", code)
		}
		issuer, ok := eff.IssuanceKeys[code]
		if !ok || !issuer.Key.Equal(def.IssuerPublicKey.Key) {
			return 0, types.Conflict("IssuerMismatch: issuance signer does not match registered issuer for asset %s", code)
		}

		maxSeq, have := c.ls.MaxIssuanceSeq(code)
		if staged, ok := c.stagedMaxSeq[code]; ok && (!have || staged > maxSeq) {
			maxSeq, have = staged, true
		}
		for _, seq := range seqs {
			if have && seq <= maxSeq {
				return 0, types.Conflict("IssuanceReplay: issuance seq %d for asset %s not strictly greater than %d", seq, code, maxSeq)
			}
			maxSeq, have = seq, true
		}
	}

	// IssuanceCapExceeded: walk this transaction's IssueAsset operations
	// directly, since Effect does not carry per-asset unit totals.
	unitsThisTx := map[types.AssetTypeCode]uint64{}
	for _, op := range tx.Body.Operations {
		issue, ok := op.(types.IssueAsset)
		if !ok {
			continue
		}
		def, ok := resolveAssetDef(issue.Code)
		if !ok || def.Rules.MaxUnits == nil {
			continue // unbounded issuance: no cap to exceed
		}
		total, verifiable := issue.TotalUnits()
		if !verifiable {
			return 0, types.Conflict("IssuanceCapExceeded: asset %s has a max_units cap and a confidential issuance amount cannot be verified against it", issue.Code)
		}
		sum, err := types.CheckedAddU64(unitsThisTx[issue.Code], total)
		if err != nil {
			return 0, types.Conflict("IssuanceCapExceeded: asset %s issuance overflow", issue.Code)
		}
		unitsThisTx[issue.Code] = sum

		staged := c.stagedUnitsAdded[issue.Code]
		committed := def.UnitsIssued
		grandTotal, err := types.CheckedAddU64(committed, staged)
		if err == nil {
			grandTotal, err = types.CheckedAddU64(grandTotal, unitsThisTx[issue.Code])
		}
		if err != nil || grandTotal > *def.Rules.MaxUnits {
			return 0, types.Conflict("IssuanceCapExceeded: asset %s would exceed max_units %d", issue.Code, *def.Rules.MaxUnits)
		}
	}

	// TransferabilityViolated: a non-transferable asset's consumed inputs
	// must all be owned by its registered issuer (the first hop out of
	// issuance is allowed; any further transfer is not, confidential or
	// not, since confidentiality cannot prove the hop stayed within the
	// issuer's control).
	slots := collectSlots(tx)
	for opIndex, op := range tx.Body.Operations {
		xfr, ok := op.(types.TransferAsset)
		if !ok {
			continue
		}
		for _, in := range xfr.Inputs {
			var assetCode types.AssetTypeCode
			var owner types.XfrPublicKey
			var confidential bool
			if in.IsRelative() {
				idx := int(*in.Relative)
				if idx < 0 || idx >= len(slots) {
					continue // already rejected by extraction; defensive only
				}
				assetCode = slots[idx].assetCode
				owner = slots[idx].owner
				confidential = slots[idx].confidential
			} else {
				u, ok := c.ls.GetUtxo(*in.Absolute)
				if !ok {
					continue // already rejected above
				}
				assetCode = u.Output.Record.AssetType
				owner = u.Output.Record.PublicKey
				confidential = u.Output.Record.AssetTypeConfidential
			}
			if confidential {
				continue // asset identity unknown: cannot be checked, and was never registered non-transferable under this code
			}
			def, ok := resolveAssetDef(assetCode)
			if !ok || def.Rules.Transferable {
				continue
			}
			if !bytes.Equal(owner[:], def.IssuerPublicKey.Key.Bytes()) {
				return 0, types.Conflict("TransferabilityViolated: asset %s is non-transferable and input is not owned by its issuer (op %d)", assetCode, opIndex)
			}
		}
	}

	// Staking: UnDelegate/ClaimRewards must reference an existing, staged-
	// or-committed position. Delegate always succeeds (creates or tops up).
	for _, op := range eff.StakingOps {
		switch o := op.(type) {
		case types.Delegate:
			d := types.DelegatorIDFromKey(o.DelegatorKey)
			key := stakeKey(d, o.Validator)
			c.seedDelegation(d, o.Validator)
			c.stakeDelegationAmount[key] += o.Amount
			c.stakeDelegationLive[key] = true
			c.staking.Delegate = append(c.staking.Delegate, ledger.DelegateDelta{
				Delegator: d, Validator: o.Validator, Amount: o.Amount,
			})

		case types.UnDelegate:
			d := types.DelegatorIDFromKey(o.DelegatorKey)
			key := stakeKey(d, o.Validator)
			c.seedDelegation(d, o.Validator)
			if !c.stakeDelegationLive[key] {
				return 0, types.Conflict("UnDelegate: no delegation from %s to validator %s", d, o.Validator)
			}
			c.stakeDelegationLive[key] = false
			c.stakeDelegationAmount[key] = 0
			c.staking.UnDelegate = append(c.staking.UnDelegate, ledger.UnDelegateDelta{
				Delegator: d, Validator: o.Validator,
			})

		case types.ClaimRewards:
			d := types.DelegatorIDFromKey(o.DelegatorKey)
			c.seedValidator(o.Validator)
			if c.stakeValidatorRewards[o.Validator] < o.Amount {
				return 0, types.Conflict("ClaimRewards: validator %s has insufficient pending rewards", o.Validator)
			}
			c.stakeValidatorRewards[o.Validator] -= o.Amount
			c.staking.ClaimRewards = append(c.staking.ClaimRewards, ledger.ClaimRewardsDelta{
				Delegator: d, Validator: o.Validator, Amount: o.Amount,
			})
		}
	}

	// Everything passed: fold the effect into the cursor.
	for _, sid := range eff.TxoInputsConsumed {
		c.consumed[sid] = true
	}
	for code, def := range eff.NewAssetDefs {
		c.stagedAssetDefs[code] = def
	}
	for code, seqs := range eff.NewIssuanceNums {
		if len(seqs) == 0 {
			continue
		}
		last := seqs[len(seqs)-1]
		if cur, ok := c.stagedMaxSeq[code]; !ok || last > cur {
			c.stagedMaxSeq[code] = last
		}
	}
	for code, added := range unitsThisTx {
		c.stagedUnitsAdded[code], _ = types.CheckedAddU64(c.stagedUnitsAdded[code], added)
	}
	for code, mu := range eff.MemoUpdates {
		c.stagedMemoUpdate[code] = mu
	}

	outputs := make([]types.TxOutput, 0, len(eff.NewOutputs))
	for _, out := range eff.NewOutputs {
		if out != nil {
			outputs = append(outputs, *out)
		}
	}

	staged := ledger.StagedTransaction{
		Txn:                  tx,
		TxoInputsConsumed:    eff.TxoInputsConsumed,
		NewOutputs:           outputs,
		ConvertAccountEvents: eff.ConvertAccountEvents,
	}
	c.transactions = append(c.transactions, staged)
	return TxnTempSID(len(c.transactions) - 1), nil
}

func stakeKey(d types.DelegatorID, v types.ValidatorID) string {
	return string(d) + "\x00" + string(v)
}

func (c *Cursor) seedDelegation(d types.DelegatorID, v types.ValidatorID) {
	key := stakeKey(d, v)
	if c.stakeSeeded[key] {
		return
	}
	c.stakeSeeded[key] = true
	if rec, ok := c.ls.GetDelegation(d, v); ok {
		c.stakeDelegationAmount[key] = rec.Amount
		c.stakeDelegationLive[key] = true
	}
}

func (c *Cursor) seedValidator(v types.ValidatorID) {
	if c.stakeValidatorSeeded[v] {
		return
	}
	c.stakeValidatorSeeded[v] = true
	if vs, ok := c.ls.GetValidator(v); ok {
		c.stakeValidatorRewards[v] = vs.PendingRewards
	}
}

// FinishBlock commits every staged transaction atomically via LedgerState
// (§4.3) and maps each TxnTempSID to its assigned (TxnSID, TxoSIDs). The
// cursor is closed whether or not the commit succeeds: a failed commit is
// Fatal (§4.3 "any per-step fault before step 8 reverts all staged
// mutations"), never a condition the caller retries against this cursor.
func (c *Cursor) FinishBlock() (map[TxnTempSID]TxnRef, *ledger.CommitResult, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, nil, errCursorNotOpen
	}

	assetDefs := make(map[types.AssetTypeCode]types.AssetType, len(c.stagedAssetDefs))
	for code, def := range c.stagedAssetDefs {
		assetDefs[code] = def
	}
	issuanceAdds := map[types.AssetTypeCode][]uint64{}
	for _, staged := range c.transactions {
		for _, op := range staged.Txn.Body.Operations {
			issue, ok := op.(types.IssueAsset)
			if !ok {
				continue
			}
			issuanceAdds[issue.Code] = append(issuanceAdds[issue.Code], issue.SeqNum)
		}
	}
	unitsAdded := make(map[types.AssetTypeCode]uint64, len(c.stagedUnitsAdded))
	for code, u := range c.stagedUnitsAdded {
		unitsAdded[code] = u
	}
	memoUpdates := make(map[types.AssetTypeCode]types.MemoUpdate, len(c.stagedMemoUpdate))
	for code, mu := range c.stagedMemoUpdate {
		memoUpdates[code] = mu
	}

	batch := ledger.CommitBatch{
		Transactions: c.transactions,
		AssetDefs:    assetDefs,
		IssuanceAdds: issuanceAdds,
		UnitsAdded:   unitsAdded,
		MemoUpdates:  memoUpdates,
		Staking:      c.staking,
	}
	correlationID := c.correlationID
	c.mu.Unlock()

	result, err := c.ls.Commit(batch)

	c.mu.Lock()
	c.open = false
	c.correlationID = uuid.Nil
	c.mu.Unlock()

	if err != nil {
		c.logger.Printf("finish_block correlation_id=%s error=%v", correlationID, err)
		return nil, nil, err
	}
	c.logger.Printf("finish_block correlation_id=%s block=%d txns=%d", correlationID, result.BlockSID, len(result.TxnSIDs))

	out := make(map[TxnTempSID]TxnRef, len(result.TxnSIDs))
	for i, sid := range result.TxnSIDs {
		out[TxnTempSID(i)] = TxnRef{TxnSID: sid, TxoIDs: result.TxoIDs[i]}
	}
	return out, result, nil
}
