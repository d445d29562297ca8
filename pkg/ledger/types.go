// Copyright 2025 Certen Protocol

package ledger

import (
	"github.com/certen/ledgercore/pkg/hashing"
	"github.com/certen/ledgercore/pkg/types"
)

// StatusData is the scalar counter set persisted at "status.json" (§6).
type StatusData struct {
	TxoCount            uint64         `json:"txo_count"`
	TxnCount            uint64         `json:"txn_count"`
	BlockCount          uint64         `json:"block_count"`
	PulseCount          uint64         `json:"pulse_count"`
	CurrentSeqID        uint64         `json:"current_seq_id"`
	LastStateCommitment hashing.Digest `json:"last_state_commitment"`
}

// ValidatorStake is the committed stake view for one validator (supplements
// spec.md's distillation with the original source's validator/delegation
// data model — dropped by the spec text but present in original_source/ and
// needed for Delegate/UnDelegate/ClaimRewards to mean anything).
type ValidatorStake struct {
	Validator      types.ValidatorID `json:"validator"`
	TotalDelegated uint64            `json:"total_delegated"`
	PendingRewards uint64            `json:"pending_rewards"`
}

// DelegationRecord is one delegator's stake with one validator.
type DelegationRecord struct {
	Delegator types.DelegatorID `json:"delegator"`
	Validator types.ValidatorID `json:"validator"`
	Amount    uint64            `json:"amount"`
}

func delegationKey(d types.DelegatorID, v types.ValidatorID) string {
	return string(d) + "\x00" + string(v)
}

// StakingView is LedgerState's committed staking state (§5: "the staking
// view... owned by LedgerState, mutated only under the writer lock").
type StakingView struct {
	Validators  map[types.ValidatorID]*ValidatorStake
	Delegations map[string]*DelegationRecord // keyed by delegationKey(delegator, validator)
}

func newStakingView() *StakingView {
	return &StakingView{
		Validators:  make(map[types.ValidatorID]*ValidatorStake),
		Delegations: make(map[string]*DelegationRecord),
	}
}

func (v *StakingView) clone() *StakingView {
	out := newStakingView()
	for k, val := range v.Validators {
		cp := *val
		out.Validators[k] = &cp
	}
	for k, val := range v.Delegations {
		cp := *val
		out.Delegations[k] = &cp
	}
	return out
}

// ====== ABCI State for CometBFT Recovery ======

// ABCIState is the (LastBlockHeight, LastBlockAppHash) pair CometBFT needs
// to resynchronize after a restart. Nothing in this module persists or reads
// it: Info derives both values from the recovered status (Counters and
// LastStateCommitment).
type ABCIState struct {
	LastBlockHeight  int64  `json:"lastBlockHeight"`
	LastBlockAppHash []byte `json:"lastBlockAppHash"`
}
