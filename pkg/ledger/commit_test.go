// Copyright 2025 Certen Protocol

package ledger

import (
	"testing"

	"github.com/certen/ledgercore/pkg/types"
)

func TestCommitStakingDeltaReportsChangedValidators(t *testing.T) {
	ls := NewLedgerState(newMemKV())

	validatorA := types.ValidatorID("aa")
	validatorB := types.ValidatorID("bb")

	result, err := ls.Commit(CommitBatch{
		Staking: StakingDelta{
			Delegate: []DelegateDelta{
				{Delegator: "alice", Validator: validatorA, Amount: 5_000_000},
				{Delegator: "bob", Validator: validatorB, Amount: 2_000_000},
			},
		},
	})
	if err != nil {
		t.Fatalf("commit delegate batch: %v", err)
	}
	if len(result.ChangedValidators) != 2 {
		t.Fatalf("expected 2 changed validators, got %d: %v", len(result.ChangedValidators), result.ChangedValidators)
	}
	if result.ChangedValidators[0] != validatorA || result.ChangedValidators[1] != validatorB {
		t.Fatalf("expected changed validators sorted ascending, got %v", result.ChangedValidators)
	}

	stakeA, ok := ls.GetValidator(validatorA)
	if !ok || stakeA.TotalDelegated != 5_000_000 {
		t.Fatalf("expected validator A stake 5000000, got %+v (ok=%v)", stakeA, ok)
	}
}

func TestCommitClaimRewardsDoesNotChangeValidatorSet(t *testing.T) {
	ls := NewLedgerState(newMemKV())
	validator := types.ValidatorID("cc")

	if _, err := ls.Commit(CommitBatch{
		Staking: StakingDelta{
			Delegate: []DelegateDelta{{Delegator: "carol", Validator: validator, Amount: 3_000_000}},
		},
	}); err != nil {
		t.Fatalf("seed delegation: %v", err)
	}

	result, err := ls.Commit(CommitBatch{
		Staking: StakingDelta{
			ClaimRewards: []ClaimRewardsDelta{{Delegator: "carol", Validator: validator, Amount: 100}},
		},
	})
	if err != nil {
		t.Fatalf("commit claim rewards: %v", err)
	}
	if len(result.ChangedValidators) != 0 {
		t.Fatalf("ClaimRewards must never report a changed validator, got %v", result.ChangedValidators)
	}
}

func TestCommitAssignsTxnAndTxoSIDs(t *testing.T) {
	ls := NewLedgerState(newMemKV())

	output := types.TxOutput{Record: types.BlindAssetRecord{
		AssetType: types.NativeAssetCode,
		Amount:    1,
	}}

	result, err := ls.Commit(CommitBatch{
		Transactions: []StagedTransaction{
			{NewOutputs: []types.TxOutput{output}},
		},
	})
	if err != nil {
		t.Fatalf("commit transaction batch: %v", err)
	}
	if len(result.TxnSIDs) != 1 {
		t.Fatalf("expected one assigned TxnSID, got %d", len(result.TxnSIDs))
	}
	if len(result.TxoIDs) != 1 || len(result.TxoIDs[0]) != 1 {
		t.Fatalf("expected one assigned TxoSID for the single new output, got %v", result.TxoIDs)
	}
	if !ls.IsLive(result.TxoIDs[0][0]) {
		t.Fatalf("expected newly committed output to be live")
	}
}
