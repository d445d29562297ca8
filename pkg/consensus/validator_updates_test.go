// Copyright 2025 Certen Protocol

package consensus

import (
	"encoding/hex"
	"testing"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/types"
)

func hexValidatorID(b byte) types.ValidatorID {
	raw := make([]byte, cmted25519.PubKeySize)
	raw[0] = b
	return types.ValidatorID(hex.EncodeToString(raw))
}

func TestValidatorUpdatesPowerFromStake(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKVForConsensusTest())
	validator := hexValidatorID(0x01)

	if _, err := ls.Commit(ledger.CommitBatch{
		Staking: ledger.StakingDelta{
			Delegate: []ledger.DelegateDelta{{Delegator: "alice", Validator: validator, Amount: 8_000_000}},
		},
	}); err != nil {
		t.Fatalf("seed delegation: %v", err)
	}

	updates, err := validatorUpdates(ls, []types.ValidatorID{validator})
	if err != nil {
		t.Fatalf("validatorUpdates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].Power != 8 {
		t.Fatalf("expected power 8 (8_000_000 / 1_000_000), got %d", updates[0].Power)
	}
}

func TestValidatorUpdatesBelowMinimumStakeRemoves(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKVForConsensusTest())
	validator := hexValidatorID(0x02)

	if _, err := ls.Commit(ledger.CommitBatch{
		Staking: ledger.StakingDelta{
			Delegate: []ledger.DelegateDelta{{Delegator: "bob", Validator: validator, Amount: 500}},
		},
	}); err != nil {
		t.Fatalf("seed delegation: %v", err)
	}

	updates, err := validatorUpdates(ls, []types.ValidatorID{validator})
	if err != nil {
		t.Fatalf("validatorUpdates: %v", err)
	}
	if updates[0].Power != 0 {
		t.Fatalf("expected power 0 for a validator below MinValidatorStake, got %d", updates[0].Power)
	}
}

func TestValidatorUpdatesRejectsNonHexID(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKVForConsensusTest())
	if _, err := validatorUpdates(ls, []types.ValidatorID{"not-hex"}); err == nil {
		t.Fatalf("expected an error for a validator ID that isn't a 32-byte hex ed25519 key")
	}
}
