// Copyright 2025 Certen Protocol

package consensus

import (
	"testing"

	"github.com/certen/ledgercore/pkg/ledger"
)

func TestParseGenesisStateEmptyIsNotAnError(t *testing.T) {
	gs, err := ParseGenesisState(nil)
	if err != nil {
		t.Fatalf("empty app_state must not be an error: %v", err)
	}
	if len(gs.Validators) != 0 {
		t.Fatalf("expected no validators from empty app_state")
	}
}

func TestParseGenesisStateDecodesValidators(t *testing.T) {
	raw := []byte(`{"validators":[{"validator":"` + string(hexValidatorID(0x09)) + `","stake":1000000}]}`)
	gs, err := ParseGenesisState(raw)
	if err != nil {
		t.Fatalf("decode genesis state: %v", err)
	}
	if len(gs.Validators) != 1 || gs.Validators[0].Stake != 1_000_000 {
		t.Fatalf("unexpected decoded genesis state: %+v", gs)
	}
}

func TestSeedGenesisWithNoValidatorsIsANoop(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKVForConsensusTest())
	if err := seedGenesis(ls, GenesisState{}); err != nil {
		t.Fatalf("seeding an empty genesis state must not error: %v", err)
	}
	_, _, blocks := ls.Counters()
	if blocks != 0 {
		t.Fatalf("expected no block committed for an empty genesis state, got %d", blocks)
	}
}

func TestSeedGenesisCommitsValidatorStake(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKVForConsensusTest())
	validator := hexValidatorID(0x0a)

	if err := seedGenesis(ls, GenesisState{
		Validators: []GenesisValidator{{Validator: validator, Stake: 4_000_000}},
	}); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	stake, ok := ls.GetValidator(validator)
	if !ok || stake.TotalDelegated != 4_000_000 {
		t.Fatalf("expected genesis validator stake 4000000, got %+v (ok=%v)", stake, ok)
	}
}

func TestSeedGenesisMissingQuorumSignersRejected(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKVForConsensusTest())
	err := seedGenesis(ls, GenesisState{
		Validators: []GenesisValidator{{Validator: hexValidatorID(0x0b), Stake: 1_000_000}},
		Quorum:     &GenesisQuorumAttestation{},
	})
	if err == nil {
		t.Fatalf("expected an error for a quorum attestation with no signers")
	}
}
