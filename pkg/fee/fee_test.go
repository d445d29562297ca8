// Copyright 2025 Certen Protocol

package fee

import (
	"testing"
	"time"

	"github.com/certen/ledgercore/pkg/crypto"
	"github.com/certen/ledgercore/pkg/types"
)

func burnKey() types.XfrPublicKey {
	var k types.XfrPublicKey
	k[0] = 0xAA
	return k
}

func feeOutputTx(amount uint64, burn types.XfrPublicKey) types.Transaction {
	return types.Transaction{
		Body: types.TransactionBody{
			NoReplayToken: types.NoReplayToken{SeqID: 10},
			Operations: []types.Operation{
				types.TransferAsset{
					Outputs: []types.TxOutput{
						{Record: types.BlindAssetRecord{
							AssetType: types.NativeAssetCode,
							Amount:    amount,
							PublicKey: burn,
						}},
					},
				},
			},
		},
	}
}

func TestIsFeeValid(t *testing.T) {
	burn := burnKey()
	p := DefaultPolicy(burn)

	if !p.IsFeeValid(feeOutputTx(DefaultMinFee, burn), false) {
		t.Fatalf("expected fee-valid transaction to pass")
	}
	if p.IsFeeValid(feeOutputTx(DefaultMinFee-1, burn), false) {
		t.Fatalf("expected under-minimum fee output to fail")
	}
	if !p.IsFeeValid(types.Transaction{}, true) {
		t.Fatalf("coinbase transactions are always fee-valid")
	}

	var other types.XfrPublicKey
	other[0] = 0xBB
	if p.IsFeeValid(feeOutputTx(DefaultMinFee, other), false) {
		t.Fatalf("fee output to a non-burn address must not satisfy the policy")
	}
}

func TestIsFeeValidConfidentialOutputIneligible(t *testing.T) {
	burn := burnKey()
	p := DefaultPolicy(burn)
	tx := types.Transaction{
		Body: types.TransactionBody{
			Operations: []types.Operation{
				types.TransferAsset{
					Outputs: []types.TxOutput{
						{Record: types.BlindAssetRecord{
							AmountConfidential: true,
							AssetType:          types.NativeAssetCode,
							PublicKey:          burn,
						}},
					},
				},
			},
		},
	}
	if p.IsFeeValid(tx, false) {
		t.Fatalf("a confidential-amount output must never satisfy the fee check")
	}
}

func TestCheckReplayWindow(t *testing.T) {
	p := DefaultPolicy(burnKey())

	if err := p.CheckReplay(types.NoReplayToken{SeqID: 100}, 100); err != nil {
		t.Fatalf("exact match should be within window: %v", err)
	}
	if err := p.CheckReplay(types.NoReplayToken{SeqID: 100}, 100+types.ReplayWindow); err != nil {
		t.Fatalf("boundary of window should still be admitted: %v", err)
	}
	if err := p.CheckReplay(types.NoReplayToken{SeqID: 100}, 100+types.ReplayWindow+1); err == nil {
		t.Fatalf("expected replay window violation to be rejected")
	}
}

func TestCheckIssuanceLock(t *testing.T) {
	p := DefaultPolicy(burnKey())
	p.HeightLimit = 1000

	issueTx := types.Transaction{
		Body: types.TransactionBody{
			Operations: []types.Operation{
				types.IssueAsset{Code: types.NativeAssetCode},
			},
		},
	}

	if err := p.CheckIssuanceLock(issueTx, 1000); err != nil {
		t.Fatalf("issuance at the limit height must still be allowed: %v", err)
	}
	if err := p.CheckIssuanceLock(issueTx, 1001); err == nil {
		t.Fatalf("expected native issuance past the height limit to be rejected")
	}

	nonNativeIssue := types.Transaction{
		Body: types.TransactionBody{
			Operations: []types.Operation{
				types.IssueAsset{Code: types.AssetTypeCode{1}},
			},
		},
	}
	if err := p.CheckIssuanceLock(nonNativeIssue, 1001); err != nil {
		t.Fatalf("non-native issuance is never subject to the height lock: %v", err)
	}
}

func TestCheckDenylist(t *testing.T) {
	p := DefaultPolicy(burnKey())
	rawKey := make([]byte, 32)
	rawKey[0] = 0xCD
	bannedPub, err := crypto.PublicKeyFromBytes(rawKey)
	if err != nil {
		t.Fatalf("construct banned public key: %v", err)
	}
	var banned types.XfrPublicKey
	copy(banned[:], rawKey)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.Denylist = []DenylistEntry{{
		InputKey:    banned,
		WindowStart: now.Add(-time.Hour),
		WindowEnd:   now.Add(time.Hour),
	}}

	tx := types.Transaction{
		Body: types.TransactionBody{
			Operations: []types.Operation{
				types.Delegate{DelegatorKey: bannedPub},
			},
		},
	}
	if err := p.CheckDenylist(tx, now); err == nil {
		t.Fatalf("expected denylisted delegator key to be rejected within the window")
	}
	if err := p.CheckDenylist(tx, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("denylist entry must not apply outside its window: %v", err)
	}
}

func TestAdmitCoinbaseSkipsEveryCheck(t *testing.T) {
	p := DefaultPolicy(burnKey())
	p.HeightLimit = 0
	if err := p.Admit(types.Transaction{}, true, 0, 1_000_000, time.Now()); err != nil {
		t.Fatalf("coinbase transactions bypass every admission check: %v", err)
	}
}
