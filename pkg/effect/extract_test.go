// Copyright 2025 Certen Protocol

package effect

import (
	"errors"
	"testing"

	"github.com/certen/ledgercore/pkg/crypto"
	"github.com/certen/ledgercore/pkg/types"
)

func coreErrorKind(t *testing.T, err error) types.Kind {
	t.Helper()
	var ce *types.CoreError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a *types.CoreError, got %T: %v", err, err)
	}
	return ce.Kind
}

func signedDefine(t *testing.T, sk *crypto.PrivateKey, code types.AssetTypeCode) types.DefineAsset {
	t.Helper()
	op := types.DefineAsset{
		Code:            code,
		Rules:           types.DefaultAssetRules(),
		IssuerPublicKey: types.IssuerPublicKey{Key: sk.Public()},
		Memo:            "m",
	}
	op.Signature = sk.Sign(op.SignedPayload())
	return op
}

func txOf(ops ...types.Operation) types.Transaction {
	return types.Transaction{Body: types.TransactionBody{
		NoReplayToken: types.NoReplayToken{SeqID: 1},
		Operations:    ops,
	}}
}

func TestExtractEffectRejectsEmptyTransaction(t *testing.T) {
	_, err := ExtractEffect(types.Transaction{}, nil)
	if err == nil {
		t.Fatalf("expected rejection of a transaction with no operations")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}

func TestExtractEffectRejectsDefineAssetBadSignature(t *testing.T) {
	sk, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	op := signedDefine(t, sk, types.AssetTypeCode{1})
	op.Memo = "tampered after signing"

	_, err = ExtractEffect(txOf(op), nil)
	if err == nil {
		t.Fatalf("expected signature rejection after tampering with a signed field")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}

func TestExtractEffectRejectsDuplicateDefineAssetWithinTransaction(t *testing.T) {
	sk, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	code := types.AssetTypeCode{2}
	op1 := signedDefine(t, sk, code)
	op2 := signedDefine(t, sk, code)

	_, err = ExtractEffect(txOf(op1, op2), nil)
	if err == nil {
		t.Fatalf("expected rejection of the same asset code defined twice in one transaction")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}

func TestExtractEffectRejectsNonIncreasingIssuanceSeqWithinTransaction(t *testing.T) {
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	code := types.AssetTypeCode{3}
	var owner types.XfrPublicKey
	copy(owner[:], pk.Bytes())

	issue := func(seq uint64) types.IssueAsset {
		op := types.IssueAsset{
			Code:            code,
			SeqNum:          seq,
			Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: code, Amount: 1, PublicKey: owner}}},
			IssuerPublicKey: types.IssuerPublicKey{Key: pk},
		}
		op.Signature = sk.Sign(op.SignedPayload())
		return op
	}

	_, err = ExtractEffect(txOf(issue(5), issue(5)), nil)
	if err == nil {
		t.Fatalf("expected rejection of a non-increasing seq_num within one transaction")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}

	eff, err := ExtractEffect(txOf(issue(5), issue(6)), nil)
	if err != nil {
		t.Fatalf("expected a strictly increasing seq_num pair to extract cleanly: %v", err)
	}
	if got := eff.NewIssuanceNums[code]; len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("expected issuance seq numbers [5 6], got %v", got)
	}
}

func TestExtractEffectRejectsTransferInputSignatureCountMismatch(t *testing.T) {
	sid := types.TxoSID(1)
	op := types.TransferAsset{
		Inputs:          []types.InputRef{types.AbsoluteInputRef(sid)},
		Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: types.NativeAssetCode, Amount: 1}}},
		InputSignatures: nil,
		InputPublicKeys: nil,
	}
	_, err := ExtractEffect(txOf(op), nil)
	if err == nil {
		t.Fatalf("expected rejection when a transfer has inputs but no signatures")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}

func TestExtractEffectRejectsTransferBadInputSignature(t *testing.T) {
	_, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	other, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate second key pair: %v", err)
	}
	sid := types.TxoSID(1)
	op := types.TransferAsset{
		Inputs:          []types.InputRef{types.AbsoluteInputRef(sid)},
		Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: types.NativeAssetCode, Amount: 1}}},
		InputPublicKeys: []crypto.PublicKey{pk},
	}
	// Signed by a key other than the one listed in InputPublicKeys.
	op.InputSignatures = []crypto.Signature{other.Sign(op.SignedPayload())}

	_, err = ExtractEffect(txOf(op), nil)
	if err == nil {
		t.Fatalf("expected rejection of an input signature that doesn't match its listed public key")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}

func TestExtractEffectRejectsLienAssignmentOutOfRange(t *testing.T) {
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	sid := types.TxoSID(1)
	op := types.TransferAsset{
		Inputs:          []types.InputRef{types.AbsoluteInputRef(sid)},
		Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: types.NativeAssetCode, Amount: 1}}},
		LienAssignments: []types.LienAssignment{{InputIndex: 0, OutputIndex: 5}},
		InputPublicKeys: []crypto.PublicKey{pk},
	}
	op.InputSignatures = []crypto.Signature{sk.Sign(op.SignedPayload())}

	_, err = ExtractEffect(txOf(op), nil)
	if err == nil {
		t.Fatalf("expected rejection of a lien assignment referencing an out-of-range output index")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}

func TestExtractEffectRejectsRelativeInputNotEarlier(t *testing.T) {
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	idx := uint64(0)
	op := types.TransferAsset{
		Inputs:          []types.InputRef{{Relative: &idx}},
		Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: types.NativeAssetCode, Amount: 1}}},
		InputPublicKeys: []crypto.PublicKey{pk},
	}
	op.InputSignatures = []crypto.Signature{sk.Sign(op.SignedPayload())}

	// The referenced slot index 0 doesn't exist yet: this is the only
	// operation in the transaction, so there is no earlier output to name.
	_, err = ExtractEffect(txOf(op), nil)
	if err == nil {
		t.Fatalf("expected rejection of a relative input with no earlier output to reference")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}

func TestExtractEffectResolvesRelativeInputFromEarlierOperation(t *testing.T) {
	issuerSk, issuerPk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate issuer key pair: %v", err)
	}
	holderSk, holderPk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate holder key pair: %v", err)
	}
	code := types.AssetTypeCode{9}
	var holderOwner types.XfrPublicKey
	copy(holderOwner[:], holderPk.Bytes())

	issue := types.IssueAsset{
		Code:            code,
		SeqNum:          1,
		Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: code, Amount: 10, PublicKey: holderOwner}}},
		IssuerPublicKey: types.IssuerPublicKey{Key: issuerPk},
	}
	issue.Signature = issuerSk.Sign(issue.SignedPayload())

	idx := uint64(0)
	xfr := types.TransferAsset{
		Inputs:          []types.InputRef{{Relative: &idx}},
		Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: code, Amount: 10}}},
		InputPublicKeys: []crypto.PublicKey{holderPk},
	}
	xfr.InputSignatures = []crypto.Signature{holderSk.Sign(xfr.SignedPayload())}

	eff, err := ExtractEffect(txOf(issue, xfr), nil)
	if err != nil {
		t.Fatalf("expected the relative input to resolve against the issuance's output: %v", err)
	}
	if len(eff.TxoInputsConsumed) != 0 {
		t.Fatalf("expected no absolute inputs consumed, got %v", eff.TxoInputsConsumed)
	}
	if len(eff.InternallySpentOutputs) != 1 {
		t.Fatalf("expected the issued output to be recorded as internally spent, got %d", len(eff.InternallySpentOutputs))
	}
	// The issuance's sole output was consumed within the transaction, so it
	// must not also surface as a new committable output.
	if len(eff.NewOutputs) != 2 || eff.NewOutputs[0] != nil || eff.NewOutputs[1] == nil {
		t.Fatalf("expected two output slots, the issuance's nulled out and the transfer's present, got %v", eff.NewOutputs)
	}
}

func TestExtractEffectRejectsConfidentialTransferWithNoVerifier(t *testing.T) {
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	sid := types.TxoSID(1)
	op := types.TransferAsset{
		Inputs:          []types.InputRef{types.AbsoluteInputRef(sid)},
		Outputs:         []types.TxOutput{{Record: types.BlindAssetRecord{AssetType: types.NativeAssetCode, Amount: 1}}},
		XfrProof:        &types.XfrBody{ProofBytes: []byte{1, 2, 3}},
		InputPublicKeys: []crypto.PublicKey{pk},
	}
	op.InputSignatures = []crypto.Signature{sk.Sign(op.SignedPayload())}

	_, err = ExtractEffect(txOf(op), nil)
	if err == nil {
		t.Fatalf("expected a confidential transfer to be rejected with no ZK verifier configured")
	}
	if kind := coreErrorKind(t, err); kind != types.KindProofInvalid {
		t.Fatalf("expected KindProofInvalid, got %s", kind)
	}
}

func TestExtractEffectRejectsConvertAccountRelativeInput(t *testing.T) {
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	idx := uint64(0)
	op := types.ConvertAccount{
		Inputs:     []types.InputRef{{Relative: &idx}},
		Amount:     1,
		SigningKey: pk,
	}
	op.Signature = sk.Sign(op.SignedPayload())

	_, err = ExtractEffect(txOf(op), nil)
	if err == nil {
		t.Fatalf("expected ConvertAccount to reject a relative input")
	}
	if kind := coreErrorKind(t, err); kind != types.KindInputMalformed {
		t.Fatalf("expected KindInputMalformed, got %s", kind)
	}
}
