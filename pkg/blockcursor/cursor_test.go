// Copyright 2025 Certen Protocol

package blockcursor

import (
	"errors"
	"testing"

	"github.com/certen/ledgercore/pkg/crypto"
	"github.com/certen/ledgercore/pkg/effect"
	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/query"
	"github.com/certen/ledgercore/pkg/types"
)

// memKV is the same minimal in-memory KV/Batch stand-in pkg/ledger's own
// tests use in place of pkg/kvdb.KVAdapter.
type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *memKV) Set(key, value []byte) error {
	m.data[string(key)] = value
	return nil
}

func (m *memKV) NewBatch() ledger.Batch {
	return &memBatch{kv: m, pending: make(map[string][]byte)}
}

type memBatch struct {
	kv      *memKV
	pending map[string][]byte
}

func (b *memBatch) Set(key, value []byte) error {
	b.pending[string(key)] = value
	return nil
}

func (b *memBatch) WriteSync() error {
	for k, v := range b.pending {
		b.kv.data[k] = v
	}
	return nil
}

func (b *memBatch) Close() error { return nil }

func xfrKeyFromEd(pub crypto.PublicKey) types.XfrPublicKey {
	var x types.XfrPublicKey
	copy(x[:], pub.Bytes())
	return x
}

func mustExtract(t *testing.T, tx types.Transaction) *types.Effect {
	t.Helper()
	eff, err := effect.ExtractEffect(tx, nil)
	if err != nil {
		t.Fatalf("extract effect: %v", err)
	}
	return eff
}

func coreErrorKind(err error) (types.Kind, bool) {
	var ce *types.CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

func defineAssetTx(t *testing.T, sk *crypto.PrivateKey, code types.AssetTypeCode, rules types.AssetRules, seqRand byte) types.Transaction {
	t.Helper()
	op := types.DefineAsset{
		Code:            code,
		Rules:           rules,
		IssuerPublicKey: types.IssuerPublicKey{Key: sk.Public()},
		Memo:            "test asset",
	}
	op.Signature = sk.Sign(op.SignedPayload())
	tok := types.NoReplayToken{SeqID: 1}
	tok.Rand[0] = seqRand
	return types.Transaction{Body: types.TransactionBody{
		NoReplayToken: tok,
		Operations:    []types.Operation{op},
	}}
}

func issueAssetTx(t *testing.T, sk *crypto.PrivateKey, code types.AssetTypeCode, seqNum uint64, owner types.XfrPublicKey, amount uint64, seqRand byte) types.Transaction {
	t.Helper()
	op := types.IssueAsset{
		Code:   code,
		SeqNum: seqNum,
		Outputs: []types.TxOutput{{
			Record: types.BlindAssetRecord{AssetType: code, Amount: amount, PublicKey: owner},
		}},
		IssuerPublicKey: types.IssuerPublicKey{Key: sk.Public()},
	}
	op.Signature = sk.Sign(op.SignedPayload())
	tok := types.NoReplayToken{SeqID: seqNum}
	tok.Rand[0] = seqRand
	return types.Transaction{Body: types.TransactionBody{
		NoReplayToken: tok,
		Operations:    []types.Operation{op},
	}}
}

func transferTx(t *testing.T, sk *crypto.PrivateKey, input types.TxoSID, outCode types.AssetTypeCode, outOwner types.XfrPublicKey, amount uint64, seqRand byte) types.Transaction {
	t.Helper()
	op := types.TransferAsset{
		Inputs: []types.InputRef{types.AbsoluteInputRef(input)},
		Outputs: []types.TxOutput{{
			Record: types.BlindAssetRecord{AssetType: outCode, Amount: amount, PublicKey: outOwner},
		}},
		InputPublicKeys: []crypto.PublicKey{sk.Public()},
	}
	op.InputSignatures = []crypto.Signature{sk.Sign(op.SignedPayload())}
	tok := types.NoReplayToken{SeqID: 1}
	tok.Rand[0] = seqRand
	return types.Transaction{Body: types.TransactionBody{
		NoReplayToken: tok,
		Operations:    []types.Operation{op},
	}}
}

// TestApplyEffectRejectsIssuanceReplay covers scenario S1: a second
// issuance of the same asset with a seq_num that does not strictly exceed
// the one already staged earlier in the block is rejected.
func TestApplyEffectRejectsIssuanceReplay(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKV())
	cur := NewCursor(ls)
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	code := types.AssetTypeCode{1}
	owner := xfrKeyFromEd(pk)

	if err := cur.StartBlock(); err != nil {
		t.Fatalf("start block: %v", err)
	}

	defineTx := defineAssetTx(t, sk, code, types.DefaultAssetRules(), 1)
	if _, err := cur.ApplyEffect(defineTx, mustExtract(t, defineTx)); err != nil {
		t.Fatalf("apply define: %v", err)
	}

	issueTx1 := issueAssetTx(t, sk, code, 1, owner, 10, 2)
	if _, err := cur.ApplyEffect(issueTx1, mustExtract(t, issueTx1)); err != nil {
		t.Fatalf("apply first issuance: %v", err)
	}

	issueTx2 := issueAssetTx(t, sk, code, 1, owner, 5, 3)
	_, err = cur.ApplyEffect(issueTx2, mustExtract(t, issueTx2))
	if err == nil {
		t.Fatalf("expected IssuanceReplay rejection for a repeated seq_num")
	}
	if kind, ok := coreErrorKind(err); !ok || kind != types.KindStateConflict {
		t.Fatalf("expected a KindStateConflict error, got %v", err)
	}
}

// TestApplyEffectRejectsIssuanceCapExceeded covers scenario S3: two
// issuances staged within the same block whose combined units exceed the
// asset's max_units are rejected on the second one.
func TestApplyEffectRejectsIssuanceCapExceeded(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKV())
	cur := NewCursor(ls)
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	code := types.AssetTypeCode{2}
	owner := xfrKeyFromEd(pk)
	cap := uint64(100)
	rules := types.DefaultAssetRules()
	rules.MaxUnits = &cap

	if err := cur.StartBlock(); err != nil {
		t.Fatalf("start block: %v", err)
	}

	defineTx := defineAssetTx(t, sk, code, rules, 1)
	if _, err := cur.ApplyEffect(defineTx, mustExtract(t, defineTx)); err != nil {
		t.Fatalf("apply define: %v", err)
	}

	issueTx1 := issueAssetTx(t, sk, code, 1, owner, 60, 2)
	if _, err := cur.ApplyEffect(issueTx1, mustExtract(t, issueTx1)); err != nil {
		t.Fatalf("apply first issuance: %v", err)
	}

	issueTx2 := issueAssetTx(t, sk, code, 2, owner, 50, 3)
	_, err = cur.ApplyEffect(issueTx2, mustExtract(t, issueTx2))
	if err == nil {
		t.Fatalf("expected IssuanceCapExceeded rejection, 60+50 > max_units 100")
	}
	if kind, ok := coreErrorKind(err); !ok || kind != types.KindStateConflict {
		t.Fatalf("expected a KindStateConflict error, got %v", err)
	}
}

// TestApplyEffectRejectsTransferabilityViolated covers scenario S2: a
// non-transferable asset's output is issued directly to a key other than
// its registered issuer, so the first transfer spending it is rejected.
func TestApplyEffectRejectsTransferabilityViolated(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKV())
	issuerSk, issuerPk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate issuer key pair: %v", err)
	}
	holderSk, holderPk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate holder key pair: %v", err)
	}
	code := types.AssetTypeCode{3}
	rules := types.DefaultAssetRules()
	rules.Transferable = false

	cur := NewCursor(ls)
	if err := cur.StartBlock(); err != nil {
		t.Fatalf("start block: %v", err)
	}
	defineTx := defineAssetTx(t, issuerSk, code, rules, 1)
	if _, err := cur.ApplyEffect(defineTx, mustExtract(t, defineTx)); err != nil {
		t.Fatalf("apply define: %v", err)
	}
	issueTx := issueAssetTx(t, issuerSk, code, 1, xfrKeyFromEd(holderPk), 10, 2)
	if _, err := cur.ApplyEffect(issueTx, mustExtract(t, issueTx)); err != nil {
		t.Fatalf("apply issuance: %v", err)
	}
	refs, _, err := cur.FinishBlock()
	if err != nil {
		t.Fatalf("finish block: %v", err)
	}
	issuedSid := refs[TxnTempSID(1)].TxoIDs[0]

	if err := cur.StartBlock(); err != nil {
		t.Fatalf("start second block: %v", err)
	}
	xferTx := transferTx(t, holderSk, issuedSid, code, xfrKeyFromEd(issuerPk), 10, 1)
	_, err = cur.ApplyEffect(xferTx, mustExtract(t, xferTx))
	if err == nil {
		t.Fatalf("expected TransferabilityViolated rejection, holder is not the registered issuer")
	}
	if kind, ok := coreErrorKind(err); !ok || kind != types.KindStateConflict {
		t.Fatalf("expected a KindStateConflict error, got %v", err)
	}
}

// TestSpentUtxoStillAnswersGetUtxo covers scenario S6: a spent UTXO is
// retained (not deleted), and get_utxo answers it with a status-only proof
// that still verifies against the liveness bitmap, rather than erroring.
func TestSpentUtxoStillAnswersGetUtxo(t *testing.T) {
	ls := ledger.NewLedgerState(newMemKV())
	ownerSk, ownerPk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate owner key pair: %v", err)
	}
	_, recipientPk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate recipient key pair: %v", err)
	}
	code := types.AssetTypeCode{4}

	cur := NewCursor(ls)
	if err := cur.StartBlock(); err != nil {
		t.Fatalf("start block: %v", err)
	}
	defineTx := defineAssetTx(t, ownerSk, code, types.DefaultAssetRules(), 1)
	if _, err := cur.ApplyEffect(defineTx, mustExtract(t, defineTx)); err != nil {
		t.Fatalf("apply define: %v", err)
	}
	issueTx := issueAssetTx(t, ownerSk, code, 1, xfrKeyFromEd(ownerPk), 5, 2)
	if _, err := cur.ApplyEffect(issueTx, mustExtract(t, issueTx)); err != nil {
		t.Fatalf("apply issuance: %v", err)
	}
	refs, _, err := cur.FinishBlock()
	if err != nil {
		t.Fatalf("finish first block: %v", err)
	}
	spentSid := refs[TxnTempSID(1)].TxoIDs[0]

	if !ls.IsLive(spentSid) {
		t.Fatalf("expected freshly issued utxo to be live")
	}

	if err := cur.StartBlock(); err != nil {
		t.Fatalf("start second block: %v", err)
	}
	xferTx := transferTx(t, ownerSk, spentSid, code, xfrKeyFromEd(recipientPk), 5, 1)
	if _, err := cur.ApplyEffect(xferTx, mustExtract(t, xferTx)); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}
	_, result, err := cur.FinishBlock()
	if err != nil {
		t.Fatalf("finish second block: %v", err)
	}

	if ls.IsLive(spentSid) {
		t.Fatalf("expected spent utxo to no longer be live")
	}

	svc := query.New(ls)
	proof, err := svc.GetUtxo(spentSid)
	if err != nil {
		t.Fatalf("get_utxo on a spent sid must not error: %v", err)
	}
	if proof.Status != types.UtxoSpent {
		t.Fatalf("expected status Spent, got %s", proof.Status)
	}

	ok, err := query.VerifyUtxoProof(proof, result.StateCommitment)
	if err != nil {
		t.Fatalf("verify utxo proof: %v", err)
	}
	if !ok {
		t.Fatalf("expected a spent utxo's status-only proof to verify")
	}
}
