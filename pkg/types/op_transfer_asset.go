// Copyright 2025 Certen Protocol

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// XfrBody carries a confidential-transfer's ZK proof plus the opaque
// commitments it proves balance over. pkg/zkverify treats ProofBytes as a
// black box (Groth16 verifying key is external, per §1's explicit non-goal
// of rewriting the ZK proof system).
type XfrBody struct {
	InputCommitments  [][32]byte `json:"input_commitments"`
	OutputCommitments [][32]byte `json:"output_commitments"`
	ProofBytes        []byte     `json:"proof"`
}

func (b XfrBody) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint64(uint64(len(b.InputCommitments)))
	for _, c := range b.InputCommitments {
		w.WriteFixed(c[:])
	}
	w.WriteUint64(uint64(len(b.OutputCommitments)))
	for _, c := range b.OutputCommitments {
		w.WriteFixed(c[:])
	}
	w.WriteBytes(b.ProofBytes)
	return w.Bytes()
}

// IsConfidential reports whether this operation carries a ZK transfer
// proof rather than being a fully plaintext transfer.
func (b XfrBody) IsConfidential() bool {
	return len(b.ProofBytes) > 0
}

// TransferAsset moves value from Inputs to Outputs. Inputs may be relative
// (produced earlier in the same transaction) or absolute (a committed
// TxoSID); LienAssignments carries forward an opaque lien hash from a named
// input index to a named output index (§4.1 rule 4). A non-empty XfrProof
// makes this a confidential transfer, checked against pkg/zkverify.
type TransferAsset struct {
	Inputs          []InputRef        `json:"inputs"`
	Outputs         []TxOutput        `json:"outputs"`
	LienAssignments []LienAssignment  `json:"lien_assignments,omitempty"`
	XfrProof        *XfrBody          `json:"xfr_proof,omitempty"`
	InputSignatures []crypto.Signature `json:"input_signatures"`
	InputPublicKeys []crypto.PublicKey `json:"input_public_keys"`
}

// LienAssignment carries forward InputIndex's lien hash to OutputIndex.
type LienAssignment struct {
	InputIndex  uint64 `json:"input_index"`
	OutputIndex uint64 `json:"output_index"`
}

func (TransferAsset) isOperation() {}

func (o TransferAsset) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagTransferAsset)
	w.WriteUint64(uint64(len(o.Inputs)))
	for _, in := range o.Inputs {
		w.WriteFixed(in.CanonicalBytes())
	}
	w.WriteUint64(uint64(len(o.Outputs)))
	for _, out := range o.Outputs {
		w.WriteFixed(out.CanonicalBytes())
	}
	w.WriteUint64(uint64(len(o.LienAssignments)))
	for _, la := range o.LienAssignments {
		w.WriteUint64(la.InputIndex)
		w.WriteUint64(la.OutputIndex)
	}
	if o.XfrProof != nil {
		w.WriteBool(true)
		w.WriteFixed(o.XfrProof.CanonicalBytes())
	} else {
		w.WriteBool(false)
	}
	return w.Bytes()
}

// SignedPayload returns the bytes each entry of InputSignatures must verify
// against (paired positionally with InputPublicKeys).
func (o TransferAsset) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

func (o TransferAsset) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteUint64(uint64(len(o.InputSignatures)))
	for i, sig := range o.InputSignatures {
		w.WriteBytes(sig.Bytes())
		w.WriteBytes(o.InputPublicKeys[i].Bytes())
	}
	return w.Bytes()
}
