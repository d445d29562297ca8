// Copyright 2025 Certen Protocol
//
// TxOutput and its live wrapper Utxo (§3). A TxOutput's TxoSID is unset
// until commit; once committed, a Utxo's Spent flag and the liveness bitmap
// (pkg/bitmap) record the same spent/unspent bit (see Utxo).

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
)

// BlindAssetRecord is the (possibly confidential) record of an output's
// asset type, amount, and owner. Non-confidential records carry plaintext
// type/amount; confidential records carry opaque commitments plus a ZK
// transfer proof checked by pkg/zkverify. No Ristretto/Bulletproofs
// arithmetic is reimplemented here (explicit non-goal) — the commitment and
// proof bytes are opaque to the core.
type BlindAssetRecord struct {
	// AssetTypeConfidential/AmountConfidential: when true the corresponding
	// plaintext field is zero and Commitment carries the
	// opaque commitment instead.
	AssetTypeConfidential bool          `json:"asset_type_confidential"`
	AmountConfidential    bool          `json:"amount_confidential"`
	AssetType             AssetTypeCode `json:"asset_type,omitempty"`
	Amount                uint64        `json:"amount,omitempty"`
	Commitment            []byte        `json:"commitment,omitempty"`
	PublicKey             XfrPublicKey  `json:"public_key"`
}

func (r BlindAssetRecord) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteBool(r.AssetTypeConfidential)
	w.WriteBool(r.AmountConfidential)
	w.WriteFixed(r.AssetType[:])
	w.WriteUint64(r.Amount)
	w.WriteBytes(r.Commitment)
	w.WriteFixed(r.PublicKey.CanonicalBytes())
	return w.Bytes()
}

// IsFeeEligible reports whether this record is a plaintext, non-confidential
// record of the native asset — the only shape §4.5 admits as a fee output.
func (r BlindAssetRecord) IsFeeEligible(native AssetTypeCode) bool {
	return !r.AssetTypeConfidential && !r.AmountConfidential && r.AssetType == native
}

// LienHash is an opaque hash carried forward from a named input to a named
// output across transfers (§3's lien mechanism), enabling hierarchical
// output groupings without the core interpreting their meaning.
type LienHash [32]byte

// TxOutput is a single transaction output. TxoSID is nil until the owning
// transaction is committed (§4.3 step 2 backfills it).
type TxOutput struct {
	TxoSID   *TxoSID          `json:"txo_sid,omitempty"`
	Record   BlindAssetRecord `json:"blind_asset_record"`
	LienHash *LienHash        `json:"lien_hash,omitempty"`
}

func (o TxOutput) CanonicalBytes() []byte {
	w := codec.NewWriter()
	if o.TxoSID != nil {
		w.WriteBool(true)
		w.WriteUint64(uint64(*o.TxoSID))
	} else {
		w.WriteBool(false)
	}
	w.WriteFixed(o.Record.CanonicalBytes())
	if o.LienHash != nil {
		w.WriteBool(true)
		w.WriteFixed(o.LienHash[:])
	} else {
		w.WriteBool(false)
	}
	return w.Bytes()
}

// Utxo is the recorded view over a committed TxOutput, kept around after
// being spent rather than erased: a spent Utxo still answers get_utxo with
// a status-only proof (§8 scenario S6), so Spent is the authoritative
// "is this spendable" bit, not record absence. The liveness bitmap
// (pkg/bitmap) tracks the same bit for the published commitment's bitmap
// checksum; Commit keeps both in lockstep on every spend.
//
// TxnSID and Location identify the committed FinalizedTransaction and the
// output's index within its TxoIDs list, the "utxo_location" a get_utxo
// proof reports so a verifier can check outputs[utxo_location] == utxo
// against the proven transaction (§4.6).
type Utxo struct {
	Output   TxOutput `json:"output"`
	TxnSID   TxnSID   `json:"txn_sid"`
	Location int      `json:"location"`
	Spent    bool     `json:"spent,omitempty"`
}
