// Copyright 2025 Certen Protocol
//
// Asset model: AssetTypeCode identifies an asset; AssetType carries its
// immutable rules plus the one mutable counter (units_issued); AssetRules
// is deliberately static data (no scripting hooks), per §9's redesign note
// that dynamic dispatch over issuer/signer behavior should be explicit data
// evaluated by a pure checker instead of polymorphic objects.

package types

import (
	"encoding/json"

	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// SignatureRule is a flat multisig threshold: any `Threshold` of the listed
// keys (each optionally weighted) must sign. Non-goal: nested/weighted
// threshold trees beyond this single flat level.
type SignatureRule struct {
	Keys      []crypto.PublicKey `json:"keys"`
	Weights   []uint64           `json:"weights"`
	Threshold uint64             `json:"threshold"`
}

func (r *SignatureRule) canonicalWrite(w *codec.Writer) {
	if r == nil {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	w.WriteUint64(uint64(len(r.Keys)))
	for i, k := range r.Keys {
		w.WriteBytes(k.Bytes())
		w.WriteUint64(r.Weights[i])
	}
	w.WriteUint64(r.Threshold)
}

// AssetRules are the static, immutable-after-definition rules governing an
// asset's issuance and transfer. Trimmed of the original's dynamic
// asset-rule-scripting fields per the explicit non-goal.
type AssetRules struct {
	Transferable               bool           `json:"transferable"`
	Updatable                  bool           `json:"updatable"`
	MaxUnits                   *uint64        `json:"max_units,omitempty"`
	Decimals                   uint8          `json:"decimals"`
	TransferMultisigThreshold  *SignatureRule `json:"transfer_multisig_threshold,omitempty"`
}

// DefaultAssetRules returns the rules S1's "rules default" scenario assumes:
// transferable, not updatable, unbounded issuance, no multisig requirement.
func DefaultAssetRules() AssetRules {
	return AssetRules{Transferable: true, Updatable: false, Decimals: 0}
}

func (r AssetRules) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteBool(r.Transferable)
	w.WriteBool(r.Updatable)
	if r.MaxUnits != nil {
		w.WriteBool(true)
		w.WriteUint64(*r.MaxUnits)
	} else {
		w.WriteBool(false)
	}
	w.WriteUint8(r.Decimals)
	r.TransferMultisigThreshold.canonicalWrite(w)
	return w.Bytes()
}

// IssuerPublicKey is the signing key an issuer uses to authorize DefineAsset,
// IssueAsset, and UpdateMemo operations. Distinguished from XfrPublicKey
// (the confidential-transfer key) exactly as the original source does.
type IssuerPublicKey struct {
	Key crypto.PublicKey `json:"key"`
}

func (k IssuerPublicKey) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteBytes(k.Key.Bytes())
	return w.Bytes()
}

// XfrPublicKey is an opaque confidential-transfer key (the original's
// Ristretto-style blinding key). No Ristretto arithmetic is reimplemented
// here — it is a black-box 32-byte identifier consumed only by pkg/zkverify,
// per the confidentiality non-goal.
type XfrPublicKey [32]byte

func (k XfrPublicKey) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(k[:])
	return w.Bytes()
}

func (k XfrPublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexEncode(k[:]))
}

func (k *XfrPublicKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hexDecode(s)
	if err != nil {
		return err
	}
	if len(decoded) != 32 {
		return errFixedLength(32, len(decoded))
	}
	copy(k[:], decoded)
	return nil
}

// Memo is a plain-text asset memo.
type Memo string

// ConfidentialMemo is an opaque encrypted memo blob — the core persists and
// forwards it but never decrypts it.
type ConfidentialMemo []byte

// AssetType is the committed record for a defined asset (§3).
type AssetType struct {
	Code             AssetTypeCode    `json:"code"`
	Rules            AssetRules       `json:"rules"`
	IssuerPublicKey  IssuerPublicKey  `json:"issuer_pubkey"`
	Memo             Memo             `json:"memo"`
	ConfidentialMemo ConfidentialMemo `json:"confidential_memo,omitempty"`
	Digest           [32]byte         `json:"digest"`
	UnitsIssued      uint64           `json:"units_issued"`
}

// DefinitionCanonicalBytes encodes the definition fields only, leaving out
// Digest and UnitsIssued (the one field that mutates after definition) — the
// asset's identity hash must stay constant across issuance, only the
// registry's stored record's counter changes. CanonicalBytes adds both.
func (a AssetType) DefinitionCanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(a.Code[:])
	w.WriteFixed(a.Rules.CanonicalBytes())
	w.WriteFixed(a.IssuerPublicKey.CanonicalBytes())
	w.WriteString(string(a.Memo))
	w.WriteBytes(a.ConfidentialMemo)
	return w.Bytes()
}

func (a AssetType) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(a.DefinitionCanonicalBytes())
	w.WriteFixed(a.Digest[:])
	w.WriteUint64(a.UnitsIssued)
	return w.Bytes()
}
