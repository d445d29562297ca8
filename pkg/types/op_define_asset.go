// Copyright 2025 Certen Protocol

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// DefineAsset registers a new AssetTypeCode with its immutable rules and
// issuer key. Fails extraction with SignatureInvalid if Signature does not
// verify against IssuerPublicKey over the operation's signed fields.
type DefineAsset struct {
	Code             AssetTypeCode    `json:"code"`
	Rules            AssetRules       `json:"rules"`
	IssuerPublicKey  IssuerPublicKey  `json:"issuer_pubkey"`
	Memo             Memo             `json:"memo"`
	ConfidentialMemo ConfidentialMemo `json:"confidential_memo,omitempty"`
	Signature        crypto.Signature `json:"signature"`
}

func (DefineAsset) isOperation() {}

// signedBytes is the payload Signature is computed over — every field
// except the signature itself.
func (o DefineAsset) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagDefineAsset)
	w.WriteFixed(o.Code[:])
	w.WriteFixed(o.Rules.CanonicalBytes())
	w.WriteFixed(o.IssuerPublicKey.CanonicalBytes())
	w.WriteString(string(o.Memo))
	w.WriteBytes(o.ConfidentialMemo)
	return w.Bytes()
}

// SignedPayload exposes the bytes Signature must verify against, for
// pkg/effect's signature check.
func (o DefineAsset) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

func (o DefineAsset) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteBytes(o.Signature.Bytes())
	return w.Bytes()
}
