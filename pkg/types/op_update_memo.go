// Copyright 2025 Certen Protocol

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// UpdateMemo changes an asset's plaintext memo. Only admissible when the
// asset's AssetRules.Updatable is true (checked in pkg/blockcursor against
// committed state; pkg/effect only checks the signature).
type UpdateMemo struct {
	Code            AssetTypeCode    `json:"code"`
	NewMemo         Memo             `json:"new_memo"`
	IssuerPublicKey IssuerPublicKey  `json:"issuer_pubkey"`
	Signature       crypto.Signature `json:"signature"`
}

func (UpdateMemo) isOperation() {}

func (o UpdateMemo) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagUpdateMemo)
	w.WriteFixed(o.Code[:])
	w.WriteString(string(o.NewMemo))
	w.WriteFixed(o.IssuerPublicKey.CanonicalBytes())
	return w.Bytes()
}

func (o UpdateMemo) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

func (o UpdateMemo) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteBytes(o.Signature.Bytes())
	return w.Bytes()
}
