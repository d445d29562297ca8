// Copyright 2025 Certen Protocol

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// IssueAsset mints new units of an already-defined asset. SeqNum must be
// strictly increasing per asset within a transaction (§4.1 rule 2) and
// strictly greater than the committed/staged maximum at apply time
// (§4.2's IssuanceReplay check).
type IssueAsset struct {
	Code            AssetTypeCode    `json:"code"`
	SeqNum          uint64           `json:"seq_num"`
	Outputs         []TxOutput       `json:"outputs"`
	IssuerPublicKey IssuerPublicKey  `json:"issuer_pubkey"`
	Signature       crypto.Signature `json:"signature"`
}

func (IssueAsset) isOperation() {}

func (o IssueAsset) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagIssueAsset)
	w.WriteFixed(o.Code[:])
	w.WriteUint64(o.SeqNum)
	w.WriteUint64(uint64(len(o.Outputs)))
	for _, out := range o.Outputs {
		w.WriteFixed(out.CanonicalBytes())
	}
	w.WriteFixed(o.IssuerPublicKey.CanonicalBytes())
	return w.Bytes()
}

func (o IssueAsset) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

// TotalUnits sums the non-confidential amount across Outputs. Confidential
// issuance amounts cannot be summed by the core (explicit non-goal covers
// confidential fee payments; confidential issuance amounts are likewise
// opaque) — callers must treat an issuance containing a confidential output
// as contributing an unverifiable amount to the cap check, which
// pkg/blockcursor rejects outright (see IssuanceCapExceeded handling).
func (o IssueAsset) TotalUnits() (uint64, bool) {
	var total uint64
	for _, out := range o.Outputs {
		if out.Record.AmountConfidential {
			return 0, false
		}
		var err error
		total, err = CheckedAddU64(total, out.Record.Amount)
		if err != nil {
			return 0, false
		}
	}
	return total, true
}

func (o IssueAsset) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteBytes(o.Signature.Bytes())
	return w.Bytes()
}
