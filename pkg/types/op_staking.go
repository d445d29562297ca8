// Copyright 2025 Certen Protocol
//
// Staking operations, supplemented from the original source's validator/
// staking data model (dropped by spec.md's distillation, present in the
// original as TransferAssetBody's staking siblings). Extracted the same
// way a transfer is: signature-checked against the delegator's key, folded
// into Effect.StakingOps. The extractor never consults ledger state — the
// staking view is read only during pkg/blockcursor's apply_effect.

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// ValidatorID identifies a validator by its consensus public key, hex-encoded.
type ValidatorID string

// DelegatorID identifies a delegator by its signing public key, hex-encoded.
type DelegatorID string

// DelegatorIDFromKey derives the DelegatorID pkg/blockcursor uses to index
// the staking view from the public key a staking operation was signed with.
func DelegatorIDFromKey(k crypto.PublicKey) DelegatorID {
	return DelegatorID(hexEncode(k.Bytes()))
}

// Delegate stakes Amount of the native asset to Validator. The amount is
// recorded as stake only: no balance is checked or debited for it.
type Delegate struct {
	Validator    ValidatorID      `json:"validator"`
	Amount       uint64           `json:"amount"`
	DelegatorKey crypto.PublicKey `json:"delegator_key"`
	Signature    crypto.Signature `json:"signature"`
}

func (Delegate) isOperation() {}

func (o Delegate) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagDelegate)
	w.WriteString(string(o.Validator))
	w.WriteUint64(o.Amount)
	w.WriteBytes(o.DelegatorKey.Bytes())
	return w.Bytes()
}

func (o Delegate) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

func (o Delegate) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteBytes(o.Signature.Bytes())
	return w.Bytes()
}

// UnDelegate withdraws an existing delegation from Validator in full.
type UnDelegate struct {
	Validator    ValidatorID      `json:"validator"`
	DelegatorKey crypto.PublicKey `json:"delegator_key"`
	Signature    crypto.Signature `json:"signature"`
}

func (UnDelegate) isOperation() {}

func (o UnDelegate) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagUnDelegate)
	w.WriteString(string(o.Validator))
	w.WriteBytes(o.DelegatorKey.Bytes())
	return w.Bytes()
}

func (o UnDelegate) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

func (o UnDelegate) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteBytes(o.Signature.Bytes())
	return w.Bytes()
}

// ClaimRewards withdraws Amount of accrued rewards from Validator's pending
// rewards pool for the delegator.
type ClaimRewards struct {
	Validator    ValidatorID      `json:"validator"`
	Amount       uint64           `json:"amount"`
	DelegatorKey crypto.PublicKey `json:"delegator_key"`
	Signature    crypto.Signature `json:"signature"`
}

func (ClaimRewards) isOperation() {}

func (o ClaimRewards) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagClaimRewards)
	w.WriteString(string(o.Validator))
	w.WriteUint64(o.Amount)
	w.WriteBytes(o.DelegatorKey.Bytes())
	return w.Bytes()
}

func (o ClaimRewards) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

func (o ClaimRewards) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteBytes(o.Signature.Bytes())
	return w.Bytes()
}
