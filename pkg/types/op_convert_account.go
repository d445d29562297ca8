// Copyright 2025 Certen Protocol
//
// ConvertAccount moves a UTXO balance out of the UTXO model toward the
// cross-chain EVM-style account subsystem (§1's explicit external
// collaborator). The core only extracts a ConvertAccountEvent and forwards
// it in the FinalizedTransaction — it never executes EVM state transitions.

package types

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// ConvertAccount burns Inputs from the UTXO set and emits an event naming
// the destination EVM address and amount.
type ConvertAccount struct {
	Inputs        []InputRef       `json:"inputs"`
	EVMAddress    common.Address   `json:"evm_address"`
	Amount        uint64           `json:"amount"`
	SigningKey    crypto.PublicKey `json:"signing_key"`
	Signature     crypto.Signature `json:"signature"`
}

func (ConvertAccount) isOperation() {}

func (o ConvertAccount) signedBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(tagConvertAccount)
	w.WriteUint64(uint64(len(o.Inputs)))
	for _, in := range o.Inputs {
		w.WriteFixed(in.CanonicalBytes())
	}
	w.WriteFixed(o.EVMAddress.Bytes())
	w.WriteUint64(o.Amount)
	w.WriteBytes(o.SigningKey.Bytes())
	return w.Bytes()
}

func (o ConvertAccount) SignedPayload() signedPayload { return signedPayload(o.signedBytes()) }

func (o ConvertAccount) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(o.signedBytes())
	w.WriteBytes(o.Signature.Bytes())
	return w.Bytes()
}

// ConvertAccountEvent is what pkg/effect appends to Effect.ConvertAccountEvents
// — the only artifact the core produces for this operation. A downstream
// bridge (outside this repo) replays it against the EVM account subsystem.
type ConvertAccountEvent struct {
	SourceTxo  TxoSID         `json:"source_txo"`
	EVMAddress common.Address `json:"evm_address"`
	Amount     uint64         `json:"amount"`
}
