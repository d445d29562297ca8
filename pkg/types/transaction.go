// Copyright 2025 Certen Protocol
//
// Transaction and FinalizedTransaction (§3). All operations within a
// Transaction's body share the body's single NoReplayToken (§4.5) — unlike
// the original source, no Operation variant carries its own copy, so there
// is nothing left to cross-check at extraction time.

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/crypto"
)

// TransactionBody is the signed payload of a Transaction.
type TransactionBody struct {
	NoReplayToken NoReplayToken `json:"no_replay_token"`
	Operations    []Operation   `json:"operations"`
	Memos         []Memo        `json:"memos,omitempty"`
}

func (b TransactionBody) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(b.NoReplayToken.CanonicalBytes())
	w.WriteUint64(uint64(len(b.Operations)))
	for _, op := range b.Operations {
		w.WriteFixed(op.CanonicalBytes())
	}
	w.WriteUint64(uint64(len(b.Memos)))
	for _, m := range b.Memos {
		w.WriteString(string(m))
	}
	return w.Bytes()
}

// OuterSignature is a transaction-level signature over the whole body,
// distinct from any operation's own embedded signature — required from
// every public key that owns an absolute input consumed anywhere in the
// transaction.
type OuterSignature struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

func (s OuterSignature) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteBytes(s.PublicKey.Bytes())
	w.WriteBytes(s.Signature.Bytes())
	return w.Bytes()
}

// Transaction is a signed transaction as submitted to the ledger.
type Transaction struct {
	Body       TransactionBody  `json:"body"`
	Signatures []OuterSignature `json:"signatures"`
}

func (t Transaction) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(t.Body.CanonicalBytes())
	w.WriteUint64(uint64(len(t.Signatures)))
	for _, s := range t.Signatures {
		w.WriteFixed(s.CanonicalBytes())
	}
	return w.Bytes()
}

// FinalizedTransaction is a Transaction after commit: Txn is kept exactly as
// submitted, TxoIDs lists the TxoSIDs assigned to its committed outputs in
// order, it carries the TxnSID assigned at commit, and merkle_id is its leaf
// index in the transaction Merkle tree.
type FinalizedTransaction struct {
	Txn      Transaction `json:"txn"`
	TxID     TxnSID      `json:"tx_id"`
	TxoIDs   []TxoSID    `json:"txo_ids"`
	MerkleID uint64      `json:"merkle_id"`

	// ConvertAccountEvents is forwarded from pkg/effect, one per input
	// consumed by a ConvertAccount operation in Txn, so a downstream bridge can replay
	// them without re-deriving them from raw operation bytes.
	ConvertAccountEvents []ConvertAccountEvent `json:"convert_account_events,omitempty"`
}

// CanonicalBytes is the HashOf<(TxnSID, Transaction)> leaf the transaction
// Merkle tree appends (§4.4). Deliberately excludes TxoIDs/MerkleID/events:
// those are derived from the assignment, not part of the committed
// identity being proven.
func (f FinalizedTransaction) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint64(uint64(f.TxID))
	w.WriteFixed(f.Txn.CanonicalBytes())
	return w.Bytes()
}

// TransactionList is the ordered list of transactions delivered within one
// block. Its hash serves double duty (§4.3 steps 6-7): it is both the block
// Merkle tree's leaf and txns_in_block_hash in StateCommitmentData — the
// spec defines both as HashOf(transactions) over the same ordered list.
type TransactionList []Transaction

func (l TransactionList) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint64(uint64(len(l)))
	for _, t := range l {
		w.WriteFixed(t.CanonicalBytes())
	}
	return w.Bytes()
}
