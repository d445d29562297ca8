// Copyright 2025 Certen Protocol
//
// StateCommitmentData is the single struct whose hash is published as the
// ledger's state commitment at every block (§3, §4.3 step 7). Open question
// 1 from spec.md §9 is resolved here: the canonical field order is frozen
// at v1 via an explicit Version field, and PulseCount is present from v1
// onward with a zero default — there is no unversioned legacy form to stay
// compatible with in this implementation.

package types

import (
	"github.com/certen/ledgercore/pkg/codec"
	"github.com/certen/ledgercore/pkg/hashing"
)

// StateCommitmentVersion is the only canonical encoding this implementation
// produces or accepts.
const StateCommitmentVersion uint16 = 1

// StateCommitmentData is the pre-image of the published state commitment.
type StateCommitmentData struct {
	Version                 uint16          `json:"version"`
	BitmapChecksum          hashing.Digest  `json:"bitmap_checksum"`
	BlockMerkleRoot         hashing.Digest  `json:"block_merkle_root"`
	TxnsInBlockHash         hashing.Digest  `json:"txns_in_block_hash"`
	PreviousStateCommitment hashing.Digest  `json:"previous_state_commitment"`
	TxnMerkleRoot           hashing.Digest  `json:"txn_merkle_root"`
	TxoCount                uint64          `json:"txo_count"`
	TxnCount                uint64          `json:"txn_count"`
	BlockCount              uint64          `json:"block_count"`
	PulseCount              uint64          `json:"pulse_count"`
}

func (d StateCommitmentData) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint8(0) // discriminant reserved for future non-v1 encodings
	w.WriteFixed([]byte{byte(d.Version >> 8), byte(d.Version)})
	w.WriteFixed(d.BitmapChecksum[:])
	w.WriteFixed(d.BlockMerkleRoot[:])
	w.WriteFixed(d.TxnsInBlockHash[:])
	w.WriteFixed(d.PreviousStateCommitment[:])
	w.WriteFixed(d.TxnMerkleRoot[:])
	w.WriteUint64(d.TxoCount)
	w.WriteUint64(d.TxnCount)
	w.WriteUint64(d.BlockCount)
	w.WriteUint64(d.PulseCount)
	return w.Bytes()
}

// StateCommitment computes state_commitment = Hash(Some(StateCommitmentData)).
// "Some" in the original is the Option-wrapping of the pre-genesis case;
// here genesis's PreviousStateCommitment is simply the zero digest, so the
// hash function needs no separate None variant.
func (d StateCommitmentData) StateCommitment() hashing.Digest {
	return hashing.HashOf(d)
}
