// Copyright 2025 Certen Protocol
//
// Authenticated query service (§4.6, §8). Every method here is read-only
// against a LedgerState snapshot and returns a self-contained proof object a
// client can verify against a trusted state commitment without trusting the
// server that produced it — the same inclusion/liveness machinery pkg/ledger
// uses internally to build state_commitment_data in the first place.

package query

import (
	"bytes"
	"fmt"

	"github.com/certen/ledgercore/pkg/bitmap"
	"github.com/certen/ledgercore/pkg/hashing"
	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/merkle"
	"github.com/certen/ledgercore/pkg/types"
)

// UtxoProof is get_utxo's response shape (§4.6): the output itself, its
// three-way status (§8 scenario S6: Spent still answers with a valid
// proof, only Nonexistent is an error), a proof that its containing
// transaction sits in the transaction Merkle tree, a proof of its liveness
// bit, its index within the containing transaction's output list, and the
// state_commitment_data it was proven against.
type UtxoProof struct {
	Utxo                types.Utxo                `json:"utxo"`
	Status              types.UtxoStatus          `json:"status"`
	ContainingTxn       types.FinalizedTransaction `json:"containing_txn"`
	TxnInclusionProof   *merkle.InclusionProof     `json:"txn_inclusion_proof"`
	LivenessProof       bitmap.CompactProof        `json:"liveness_proof"`
	UtxoLocation        int                        `json:"utxo_location"`
	StateCommitmentData types.StateCommitmentData  `json:"state_commitment_data"`
}

// TransactionProof is get_transaction's response shape (§4.6).
type TransactionProof struct {
	FinalizedTxn        types.FinalizedTransaction `json:"finalized_txn"`
	TxnInclusionProof    *merkle.InclusionProof    `json:"txn_inclusion_proof"`
	StateCommitmentData types.StateCommitmentData  `json:"state_commitment_data"`
	StateCommitment     hashing.Digest             `json:"state_commitment"`
}

// BlockProof is get_block's response shape (§4.6, "analogous, over the
// block Merkle tree").
type BlockProof struct {
	Block                ledger.BlockRecord        `json:"block"`
	BlockInclusionProof   *merkle.InclusionProof    `json:"block_inclusion_proof"`
	StateCommitmentData  types.StateCommitmentData `json:"state_commitment_data"`
	StateCommitment      hashing.Digest             `json:"state_commitment"`
}

// Service answers get_utxo/get_transaction/get_block against one
// LedgerState. It holds no state of its own beyond the LedgerState pointer:
// every call reads a fresh snapshot, so results always reflect the most
// recently committed block at the time of the call.
type Service struct {
	ls *ledger.LedgerState
}

// New constructs a Service over ls.
func New(ls *ledger.LedgerState) *Service {
	return &Service{ls: ls}
}

// currentCommitmentData loads the StateCommitmentData published by the most
// recently committed block. There is no commitment before genesis's first
// commit, so an empty ledger reports ErrCommitmentNotFound.
func (s *Service) currentCommitmentData() (types.StateCommitmentData, error) {
	_, _, block := s.ls.Counters()
	if block == 0 {
		return types.StateCommitmentData{}, ledger.ErrCommitmentNotFound
	}
	return s.ls.GetStateCommitmentAt(block)
}

// transactionOutputs reorders tx's IssueAsset/TransferAsset outputs into the
// transaction-wide slot numbering (§4.2: "outputs are numbered in operation
// order"), the same walk pkg/effect uses to build TxoIDs at commit time —
// utxo_location is an index into exactly this list.
func transactionOutputs(tx types.Transaction) []types.TxOutput {
	var outs []types.TxOutput
	consumed := map[uint64]bool{}
	for _, op := range tx.Body.Operations {
		switch o := op.(type) {
		case types.IssueAsset:
			outs = append(outs, o.Outputs...)
		case types.TransferAsset:
			for _, in := range o.Inputs {
				if in.IsRelative() {
					consumed[*in.Relative] = true
				}
			}
			outs = append(outs, o.Outputs...)
		}
	}
	committed := make([]types.TxOutput, 0, len(outs))
	for i, out := range outs {
		if !consumed[uint64(i)] {
			committed = append(committed, out)
		}
	}
	return committed
}

// GetUtxo answers get_utxo(sid) (§4.6). Spent is a valid answer, not an
// error (§8 scenario S6): only Nonexistent — sid was never assigned a
// TxoSID — reports ErrUtxoNotFound.
func (s *Service) GetUtxo(sid types.TxoSID) (*UtxoProof, error) {
	status := s.ls.UtxoStatus(sid)
	if status == types.UtxoNonexistent {
		return nil, ledger.ErrUtxoNotFound
	}
	u, _ := s.ls.GetUtxo(sid)

	ftx, err := s.ls.GetTransaction(u.TxnSID)
	if err != nil {
		return nil, err
	}

	proof, err := s.ls.TxnMerkleSnapshot().GenerateProof(int(ftx.MerkleID))
	if err != nil {
		return nil, fmt.Errorf("query: generate txn inclusion proof for utxo %s: %w", sid, err)
	}

	liveness := s.ls.BitmapSnapshot().Prove(sid)

	commitData, err := s.currentCommitmentData()
	if err != nil {
		return nil, err
	}

	return &UtxoProof{
		Utxo:                u,
		Status:              status,
		ContainingTxn:       ftx,
		TxnInclusionProof:   proof,
		LivenessProof:       liveness,
		UtxoLocation:        u.Location,
		StateCommitmentData: commitData,
	}, nil
}

// GetTransaction answers get_transaction(sid) (§4.6).
func (s *Service) GetTransaction(sid types.TxnSID) (*TransactionProof, error) {
	ftx, err := s.ls.GetTransaction(sid)
	if err != nil {
		return nil, err
	}

	proof, err := s.ls.TxnMerkleSnapshot().GenerateProof(int(ftx.MerkleID))
	if err != nil {
		return nil, fmt.Errorf("query: generate txn inclusion proof for txn %s: %w", sid, err)
	}

	commitData, err := s.currentCommitmentData()
	if err != nil {
		return nil, err
	}

	return &TransactionProof{
		FinalizedTxn:        ftx,
		TxnInclusionProof:   proof,
		StateCommitmentData: commitData,
		StateCommitment:     commitData.StateCommitment(),
	}, nil
}

// GetBlock answers get_block(sid) (§4.6). A block's leaf index in the block
// Merkle tree equals its own BlockSID: both are assigned from the same
// monotonically-increasing block_count at commit time (see
// ledger.LedgerState.Commit), so no separate reverse index is needed.
func (s *Service) GetBlock(sid types.BlockSID) (*BlockProof, error) {
	rec, err := s.ls.GetBlock(sid)
	if err != nil {
		return nil, err
	}

	proof, err := s.ls.BlockMerkleSnapshot().GenerateProof(int(sid))
	if err != nil {
		return nil, fmt.Errorf("query: generate block inclusion proof for block %s: %w", sid, err)
	}

	commitData, err := s.currentCommitmentData()
	if err != nil {
		return nil, err
	}

	return &BlockProof{
		Block:                rec,
		BlockInclusionProof:  proof,
		StateCommitmentData: commitData,
		StateCommitment:     commitData.StateCommitment(),
	}, nil
}

// VerifyUtxoProof reproduces the original ledger's AuthenticatedUtxoStatus
// validity rule (§4.6, §8 scenario S6): the commitment is self-consistent,
// the containing transaction is included in the proven transaction Merkle
// tree, the claimed status agrees with the bitmap bit the proof carries,
// that bitmap proof checks out against the commitment's bitmap checksum,
// and the claimed output sits at utxo_location within the containing
// transaction's output list. Unspent and Spent are both valid statuses
// here — only a liveness bit inconsistent with the claimed status fails.
func VerifyUtxoProof(p *UtxoProof, trustedCommitment hashing.Digest) (bool, error) {
	if p.StateCommitmentData.StateCommitment() != trustedCommitment {
		return false, nil
	}

	leaf := hashing.HashOf(p.ContainingTxn)
	ok, err := merkle.VerifyProof(leaf, p.TxnInclusionProof, p.StateCommitmentData.TxnMerkleRoot)
	if err != nil {
		return false, fmt.Errorf("query: verify txn inclusion proof: %w", err)
	}
	if !ok {
		return false, nil
	}

	switch p.Status {
	case types.UtxoUnspent:
		if !p.LivenessProof.Live {
			return false, nil
		}
	case types.UtxoSpent:
		if p.LivenessProof.Live {
			return false, nil
		}
	default:
		return false, nil
	}
	if !p.LivenessProof.Verify(p.StateCommitmentData.BitmapChecksum) {
		return false, nil
	}

	outs := transactionOutputs(p.ContainingTxn.Txn)
	if p.UtxoLocation < 0 || p.UtxoLocation >= len(outs) {
		return false, nil
	}
	claimed := outs[p.UtxoLocation]
	proven := p.Utxo.Output
	proven.TxoSID = nil // the submitted transaction's outputs carry no TxoSID
	return bytes.Equal(claimed.CanonicalBytes(), proven.CanonicalBytes()), nil
}

// VerifyTransactionProof reproduces §4.6's get_transaction validity rule:
// the commitment is self-consistent and the finalized transaction's hash is
// included in the proven transaction Merkle tree.
func VerifyTransactionProof(p *TransactionProof, trustedCommitment hashing.Digest) (bool, error) {
	if p.StateCommitmentData.StateCommitment() != trustedCommitment {
		return false, nil
	}
	if p.StateCommitment != trustedCommitment {
		return false, nil
	}
	leaf := hashing.HashOf(p.FinalizedTxn)
	return merkle.VerifyProof(leaf, p.TxnInclusionProof, p.StateCommitmentData.TxnMerkleRoot)
}

// VerifyBlockProof reproduces §4.6's get_block validity rule, analogous to
// VerifyTransactionProof but over the block Merkle tree: the leaf is the
// block's txns_in_block_hash, exactly what Commit appends per block.
func VerifyBlockProof(p *BlockProof, trustedCommitment hashing.Digest) (bool, error) {
	if p.StateCommitmentData.StateCommitment() != trustedCommitment {
		return false, nil
	}
	if p.StateCommitment != trustedCommitment {
		return false, nil
	}
	return merkle.VerifyProof(p.Block.Hash, p.BlockInclusionProof, p.StateCommitmentData.BlockMerkleRoot)
}
