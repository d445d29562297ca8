// Copyright 2025 Certen Protocol
//
// Append-only Merkle log.
//
// Two logs in the ledger only ever grow: the list of finalized transaction
// hashes and the list of block hashes, both across the whole chain.
// AppendLog models both: leaves are added one at a time and never removed
// or reordered, and the node arena is copy-on-write — appendLocked always
// allocates fresh level slices rather than mutating the ones a previous
// call returned, so a proof or Snapshot obtained before an Append stays
// valid after it.

package merkle

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/certen/ledgercore/pkg/hashing"
)

var (
	ErrEmptyTree       = errors.New("merkle: tree has no leaves")
	ErrInvalidProof    = errors.New("merkle: invalid proof")
	ErrLeafNotFound    = errors.New("merkle: leaf not found")
	ErrInvalidLeafHash = errors.New("merkle: leaf hash must be 32 bytes")
)

// Position indicates which side of the current hash a proof's sibling sits on.
type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

// ProofNode is one step of a Merkle inclusion proof.
type ProofNode struct {
	Hash     string   `json:"hash"`
	Position Position `json:"position"`
}

// InclusionProof is a portable proof that a leaf belongs to a tree with a
// given root. This is the wire shape pkg/query hands back in its GetUtxo,
// GetTransaction and GetBlock responses.
type InclusionProof struct {
	LeafHash   string      `json:"leaf_hash"`
	LeafIndex  int         `json:"leaf_index"`
	MerkleRoot string      `json:"merkle_root"`
	Path       []ProofNode `json:"path"`
	TreeSize   int         `json:"tree_size"`
}

// AppendLog is an append-only Merkle tree over a growing leaf sequence.
type AppendLog struct {
	mu     sync.RWMutex
	leaves []hashing.Digest
	levels [][]hashing.Digest // levels[0] == leaves; levels[len-1] is the root
}

// NewAppendLog creates an empty log.
func NewAppendLog() *AppendLog {
	return &AppendLog{}
}

// BuildTree constructs an AppendLog from a fixed leaf set in one pass. Used
// by callers (state-commitment recomputation, tests) that already hold the
// full leaf list rather than appending one at a time.
func BuildTree(leaves []hashing.Digest) (*AppendLog, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	l := &AppendLog{leaves: append([]hashing.Digest(nil), leaves...)}
	l.levels = rebuildLevels(l.leaves)
	return l, nil
}

// Append adds a new leaf and returns its index (0-based, in append order).
func (l *AppendLog) Append(leaf hashing.Digest) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(leaf)
}

func (l *AppendLog) appendLocked(leaf hashing.Digest) int {
	newLeaves := make([]hashing.Digest, len(l.leaves)+1)
	copy(newLeaves, l.leaves)
	newLeaves[len(l.leaves)] = leaf
	l.leaves = newLeaves
	l.levels = rebuildLevels(newLeaves)
	return len(newLeaves) - 1
}

// rebuildLevels computes every level bottom-up into freshly allocated
// slices. The duplicate-last-node convention means an odd level's final
// pairing depends on exactly how many leaves are present at the time, so
// there's no way to patch only the right spine in place without recomputing
// the duplicated node anyway — allocating new slices per call, instead of
// mutating the previous call's arrays, is what keeps an old Snapshot or
// InclusionProof valid once more leaves arrive.
func rebuildLevels(leaves []hashing.Digest) [][]hashing.Digest {
	levels := make([][]hashing.Digest, 0, 1)
	current := make([]hashing.Digest, len(leaves))
	copy(current, leaves)
	levels = append(levels, current)

	for len(current) > 1 {
		next := make([]hashing.Digest, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, hashing.PairHash(current[i], current[i+1]))
			} else {
				next = append(next, hashing.PairHash(current[i], current[i]))
			}
		}
		levels = append(levels, next)
		current = next
	}
	return levels
}

// Root returns the current Merkle root, or the zero digest if the log is empty.
func (l *AppendLog) Root() hashing.Digest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.levels) == 0 {
		return hashing.Digest{}
	}
	top := l.levels[len(l.levels)-1]
	return top[0]
}

// RootHex returns the current root as a hex string, or "" if the log is empty.
func (l *AppendLog) RootHex() string {
	root := l.Root()
	if root.IsZero() && len(l.leaves) == 0 {
		return ""
	}
	return root.String()
}

// LeafCount returns the number of leaves appended so far.
func (l *AppendLog) LeafCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.leaves)
}

// GetLeaf returns the leaf at the given index.
func (l *AppendLog) GetLeaf(index int) (hashing.Digest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.leaves) {
		return hashing.Digest{}, fmt.Errorf("leaf index %d out of range [0, %d)", index, len(l.leaves))
	}
	return l.leaves[index], nil
}

// Snapshot pins the tree's current shape so a proof generated from it
// stays meaningful even as the underlying AppendLog keeps growing. Because
// appendLocked never mutates a previous call's level slices, holding a
// Snapshot costs nothing beyond the two slice headers.
type Snapshot struct {
	leaves []hashing.Digest
	levels [][]hashing.Digest
}

// Snapshot captures the log's current state.
func (l *AppendLog) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Snapshot{leaves: l.leaves, levels: l.levels}
}

// Root returns the root pinned at snapshot time.
func (s *Snapshot) Root() hashing.Digest {
	if len(s.levels) == 0 {
		return hashing.Digest{}
	}
	top := s.levels[len(s.levels)-1]
	return top[0]
}

// TreeSize returns the leaf count pinned at snapshot time.
func (s *Snapshot) TreeSize() int {
	return len(s.leaves)
}

// GenerateProof builds an inclusion proof for leafIndex against this
// snapshot's pinned tree shape.
func (s *Snapshot) GenerateProof(leafIndex int) (*InclusionProof, error) {
	if len(s.levels) == 0 {
		return nil, ErrEmptyTree
	}
	if leafIndex < 0 || leafIndex >= len(s.leaves) {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", leafIndex, len(s.leaves))
	}

	proof := &InclusionProof{
		LeafHash:   s.leaves[leafIndex].String(),
		LeafIndex:  leafIndex,
		MerkleRoot: s.Root().String(),
		Path:       make([]ProofNode, 0, len(s.levels)-1),
		TreeSize:   len(s.leaves),
	}

	currentIndex := leafIndex
	for level := 0; level < len(s.levels)-1; level++ {
		levelNodes := s.levels[level]

		var siblingIndex int
		var position Position
		if currentIndex%2 == 0 {
			siblingIndex = currentIndex + 1
			position = Right
		} else {
			siblingIndex = currentIndex - 1
			position = Left
		}

		var siblingHash hashing.Digest
		if siblingIndex < len(levelNodes) {
			siblingHash = levelNodes[siblingIndex]
		} else {
			// Odd level: the duplicate-last-node convention means the
			// "sibling" is the node itself.
			siblingHash = levelNodes[currentIndex]
			position = Right
		}

		proof.Path = append(proof.Path, ProofNode{
			Hash:     siblingHash.String(),
			Position: position,
		})
		currentIndex = currentIndex / 2
	}

	return proof, nil
}

// GenerateProofByHash builds an inclusion proof for the leaf matching
// leafHash against this snapshot's pinned tree shape.
func (s *Snapshot) GenerateProofByHash(leafHash hashing.Digest) (*InclusionProof, error) {
	for i, leaf := range s.leaves {
		if leaf.Equal(leafHash) {
			return s.GenerateProof(i)
		}
	}
	return nil, ErrLeafNotFound
}

// GenerateProof builds an inclusion proof against the log's current state.
func (l *AppendLog) GenerateProof(leafIndex int) (*InclusionProof, error) {
	return l.Snapshot().GenerateProof(leafIndex)
}

// GenerateProofByHash builds an inclusion proof for the leaf matching
// leafHash against the log's current state.
func (l *AppendLog) GenerateProofByHash(leafHash hashing.Digest) (*InclusionProof, error) {
	return l.Snapshot().GenerateProofByHash(leafHash)
}

// VerifyProof checks that leafHash is included in a tree with root
// expectedRoot, per proof. This is a static function: a client re-verifying
// a proof handed back by pkg/query does not need the tree itself, only the
// proof and the root it trusts (e.g. from a finalized StateCommitmentData).
func VerifyProof(leafHash hashing.Digest, proof *InclusionProof, expectedRoot hashing.Digest) (bool, error) {
	if proof == nil || len(proof.Path) == 0 {
		// Single-leaf tree: the leaf is the root.
		return subtle.ConstantTimeCompare(leafHash[:], expectedRoot[:]) == 1, nil
	}

	current := leafHash
	for _, node := range proof.Path {
		siblingBytes, err := hex.DecodeString(node.Hash)
		if err != nil {
			return false, fmt.Errorf("invalid sibling hash: %w", err)
		}
		sibling, err := hashing.DigestFromBytes(siblingBytes)
		if err != nil {
			return false, fmt.Errorf("sibling hash: %w", err)
		}

		if node.Position == Left {
			current = hashing.PairHash(sibling, current)
		} else {
			current = hashing.PairHash(current, sibling)
		}
	}

	return subtle.ConstantTimeCompare(current[:], expectedRoot[:]) == 1, nil
}

// VerifyProofHex verifies a proof given hex-encoded leaf and root hashes.
func VerifyProofHex(leafHashHex string, proof *InclusionProof, expectedRootHex string) (bool, error) {
	leafBytes, err := hex.DecodeString(leafHashHex)
	if err != nil {
		return false, fmt.Errorf("invalid leaf hash hex: %w", err)
	}
	leafHash, err := hashing.DigestFromBytes(leafBytes)
	if err != nil {
		return false, fmt.Errorf("leaf hash: %w", err)
	}

	rootBytes, err := hex.DecodeString(expectedRootHex)
	if err != nil {
		return false, fmt.Errorf("invalid root hash hex: %w", err)
	}
	expectedRoot, err := hashing.DigestFromBytes(rootBytes)
	if err != nil {
		return false, fmt.Errorf("root hash: %w", err)
	}

	return VerifyProof(leafHash, proof, expectedRoot)
}

// ToJSON serializes an inclusion proof to JSON.
func (p *InclusionProof) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// ProofFromJSON deserializes an inclusion proof from JSON.
func ProofFromJSON(data []byte) (*InclusionProof, error) {
	var proof InclusionProof
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// PathToJSON returns just the proof path as JSON, for compact storage
// alongside a leaf when the root is already known from context.
func (p *InclusionProof) PathToJSON() ([]byte, error) {
	return json.Marshal(p.Path)
}
