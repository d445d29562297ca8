// Copyright 2025 Certen Protocol
//
// Append-only Merkle log tests

package merkle

import (
	"testing"

	"github.com/certen/ledgercore/pkg/hashing"
)

func digestOf(s string) hashing.Digest {
	return hashing.Sum([]byte(s))
}

func TestBuildTree_SingleLeaf(t *testing.T) {
	leaf := digestOf("test data")
	tree, err := BuildTree([]hashing.Digest{leaf})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	if !tree.Root().Equal(leaf) {
		t.Errorf("single leaf root mismatch: got %s, want %s", tree.Root(), leaf)
	}
	if tree.LeafCount() != 1 {
		t.Errorf("leaf count mismatch: got %d, want 1", tree.LeafCount())
	}
}

func TestBuildTree_TwoLeaves(t *testing.T) {
	leaf1 := digestOf("leaf 1")
	leaf2 := digestOf("leaf 2")

	tree, err := BuildTree([]hashing.Digest{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	expectedRoot := hashing.PairHash(leaf1, leaf2)
	if !tree.Root().Equal(expectedRoot) {
		t.Errorf("two leaf root mismatch: got %s, want %s", tree.Root(), expectedRoot)
	}
}

func TestBuildTree_OddLeaves(t *testing.T) {
	leaves := make([]hashing.Digest, 3)
	for i := range leaves {
		leaves[i] = hashing.Sum([]byte{byte(i)})
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree with odd leaves: %v", err)
	}
	if tree.LeafCount() != 3 {
		t.Errorf("leaf count mismatch: got %d, want 3", tree.LeafCount())
	}
	if tree.Root().IsZero() {
		t.Error("root is zero for odd-leaf tree")
	}
}

func TestGenerateProof_TwoLeaves(t *testing.T) {
	leaf1 := digestOf("leaf 1")
	leaf2 := digestOf("leaf 2")

	tree, err := BuildTree([]hashing.Digest{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof0, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("failed to generate proof for leaf 0: %v", err)
	}
	if proof0.LeafIndex != 0 {
		t.Errorf("proof leaf index mismatch: got %d, want 0", proof0.LeafIndex)
	}
	if len(proof0.Path) != 1 {
		t.Errorf("proof path length mismatch: got %d, want 1", len(proof0.Path))
	}
	if proof0.Path[0].Position != Right {
		t.Errorf("sibling position mismatch: got %s, want right", proof0.Path[0].Position)
	}

	valid, err := VerifyProof(leaf1, proof0, tree.Root())
	if err != nil {
		t.Fatalf("failed to verify proof: %v", err)
	}
	if !valid {
		t.Error("proof verification failed for valid proof")
	}

	proof1, err := tree.GenerateProof(1)
	if err != nil {
		t.Fatalf("failed to generate proof for leaf 1: %v", err)
	}
	if proof1.Path[0].Position != Left {
		t.Errorf("sibling position mismatch: got %s, want left", proof1.Path[0].Position)
	}

	valid, err = VerifyProof(leaf2, proof1, tree.Root())
	if err != nil {
		t.Fatalf("failed to verify proof: %v", err)
	}
	if !valid {
		t.Error("proof verification failed for valid proof")
	}
}

func TestGenerateProof_FourLeaves(t *testing.T) {
	leaves := make([]hashing.Digest, 4)
	for i := range leaves {
		leaves[i] = hashing.Sum([]byte{byte(i)})
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	for i := 0; i < 4; i++ {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("failed to generate proof for leaf %d: %v", i, err)
		}
		if len(proof.Path) != 2 {
			t.Errorf("leaf %d: proof path length mismatch: got %d, want 2", i, len(proof.Path))
		}
		valid, err := VerifyProof(leaves[i], proof, tree.Root())
		if err != nil {
			t.Fatalf("leaf %d: failed to verify proof: %v", i, err)
		}
		if !valid {
			t.Errorf("leaf %d: proof verification failed", i)
		}
	}
}

func TestGenerateProof_LargeTree(t *testing.T) {
	leaves := make([]hashing.Digest, 100)
	for i := range leaves {
		leaves[i] = hashing.Sum([]byte{byte(i), byte(i >> 8)})
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	for _, i := range []int{0, 1, 49, 50, 99} {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("failed to generate proof for leaf %d: %v", i, err)
		}
		valid, err := VerifyProof(leaves[i], proof, tree.Root())
		if err != nil {
			t.Fatalf("leaf %d: failed to verify proof: %v", i, err)
		}
		if !valid {
			t.Errorf("leaf %d: proof verification failed", i)
		}
	}
}

func TestVerifyProof_InvalidProof(t *testing.T) {
	leaf1 := digestOf("leaf 1")
	leaf2 := digestOf("leaf 2")

	tree, err := BuildTree([]hashing.Digest{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	wrongLeaf := digestOf("wrong leaf")
	valid, err := VerifyProof(wrongLeaf, proof, tree.Root())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Error("proof should not be valid for wrong leaf")
	}

	wrongRoot := digestOf("wrong root")
	valid, err = VerifyProof(leaf1, proof, wrongRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Error("proof should not be valid for wrong root")
	}
}

func TestGenerateProofByHash(t *testing.T) {
	leaf1 := digestOf("leaf 1")
	leaf2 := digestOf("leaf 2")

	tree, err := BuildTree([]hashing.Digest{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof, err := tree.GenerateProofByHash(leaf2)
	if err != nil {
		t.Fatalf("failed to generate proof by hash: %v", err)
	}
	if proof.LeafIndex != 1 {
		t.Errorf("leaf index mismatch: got %d, want 1", proof.LeafIndex)
	}

	valid, err := VerifyProof(leaf2, proof, tree.Root())
	if err != nil {
		t.Fatalf("failed to verify proof: %v", err)
	}
	if !valid {
		t.Error("proof verification failed")
	}
}

func TestProofSerialization(t *testing.T) {
	leaves := make([]hashing.Digest, 4)
	for i := range leaves {
		leaves[i] = hashing.Sum([]byte{byte(i)})
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof, err := tree.GenerateProof(2)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	jsonData, err := proof.ToJSON()
	if err != nil {
		t.Fatalf("failed to serialize proof: %v", err)
	}

	restored, err := ProofFromJSON(jsonData)
	if err != nil {
		t.Fatalf("failed to deserialize proof: %v", err)
	}

	valid, err := VerifyProofHex(restored.LeafHash, restored, restored.MerkleRoot)
	if err != nil {
		t.Fatalf("failed to verify restored proof: %v", err)
	}
	if !valid {
		t.Error("restored proof verification failed")
	}
}

func TestEmptyTree(t *testing.T) {
	_, err := BuildTree(nil)
	if err != ErrEmptyTree {
		t.Errorf("expected ErrEmptyTree, got %v", err)
	}
}

// TestAppend_SnapshotStableAcrossLaterAppends verifies the defining property
// of the append-only log: a Snapshot (and any proof generated from it)
// pinned before further leaves are appended keeps verifying against its own
// root, unaffected by later Append calls reshaping the live tree.
func TestAppend_SnapshotStableAcrossLaterAppends(t *testing.T) {
	log := NewAppendLog()
	idx0 := log.Append(digestOf("leaf 0"))
	idx1 := log.Append(digestOf("leaf 1"))

	snap := log.Snapshot()
	rootAtTwo := snap.Root()
	proof, err := snap.GenerateProof(idx0)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	// Grow the live log well past the snapshot.
	for i := 2; i < 10; i++ {
		log.Append(digestOf("leaf"))
	}
	_ = idx1

	if log.Root().Equal(rootAtTwo) {
		t.Error("expected live root to change after further appends")
	}

	valid, err := VerifyProof(digestOf("leaf 0"), proof, rootAtTwo)
	if err != nil {
		t.Fatalf("failed to verify pinned proof: %v", err)
	}
	if !valid {
		t.Error("proof pinned to snapshot root must still verify after further appends")
	}
}

func TestAppend_MatchesBuildTree(t *testing.T) {
	leaves := make([]hashing.Digest, 5)
	for i := range leaves {
		leaves[i] = hashing.Sum([]byte{byte(i)})
	}

	built, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	log := NewAppendLog()
	for _, leaf := range leaves {
		log.Append(leaf)
	}

	if !log.Root().Equal(built.Root()) {
		t.Errorf("incremental append root diverges from BuildTree root: got %s, want %s", log.Root(), built.Root())
	}
}
