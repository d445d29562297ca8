// Copyright 2025 Certen Protocol
//
// Confidential-transfer proof verification. The ZK proof system itself —
// trusted setup, circuit design, the underlying commitment scheme — is out
// of scope here (§1's explicit non-goal); this package only checks a
// confidential transfer's Groth16 proof against a verifying key generated
// and distributed externally, the same groth16.Verify call the BLS
// attestation prover in pkg/crypto/bls_zkp uses for on-chain signatures.

package zkverify

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/certen/ledgercore/pkg/types"
)

// bn254ScalarField is the BN254 curve's scalar field modulus, the same
// constant the teacher's BLS circuit reduces its folded commitment into.
var bn254ScalarField, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// BalanceCircuit is the public-input shape a confidential transfer's proof
// is checked against: one field element binding every input and output
// commitment together. Proving and verification keys are generated and
// loaded externally; this struct only needs to agree with them on how that
// one public input is derived, not on the full commitment list's layout.
type BalanceCircuit struct {
	CommitmentDigest frontend.Variable `gnark:",public"`
}

// Define is never compiled here — BalanceCircuit's keys come from an
// external trusted setup — but frontend.Circuit requires it to build a
// witness assignment from this struct.
func (c *BalanceCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.CommitmentDigest, c.CommitmentDigest)
	return nil
}

// commitmentDigest folds every input and output commitment into the single
// field element BalanceCircuit's public input carries.
func commitmentDigest(body types.XfrBody) *big.Int {
	h := sha256.New()
	for _, c := range body.InputCommitments {
		h.Write(c[:])
	}
	for _, c := range body.OutputCommitments {
		h.Write(c[:])
	}
	digest := new(big.Int).SetBytes(h.Sum(nil))
	digest.Mod(digest, bn254ScalarField)
	return digest
}

// Verifier checks a confidential transfer's ZK proof. pkg/effect depends on
// this narrow interface (as effect.ZKVerifier) so it does not need to
// import gnark directly.
type Verifier interface {
	Verify(body types.XfrBody) error
}

// Groth16Verifier checks XfrBody proofs against one BN254 verifying key,
// loaded once at startup and never mutated afterward.
type Groth16Verifier struct {
	mu sync.RWMutex
	vk groth16.VerifyingKey
}

// NewGroth16Verifier loads a BN254 verifying key from vkPath.
func NewGroth16Verifier(vkPath string) (*Groth16Verifier, error) {
	f, err := os.Open(vkPath)
	if err != nil {
		return nil, fmt.Errorf("zkverify: open verifying key: %w", err)
	}
	defer f.Close()

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("zkverify: read verifying key: %w", err)
	}
	return &Groth16Verifier{vk: vk}, nil
}

// Verify checks body's ProofBytes against the loaded verifying key and the
// public commitment digest derived from body itself. pkg/effect only calls
// Verify for operations it has already identified as confidential via
// XfrBody.IsConfidential(), but an empty proof is rejected here too rather
// than trusted on the caller's say-so.
func (v *Groth16Verifier) Verify(body types.XfrBody) error {
	if !body.IsConfidential() {
		return types.ProofInvalid("zkverify: empty proof bytes")
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(body.ProofBytes)); err != nil {
		return types.ProofInvalid("zkverify: malformed proof: %v", err)
	}

	assignment := &BalanceCircuit{CommitmentDigest: commitmentDigest(body)}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("zkverify: build public witness: %w", err)
	}

	if err := groth16.Verify(proof, v.vk, publicWitness); err != nil {
		return types.ProofInvalid("zkverify: proof verification failed: %v", err)
	}
	return nil
}
