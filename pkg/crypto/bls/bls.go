// Copyright 2025 Certen Protocol
//
// BLS12-381 aggregate signatures for genesis quorum attestation (§9
// supplement): a multi-validator chain's genesis app_state can carry one
// aggregated signature over the validator list instead of N individual
// ones, so seedGenesis only ever checks a single pairing equation against
// the aggregated public key of whichever validators actually signed.
//
// Built on gnark-crypto's pure-Go BLS12-381 group and pairing arithmetic;
// everything above that line (key/signature encoding, domain separation,
// aggregation, the subgroup checks a deserialized key or signature must
// pass before it's trusted) is this package's own.

package bls

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var (
	initOnce sync.Once
	initErr  error

	g1Gen bls12381.G1Affine
	g2Gen bls12381.G2Affine
)

// Size constants for the wire encodings this package deserializes.
const (
	PrivateKeySize = 32 // Fr scalar
	PublicKeySize  = 96 // G2 point, compressed
	SignatureSize  = 48 // G1 point, compressed
)

// Initialize loads the curve's generator points. Safe to call repeatedly;
// every exported constructor calls it so callers never need to remember to.
func Initialize() error {
	initOnce.Do(func() {
		_, _, g1GenPoint, g2GenPoint := bls12381.Generators()
		g1Gen = g1GenPoint
		g2Gen = g2GenPoint
	})
	return initErr
}

// PrivateKey is a BLS12-381 signing key: a scalar in Fr.
type PrivateKey struct{ scalar fr.Element }

// PublicKey is a BLS12-381 verification key: a point on G2.
type PublicKey struct{ point bls12381.G2Affine }

// Signature is a BLS12-381 signature: a point on G1.
type Signature struct{ point bls12381.G1Affine }

// GenerateKeyPair draws a fresh key pair from crypto/rand.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize bls: %w", err)
	}
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("draw random scalar: %w", err)
	}
	priv := &PrivateKey{scalar: sk}
	return priv, priv.PublicKey(), nil
}

// GenerateKeyPairFromSeed derives a deterministic key pair from seed (at
// least 32 bytes), so a validator recovers the same BLS identity from a
// fixed seed without persisting a key file.
func GenerateKeyPairFromSeed(seed []byte) (*PrivateKey, *PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialize bls: %w", err)
	}
	if len(seed) < 32 {
		return nil, nil, errors.New("bls: seed must be at least 32 bytes")
	}
	digest := sha256.Sum256(seed)
	var sk fr.Element
	sk.SetBytes(digest[:])
	priv := &PrivateKey{scalar: sk}
	return priv, priv.PublicKey(), nil
}

// PrivateKeyFromBytes parses an exactly-PrivateKeySize scalar.
func PrivateKeyFromBytes(data []byte) (*PrivateKey, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize bls: %w", err)
	}
	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("bls: private key must be %d bytes, got %d", PrivateKeySize, len(data))
	}
	var sk fr.Element
	sk.SetBytes(data)
	return &PrivateKey{scalar: sk}, nil
}

// PublicKeyFromBytes parses a G2 point and rejects anything not in the
// correct prime-order subgroup — skipping this check is how rogue-key
// attacks against aggregate signatures work, so every deserialized key
// passes through it, not just ones an explicit caller remembers to check.
func PublicKeyFromBytes(data []byte) (*PublicKey, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize bls: %w", err)
	}
	var p bls12381.G2Affine
	if _, err := p.SetBytes(data); err != nil {
		return nil, fmt.Errorf("bls: decode public key: %w", err)
	}
	if p.IsInfinity() {
		return nil, errors.New("bls: public key is the identity point")
	}
	if !p.IsInSubGroup() {
		return nil, errors.New("bls: public key not in the G2 prime-order subgroup")
	}
	return &PublicKey{point: p}, nil
}

// PublicKeyFromHex decodes a hex-encoded public key.
func PublicKeyFromHex(s string) (*PublicKey, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bls: decode public key hex: %w", err)
	}
	return PublicKeyFromBytes(data)
}

// SignatureFromBytes parses a G1 point, rejecting anything outside the
// prime-order subgroup for the same reason PublicKeyFromBytes does.
func SignatureFromBytes(data []byte) (*Signature, error) {
	if err := Initialize(); err != nil {
		return nil, fmt.Errorf("initialize bls: %w", err)
	}
	var p bls12381.G1Affine
	if _, err := p.SetBytes(data); err != nil {
		return nil, fmt.Errorf("bls: decode signature: %w", err)
	}
	if p.IsInfinity() {
		return nil, errors.New("bls: signature is the identity point")
	}
	if !p.IsInSubGroup() {
		return nil, errors.New("bls: signature not in the G1 prime-order subgroup")
	}
	return &Signature{point: p}, nil
}

// SignatureFromHex decodes a hex-encoded signature.
func SignatureFromHex(s string) (*Signature, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bls: decode signature hex: %w", err)
	}
	return SignatureFromBytes(data)
}

func (sk *PrivateKey) Bytes() []byte { b := sk.scalar.Bytes(); return b[:] }
func (sk *PrivateKey) Hex() string   { return hex.EncodeToString(sk.Bytes()) }

// PublicKey derives pk = sk * G2.
func (sk *PrivateKey) PublicKey() *PublicKey {
	var pk bls12381.G2Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	pk.ScalarMultiplication(&g2Gen, &skBig)
	return &PublicKey{point: pk}
}

// Sign computes sig = sk * H(domain || message). Every caller in this
// repo signs into a specific domain (genesis quorum attestation is the
// only one wired up today), so domain is not optional here the way the
// gnark-crypto primitives underneath it are domain-agnostic.
func (sk *PrivateKey) Sign(domain string, message []byte) *Signature {
	h := hashToG1(domain, message)
	var sig bls12381.G1Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	sig.ScalarMultiplication(&h, &skBig)
	return &Signature{point: sig}
}

func (pk *PublicKey) Bytes() []byte { b := pk.point.Bytes(); return b[:] }
func (pk *PublicKey) Hex() string   { return hex.EncodeToString(pk.Bytes()) }

// Verify checks e(sig, G2) == e(H(domain||message), pk) via a single
// pairing-check call over both sides at once (e(sig,G2) * e(H(msg),-pk) == 1).
func (pk *PublicKey) Verify(sig *Signature, domain string, message []byte) bool {
	h := hashToG1(domain, message)
	var negPk bls12381.G2Affine
	negPk.Neg(&pk.point)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, h},
		[]bls12381.G2Affine{g2Gen, negPk},
	)
	return err == nil && ok
}

func (pk *PublicKey) Equal(other *PublicKey) bool { return pk.point.Equal(&other.point) }

func (sig *Signature) Bytes() []byte { b := sig.point.Bytes(); return b[:] }
func (sig *Signature) Hex() string   { return hex.EncodeToString(sig.Bytes()) }

// AggregateSignatures sums signatures on G1 (aggSig = sum sig_i).
func AggregateSignatures(signatures []*Signature) (*Signature, error) {
	if len(signatures) == 0 {
		return nil, errors.New("bls: no signatures to aggregate")
	}
	points := make([]bls12381.G1Affine, len(signatures))
	for i, s := range signatures {
		points[i] = s.point
	}
	return &Signature{point: sumG1(points)}, nil
}

// AggregatePublicKeys sums public keys on G2 (aggPk = sum pk_i).
func AggregatePublicKeys(publicKeys []*PublicKey) (*PublicKey, error) {
	if len(publicKeys) == 0 {
		return nil, errors.New("bls: no public keys to aggregate")
	}
	points := make([]bls12381.G2Affine, len(publicKeys))
	for i, pk := range publicKeys {
		points[i] = pk.point
	}
	return &PublicKey{point: sumG2(points)}, nil
}

// VerifyAggregateSignatureWithDomain verifies one aggregated signature
// against every signer's public key, all of whom must have signed the
// same (domain, message) pair — the shape seedGenesis needs for a quorum
// attestation over the genesis validator list.
func VerifyAggregateSignatureWithDomain(aggSig *Signature, publicKeys []*PublicKey, message []byte, domain string) bool {
	if len(publicKeys) == 0 {
		return false
	}
	aggPk, err := AggregatePublicKeys(publicKeys)
	if err != nil {
		return false
	}
	return aggPk.Verify(aggSig, domain, message)
}

func sumG1(points []bls12381.G1Affine) bls12381.G1Affine {
	var acc bls12381.G1Jac
	acc.FromAffine(&points[0])
	for i := 1; i < len(points); i++ {
		var jac bls12381.G1Jac
		jac.FromAffine(&points[i])
		acc.AddAssign(&jac)
	}
	var out bls12381.G1Affine
	out.FromJacobian(&acc)
	return out
}

func sumG2(points []bls12381.G2Affine) bls12381.G2Affine {
	var acc bls12381.G2Jac
	acc.FromAffine(&points[0])
	for i := 1; i < len(points); i++ {
		var jac bls12381.G2Jac
		jac.FromAffine(&points[i])
		acc.AddAssign(&jac)
	}
	var out bls12381.G2Affine
	out.FromJacobian(&acc)
	return out
}

// hashToG1 maps (domain, message) onto a G1 point, trying successive
// counters until SetBytes lands on-curve — "hash and increment", adequate
// here since this is the domain-separated message point, not a public key
// an adversary gets to choose the preimage of.
func hashToG1(domain string, message []byte) bls12381.G1Affine {
	seed := sha256.New()
	seed.Write([]byte(domain))
	seed.Write(message)
	base := seed.Sum(nil)

	for counter := uint64(0); counter < 1000; counter++ {
		h := sha256.New()
		h.Write(base)
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], counter)
		h.Write(ctr[:])
		digest := h.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(digest); err == nil && !point.IsInfinity() {
			return point
		}
	}
	return g1Gen // unreachable in practice; keeps the function total
}
