// Copyright 2025 Certen Protocol
//
// Transaction signing primitives. Signer identity is Ed25519
// (crypto/ed25519), matching the validator key material the teacher's
// main.go already generates for CometBFT; this package adds the
// "signature-of-T" wrapper the ledger's operations sign over.

package crypto

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/certen/ledgercore/pkg/codec"
)

// ErrInvalidSignature is returned by Verify when a signature fails to check.
var ErrInvalidSignature = errors.New("crypto: signature verification failed")

// PublicKey wraps an Ed25519 public key (32 bytes).
type PublicKey struct {
	raw ed25519.PublicKey
}

// PrivateKey wraps an Ed25519 private key (64 bytes, includes the public half).
type PrivateKey struct {
	raw ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 key pair.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &PrivateKey{raw: priv}, &PublicKey{raw: pub}, nil
}

// PublicKeyFromBytes parses a 32-byte Ed25519 public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	pk := make([]byte, ed25519.PublicKeySize)
	copy(pk, b)
	return PublicKey{raw: pk}, nil
}

// Bytes returns the raw public key bytes.
func (p PublicKey) Bytes() []byte {
	out := make([]byte, len(p.raw))
	copy(out, p.raw)
	return out
}

// IsZero reports whether the key was never initialized.
func (p PublicKey) IsZero() bool {
	return len(p.raw) == 0
}

// Equal reports whether two public keys are identical.
func (p PublicKey) Equal(other PublicKey) bool {
	return p.raw.Equal(other.raw)
}

// String returns the hex encoding of the public key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p.raw)
}

// MarshalJSON renders the key as a hex string.
func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a hex string into the key.
func (p *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		p.raw = nil
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	parsed, err := PublicKeyFromBytes(b)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Sign signs msg's canonical bytes and returns a Signature bound to PublicKey.
func (k *PrivateKey) Sign(msg codec.Canonical) Signature {
	sig := ed25519.Sign(k.raw, msg.CanonicalBytes())
	return Signature{raw: sig}
}

// Public returns the public half of the key pair.
func (k *PrivateKey) Public() PublicKey {
	pub := k.raw.Public().(ed25519.PublicKey)
	return PublicKey{raw: pub}
}

// Signature is an Ed25519 signature produced over a Canonical value's
// binary encoding ("signature-of-T").
type Signature struct {
	raw []byte
}

// SignatureFromBytes parses a 64-byte Ed25519 signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != ed25519.SignatureSize {
		return Signature{}, fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(b))
	}
	out := make([]byte, ed25519.SignatureSize)
	copy(out, b)
	return Signature{raw: out}, nil
}

// Bytes returns the raw signature bytes.
func (s Signature) Bytes() []byte {
	out := make([]byte, len(s.raw))
	copy(out, s.raw)
	return out
}

// IsZero reports whether the signature was never set.
func (s Signature) IsZero() bool {
	return len(s.raw) == 0
}

func (s Signature) String() string {
	return hex.EncodeToString(s.raw)
}

// MarshalJSON renders the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a hex string into the signature.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		s.raw = nil
		return nil
	}
	b, err := hex.DecodeString(str)
	if err != nil {
		return err
	}
	parsed, err := SignatureFromBytes(b)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Verify checks that sig is a valid signature by pub over msg's canonical
// binary encoding.
func Verify(pub PublicKey, msg codec.Canonical, sig Signature) error {
	if pub.IsZero() || sig.IsZero() {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(pub.raw, msg.CanonicalBytes(), sig.raw) {
		return ErrInvalidSignature
	}
	return nil
}
