// Copyright 2025 Certen Protocol
//
// Fixed-size digest and typed hash-of-T helpers shared across the ledger
// core. Every committed entity is hashed over its canonical binary encoding
// (pkg/codec), never over a language-specific in-memory representation, so
// the same transaction hashes identically regardless of struct field order.

package hashing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/certen/ledgercore/pkg/codec"
)

// Size is the width in bytes of every Digest in the system.
const Size = sha256.Size

// Digest is a fixed-size 32-byte hash. The zero Digest denotes "no value"
// (e.g. a genesis transaction's previous-state-commitment).
type Digest [Size]byte

// ErrWrongLength is returned when decoding a digest from bytes of the wrong width.
var ErrWrongLength = errors.New("hashing: digest must be 32 bytes")

// Sum returns the SHA-256 digest of data.
func Sum(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// DigestFromBytes copies b into a Digest, failing if b is not 32 bytes.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, ErrWrongLength
	}
	copy(d[:], b)
	return d, nil
}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	var zero Digest
	return subtle.ConstantTimeCompare(d[:], zero[:]) == 1
}

// Equal performs a constant-time comparison of two digests.
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d[:], other[:]) == 1
}

// Bytes returns a copy of the digest's bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalJSON renders the digest as a hex string.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses a hex string into the digest.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	parsed, err := DigestFromBytes(b)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// HashOf returns the digest of v's canonical binary encoding. This is the
// "typed hash-of-T" primitive: every committed entity (a Transaction, a
// FinalizedTransaction, an AssetType, a list of transactions) is hashed this
// way so the hash is reproducible from the entity alone.
func HashOf(v codec.Canonical) Digest {
	return Sum(v.CanonicalBytes())
}

// HashConcat hashes the concatenation of several already-canonical byte
// slices together — used for composite hashes like txns_in_block_hash that
// are defined over an ordered list rather than a single Canonical value.
func HashConcat(parts ...[]byte) Digest {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// PairHash combines two digests the way the Merkle trees do:
// SHA256(left || right). Exposed here so pkg/merkle's tree building and proof
// verification share one hashing rule; pkg/bitmap does not use it.
func PairHash(left, right Digest) Digest {
	return HashConcat(left[:], right[:])
}
