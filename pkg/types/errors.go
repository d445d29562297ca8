// Copyright 2025 Certen Protocol
//
// Error taxonomy shared by pkg/effect, pkg/blockcursor, and pkg/consensus.
// The taxonomy is a *kind*, not a set of distinct Go error types — callers
// that need to map a rejection to an ABCI result code switch on Kind, not on
// errors.Is against a long list of sentinels.

package types

import "fmt"

// Kind classifies why a transaction or effect was rejected.
type Kind int

const (
	// KindInputMalformed: decode, structural, or signature failure. Reject
	// at admission; never retried by the core.
	KindInputMalformed Kind = iota
	// KindStateConflict: double-spend, replay, issuance cap, transferability.
	// Reject at apply time; caller may retry with a fresh no-replay token.
	KindStateConflict
	// KindProofInvalid: the ZK verifier refused a confidential transfer. Terminal.
	KindProofInvalid
	// KindFatal: persistence write failure, Merkle append failure. Aborts
	// the block; the process may exit rather than serve a divergent commitment.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInputMalformed:
		return "InputMalformed"
	case KindStateConflict:
		return "StateConflict"
	case KindProofInvalid:
		return "ProofInvalid"
	case KindFatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// CoreError wraps a rejection cause with the taxonomy kind the ABCI layer
// needs to choose a result code. Constructed exactly once per rejection
// path, then propagated unwrapped via errors.As.
type CoreError struct {
	Kind Kind
	Err  error
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// NewError constructs a CoreError of the given kind wrapping cause.
func NewError(kind Kind, cause error) *CoreError {
	return &CoreError{Kind: kind, Err: cause}
}

// Malformed wraps cause as KindInputMalformed.
func Malformed(format string, args ...any) *CoreError {
	return &CoreError{Kind: KindInputMalformed, Err: fmt.Errorf(format, args...)}
}

// Conflict wraps cause as KindStateConflict.
func Conflict(format string, args ...any) *CoreError {
	return &CoreError{Kind: KindStateConflict, Err: fmt.Errorf(format, args...)}
}

// ProofInvalid wraps cause as KindProofInvalid.
func ProofInvalid(format string, args ...any) *CoreError {
	return &CoreError{Kind: KindProofInvalid, Err: fmt.Errorf(format, args...)}
}

// Fatal wraps cause as KindFatal.
func Fatal(format string, args ...any) *CoreError {
	return &CoreError{Kind: KindFatal, Err: fmt.Errorf(format, args...)}
}
