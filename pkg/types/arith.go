// Copyright 2025 Certen Protocol
//
// Checked unsigned arithmetic. Every amount in the ledger (issuance units,
// transfer amounts, fee totals) is an unsigned 64-bit quantity; per §9's
// numeric-semantics note, overflow must trap rather than wrap, so issuance
// caps and fee floors can never be bypassed by an attacker-chosen amount
// that wraps a sum back under a limit.

package types

import (
	"errors"
	"math/bits"
)

// ErrOverflow is returned by the Checked* helpers on arithmetic overflow.
var ErrOverflow = errors.New("types: arithmetic overflow")

// CheckedAddU64 returns a+b, or ErrOverflow if the sum does not fit in uint64.
func CheckedAddU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedSubU64 returns a-b, or ErrOverflow if b > a.
func CheckedSubU64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}
