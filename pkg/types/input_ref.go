// Copyright 2025 Certen Protocol
//
// InputRef distinguishes a relative input (an output produced earlier in
// the same transaction, resolved by pkg/effect at extraction time) from an
// absolute input (a committed TxoSID, resolved only at apply time against
// the live UTXO map) — §4.1 rule (1).

package types

import "github.com/certen/ledgercore/pkg/codec"

// InputRef names exactly one of Absolute or Relative.
type InputRef struct {
	Absolute *TxoSID `json:"absolute,omitempty"`
	Relative *uint64 `json:"relative,omitempty"`
}

// IsRelative reports whether this reference targets an output produced
// earlier within the same transaction.
func (r InputRef) IsRelative() bool {
	return r.Relative != nil
}

func (r InputRef) CanonicalBytes() []byte {
	w := codec.NewWriter()
	if r.Absolute != nil {
		w.WriteUint8(0)
		w.WriteUint64(uint64(*r.Absolute))
	} else {
		w.WriteUint8(1)
		w.WriteUint64(*r.Relative)
	}
	return w.Bytes()
}

// AbsoluteInputRef builds a reference to a committed TxoSID.
func AbsoluteInputRef(sid TxoSID) InputRef {
	return InputRef{Absolute: &sid}
}

// RelativeInputRef builds a reference to the output at index idx produced
// earlier in the same transaction.
func RelativeInputRef(idx uint64) InputRef {
	return InputRef{Relative: &idx}
}
