// Copyright 2025 Certen Protocol
//
// NoReplayToken: the sliding-window replay guard every operation in a
// transaction shares (§3, §4.5). ReplayWindow is the W=128 constant from
// spec.md; a separate configured value never overrides it, since the
// window width is part of the protocol, not a deployment tunable.

package types

import (
	"encoding/json"

	"github.com/certen/ledgercore/pkg/codec"
)

// ReplayWindow is the maximum allowed |current_seq_id - token.seq_id|.
const ReplayWindow = 128

// NoReplayToken binds a transaction to a point in the admission window.
type NoReplayToken struct {
	Rand  [8]byte `json:"rand"`
	SeqID uint64  `json:"seq_id"`
}

func (t NoReplayToken) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(t.Rand[:])
	w.WriteUint64(t.SeqID)
	return w.Bytes()
}

// WithinWindow reports whether t is admissible given the ledger's current
// sequence id.
func (t NoReplayToken) WithinWindow(currentSeqID uint64) bool {
	var delta uint64
	if currentSeqID >= t.SeqID {
		delta = currentSeqID - t.SeqID
	} else {
		delta = t.SeqID - currentSeqID
	}
	return delta <= ReplayWindow
}

func (t NoReplayToken) MarshalJSON() ([]byte, error) {
	type alias struct {
		Rand  string `json:"rand"`
		SeqID uint64 `json:"seq_id"`
	}
	return json.Marshal(alias{Rand: hexEncode(t.Rand[:]), SeqID: t.SeqID})
}

func (t *NoReplayToken) UnmarshalJSON(b []byte) error {
	type alias struct {
		Rand  string `json:"rand"`
		SeqID uint64 `json:"seq_id"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	decoded, err := hexDecode(a.Rand)
	if err != nil {
		return err
	}
	if len(decoded) != 8 {
		return errFixedLength(8, len(decoded))
	}
	copy(t.Rand[:], decoded)
	t.SeqID = a.SeqID
	return nil
}
