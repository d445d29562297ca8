// Copyright 2025 Certen Protocol
//
// UtxoStatus answers get_utxo's three-way question (§4.6, §8 scenario S6):
// a TxoSID is either live, spent-but-provable, or never assigned. Grounded
// on the original ledger's UtxoStatus{Spent,Unspent,Nonexistent} enum and
// AuthenticatedUtxoStatus::is_valid(), which checks the claimed status
// against the bitmap bit rather than inferring it from record absence.

package types

import "encoding/json"

type UtxoStatus int

const (
	UtxoNonexistent UtxoStatus = iota
	UtxoUnspent
	UtxoSpent
)

func (s UtxoStatus) String() string {
	switch s {
	case UtxoUnspent:
		return "Unspent"
	case UtxoSpent:
		return "Spent"
	default:
		return "Nonexistent"
	}
}

func (s UtxoStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *UtxoStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "Unspent":
		*s = UtxoUnspent
	case "Spent":
		*s = UtxoSpent
	default:
		*s = UtxoNonexistent
	}
	return nil
}
