// Copyright 2025 Certen Protocol
//
// Global dense identifiers assigned only at commit time: TxoSID, TxnSID,
// BlockSID. Callers never invent these — ledger.LedgerState.Commit, reached
// through pkg/blockcursor's finish_block, is the sole assigner (§4.3).

package types

import (
	"encoding/json"
	"strconv"

	"github.com/certen/ledgercore/pkg/codec"
)

// TxoSID is a global, monotonically assigned output index.
type TxoSID uint64

// TxnSID is a global, monotonically assigned transaction index.
type TxnSID uint64

// BlockSID is a global, monotonically assigned block index.
type BlockSID uint64

func (s TxoSID) String() string   { return strconv.FormatUint(uint64(s), 10) }
func (s TxnSID) String() string   { return strconv.FormatUint(uint64(s), 10) }
func (s BlockSID) String() string { return strconv.FormatUint(uint64(s), 10) }

func (s TxoSID) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint64(uint64(s))
	return w.Bytes()
}

func (s TxnSID) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint64(uint64(s))
	return w.Bytes()
}

func (s BlockSID) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteUint64(uint64(s))
	return w.Bytes()
}

func (s TxoSID) MarshalJSON() ([]byte, error)   { return json.Marshal(uint64(s)) }
func (s TxnSID) MarshalJSON() ([]byte, error)   { return json.Marshal(uint64(s)) }
func (s BlockSID) MarshalJSON() ([]byte, error) { return json.Marshal(uint64(s)) }

func (s *TxoSID) UnmarshalJSON(b []byte) error {
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = TxoSID(v)
	return nil
}

func (s *TxnSID) UnmarshalJSON(b []byte) error {
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = TxnSID(v)
	return nil
}

func (s *BlockSID) UnmarshalJSON(b []byte) error {
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = BlockSID(v)
	return nil
}

// AssetTypeCode is a 32-byte opaque asset identifier. The all-zero value
// denotes the native token (§3).
type AssetTypeCode [32]byte

// NativeAssetCode is the well-known all-zero asset code for the native token.
var NativeAssetCode = AssetTypeCode{}

// IsNative reports whether c is the native asset code.
func (c AssetTypeCode) IsNative() bool {
	return c == NativeAssetCode
}

func (c AssetTypeCode) CanonicalBytes() []byte {
	w := codec.NewWriter()
	w.WriteFixed(c[:])
	return w.Bytes()
}

func (c AssetTypeCode) String() string {
	return hexEncode(c[:])
}

func (c AssetTypeCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *AssetTypeCode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hexDecode(s)
	if err != nil {
		return err
	}
	if len(decoded) != 32 {
		return errFixedLength(32, len(decoded))
	}
	copy(c[:], decoded)
	return nil
}
