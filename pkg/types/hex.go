// Copyright 2025 Certen Protocol

package types

import (
	"encoding/hex"
	"fmt"
)

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func errFixedLength(want, got int) error {
	return fmt.Errorf("types: expected %d bytes, got %d", want, got)
}
