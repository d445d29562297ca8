// Copyright 2025 Certen Protocol
//
// ABCI result codes. The taxonomy is exactly types.Kind (§7); this file is
// the one place that maps it onto the small integer space CometBFT expects
// in ResponseCheckTx.Code / ExecTxResult.Code.

package consensus

import (
	"errors"

	"github.com/certen/ledgercore/pkg/types"
)

const (
	CodeOK uint32 = iota
	CodeInputMalformed
	CodeStateConflict
	CodeProofInvalid
	CodeFatal
)

// resultCode maps err to an ABCI result code and the Kind string
// pkg/metrics.RecordRejection wants as its label. A non-CoreError err
// (decode failure before extraction ever runs) is reported as malformed.
func resultCode(err error) (uint32, string) {
	if err == nil {
		return CodeOK, ""
	}
	var ce *types.CoreError
	if !errors.As(err, &ce) {
		return CodeInputMalformed, types.KindInputMalformed.String()
	}
	switch ce.Kind {
	case types.KindStateConflict:
		return CodeStateConflict, ce.Kind.String()
	case types.KindProofInvalid:
		return CodeProofInvalid, ce.Kind.String()
	case types.KindFatal:
		return CodeFatal, ce.Kind.String()
	default:
		return CodeInputMalformed, ce.Kind.String()
	}
}
