// Copyright 2025 Certen Protocol

package consensus

import (
	"errors"
	"testing"

	"github.com/certen/ledgercore/pkg/types"
)

func TestResultCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code uint32
	}{
		{"nil", nil, CodeOK},
		{"malformed", types.Malformed("bad bytes"), CodeInputMalformed},
		{"conflict", types.Conflict("double spend"), CodeStateConflict},
		{"proof invalid", types.ProofInvalid("zk check failed"), CodeProofInvalid},
		{"fatal", types.Fatal("persistence write failed"), CodeFatal},
		{"non-core error", errors.New("plain decode error"), CodeInputMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := resultCode(tc.err)
			if code != tc.code {
				t.Fatalf("resultCode(%v) = %d, want %d", tc.err, code, tc.code)
			}
		})
	}
}

func TestResultCodeReasonMatchesKind(t *testing.T) {
	_, reason := resultCode(types.Conflict("replay"))
	if reason != types.KindStateConflict.String() {
		t.Fatalf("reason = %q, want %q", reason, types.KindStateConflict.String())
	}
}
