// Copyright 2025 Certen Protocol

package types

import (
	"encoding/json"
	"testing"
)

func TestTransactionBodyRoundTripsMixedOperations(t *testing.T) {
	body := TransactionBody{
		NoReplayToken: NoReplayToken{SeqID: 42},
		Operations: []Operation{
			DefineAsset{Code: AssetTypeCode{1}},
			Delegate{Validator: ValidatorID("validator-1"), Amount: 100},
			UnDelegate{Validator: ValidatorID("validator-1")},
		},
		Memos: []Memo{"hello"},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded TransactionBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded.Operations) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(decoded.Operations))
	}
	if _, ok := decoded.Operations[0].(DefineAsset); !ok {
		t.Fatalf("operation 0 decoded as %T, want DefineAsset", decoded.Operations[0])
	}
	delegate, ok := decoded.Operations[1].(Delegate)
	if !ok {
		t.Fatalf("operation 1 decoded as %T, want Delegate", decoded.Operations[1])
	}
	if delegate.Amount != 100 || delegate.Validator != "validator-1" {
		t.Fatalf("delegate operation did not round-trip: %+v", delegate)
	}
	if _, ok := decoded.Operations[2].(UnDelegate); !ok {
		t.Fatalf("operation 2 decoded as %T, want UnDelegate", decoded.Operations[2])
	}
	if decoded.NoReplayToken.SeqID != 42 {
		t.Fatalf("no_replay_token did not round-trip: %+v", decoded.NoReplayToken)
	}
}

func TestTransactionBodyUnmarshalRejectsUnknownTag(t *testing.T) {
	raw := []byte(`{"no_replay_token":{"rand":"0000000000000000","seq_id":0},"operations":[{"type":"NotARealOperation","data":{}}]}`)
	var body TransactionBody
	if err := json.Unmarshal(raw, &body); err == nil {
		t.Fatalf("expected an error decoding an unrecognized operation tag")
	}
}
