// Copyright 2025 Certen Protocol
//
// Operation's closed sum type marshals to JSON as a tagged envelope
// ({"type": "...", "data": {...}}) since encoding/json cannot decode
// straight into an interface field. This is the only place the variant set
// is named as a dispatch table — everywhere else (pkg/effect,
// pkg/blockcursor) switches on the concrete Go type instead.

package types

import (
	"encoding/json"
	"fmt"
)

const (
	opTypeDefineAsset    = "DefineAsset"
	opTypeIssueAsset     = "IssueAsset"
	opTypeTransferAsset  = "TransferAsset"
	opTypeUpdateMemo     = "UpdateMemo"
	opTypeConvertAccount = "ConvertAccount"
	opTypeDelegate       = "Delegate"
	opTypeUnDelegate     = "UnDelegate"
	opTypeClaimRewards   = "ClaimRewards"
)

type operationEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func operationTypeTag(op Operation) (string, error) {
	switch op.(type) {
	case DefineAsset:
		return opTypeDefineAsset, nil
	case IssueAsset:
		return opTypeIssueAsset, nil
	case TransferAsset:
		return opTypeTransferAsset, nil
	case UpdateMemo:
		return opTypeUpdateMemo, nil
	case ConvertAccount:
		return opTypeConvertAccount, nil
	case Delegate:
		return opTypeDelegate, nil
	case UnDelegate:
		return opTypeUnDelegate, nil
	case ClaimRewards:
		return opTypeClaimRewards, nil
	default:
		return "", fmt.Errorf("types: unrecognized operation type %T", op)
	}
}

// MarshalJSON implements the tagged-envelope encoding for TransactionBody's
// Operations field.
func (b TransactionBody) MarshalJSON() ([]byte, error) {
	type alias struct {
		NoReplayToken NoReplayToken       `json:"no_replay_token"`
		Operations    []operationEnvelope `json:"operations"`
		Memos         []Memo              `json:"memos,omitempty"`
	}
	envs := make([]operationEnvelope, len(b.Operations))
	for i, op := range b.Operations {
		tag, err := operationTypeTag(op)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("types: marshal operation %d (%s): %w", i, tag, err)
		}
		envs[i] = operationEnvelope{Type: tag, Data: data}
	}
	return json.Marshal(alias{NoReplayToken: b.NoReplayToken, Operations: envs, Memos: b.Memos})
}

// UnmarshalJSON implements TransactionBody's tagged-envelope decoding: each
// operation's "type" field selects the concrete Go type its "data" is
// unmarshaled into before being stored in the Operations slice.
func (b *TransactionBody) UnmarshalJSON(data []byte) error {
	type alias struct {
		NoReplayToken NoReplayToken       `json:"no_replay_token"`
		Operations    []operationEnvelope `json:"operations"`
		Memos         []Memo              `json:"memos,omitempty"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	b.NoReplayToken = a.NoReplayToken
	b.Memos = a.Memos
	b.Operations = make([]Operation, len(a.Operations))
	for i, env := range a.Operations {
		op, err := decodeOperation(env.Type, env.Data)
		if err != nil {
			return fmt.Errorf("types: operation %d: %w", i, err)
		}
		b.Operations[i] = op
	}
	return nil
}

func decodeOperation(tag string, data json.RawMessage) (Operation, error) {
	switch tag {
	case opTypeDefineAsset:
		var o DefineAsset
		err := json.Unmarshal(data, &o)
		return o, err
	case opTypeIssueAsset:
		var o IssueAsset
		err := json.Unmarshal(data, &o)
		return o, err
	case opTypeTransferAsset:
		var o TransferAsset
		err := json.Unmarshal(data, &o)
		return o, err
	case opTypeUpdateMemo:
		var o UpdateMemo
		err := json.Unmarshal(data, &o)
		return o, err
	case opTypeConvertAccount:
		var o ConvertAccount
		err := json.Unmarshal(data, &o)
		return o, err
	case opTypeDelegate:
		var o Delegate
		err := json.Unmarshal(data, &o)
		return o, err
	case opTypeUnDelegate:
		var o UnDelegate
		err := json.Unmarshal(data, &o)
		return o, err
	case opTypeClaimRewards:
		var o ClaimRewards
		err := json.Unmarshal(data, &o)
		return o, err
	default:
		return nil, fmt.Errorf("unrecognized operation type %q", tag)
	}
}
