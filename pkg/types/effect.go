// Copyright 2025 Certen Protocol
//
// Effect is pkg/effect's sole output: a pure, ledger-independent reduction
// of a signed Transaction (§4.1). Nothing in this struct consults committed
// ledger state — that happens only when pkg/blockcursor applies an Effect.

package types

// StakingOp is the closed set of staking operations folded into an Effect,
// kept as the concrete Operation value rather than re-wrapped, since
// pkg/blockcursor needs the original signed operation to re-derive the
// delegator key it already verified.
type StakingOp = Operation

// Effect is the self-consistent, side-effect-free reduction of a
// Transaction produced by pkg/effect.ExtractEffect.
type Effect struct {
	// TxoInputsConsumed are the absolute TxoSIDs this transaction spends;
	// unresolved relative inputs never appear here.
	TxoInputsConsumed []TxoSID

	// RelativeInputs are TxOutput values resolved from earlier operations
	// in the same transaction, in input order.
	RelativeInputs []TxOutput

	// NewOutputs are outputs destined for a TxoSID at commit, in the order
	// they must be numbered (§4.2 "within a transaction, outputs are
	// numbered in operation order"). A nil entry marks an output that was
	// itself consumed later in the same transaction and therefore moved to
	// InternallySpentOutputs instead (§4.1 rule 3) — kept as a placeholder
	// so output indices stay stable for lien-assignment bookkeeping.
	NewOutputs []*TxOutput

	// InternallySpentOutputs never receive a TxoSID: produced and consumed
	// within the same transaction.
	InternallySpentOutputs []TxOutput

	NewAssetDefs     map[AssetTypeCode]AssetType
	NewIssuanceNums  map[AssetTypeCode][]uint64
	IssuanceKeys     map[AssetTypeCode]IssuerPublicKey
	MemoUpdates      map[AssetTypeCode]MemoUpdate

	StakingOps []StakingOp

	ConfidentialTransferBodies []XfrBody

	ConvertAccountEvents []ConvertAccountEvent

	NoReplayToken NoReplayToken
}

// MemoUpdate pairs the issuer key authorizing an UpdateMemo with the new memo.
type MemoUpdate struct {
	IssuerPublicKey IssuerPublicKey
	NewMemo         Memo
}

// NewEffect returns a zero-value Effect with its maps initialized, so
// callers can assign into them without a nil-map panic.
func NewEffect(token NoReplayToken) *Effect {
	return &Effect{
		NewAssetDefs:    make(map[AssetTypeCode]AssetType),
		NewIssuanceNums: make(map[AssetTypeCode][]uint64),
		IssuanceKeys:    make(map[AssetTypeCode]IssuerPublicKey),
		MemoUpdates:     make(map[AssetTypeCode]MemoUpdate),
		NoReplayToken:   token,
	}
}
