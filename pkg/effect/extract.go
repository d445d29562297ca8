// Copyright 2025 Certen Protocol
//
// Transaction effect extractor (§4.1). ExtractEffect is a pure function:
// it never looks at committed ledger state, only at the Transaction itself
// and (for confidential transfers) the injected ZK verifier. Every
// rejection here is therefore an admission-time rejection the consensus
// layer can reject without ever starting a block cursor.

package effect

import (
	"log"

	"github.com/certen/ledgercore/pkg/crypto"
	"github.com/certen/ledgercore/pkg/types"
)

var logger = log.New(log.Writer(), "[effect] ", log.LstdFlags)

// ZKVerifier checks a confidential transfer's ZK proof. pkg/zkverify
// implements this; kept as a narrow interface here so pkg/effect does not
// need to import the gnark-backed verifier directly.
type ZKVerifier interface {
	Verify(body types.XfrBody) error
}

// noopVerifier rejects every confidential transfer. Used only when the
// caller has no verifier configured — extraction must never silently admit
// an unverified ZK proof.
type noopVerifier struct{}

func (noopVerifier) Verify(types.XfrBody) error {
	return types.ProofInvalid("no ZK verifier configured")
}

// outputSlot tracks a produced output's position in the transaction-wide
// output numbering (§4.2: "within a transaction, outputs are numbered in
// operation order") and which operation produced it, so a later relative
// reference can be checked against an earlier operation index only.
type outputSlot struct {
	output      types.TxOutput
	producedBy  int
	consumed    bool
}

// ExtractEffect reduces tx to an Effect, or a *types.CoreError describing
// why admission fails. verifier may be nil, in which case any confidential
// transfer is rejected with ProofInvalid.
func ExtractEffect(tx types.Transaction, verifier ZKVerifier) (*types.Effect, error) {
	if verifier == nil {
		verifier = noopVerifier{}
	}
	if len(tx.Body.Operations) == 0 {
		return nil, types.Malformed("transaction has no operations")
	}

	eff := types.NewEffect(tx.Body.NoReplayToken)

	// Pass 1: walk operations in order, collecting every output they
	// produce into a flat, transaction-wide slot list (IssueAsset and
	// TransferAsset outputs only — ConvertAccount and the pure-signaling
	// operations produce none).
	var slots []*outputSlot
	for opIndex, op := range tx.Body.Operations {
		switch o := op.(type) {
		case types.IssueAsset:
			for _, out := range o.Outputs {
				slots = append(slots, &outputSlot{output: out, producedBy: opIndex})
			}
		case types.TransferAsset:
			for _, out := range o.Outputs {
				slots = append(slots, &outputSlot{output: out, producedBy: opIndex})
			}
		}
	}

	issuanceSeen := map[types.AssetTypeCode]uint64{}
	issuanceSeenAny := map[types.AssetTypeCode]bool{}

	for opIndex, op := range tx.Body.Operations {
		switch o := op.(type) {

		case types.DefineAsset:
			if err := crypto.Verify(o.IssuerPublicKey.Key, o.SignedPayload(), o.Signature); err != nil {
				return nil, types.Malformed("DefineAsset[%d]: signature invalid: %w", opIndex, err)
			}
			if _, dup := eff.NewAssetDefs[o.Code]; dup {
				return nil, types.Malformed("DefineAsset[%d]: asset %s redefined within transaction", opIndex, o.Code)
			}
			eff.NewAssetDefs[o.Code] = types.AssetType{
				Code:             o.Code,
				Rules:            o.Rules,
				IssuerPublicKey:  o.IssuerPublicKey,
				Memo:             o.Memo,
				ConfidentialMemo: o.ConfidentialMemo,
			}

		case types.IssueAsset:
			if err := crypto.Verify(o.IssuerPublicKey.Key, o.SignedPayload(), o.Signature); err != nil {
				return nil, types.Malformed("IssueAsset[%d]: signature invalid: %w", opIndex, err)
			}
			if issuanceSeenAny[o.Code] && o.SeqNum <= issuanceSeen[o.Code] {
				return nil, types.Malformed("IssueAsset[%d]: issuance sequence number %d not strictly increasing for asset %s", opIndex, o.SeqNum, o.Code)
			}
			issuanceSeen[o.Code] = o.SeqNum
			issuanceSeenAny[o.Code] = true
			eff.NewIssuanceNums[o.Code] = append(eff.NewIssuanceNums[o.Code], o.SeqNum)
			eff.IssuanceKeys[o.Code] = o.IssuerPublicKey

		case types.TransferAsset:
			if len(o.InputSignatures) != len(o.InputPublicKeys) {
				return nil, types.Malformed("TransferAsset[%d]: signature/public-key count mismatch", opIndex)
			}
			if len(o.Inputs) != len(o.InputSignatures) {
				return nil, types.Malformed("TransferAsset[%d]: input/signature count mismatch", opIndex)
			}
			for i, sig := range o.InputSignatures {
				if err := crypto.Verify(o.InputPublicKeys[i], o.SignedPayload(), sig); err != nil {
					return nil, types.Malformed("TransferAsset[%d]: input %d signature invalid: %w", opIndex, i, err)
				}
			}
			for _, la := range o.LienAssignments {
				if int(la.InputIndex) >= len(o.Inputs) || int(la.OutputIndex) >= len(o.Outputs) {
					return nil, types.Malformed("TransferAsset[%d]: lien assignment index out of range", opIndex)
				}
			}

			for i, in := range o.Inputs {
				if in.IsRelative() {
					idx := int(*in.Relative)
					if idx < 0 || idx >= len(slots) {
						return nil, types.Malformed("TransferAsset[%d]: relative input %d out of range", opIndex, i)
					}
					if slots[idx].producedBy >= opIndex {
						return nil, types.Malformed("TransferAsset[%d]: relative input %d does not reference an earlier operation", opIndex, i)
					}
					if slots[idx].consumed {
						return nil, types.Malformed("TransferAsset[%d]: relative input %d already spent within transaction", opIndex, i)
					}
					slots[idx].consumed = true
					eff.InternallySpentOutputs = append(eff.InternallySpentOutputs, slots[idx].output)
					eff.RelativeInputs = append(eff.RelativeInputs, slots[idx].output)
				} else {
					eff.TxoInputsConsumed = append(eff.TxoInputsConsumed, *in.Absolute)
				}
			}

			if o.XfrProof != nil {
				if err := verifier.Verify(*o.XfrProof); err != nil {
					return nil, types.ProofInvalid("TransferAsset[%d]: %w", opIndex, err)
				}
				eff.ConfidentialTransferBodies = append(eff.ConfidentialTransferBodies, *o.XfrProof)
			}

		case types.UpdateMemo:
			if err := crypto.Verify(o.IssuerPublicKey.Key, o.SignedPayload(), o.Signature); err != nil {
				return nil, types.Malformed("UpdateMemo[%d]: signature invalid: %w", opIndex, err)
			}
			eff.MemoUpdates[o.Code] = types.MemoUpdate{IssuerPublicKey: o.IssuerPublicKey, NewMemo: o.NewMemo}

		case types.ConvertAccount:
			if err := crypto.Verify(o.SigningKey, o.SignedPayload(), o.Signature); err != nil {
				return nil, types.Malformed("ConvertAccount[%d]: signature invalid: %w", opIndex, err)
			}
			for _, in := range o.Inputs {
				if in.IsRelative() {
					return nil, types.Malformed("ConvertAccount[%d]: relative inputs not supported", opIndex)
				}
				eff.TxoInputsConsumed = append(eff.TxoInputsConsumed, *in.Absolute)
				eff.ConvertAccountEvents = append(eff.ConvertAccountEvents, types.ConvertAccountEvent{
					SourceTxo:  *in.Absolute,
					EVMAddress: o.EVMAddress,
					Amount:     o.Amount,
				})
			}

		case types.Delegate:
			if err := crypto.Verify(o.DelegatorKey, o.SignedPayload(), o.Signature); err != nil {
				return nil, types.Malformed("Delegate[%d]: signature invalid: %w", opIndex, err)
			}
			eff.StakingOps = append(eff.StakingOps, o)

		case types.UnDelegate:
			if err := crypto.Verify(o.DelegatorKey, o.SignedPayload(), o.Signature); err != nil {
				return nil, types.Malformed("UnDelegate[%d]: signature invalid: %w", opIndex, err)
			}
			eff.StakingOps = append(eff.StakingOps, o)

		case types.ClaimRewards:
			if err := crypto.Verify(o.DelegatorKey, o.SignedPayload(), o.Signature); err != nil {
				return nil, types.Malformed("ClaimRewards[%d]: signature invalid: %w", opIndex, err)
			}
			eff.StakingOps = append(eff.StakingOps, o)

		default:
			// Operation is a closed sum type (see pkg/types.Operation's
			// doc comment), so only a variant defined there without a case
			// here reaches this branch; the compiler does not flag it, and
			// the transaction is rejected as malformed at run time.
			return nil, types.Malformed("op[%d]: unrecognized operation type %T", opIndex, op)
		}
	}

	for _, slot := range slots {
		if slot.consumed {
			eff.NewOutputs = append(eff.NewOutputs, nil)
			continue
		}
		out := slot.output
		eff.NewOutputs = append(eff.NewOutputs, &out)
	}

	logger.Printf("extracted effect: %d new outputs, %d absolute inputs, %d staking ops",
		len(eff.NewOutputs), len(eff.TxoInputsConsumed), len(eff.StakingOps))

	return eff, nil
}
