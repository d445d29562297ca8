// Copyright 2025 Certen Protocol
//
// Validator-set updates (§4.3 step 6.5): the staking view's TotalDelegated
// crossing a threshold is reported to CometBFT as an abcitypes.ValidatorUpdate
// in the same FinalizeBlock response the block committed in — this is the
// one place ledger state feeds back into CometBFT's own wire type, grounded
// on the teacher's QueueValidatorUpdate/pendingValidatorUpdates pattern.

package consensus

import (
	"encoding/hex"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cryptoproto "github.com/cometbft/cometbft/proto/tendermint/crypto"

	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/types"
)

// VotingPowerDivisor converts native-asset stake units into a CometBFT
// voting power: a validator's power is its TotalDelegated scaled down by
// this factor. MinValidatorStake is the floor below which a validator is
// dropped from the active set (power 0 removes it, per ABCI convention).
const (
	VotingPowerDivisor = uint64(1_000_000)
	MinValidatorStake  = uint64(1_000_000)
)

// validatorUpdates builds one ValidatorUpdate per validator in changed,
// reading each one's current TotalDelegated from ls. A validator whose
// stake has fallen below MinValidatorStake is reported at power 0.
func validatorUpdates(ls *ledger.LedgerState, changed []types.ValidatorID) ([]abcitypes.ValidatorUpdate, error) {
	updates := make([]abcitypes.ValidatorUpdate, 0, len(changed))
	for _, v := range changed {
		pubKeyBytes, err := hex.DecodeString(string(v))
		if err != nil || len(pubKeyBytes) != cmted25519.PubKeySize {
			return nil, fmt.Errorf("consensus: validator %q is not a %d-byte hex ed25519 key: %w", v, cmted25519.PubKeySize, err)
		}

		power := int64(0)
		if vs, ok := ls.GetValidator(v); ok && vs.TotalDelegated >= MinValidatorStake {
			power = int64(vs.TotalDelegated / VotingPowerDivisor)
			if power == 0 {
				power = 1
			}
		}

		updates = append(updates, abcitypes.ValidatorUpdate{
			PubKey: cryptoproto.PublicKey{
				Sum: &cryptoproto.PublicKey_Ed25519{Ed25519: pubKeyBytes},
			},
			Power: power,
		})
	}
	return updates, nil
}
