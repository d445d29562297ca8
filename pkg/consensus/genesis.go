// Copyright 2025 Certen Protocol
//
// Genesis seeding (§6 init_chain: "seeds genesis validators and staking
// state"). The genesis app_state is a flat list of initial validator
// stakes; seeding reuses the same Delegate accounting Commit already
// understands rather than writing a separate staking bootstrap path, with
// every genesis stake attributed to one well-known synthetic delegator.

package consensus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/certen/ledgercore/pkg/crypto/bls"
	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/types"
)

// genesisDelegator is the synthetic DelegatorID genesis stake is attributed
// to. It never signs anything; ClaimRewards/UnDelegate against it are
// ordinary operations any real delegator could also perform later.
const genesisDelegator = types.DelegatorID("genesis")

// genesisQuorumDomain scopes BLS signatures over a genesis validator list
// to this one purpose, so a signature collected for another message can
// never be replayed here.
const genesisQuorumDomain = "certen-ledgercore-genesis-quorum-v1"

// GenesisValidator is one entry of the genesis app_state's validator list.
type GenesisValidator struct {
	Validator types.ValidatorID `json:"validator"`
	Stake     uint64            `json:"stake"`
}

// GenesisQuorumAttestation is an optional BLS aggregate signature, from the
// validators that already hold stake prior to genesis, co-signing the
// proposed genesis validator list, checked with pkg/crypto/bls's aggregate
// verification (the only use of BLS in this module; Delegate/UnDelegate
// operations carry ordinary per-operation signatures). A genesis document with no prior validator set (the common
// case: bootstrapping a brand new chain) carries no attestation at all.
type GenesisQuorumAttestation struct {
	SignerPublicKeysHex []string `json:"signer_public_keys_hex"`
	AggregateSignature  string   `json:"aggregate_signature_hex"`
}

// GenesisState is the JSON shape init_chain's AppStateBytes is decoded
// into. An empty or absent app_state seeds no validators at all — a chain
// may start with zero delegated stake and rely on Delegate transactions
// post-genesis.
type GenesisState struct {
	Validators []GenesisValidator        `json:"validators"`
	Quorum     *GenesisQuorumAttestation `json:"quorum,omitempty"`
}

// ParseGenesisState decodes raw init_chain app_state bytes. Empty input is
// not an error: it yields a GenesisState with no validators.
func ParseGenesisState(raw []byte) (GenesisState, error) {
	var gs GenesisState
	if len(raw) == 0 {
		return gs, nil
	}
	if err := json.Unmarshal(raw, &gs); err != nil {
		return gs, fmt.Errorf("consensus: decode genesis app_state: %w", err)
	}
	return gs, nil
}

// genesisAttestationMessage is the canonical byte string a quorum signs:
// each validator/stake pair, sorted by validator ID so the message is
// independent of the JSON array's on-the-wire order.
func genesisAttestationMessage(validators []GenesisValidator) []byte {
	sorted := append([]GenesisValidator{}, validators...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Validator < sorted[j].Validator })
	var buf bytes.Buffer
	for _, v := range sorted {
		fmt.Fprintf(&buf, "%s:%d;", v.Validator, v.Stake)
	}
	return buf.Bytes()
}

// verifyGenesisQuorum checks q's aggregate signature over gs's validator
// list, failing closed: a present-but-invalid attestation rejects genesis
// outright rather than silently seeding an unattested validator set.
func verifyGenesisQuorum(gs GenesisState) error {
	q := gs.Quorum
	if q == nil {
		return nil
	}
	if len(q.SignerPublicKeysHex) == 0 {
		return fmt.Errorf("consensus: genesis quorum attestation has no signers")
	}
	if err := bls.Initialize(); err != nil {
		return fmt.Errorf("consensus: initialize BLS library: %w", err)
	}

	pubKeys := make([]*bls.PublicKey, len(q.SignerPublicKeysHex))
	for i, hexKey := range q.SignerPublicKeysHex {
		pk, err := bls.PublicKeyFromHex(hexKey)
		if err != nil {
			return fmt.Errorf("consensus: genesis quorum signer %d: %w", i, err)
		}
		pubKeys[i] = pk
	}
	sig, err := bls.SignatureFromHex(q.AggregateSignature)
	if err != nil {
		return fmt.Errorf("consensus: genesis quorum aggregate signature: %w", err)
	}

	msg := genesisAttestationMessage(gs.Validators)
	if !bls.VerifyAggregateSignatureWithDomain(sig, pubKeys, msg, genesisQuorumDomain) {
		return fmt.Errorf("consensus: genesis quorum attestation failed verification")
	}
	return nil
}

// seedGenesis commits gs's validator stakes as block 0, before any
// transaction is ever delivered. Skipped entirely when gs has no
// validators, so a chain with an empty genesis app_state never produces a
// spurious all-zero block.
func seedGenesis(ls *ledger.LedgerState, gs GenesisState) error {
	if err := verifyGenesisQuorum(gs); err != nil {
		return err
	}
	if len(gs.Validators) == 0 {
		return nil
	}
	delta := ledger.StakingDelta{}
	for _, v := range gs.Validators {
		if v.Stake == 0 {
			continue
		}
		delta.Delegate = append(delta.Delegate, ledger.DelegateDelta{
			Delegator: genesisDelegator,
			Validator: v.Validator,
			Amount:    v.Stake,
		})
	}
	if len(delta.Delegate) == 0 {
		return nil
	}
	_, err := ls.Commit(ledger.CommitBatch{Staking: delta})
	if err != nil {
		return fmt.Errorf("consensus: seed genesis stake: %w", err)
	}
	return nil
}
