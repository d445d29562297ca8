// Copyright 2025 Certen Protocol
//
// Fee and replay policy (§4.5). Policy is an immutable value constructed
// once at startup by pkg/config and threaded into every check — never read
// from the environment at transaction-apply time (§9 redesign note:
// process-wide mutable state for the denylist/native-asset constants/burn
// address is reified as config, not globals).

package fee

import (
	"time"

	"github.com/certen/ledgercore/pkg/types"
)

// DefaultMinFee is TX_FEE_MIN's default (§4.5).
const DefaultMinFee = 10000

// DefaultHeightLimit is HEIGHT_LIMIT's default: the consensus height after
// which native-token issuance locks permanently.
const DefaultHeightLimit = 100000

// DenylistEntry bans InputKey from admission while now falls within
// [WindowStart, WindowEnd).
type DenylistEntry struct {
	InputKey    types.XfrPublicKey
	WindowStart time.Time
	WindowEnd   time.Time
}

// Policy is the fee/replay/issuance-lock configuration for one ledger
// instance (§4.5, §6 "ADDR_BLK_LIST*" environment variables).
type Policy struct {
	NativeAsset types.AssetTypeCode
	BurnAddress types.XfrPublicKey
	MinFee      uint64
	HeightLimit uint64
	Denylist    []DenylistEntry
}

// DefaultPolicy returns the spec's default constants for a given burn
// address; callers override MinFee/HeightLimit/Denylist from config.
func DefaultPolicy(burnAddress types.XfrPublicKey) Policy {
	return Policy{
		NativeAsset: types.NativeAssetCode,
		BurnAddress: burnAddress,
		MinFee:      DefaultMinFee,
		HeightLimit: DefaultHeightLimit,
	}
}

// IsFeeValid reports whether tx satisfies §4.5's fee-validity disjunction.
// coinbase marks a consensus-synthesized mint transaction, which is always
// fee-valid regardless of content.
func (p Policy) IsFeeValid(tx types.Transaction, coinbase bool) bool {
	if coinbase {
		return true
	}
	for _, op := range tx.Body.Operations {
		switch o := op.(type) {
		case types.DefineAsset:
			if o.Code == p.NativeAsset {
				return true
			}
		case types.IssueAsset:
			if o.Code == p.NativeAsset {
				return true
			}
		case types.TransferAsset:
			for _, out := range o.Outputs {
				if p.isFeeOutput(out.Record) {
					return true
				}
			}
		}
	}
	return false
}

func (p Policy) isFeeOutput(r types.BlindAssetRecord) bool {
	if !r.IsFeeEligible(p.NativeAsset) {
		return false
	}
	return r.PublicKey == p.BurnAddress && r.Amount >= p.MinFee
}

// CheckReplay reports whether token is within the admission window of
// currentSeqID (§4.5).
func (p Policy) CheckReplay(token types.NoReplayToken, currentSeqID uint64) error {
	if !token.WithinWindow(currentSeqID) {
		return types.Conflict("replay: no-replay token seq_id %d outside window of current seq_id %d", token.SeqID, currentSeqID)
	}
	return nil
}

// CheckIssuanceLock rejects IssueAsset of the native token once height
// exceeds HeightLimit — a permanent lock, not a reversible condition.
func (p Policy) CheckIssuanceLock(tx types.Transaction, height uint64) error {
	if height <= p.HeightLimit {
		return nil
	}
	for _, op := range tx.Body.Operations {
		issue, ok := op.(types.IssueAsset)
		if ok && issue.Code == p.NativeAsset {
			return types.Conflict("native asset issuance locked at height %d (limit %d)", height, p.HeightLimit)
		}
	}
	return nil
}

// inputPublicKeys collects every input-owning or signing key tx names, for
// the optional denylist check. Output-only recipient keys are not included:
// the denylist targets spenders, not payees.
func inputPublicKeys(tx types.Transaction) [][]byte {
	var keys [][]byte
	for _, op := range tx.Body.Operations {
		switch o := op.(type) {
		case types.TransferAsset:
			for _, k := range o.InputPublicKeys {
				keys = append(keys, k.Bytes())
			}
		case types.ConvertAccount:
			keys = append(keys, o.SigningKey.Bytes())
		case types.Delegate:
			keys = append(keys, o.DelegatorKey.Bytes())
		case types.UnDelegate:
			keys = append(keys, o.DelegatorKey.Bytes())
		case types.ClaimRewards:
			keys = append(keys, o.DelegatorKey.Bytes())
		}
	}
	return keys
}

// CheckDenylist rejects tx if any input key is banned at time now.
func (p Policy) CheckDenylist(tx types.Transaction, now time.Time) error {
	if len(p.Denylist) == 0 {
		return nil
	}
	for _, key := range inputPublicKeys(tx) {
		for _, entry := range p.Denylist {
			if now.Before(entry.WindowStart) || !now.Before(entry.WindowEnd) {
				continue
			}
			if equalKey(key, entry.InputKey) {
				return types.Conflict("input key %x is denylisted until %s", key, entry.WindowEnd)
			}
		}
	}
	return nil
}

func equalKey(raw []byte, xfr types.XfrPublicKey) bool {
	if len(raw) != len(xfr) {
		return false
	}
	for i := range raw {
		if raw[i] != xfr[i] {
			return false
		}
	}
	return true
}

// Admit runs every §4.5 check check_tx needs: fee validity, replay window,
// issuance lock, and the denylist. coinbase transactions skip all of them.
func (p Policy) Admit(tx types.Transaction, coinbase bool, currentSeqID, height uint64, now time.Time) error {
	if coinbase {
		return nil
	}
	if !p.IsFeeValid(tx, false) {
		return types.Conflict("transaction does not satisfy fee policy (min %d base units to burn address)", p.MinFee)
	}
	if err := p.CheckReplay(tx.Body.NoReplayToken, currentSeqID); err != nil {
		return err
	}
	if err := p.CheckIssuanceLock(tx, height); err != nil {
		return err
	}
	if err := p.CheckDenylist(tx, now); err != nil {
		return err
	}
	return nil
}
