// Copyright 2025 Certen Protocol
//
// Operation is a closed sum type: a Transaction body carries a list of
// Operation values, each one of the variants defined alongside this file
// (DefineAsset, IssueAsset, TransferAsset, UpdateMemo, ConvertAccount,
// Delegate, UnDelegate, ClaimRewards). Per §9's redesign note, there is no
// cross-cutting dispatch table keyed on a type tag — each variant's signed
// payload and canonical encoding live in its own file beside its
// definition, signature checks and effect projection live in pkg/effect's
// type switch, and the sum type is closed by a private marker method only
// this package can implement.

package types

// Operation is implemented by every transaction operation variant. The
// unexported isOperation method makes the set closed: no type outside this
// package can satisfy Operation, so a switch over the concrete type in
// pkg/effect only ever sees the variants defined here. Go does not check a
// type switch for exhaustiveness: a new variant without a case there falls
// through to that switch's default branch.
type Operation interface {
	isOperation()
	// CanonicalBytes hashes the operation's own fields, tagged with a
	// variant discriminant so two different variants never collide.
	CanonicalBytes() []byte
}

// signedPayload adapts a pre-computed byte slice to codec.Canonical so each
// operation variant's SignedPayload() can be handed directly to
// crypto.Verify without an extra marshaling step.
type signedPayload []byte

func (p signedPayload) CanonicalBytes() []byte { return p }

// Operation variant tags, used only as the leading discriminant byte of
// each variant's CanonicalBytes — never as a dispatch key.
const (
	tagDefineAsset uint8 = iota
	tagIssueAsset
	tagTransferAsset
	tagUpdateMemo
	tagConvertAccount
	tagDelegate
	tagUnDelegate
	tagClaimRewards
)
