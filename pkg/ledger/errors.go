// Copyright 2025 Certen Protocol
//
// Sentinel errors for ledger state access. Explicit errors instead of
// nil, nil returns, so a missing record is never confused with an empty one.

package ledger

import "errors"

var (
	// ErrStatusNotFound is returned when no status.json has ever been persisted.
	ErrStatusNotFound = errors.New("ledger: status not found")

	// ErrUtxoNotFound is returned when a queried TxoSID has no committed output.
	ErrUtxoNotFound = errors.New("ledger: utxo not found")

	// ErrAssetNotFound is returned when a queried AssetTypeCode is undefined.
	ErrAssetNotFound = errors.New("ledger: asset type not found")

	// ErrTransactionNotFound is returned when a queried TxnSID has no committed transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")

	// ErrBlockNotFound is returned when a queried BlockSID has no committed block.
	ErrBlockNotFound = errors.New("ledger: block not found")

	// ErrCommitmentNotFound is returned when no StateCommitmentData is stored for a height.
	ErrCommitmentNotFound = errors.New("ledger: state commitment not found")

	// ErrWriterBusy names a concurrent-commit condition. Commit does not
	// return it: concurrent callers wait on the state's write lock instead.
	ErrWriterBusy = errors.New("ledger: concurrent commit attempted")
)
