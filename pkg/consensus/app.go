// Copyright 2025 Certen Protocol
//
// Application implements the ABCI consensus callback surface (§6): info,
// init_chain, check_tx, the FinalizeBlock/Commit pair (CometBFT 0.38+ folds
// begin_block/deliver_tx/end_block into one call, the same version and
// Application shape the teacher's ValidatorApp targets). Query is not
// overridden: it answers with BaseApplication's default response. InitChain,
// FinalizeBlock and Commit run under app.mu, serializing the
// consensus thread exactly as §5 requires ("consensus callbacks execute
// serially; at most one block cursor exists at a time"); LedgerState's own
// RWMutex is what lets pkg/query's readers run concurrently with it.

package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/certen/ledgercore/pkg/blockcursor"
	"github.com/certen/ledgercore/pkg/effect"
	"github.com/certen/ledgercore/pkg/fee"
	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/metrics"
	"github.com/certen/ledgercore/pkg/types"
)

// Application is the single ABCI object CometBFT drives through the block
// lifecycle. Construct one with New per process; it owns the only Cursor
// ever opened against ls. BaseApplication supplies the mandatory
// PrepareProposal/ProcessProposal/ExtendVote/VerifyVoteExtension/snapshot
// stubs (§6) — this chain uses the default proposer/voting path and never
// enables vote extensions or state-sync snapshots, so the teacher's
// pass-through stub bodies would do nothing more than what BaseApplication
// already returns.
type Application struct {
	abcitypes.BaseApplication

	logger *log.Logger

	ls       *ledger.LedgerState
	cursor   *blockcursor.Cursor
	policy   fee.Policy
	verifier effect.ZKVerifier
	metrics  *metrics.Metrics
	chainID  string

	mu              chan struct{} // 1-buffered mutex: serializes InitChain/FinalizeBlock/Commit (CheckTx does not take it)
	blockHeight     int64
	blockTime       time.Time
	acceptedTxnIdxs []int // req.Txs indices accepted into the currently-open block, in delivery order
}

// New constructs the ABCI application over ls. verifier is threaded into
// every check_tx/deliver_tx effect extraction; a nil verifier rejects every
// confidential transfer outright (pkg/effect's documented default), which is
// a safe default for a chain not yet configured with a verifying key.
func New(ls *ledger.LedgerState, policy fee.Policy, verifier effect.ZKVerifier, m *metrics.Metrics, chainID string) *Application {
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &Application{
		logger:   log.New(log.Writer(), "[consensus] ", log.LstdFlags),
		ls:       ls,
		cursor:   blockcursor.NewCursor(ls),
		policy:   policy,
		verifier: verifier,
		metrics:  m,
		chainID:  chainID,
		mu:       mu,
	}
}

func (app *Application) lock()   { <-app.mu }
func (app *Application) unlock() { app.mu <- struct{}{} }

// ChainID returns the configured chain identifier, used to populate a
// freshly-generated genesis document on first startup.
func (app *Application) ChainID() string { return app.chainID }

// Info reports the last committed height and the current state commitment
// as app hash (§6 "info"), letting CometBFT resynchronize with whatever
// LoadLedgerState already recovered from the KV store.
func (app *Application) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	_, _, block := app.ls.Counters()
	commitment := app.ls.LastStateCommitment()
	return &abcitypes.ResponseInfo{
		Data:             "ledgercore",
		Version:          "1.0.0",
		AppVersion:       uint64(types.StateCommitmentVersion),
		LastBlockHeight:  int64(block),
		LastBlockAppHash: commitment[:],
	}, nil
}

// InitChain seeds genesis validators and staking state (§6) by decoding
// req.AppStateBytes as a GenesisState and committing it as block 0 before
// any transaction is ever delivered.
func (app *Application) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	app.lock()
	defer app.unlock()

	gs, err := ParseGenesisState(req.AppStateBytes)
	if err != nil {
		return nil, err
	}
	if err := seedGenesis(app.ls, gs); err != nil {
		return nil, err
	}

	app.logger.Printf("init_chain: chain_id=%s genesis_validators=%d", req.ChainId, len(gs.Validators))
	return &abcitypes.ResponseInitChain{}, nil
}

// CheckTx runs the stateless admission path (§6 "check_tx"): decode, §4.1
// effect extraction, §4.5 fee/replay/denylist checks. No cursor is touched
// and no ledger state mutates; a transaction that passes here is only
// provisionally admissible, since FinalizeBlock re-validates it against
// whatever state the block actually commits against.
func (app *Application) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	tx, err := decodeTransaction(req.Tx)
	if err != nil {
		code, reason := resultCode(types.Malformed("decode transaction: %v", err))
		app.metrics.RecordRejection(reason)
		return &abcitypes.ResponseCheckTx{Code: code, Log: err.Error()}, nil
	}

	if _, err := effect.ExtractEffect(tx, app.verifier); err != nil {
		code, reason := resultCode(err)
		app.metrics.RecordRejection(reason)
		return &abcitypes.ResponseCheckTx{Code: code, Log: err.Error()}, nil
	}

	_, _, height := app.ls.Counters()
	if err := app.policy.Admit(tx, false, app.ls.CurrentSeqID(), height, time.Now().UTC()); err != nil {
		code, reason := resultCode(err)
		app.metrics.RecordRejection(reason)
		return &abcitypes.ResponseCheckTx{Code: code, Log: err.Error()}, nil
	}

	return &abcitypes.ResponseCheckTx{Code: CodeOK, GasWanted: 1, GasUsed: 1}, nil
}

// FinalizeBlock runs begin_block/deliver_tx*/end_block as one call (§6):
// start_block the cursor, apply_effect every delivered transaction in
// order (a rejected transaction is excluded from the block, not fatal to
// it), then finish_block to commit atomically and report the new app hash.
func (app *Application) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.lock()
	defer app.unlock()

	app.blockHeight = req.Height
	app.blockTime = req.Time
	app.acceptedTxnIdxs = app.acceptedTxnIdxs[:0]

	if err := app.cursor.StartBlock(); err != nil {
		return nil, fmt.Errorf("consensus: start_block: %w", err)
	}

	_, _, height := app.ls.Counters()
	results := make([]*abcitypes.ExecTxResult, len(req.Txs))

	for i, raw := range req.Txs {
		tx, err := decodeTransaction(raw)
		if err != nil {
			err = types.Malformed("decode transaction: %v", err)
			code, reason := resultCode(err)
			app.metrics.RecordRejection(reason)
			results[i] = &abcitypes.ExecTxResult{Code: code, Log: err.Error()}
			continue
		}

		eff, err := effect.ExtractEffect(tx, app.verifier)
		if err != nil {
			code, reason := resultCode(err)
			app.metrics.RecordRejection(reason)
			results[i] = &abcitypes.ExecTxResult{Code: code, Log: err.Error()}
			continue
		}

		if err := app.policy.Admit(tx, false, app.ls.CurrentSeqID(), height, app.blockTime.UTC()); err != nil {
			code, reason := resultCode(err)
			app.metrics.RecordRejection(reason)
			results[i] = &abcitypes.ExecTxResult{Code: code, Log: err.Error()}
			continue
		}

		if _, err := app.cursor.ApplyEffect(tx, eff); err != nil {
			code, reason := resultCode(err)
			app.metrics.RecordRejection(reason)
			results[i] = &abcitypes.ExecTxResult{Code: code, Log: err.Error()}
			continue
		}

		app.acceptedTxnIdxs = append(app.acceptedTxnIdxs, i)
		results[i] = &abcitypes.ExecTxResult{
			Code: CodeOK,
			Events: []abcitypes.Event{{
				Type: "transaction_applied",
				Attributes: []abcitypes.EventAttribute{
					{Key: "block_height", Value: fmt.Sprintf("%d", req.Height)},
				},
			}},
		}
	}

	refs, commitResult, err := app.cursor.FinishBlock()
	if err != nil {
		// Fatal per §4.3/§7: the whole batch reverted, nothing was
		// persisted. Reporting the error lets CometBFT halt rather than
		// publish a divergent app hash.
		return nil, fmt.Errorf("consensus: finish_block: %w", err)
	}

	for tempSID, origIdx := range app.acceptedTxnIdxs {
		ref := refs[blockcursor.TxnTempSID(tempSID)]
		data, _ := json.Marshal(struct {
			TxnSID types.TxnSID   `json:"txn_sid"`
			TxoIDs []types.TxoSID `json:"txo_ids"`
		}{ref.TxnSID, ref.TxoIDs})
		results[origIdx].Data = data
	}

	app.ls.AdvanceSeqID(uint64(req.Height))

	vUpdates, err := validatorUpdates(app.ls, commitResult.ChangedValidators)
	if err != nil {
		return nil, fmt.Errorf("consensus: build validator updates: %w", err)
	}

	appHash := commitResult.StateCommitment

	return &abcitypes.ResponseFinalizeBlock{
		TxResults:        results,
		ValidatorUpdates: vUpdates,
		AppHash:          appHash[:],
	}, nil
}

// Commit is called after FinalizeBlock has already durably persisted the
// block (§4.3 step 8 happens inside finish_block, not here); this callback
// only reports retained-height and records the commit's metrics, matching
// the teacher's own split between "commit the data" and "acknowledge the
// commit to CometBFT".
func (app *Application) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	app.lock()
	defer app.unlock()

	_, _, block := app.ls.Counters()
	if app.metrics != nil {
		app.metrics.ObserveCommit(0, uint64(app.ls.LiveUtxoCount()), block)
	}

	return &abcitypes.ResponseCommit{}, nil
}

// decodeTransaction parses raw check_tx/deliver_tx bytes as canonical JSON
// (§6 "Wire formats"). The length-prefixed binary variant is used only for
// internal KV persistence (pkg/ledger), never for the wire.
func decodeTransaction(raw []byte) (types.Transaction, error) {
	var tx types.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return types.Transaction{}, err
	}
	return tx, nil
}
