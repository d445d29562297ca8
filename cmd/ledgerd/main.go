// Copyright 2025 Certen Protocol
//
// ledgerd is the process entry point: load Config, open the KV store,
// recover LedgerState, build the ABCI Application, and hand it to an
// in-process CometBFT node exactly the way the teacher's
// RealCometBFTEngine does (config.DefaultConfig, privval, node key,
// proxy.NewLocalClientCreator, node.NewNode) — minus the Accumulate/
// Ethereum/Postgres machinery that domain doesn't need here.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmtconfig "github.com/cometbft/cometbft/config"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmttypes "github.com/cometbft/cometbft/types"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/ledgercore/pkg/config"
	"github.com/certen/ledgercore/pkg/consensus"
	"github.com/certen/ledgercore/pkg/effect"
	"github.com/certen/ledgercore/pkg/kvdb"
	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/metrics"
	"github.com/certen/ledgercore/pkg/zkverify"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ledgerd: load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("ledgerd: %v", err)
	}

	if err := os.MkdirAll(cfg.LedgerDir, 0o755); err != nil {
		log.Fatalf("ledgerd: create ledger dir %s: %v", cfg.LedgerDir, err)
	}

	db, err := dbm.NewGoLevelDB("ledgercore", cfg.LedgerDir)
	if err != nil {
		log.Fatalf("ledgerd: open ledger db: %v", err)
	}
	kv := kvdb.NewKVAdapter(db)

	ls, err := ledger.LoadLedgerState(kv)
	if err != nil {
		log.Fatalf("ledgerd: load ledger state: %v", err)
	}
	txo, txn, block := ls.Counters()
	log.Printf("ledgerd: recovered state: utxos=%d transactions=%d blocks=%d", txo, txn, block)

	var verifier effect.ZKVerifier
	if cfg.ZKVerifyingKeyPath != "" {
		verifier, err = zkverify.NewGroth16Verifier(cfg.ZKVerifyingKeyPath)
		if err != nil {
			log.Fatalf("ledgerd: load ZK verifying key: %v", err)
		}
		log.Printf("ledgerd: confidential transfer verification enabled: %s", cfg.ZKVerifyingKeyPath)
	} else {
		log.Printf("ledgerd: ZK_VERIFYING_KEY_PATH unset — confidential transfers will be rejected")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	app := consensus.New(ls, cfg.FeePolicy(), verifier, m, cfg.ChainID)

	cometCfg, err := buildCometConfig(cfg)
	if err != nil {
		log.Fatalf("ledgerd: build cometbft config: %v", err)
	}

	n, err := startCometNode(cometCfg, app)
	if err != nil {
		log.Fatalf("ledgerd: start cometbft node: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		log.Printf("ledgerd: metrics listening on %s", cfg.MetricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ledgerd: metrics server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("ledgerd: shutting down")

	if err := n.Stop(); err != nil {
		log.Printf("ledgerd: cometbft node stop error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("ledgerd: metrics server shutdown error: %v", err)
	}

	log.Printf("ledgerd: stopped")
}

// buildCometConfig adapts config.Config onto CometBFT's own config.Config,
// rooted under LedgerDir/comet so the ledger KV and consensus state live
// side by side under one data directory.
func buildCometConfig(cfg *config.Config) (*cmtconfig.Config, error) {
	root := cfg.LedgerDir + "/comet"
	c := cmtconfig.DefaultConfig()
	c.SetRoot(root)
	c.RootDir = root
	c.Moniker = cfg.ChainID
	c.P2P.ListenAddress = cfg.ListenAddr
	c.DBBackend = "goleveldb"
	c.TxIndex.Indexer = "kv"

	for _, dir := range []string{c.RootDir, c.RootDir + "/config", c.RootDir + "/data"} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return c, nil
}

// startCometNode wires a single-validator CometBFT node over app, generating
// a node key / validator key / genesis document on first run if none exist
// (§6: "sits behind a consensus engine" — this process owns exactly one
// validator's worth of consensus state, never a multi-validator bootstrap).
func startCometNode(cometCfg *cmtconfig.Config, app *consensus.Application) (*node.Node, error) {
	pv, err := privval.LoadOrGenFilePV(cometCfg.PrivValidatorKeyFile(), cometCfg.PrivValidatorStateFile())
	if err != nil {
		return nil, fmt.Errorf("load or generate priv validator: %w", err)
	}
	nodeKey, err := p2p.LoadOrGenNodeKey(cometCfg.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("load or generate node key: %w", err)
	}

	if err := writeGenesisIfMissing(cometCfg, pv, app); err != nil {
		return nil, fmt.Errorf("write genesis: %w", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "cometbft")

	n, err := node.NewNode(
		cometCfg,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		node.DefaultGenesisDocProviderFunc(cometCfg),
		cmtconfig.DefaultDBProvider,
		node.DefaultMetricsProvider(cometCfg.Instrumentation),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("construct node: %w", err)
	}
	if err := n.Start(); err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	return n, nil
}

func writeGenesisIfMissing(cometCfg *cmtconfig.Config, pv *privval.FilePV, app *consensus.Application) error {
	genFile := cometCfg.GenesisFile()
	if _, err := os.Stat(genFile); err == nil {
		return nil
	}

	pubKey, err := pv.GetPubKey()
	if err != nil {
		return fmt.Errorf("read validator public key: %w", err)
	}

	genesis := &cmttypes.GenesisDoc{
		ChainID:         app.ChainID(),
		GenesisTime:     time.Now().UTC(),
		InitialHeight:   1,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		Validators: []cmttypes.GenesisValidator{{
			Address: pubKey.Address(),
			PubKey:  pubKey,
			Power:   1,
			Name:    cometCfg.Moniker,
		}},
		AppState: json.RawMessage(`{}`),
	}
	return genesis.SaveAs(genFile)
}
