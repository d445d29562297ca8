// Copyright 2025 Certen Protocol
//
// Process configuration, read once at startup. This is the §9 redesign
// target for the denylist/native-token constants/burn address: they were
// process-wide mutable state read straight from the environment at
// transaction-apply time; here they are captured into one immutable Config
// value and threaded through pkg/fee.Policy instead.

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/certen/ledgercore/pkg/fee"
	"github.com/certen/ledgercore/pkg/types"
)

// Config holds every setting the ledger core reads from its environment.
// Call Load once at process startup; nothing downstream re-reads os.Getenv.
type Config struct {
	// LedgerDir is the base path LoadLedgerState's KV store is opened under.
	LedgerDir string

	// ListenAddr is the CometBFT P2P listen address; MetricsAddr is the
	// Prometheus listen address.
	ListenAddr  string
	MetricsAddr string

	// ChainID is the CometBFT chain identifier presented at InitChain.
	ChainID string

	// NativeAssetCode is the system token's asset code (§3: all zeros).
	NativeAssetCode types.AssetTypeCode

	// BurnAddress is the well-known public key fees are paid to.
	BurnAddress types.XfrPublicKey

	// TxFeeMin is TX_FEE_MIN: the minimum fee-output amount (§4.5).
	TxFeeMin uint64

	// HeightLimit is HEIGHT_LIMIT: the height past which native IssueAsset
	// locks permanently (§4.5).
	HeightLimit uint64

	// Denylist is the timed input-key denylist assembled from
	// ADDR_BLK_LIST/ADDR_BLK_LIST_TS_START/ADDR_BLK_LIST_TS_END.
	Denylist []fee.DenylistEntry

	// ZKVerifyingKeyPath points at the externally-generated Groth16
	// verifying key pkg/zkverify loads for confidential transfers.
	ZKVerifyingKeyPath string
}

// FeePolicy builds the immutable fee.Policy this Config describes. Called
// once at startup and threaded into pkg/consensus; never reconstructed per
// transaction.
func (c Config) FeePolicy() fee.Policy {
	return fee.Policy{
		NativeAsset: c.NativeAssetCode,
		BurnAddress: c.BurnAddress,
		MinFee:      c.TxFeeMin,
		HeightLimit: c.HeightLimit,
		Denylist:    c.Denylist,
	}
}

// Load reads configuration from environment variables.
//
// CRITICAL: this service only reads these specific variable names — see
// spec §6: LEDGER_DIR, ADDR_BLK_LIST, ADDR_BLK_LIST_TS_START,
// ADDR_BLK_LIST_TS_END, TX_FEE_MIN, HEIGHT_LIMIT, BURN_ADDRESS,
// NATIVE_ASSET_CODE, plus the node settings LISTEN_ADDR, METRICS_ADDR,
// COMETBFT_CHAIN_ID and ZK_VERIFYING_KEY_PATH. Required variables (LEDGER_DIR, BURN_ADDRESS) have no
// default and must be set explicitly; Validate enforces that.
func Load() (*Config, error) {
	burnAddr, err := parseXfrPublicKeyHex(getEnv("BURN_ADDRESS", ""))
	if err != nil && getEnv("BURN_ADDRESS", "") != "" {
		return nil, fmt.Errorf("config: BURN_ADDRESS: %w", err)
	}

	nativeCode, err := parseAssetCodeHex(getEnv("NATIVE_ASSET_CODE", ""))
	if err != nil {
		return nil, fmt.Errorf("config: NATIVE_ASSET_CODE: %w", err)
	}

	denylist, err := parseDenylist(
		getEnv("ADDR_BLK_LIST", ""),
		getEnv("ADDR_BLK_LIST_TS_START", ""),
		getEnv("ADDR_BLK_LIST_TS_END", ""),
	)
	if err != nil {
		return nil, fmt.Errorf("config: ADDR_BLK_LIST: %w", err)
	}

	cfg := &Config{
		LedgerDir:          getEnv("LEDGER_DIR", ""),
		ListenAddr:         getEnv("LISTEN_ADDR", "tcp://127.0.0.1:26658"),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
		ChainID:            getEnv("COMETBFT_CHAIN_ID", "certen-ledger"),
		NativeAssetCode:    nativeCode,
		BurnAddress:        burnAddr,
		TxFeeMin:           getEnvUint64("TX_FEE_MIN", fee.DefaultMinFee),
		HeightLimit:        getEnvUint64("HEIGHT_LIMIT", fee.DefaultHeightLimit),
		Denylist:           denylist,
		ZKVerifyingKeyPath: getEnv("ZK_VERIFYING_KEY_PATH", ""),
	}

	return cfg, nil
}

// Validate enforces the variables that have no safe default.
func (c *Config) Validate() error {
	var errs []string
	if c.LedgerDir == "" {
		errs = append(errs, "LEDGER_DIR is required")
	}
	if c.BurnAddress == (types.XfrPublicKey{}) {
		errs = append(errs, "BURN_ADDRESS is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func parseXfrPublicKeyHex(s string) (types.XfrPublicKey, error) {
	var key types.XfrPublicKey
	if s == "" {
		return key, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return key, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != len(key) {
		return key, fmt.Errorf("want %d bytes, got %d", len(key), len(b))
	}
	copy(key[:], b)
	return key, nil
}

func parseAssetCodeHex(s string) (types.AssetTypeCode, error) {
	var code types.AssetTypeCode
	if s == "" {
		return code, nil // native asset code defaults to the all-zero code (§3)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return code, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != len(code) {
		return code, fmt.Errorf("want %d bytes, got %d", len(code), len(b))
	}
	copy(code[:], b)
	return code, nil
}

// parseDenylist parses a comma-separated list of hex-encoded input public
// keys sharing one [start, end) window of unix-second timestamps.
func parseDenylist(list, startStr, endStr string) ([]fee.DenylistEntry, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	start, err := parseUnixSeconds(startStr)
	if err != nil {
		return nil, fmt.Errorf("ADDR_BLK_LIST_TS_START: %w", err)
	}
	end, err := parseUnixSeconds(endStr)
	if err != nil {
		return nil, fmt.Errorf("ADDR_BLK_LIST_TS_END: %w", err)
	}

	var entries []fee.DenylistEntry
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key, err := parseXfrPublicKeyHex(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", raw, err)
		}
		entries = append(entries, fee.DenylistEntry{
			InputKey:    key,
			WindowStart: start,
			WindowEnd:   end,
		})
	}
	return entries, nil
}

func parseUnixSeconds(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid unix timestamp: %w", err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
