// Copyright 2025 Certen Protocol
//
// BLS Key Manager - handles key generation, loading, and storage for BLS
// keys. Within this module, BLS signatures are checked only for the optional
// genesis quorum attestation in pkg/consensus/genesis.go.
//
// There is deliberately no package-level singleton here: the re-architecture
// note in the ledger's design docs calls out process-wide mutable validator
// key state as a pattern to avoid. Callers construct one KeyManager per
// validator identity and pass it explicitly, the same way LedgerState is a
// single owned value rather than a global; nothing in pkg/config or
// pkg/consensus constructs one.
package bls

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyManager handles BLS key operations for a single validator identity.
type KeyManager struct {
	keyPath    string
	privateKey *PrivateKey
	publicKey  *PublicKey
}

// NewKeyManager creates a key manager backed by the given key file path.
// An empty path means the key lives in memory only (tests, ephemeral nodes).
func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// LoadOrGenerateKey loads an existing key, or generates and persists a new
// one if keyPath does not yet exist.
func (km *KeyManager) LoadOrGenerateKey() error {
	if err := Initialize(); err != nil {
		return fmt.Errorf("initialize BLS: %w", err)
	}
	if km.keyPath != "" {
		if _, err := os.Stat(km.keyPath); err == nil {
			return km.LoadKey()
		}
	}
	return km.GenerateNewKey()
}

// LoadKey loads an existing key from the key path.
func (km *KeyManager) LoadKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("no key path specified")
	}
	data, err := os.ReadFile(km.keyPath)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	keyBytes, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("decode key hex: %w", err)
	}
	km.privateKey, err = PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	km.publicKey = km.privateKey.PublicKey()
	return nil
}

// GenerateNewKey generates a fresh random key pair and persists it if a
// key path was configured.
func (km *KeyManager) GenerateNewKey() error {
	var err error
	km.privateKey, km.publicKey, err = GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}
	if km.keyPath != "" {
		return km.SaveKey()
	}
	return nil
}

// GenerateFromValidatorID derives a deterministic key from a validator and
// chain identity, so a validator recovers the same key after a restart
// without needing a key file.
func (km *KeyManager) GenerateFromValidatorID(validatorID, chainID string) error {
	seed := sha256.Sum256([]byte(fmt.Sprintf("LEDGERCORE_BLS_KEY_V1:%s:%s", validatorID, chainID)))
	var err error
	km.privateKey, km.publicKey, err = GenerateKeyPairFromSeed(seed[:])
	if err != nil {
		return fmt.Errorf("generate from validator id: %w", err)
	}
	return nil
}

// SaveKey persists the private key, hex-encoded, with owner-only permissions.
func (km *KeyManager) SaveKey() error {
	if km.keyPath == "" {
		return fmt.Errorf("no key path specified")
	}
	if km.privateKey == nil {
		return fmt.Errorf("no private key to save")
	}
	dir := filepath.Dir(km.keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	keyHex := hex.EncodeToString(km.privateKey.Bytes())
	if err := os.WriteFile(km.keyPath, []byte(keyHex), 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// PrivateKey returns the loaded private key, or nil if none is loaded.
func (km *KeyManager) PrivateKey() *PrivateKey {
	return km.privateKey
}

// PublicKey returns the loaded public key, or nil if none is loaded.
func (km *KeyManager) PublicKey() *PublicKey {
	return km.publicKey
}

// PublicKeyHex returns the public key as a hex string, or "" if none is loaded.
func (km *KeyManager) PublicKeyHex() string {
	if km.publicKey == nil {
		return ""
	}
	return km.publicKey.Hex()
}

// Sign signs message under domain with the loaded private key.
func (km *KeyManager) Sign(domain string, message []byte) (*Signature, error) {
	if km.privateKey == nil {
		return nil, fmt.Errorf("no private key loaded")
	}
	return km.privateKey.Sign(domain, message), nil
}
