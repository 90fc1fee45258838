package cryptoutils

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flashbots/go-utils/signature"
)

// LoadKey reads a hex-encoded secp256k1 private key from path.
func LoadKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", path, err)
	}
	return key, nil
}

// LoadOrCreateKey loads the key at path, generating and saving a new one
// when the file does not exist.
func LoadOrCreateKey(path string) (*ecdsa.PrivateKey, bool, error) {
	key, err := crypto.LoadECDSA(path)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("load key %s: %w", path, err)
	}

	key, err = crypto.GenerateKey()
	if err != nil {
		return nil, false, fmt.Errorf("generate key: %w", err)
	}
	if err := SaveKey(path, key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// SaveKey writes key as hex, readable by the owner only.
func SaveKey(path string, key *ecdsa.PrivateKey) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := crypto.SaveECDSA(path, key); err != nil {
		return fmt.Errorf("save key %s: %w", path, err)
	}
	return nil
}

// ParseHexKey parses a hex private key, with or without 0x prefix.
func ParseHexKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// NewSigner wraps key for signing request bodies.
func NewSigner(key *ecdsa.PrivateKey) *signature.Signer {
	signer := signature.NewSigner(key)
	return &signer
}
