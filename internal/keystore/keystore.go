// Package keystore stores multiple named EVM wallets in one JSON file,
// each private key encrypted with the go-ethereum keystore format
// (scrypt + AES). Decrypted keys exist only in memory.
package keystore

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const storeVersion = 1

// Scrypt cost parameters for key encryption. Tests lower these; production
// code keeps the go-ethereum standard values.
var (
	scryptN = gethkeystore.StandardScryptN
	scryptP = gethkeystore.StandardScryptP
)

var (
	// ErrWalletNotFound is returned when no wallet has the given name.
	ErrWalletNotFound = errors.New("keystore: wallet not found")

	// ErrWalletExists is returned when adding a wallet under a taken name.
	ErrWalletExists = errors.New("keystore: wallet name already exists")

	// ErrInvalidPassphrase is returned when decryption fails.
	ErrInvalidPassphrase = errors.New("keystore: invalid passphrase")

	// ErrStoreExists is returned when initializing over an existing file.
	ErrStoreExists = errors.New("keystore: store already exists")
)

// WalletRecord is one stored wallet. EncryptedKey is a complete
// go-ethereum keystore JSON blob.
type WalletRecord struct {
	Name         string          `json:"name"`
	Address      string          `json:"address"`
	EncryptedKey json.RawMessage `json:"encrypted_key"`
	CreatedAt    time.Time       `json:"created_at"`
	ChainID      int64           `json:"chain_id,omitempty"`
}

type storeFile struct {
	Version int            `json:"version"`
	Wallets []WalletRecord `json:"wallets"`
}

// Store is a file-backed multi-wallet keystore.
type Store struct {
	path string
	data storeFile
}

// Open loads an existing keystore file.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse keystore %s: %w", path, err)
	}
	return s, nil
}

// Exists reports whether a keystore file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Initialize creates an empty keystore file. Fails if one already exists.
func Initialize(path string) (*Store, error) {
	if Exists(path) {
		return nil, ErrStoreExists
	}
	s := &Store{
		path: path,
		data: storeFile{Version: storeVersion},
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create keystore dir: %w", err)
		}
	}
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keystore: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write keystore %s: %w", s.path, err)
	}
	return nil
}

// ListWallets returns all stored wallets in file order.
func (s *Store) ListWallets() []WalletRecord {
	out := make([]WalletRecord, len(s.data.Wallets))
	copy(out, s.data.Wallets)
	return out
}

// AddWallet encrypts and stores a private key under a unique name.
// The key may carry a 0x prefix.
func (s *Store) AddWallet(name, privateKeyHex, password string, chainID int64) (WalletRecord, error) {
	for _, w := range s.data.Wallets {
		if w.Name == name {
			return WalletRecord{}, fmt.Errorf("%w: %q", ErrWalletExists, name)
		}
	}

	pkHex := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(privateKeyHex)), "0x")
	key, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return WalletRecord{}, fmt.Errorf("invalid private key format: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	encrypted, err := gethkeystore.EncryptKey(&gethkeystore.Key{
		Id:         uuid.New(),
		Address:    address,
		PrivateKey: key,
	}, password, scryptN, scryptP)
	if err != nil {
		return WalletRecord{}, fmt.Errorf("encrypt private key: %w", err)
	}

	rec := WalletRecord{
		Name:         name,
		Address:      address.Hex(),
		EncryptedKey: encrypted,
		CreatedAt:    time.Now().UTC(),
		ChainID:      chainID,
	}
	s.data.Wallets = append(s.data.Wallets, rec)
	if err := s.save(); err != nil {
		return WalletRecord{}, err
	}
	return rec, nil
}

// RemoveWallet deletes a wallet by name. Returns false when the name is
// unknown.
func (s *Store) RemoveWallet(name string) (bool, error) {
	kept := s.data.Wallets[:0]
	removed := false
	for _, w := range s.data.Wallets {
		if w.Name == name {
			removed = true
			continue
		}
		kept = append(kept, w)
	}
	if !removed {
		return false, nil
	}
	s.data.Wallets = kept
	if err := s.save(); err != nil {
		return false, err
	}
	return true, nil
}

// GetPrivateKey decrypts and returns the named wallet's key.
func (s *Store) GetPrivateKey(name, password string) (*ecdsa.PrivateKey, error) {
	for _, w := range s.data.Wallets {
		if w.Name != name {
			continue
		}
		key, err := gethkeystore.DecryptKey(w.EncryptedKey, password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPassphrase, err)
		}
		return key.PrivateKey, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, name)
}
