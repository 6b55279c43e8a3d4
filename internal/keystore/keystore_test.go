package keystore

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	gethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestMain(m *testing.M) {
	// Standard scrypt costs take seconds per key; the light parameters
	// exercise the same code path.
	scryptN = gethkeystore.LightScryptN
	scryptP = gethkeystore.LightScryptP
	m.Run()
}

func newKeyHex(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key))
}

func TestInitializeAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")

	if Exists(path) {
		t.Fatal("store must not exist before Initialize")
	}
	if _, err := Initialize(path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !Exists(path) {
		t.Fatal("Initialize must create the file")
	}

	if _, err := Initialize(path); !errors.Is(err, ErrStoreExists) {
		t.Errorf("second Initialize = %v, want ErrStoreExists", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(s.ListWallets()) != 0 {
		t.Errorf("fresh store has %d wallets, want 0", len(s.ListWallets()))
	}
}

func TestAddWalletRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	s, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	keyHex := newKeyHex(t)
	rec, err := s.AddWallet("main", "0x"+keyHex, "hunter2", 97)
	if err != nil {
		t.Fatalf("AddWallet failed: %v", err)
	}
	if rec.Name != "main" || rec.ChainID != 97 {
		t.Errorf("record = %+v, want name main chain 97", rec)
	}

	// Reopen from disk: the key must decrypt to the same account.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	key, err := reopened.GetPrivateKey("main", "hunter2")
	if err != nil {
		t.Fatalf("GetPrivateKey failed: %v", err)
	}
	if got := crypto.PubkeyToAddress(key.PublicKey).Hex(); got != rec.Address {
		t.Errorf("decrypted address = %s, want %s", got, rec.Address)
	}
}

func TestAddWalletRejectsDuplicateName(t *testing.T) {
	s, err := Initialize(filepath.Join(t.TempDir(), "wallets.json"))
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := s.AddWallet("main", newKeyHex(t), "pw", 56); err != nil {
		t.Fatalf("AddWallet failed: %v", err)
	}
	if _, err := s.AddWallet("main", newKeyHex(t), "pw", 56); !errors.Is(err, ErrWalletExists) {
		t.Errorf("duplicate AddWallet = %v, want ErrWalletExists", err)
	}
}

func TestAddWalletRejectsMalformedKey(t *testing.T) {
	s, err := Initialize(filepath.Join(t.TempDir(), "wallets.json"))
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := s.AddWallet("bad", "zzzz", "pw", 56); err == nil {
		t.Error("malformed private key must be rejected")
	}
}

func TestGetPrivateKeyErrors(t *testing.T) {
	s, err := Initialize(filepath.Join(t.TempDir(), "wallets.json"))
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := s.AddWallet("main", newKeyHex(t), "correct", 56); err != nil {
		t.Fatalf("AddWallet failed: %v", err)
	}

	if _, err := s.GetPrivateKey("missing", "correct"); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("unknown wallet = %v, want ErrWalletNotFound", err)
	}
	if _, err := s.GetPrivateKey("main", "wrong"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Errorf("wrong password = %v, want ErrInvalidPassphrase", err)
	}
}

func TestRemoveWalletPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	s, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := s.AddWallet("a", newKeyHex(t), "pw", 56); err != nil {
		t.Fatalf("AddWallet failed: %v", err)
	}
	if _, err := s.AddWallet("b", newKeyHex(t), "pw", 56); err != nil {
		t.Fatalf("AddWallet failed: %v", err)
	}

	removed, err := s.RemoveWallet("a")
	if err != nil || !removed {
		t.Fatalf("RemoveWallet = %v, %v, want removed", removed, err)
	}
	if removed, _ := s.RemoveWallet("a"); removed {
		t.Error("removing twice must report false")
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	wallets := reopened.ListWallets()
	if len(wallets) != 1 || wallets[0].Name != "b" {
		t.Errorf("wallets after removal = %+v, want only b", wallets)
	}
}
