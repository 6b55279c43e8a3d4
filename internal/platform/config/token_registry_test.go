package config

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestTokenRegistryResolveCaseInsensitive(t *testing.T) {
	r, err := NewTokenRegistry("mainnet")
	if err != nil {
		t.Fatalf("NewTokenRegistry failed: %v", err)
	}

	for _, sym := range []string{"CAKE", "cake", "Cake"} {
		info, err := r.Resolve(sym)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", sym, err)
		}
		if info.Symbol != "CAKE" {
			t.Errorf("Resolve(%q).Symbol = %q, want CAKE", sym, info.Symbol)
		}
		if !common.IsHexAddress(info.Address) {
			t.Errorf("Resolve(%q) returned malformed address %q", sym, info.Address)
		}
	}
}

func TestTokenRegistryUnknownSymbol(t *testing.T) {
	r, err := NewTokenRegistry("testnet")
	if err != nil {
		t.Fatalf("NewTokenRegistry failed: %v", err)
	}

	_, err = r.Resolve("NOSUCHTOKEN")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("Resolve unknown = %v, want ErrSymbolNotFound", err)
	}
}

func TestTokenRegistryRejectsUnknownNetwork(t *testing.T) {
	if _, err := NewTokenRegistry("devnet"); err == nil {
		t.Error("expected error for unknown network")
	}
}

func TestTokenRegistryAddCustom(t *testing.T) {
	r, err := NewTokenRegistry("testnet")
	if err != nil {
		t.Fatalf("NewTokenRegistry failed: %v", err)
	}

	custom := TokenInfo{
		Name:    "My Token",
		Symbol:  "myt",
		Address: "0x000000000000000000000000000000000000beef",
		ChainID: 97,
	}
	if err := r.AddCustom(custom); err != nil {
		t.Fatalf("AddCustom failed: %v", err)
	}

	info, err := r.Resolve("MYT")
	if err != nil {
		t.Fatalf("Resolve custom failed: %v", err)
	}
	if info.Symbol != "MYT" {
		t.Errorf("custom symbol = %q, want upper-cased MYT", info.Symbol)
	}
	if info.Decimals != 18 {
		t.Errorf("custom decimals = %d, want default 18", info.Decimals)
	}
}

func TestTokenRegistryCustomShadowsListEntry(t *testing.T) {
	r, err := NewTokenRegistry("mainnet")
	if err != nil {
		t.Fatalf("NewTokenRegistry failed: %v", err)
	}

	override := TokenInfo{
		Name:     "Custom USDT",
		Symbol:   "USDT",
		Address:  "0x000000000000000000000000000000000000dEaD",
		ChainID:  56,
		Decimals: 6,
	}
	if err := r.AddCustom(override); err != nil {
		t.Fatalf("AddCustom failed: %v", err)
	}

	info, err := r.Resolve("usdt")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.Address != override.Address {
		t.Errorf("resolved address %q, custom token must take priority", info.Address)
	}
	if info.Decimals != 6 {
		t.Errorf("resolved decimals = %d, want 6", info.Decimals)
	}
}

func TestTokenRegistryAddCustomRejectsBadInput(t *testing.T) {
	r, err := NewTokenRegistry("mainnet")
	if err != nil {
		t.Fatalf("NewTokenRegistry failed: %v", err)
	}

	if err := r.AddCustom(TokenInfo{Symbol: "X"}); err == nil {
		t.Error("missing address must be rejected")
	}
	if err := r.AddCustom(TokenInfo{Symbol: "X", Address: "not-an-address"}); err == nil {
		t.Error("malformed address must be rejected")
	}
}

func TestTokenRegistryListSymbolsSorted(t *testing.T) {
	r, err := NewTokenRegistry("mainnet")
	if err != nil {
		t.Fatalf("NewTokenRegistry failed: %v", err)
	}

	symbols := r.ListSymbols()
	if len(symbols) == 0 {
		t.Fatal("embedded list must not be empty")
	}
	for i := 1; i < len(symbols); i++ {
		if symbols[i-1] > symbols[i] {
			t.Fatalf("symbols not sorted: %q before %q", symbols[i-1], symbols[i])
		}
	}
}
