package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

//go:embed tokens/bep20_mainnet.json tokens/bep20_testnet.json
var tokenLists embed.FS

// ErrSymbolNotFound is returned when a symbol is missing from the registry
var ErrSymbolNotFound = fmt.Errorf("token symbol not found in registry")

// TokenInfo contains token metadata for trading pairs
type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Decimals int    `json:"decimals"`
}

// AddressChecksummed returns the token address in typed form.
func (t TokenInfo) AddressChecksummed() common.Address {
	return common.HexToAddress(t.Address)
}

type tokenList struct {
	Name   string      `json:"name"`
	Tokens []TokenInfo `json:"tokens"`
}

// TokenRegistry resolves token metadata by symbol for one network. Lookups
// are case-insensitive; duplicate symbols resolve to the first list entry.
type TokenRegistry struct {
	network     string
	tokensBySym map[string][]TokenInfo
}

// NewTokenRegistry loads the embedded token list for the given network
// ("mainnet" or "testnet").
func NewTokenRegistry(network string) (*TokenRegistry, error) {
	var path string
	switch network {
	case "mainnet":
		path = "tokens/bep20_mainnet.json"
	case "testnet":
		path = "tokens/bep20_testnet.json"
	default:
		return nil, fmt.Errorf("network must be mainnet or testnet, got %q", network)
	}

	raw, err := tokenLists.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read embedded token list: %w", err)
	}
	var list tokenList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse token list %s: %w", path, err)
	}

	r := &TokenRegistry{
		network:     network,
		tokensBySym: make(map[string][]TokenInfo, len(list.Tokens)),
	}
	for _, t := range list.Tokens {
		sym := strings.ToUpper(t.Symbol)
		t.Symbol = sym
		r.tokensBySym[sym] = append(r.tokensBySym[sym], t)
	}
	return r, nil
}

// Network returns the network this registry was loaded for.
func (r *TokenRegistry) Network() string { return r.network }

// Resolve returns the first token registered under the symbol,
// case-insensitively.
func (r *TokenRegistry) Resolve(symbol string) (TokenInfo, error) {
	candidates := r.tokensBySym[strings.ToUpper(symbol)]
	if len(candidates) == 0 {
		return TokenInfo{}, fmt.Errorf("%w: %q (%s)", ErrSymbolNotFound, symbol, r.network)
	}
	return candidates[0], nil
}

// AddCustom registers a token not present in the embedded list. Custom
// tokens take lookup priority over list entries with the same symbol.
func (r *TokenRegistry) AddCustom(t TokenInfo) error {
	if t.Symbol == "" || t.Address == "" {
		return fmt.Errorf("custom token requires symbol and address")
	}
	if !common.IsHexAddress(t.Address) {
		return fmt.Errorf("invalid custom token address: %q", t.Address)
	}
	if t.Decimals <= 0 {
		t.Decimals = 18
	}
	sym := strings.ToUpper(t.Symbol)
	t.Symbol = sym
	r.tokensBySym[sym] = append([]TokenInfo{t}, r.tokensBySym[sym]...)
	return nil
}

// ListSymbols returns all known symbols, sorted.
func (r *TokenRegistry) ListSymbols() []string {
	symbols := make([]string, 0, len(r.tokensBySym))
	for s := range r.tokensBySym {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ChainAddresses holds per-chain protocol contract addresses.
type ChainAddresses struct {
	WrappedNative common.Address
	V3QuoterV2    common.Address
	V3SwapRouter  common.Address
	V2Router      common.Address
	V3NFTManager  common.Address
}

// chainDefaults are the well-known PancakeSwap deployments keyed by chain
// id: BSC mainnet (56) and testnet (97).
var chainDefaults = map[int64]ChainAddresses{
	56: {
		WrappedNative: common.HexToAddress("0xBB4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
		V3QuoterV2:    common.HexToAddress("0xB048Bbc1Ee6b733FFfCFb9e9CeF7375518e25997"),
		V3SwapRouter:  common.HexToAddress("0x1b81D678ffb9C0263b24A97847620C99d213eB14"),
		V2Router:      common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		V3NFTManager:  common.HexToAddress("0x46A15B0b27311cedF172AB29E4f4766fbE7F4364"),
	},
	97: {
		WrappedNative: common.HexToAddress("0xae13d989daC2f0dEbFf460aC112a837C89BAa7cd"),
		V3QuoterV2:    common.HexToAddress("0xbC203d7f83677c7ed3F7acEc959963E7F4ECC5C2"),
		V3SwapRouter:  common.HexToAddress("0x1b81D678ffb9C0263b24A97847620C99d213eB14"),
		V2Router:      common.HexToAddress("0x9Ac64Cc6e4415144C455BD8E4837Fea55603e5c3"),
		V3NFTManager:  common.HexToAddress("0x427bF5b37357632377eCbEC9de3626C71A5396c1"),
	},
}

// Defaults returns the protocol addresses for a chain id.
func Defaults(chainID int64) (ChainAddresses, error) {
	addrs, ok := chainDefaults[chainID]
	if !ok {
		return ChainAddresses{}, fmt.Errorf("no default contract addresses for chain id %d", chainID)
	}
	return addrs, nil
}

// Addresses resolves the effective protocol addresses for the chain config:
// chain-id defaults with any configured overrides applied.
func (c *ChainConfig) Addresses() (ChainAddresses, error) {
	addrs, err := Defaults(c.ChainID)
	if err != nil && c.QuoterAddress == "" {
		return ChainAddresses{}, err
	}
	if c.QuoterAddress != "" {
		addrs.V3QuoterV2 = common.HexToAddress(c.QuoterAddress)
	}
	if c.V3RouterAddress != "" {
		addrs.V3SwapRouter = common.HexToAddress(c.V3RouterAddress)
	}
	if c.V2RouterAddress != "" {
		addrs.V2Router = common.HexToAddress(c.V2RouterAddress)
	}
	if c.WrappedNative != "" {
		addrs.WrappedNative = common.HexToAddress(c.WrappedNative)
	}
	return addrs, nil
}
