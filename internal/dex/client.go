package dex

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// swapDeadline is the router deadline for every swap. 90s covers realistic
// confirmation latency; shortening it does not mitigate frontrunning, it
// only raises the failure rate. Frontrunning mitigation comes from the gas
// premium and tight slippage.
const swapDeadline = 90 * time.Second

// Client is a per-wallet chain client: one signing key, one nonce sequence.
// It owns the bound router/quoter contracts and the raw ERC20 plumbing.
// A Client must not be shared for writes across goroutines.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int

	key     *ecdsa.PrivateKey
	address common.Address

	quoterAddr   common.Address
	v2RouterAddr common.Address
	v3RouterAddr common.Address

	quoter   *bind.BoundContract
	v2Router *bind.BoundContract

	// Flat gas-price premium in percent (e.g. 20 for +20%), applied when
	// frontrunning protection is enabled. Zero means network price as-is.
	gasPremiumPct int64

	logger  *observability.Logger
	metrics *observability.Metrics

	decimalsMu    sync.RWMutex
	decimalsCache map[common.Address]int
}

// ClientConfig holds chain client configuration.
type ClientConfig struct {
	Eth             *ethclient.Client
	ChainID         int64
	PrivateKey      *ecdsa.PrivateKey // nil for a read-only client
	QuoterAddress   common.Address
	V2RouterAddress common.Address
	V3RouterAddress common.Address
	GasPremiumPct   int64
	Logger          *observability.Logger
	Metrics         *observability.Metrics
}

// NewClient creates a per-wallet chain client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Eth == nil {
		return nil, fmt.Errorf("ethereum client is required")
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	if cfg.QuoterAddress == (common.Address{}) || cfg.V3RouterAddress == (common.Address{}) {
		return nil, fmt.Errorf("quoter and v3 router addresses are required")
	}

	c := &Client{
		eth:           cfg.Eth,
		chainID:       big.NewInt(cfg.ChainID),
		key:           cfg.PrivateKey,
		quoterAddr:    cfg.QuoterAddress,
		v2RouterAddr:  cfg.V2RouterAddress,
		v3RouterAddr:  cfg.V3RouterAddress,
		gasPremiumPct: cfg.GasPremiumPct,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		decimalsCache: make(map[common.Address]int),
	}
	if cfg.PrivateKey != nil {
		c.address = crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey)
	}
	c.quoter = bind.NewBoundContract(cfg.QuoterAddress, parsedQuoterABI, cfg.Eth, nil, nil)
	if cfg.V2RouterAddress != (common.Address{}) {
		c.v2Router = bind.NewBoundContract(cfg.V2RouterAddress, parsedV2RouterABI, cfg.Eth, nil, nil)
	}
	return c, nil
}

// Address returns the wallet address, or the zero address for a read-only
// client.
func (c *Client) Address() common.Address { return c.address }

// ChainID returns the configured chain id.
func (c *Client) ChainID() int64 { return c.chainID.Int64() }

// V2RouterAddress returns the configured V2 router, or the zero address.
func (c *Client) V2RouterAddress() common.Address { return c.v2RouterAddr }

// V3RouterAddress returns the configured V3 swap router.
func (c *Client) V3RouterAddress() common.Address { return c.v3RouterAddr }

// ----------------------------
// ERC20 reads
// ----------------------------

func (c *Client) erc20(token common.Address) *bind.BoundContract {
	return bind.NewBoundContract(token, parsedERC20ABI, c.eth, c.eth, nil)
}

// Decimals returns the token's decimal count. Decimals are immutable
// on-chain, so results are cached for the client lifetime.
func (c *Client) Decimals(ctx context.Context, token common.Address) (int, error) {
	c.decimalsMu.RLock()
	d, ok := c.decimalsCache[token]
	c.decimalsMu.RUnlock()
	if ok {
		return d, nil
	}

	var out []interface{}
	err := c.erc20(token).Call(&bind.CallOpts{Context: ctx}, &out, "decimals")
	if err != nil {
		return 0, fmt.Errorf("decimals(%s): %w", token.Hex(), err)
	}
	d = int(out[0].(uint8))

	c.decimalsMu.Lock()
	c.decimalsCache[token] = d
	c.decimalsMu.Unlock()
	return d, nil
}

// BalanceOf returns the owner's token balance in base units.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.erc20(token).Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s): %w", token.Hex(), err)
	}
	return out[0].(*big.Int), nil
}

// Allowance returns the spender's allowance from owner in base units.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	err := c.erc20(token).Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("allowance(%s): %w", token.Hex(), err)
	}
	return out[0].(*big.Int), nil
}

// Approve submits an ERC20 approve transaction and returns its hash.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	calldata, err := parsedERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	hash, err := c.sendContractTx(ctx, token, calldata)
	if err != nil {
		return common.Hash{}, fmt.Errorf("approve %s for %s: %w", token.Hex(), spender.Hex(), err)
	}
	if c.logger != nil {
		c.logger.Info("approval submitted",
			"token", token.Hex(),
			"spender", spender.Hex(),
			"amount", amount.String(),
			"tx", hash.Hex(),
		)
	}
	return hash, nil
}

// ----------------------------
// Quoter calls
// ----------------------------

// QuoteV3ExactInputSingle returns the output amount for a direct V3 pool
// swap at the given fee tier, or an error if the pool reverts.
func (c *Client) QuoteV3ExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error) {
	var out []interface{}
	err := c.quoter.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactInputSingle",
		tokenIn, tokenOut, amountIn, big.NewInt(int64(fee)), big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// QuoteV3ExactInputPath returns the output amount for a multi-hop V3 swap
// over an encoded path.
func (c *Client) QuoteV3ExactInputPath(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error) {
	var out []interface{}
	err := c.quoter.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactInput", path, amountIn)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// QuoteV3ExactOutputSingle returns the input amount required to receive
// amountOut through a direct V3 pool at the given fee tier.
func (c *Client) QuoteV3ExactOutputSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountOut *big.Int) (*big.Int, error) {
	var out []interface{}
	err := c.quoter.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactOutputSingle",
		tokenIn, tokenOut, amountOut, big.NewInt(int64(fee)), big.NewInt(0))
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// QuoteV3ExactOutputPath returns the input amount required to receive
// amountOut over an encoded path. The path must already be reversed
// (tokenOut first).
func (c *Client) QuoteV3ExactOutputPath(ctx context.Context, path []byte, amountOut *big.Int) (*big.Int, error) {
	var out []interface{}
	err := c.quoter.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactOutput", path, amountOut)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// V2GetAmountsOut returns the constant-product amounts along a V2 path for
// the given input.
func (c *Client) V2GetAmountsOut(ctx context.Context, path []common.Address, amountIn *big.Int) ([]*big.Int, error) {
	if c.v2Router == nil {
		return nil, fmt.Errorf("v2 router not configured for this chain")
	}
	var out []interface{}
	err := c.v2Router.Call(&bind.CallOpts{Context: ctx}, &out, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	return out[0].([]*big.Int), nil
}

// V2GetAmountsIn returns the required V2 inputs along a path for the given
// output.
func (c *Client) V2GetAmountsIn(ctx context.Context, path []common.Address, amountOut *big.Int) ([]*big.Int, error) {
	if c.v2Router == nil {
		return nil, fmt.Errorf("v2 router not configured for this chain")
	}
	var out []interface{}
	err := c.v2Router.Call(&bind.CallOpts{Context: ctx}, &out, "getAmountsIn", amountOut, path)
	if err != nil {
		return nil, err
	}
	return out[0].([]*big.Int), nil
}

// ----------------------------
// Transaction plumbing
// ----------------------------

// sendContractTx builds, signs and submits a contract call transaction.
// The nonce read includes pending transactions so back-to-back swaps from
// the same wallet do not collide.
func (c *Client) sendContractTx(ctx context.Context, to common.Address, calldata []byte) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch pending nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch gas price: %w", err)
	}
	if c.gasPremiumPct > 0 {
		gasPrice = new(big.Int).Div(
			new(big.Int).Mul(gasPrice, big.NewInt(100+c.gasPremiumPct)),
			big.NewInt(100),
		)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.address,
		To:       &to,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordTxSubmitted(ctx)
	}
	return signed.Hash(), nil
}

func deadlineUnix() *big.Int {
	return big.NewInt(time.Now().Add(swapDeadline).Unix())
}
