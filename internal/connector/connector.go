// Package connector exposes a strategy-friendly, symbol-oriented API over
// the routing and execution engine: prices as quote per one base, amounts
// in human units, one connector per wallet.
package connector

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Erfaniaa/mini-hummingbot/internal/dex"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/cache"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/config"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/resilience"
)

// HealthReporter receives the outcome of every chain call so the owning
// endpoint's breaker and the shared monitor see real traffic, not just
// background probes. chainpool.BoundClient implements it.
type HealthReporter interface {
	ReportSuccess()
	ReportFailure(err error)
}

// Connector binds one wallet to the chain: price discovery, balances,
// approvals and market swaps, all keyed by token symbol. Write operations
// must not be issued concurrently on the same Connector; the wallet nonce
// sequence is not coordinated across goroutines.
type Connector struct {
	client   *dex.Client
	engine   *dex.Engine
	executor *dex.Executor
	registry *config.TokenRegistry
	monitor  *resilience.ConnectionMonitor
	health   HealthReporter

	priceCache cache.Cache
	priceTTL   time.Duration

	retry   resilience.RetryConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Config holds connector wiring.
type Config struct {
	Client   *dex.Client
	Engine   *dex.Engine
	Executor *dex.Executor
	Registry *config.TokenRegistry
	Monitor  *resilience.ConnectionMonitor

	// Health, when set, receives per-call outcomes and supersedes direct
	// monitor feeding; the pool routes them to the right endpoint breaker.
	Health HealthReporter

	// PriceCache is optional; when set, 1-unit probe prices are served
	// from it within PriceTTL.
	PriceCache cache.Cache
	PriceTTL   time.Duration

	Retry   resilience.RetryConfig
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// New creates a connector for one wallet.
func New(cfg Config) (*Connector, error) {
	if cfg.Client == nil || cfg.Engine == nil || cfg.Executor == nil {
		return nil, fmt.Errorf("client, engine and executor are required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("token registry is required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	// Only transport failures are retried; reverts and bad requests
	// surface immediately.
	cfg.Retry.IsRetryable = resilience.IsNetworkError
	if cfg.PriceTTL <= 0 {
		cfg.PriceTTL = 2 * time.Second
	}
	return &Connector{
		client:     cfg.Client,
		engine:     cfg.Engine,
		executor:   cfg.Executor,
		registry:   cfg.Registry,
		monitor:    cfg.Monitor,
		health:     cfg.Health,
		priceCache: cfg.PriceCache,
		priceTTL:   cfg.PriceTTL,
		retry:      cfg.Retry,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Address returns the wallet address.
func (c *Connector) Address() common.Address { return c.client.Address() }

// Connected reports aggregate chain connectivity as tracked by the shared
// monitor. Always true when no monitor is wired.
func (c *Connector) Connected() bool {
	if c.monitor == nil {
		return true
	}
	return c.monitor.Connected()
}

func (c *Connector) resolve(symbol string) (config.TokenInfo, error) {
	return c.registry.Resolve(symbol)
}

// observed runs fn with retry on transport failures, feeding each attempt's
// outcome to the health reporter (or, without one, straight to the monitor).
// Chain-side rejections like reverts are not endpoint failures.
func observed[T any](ctx context.Context, c *Connector, fn func(context.Context) (T, error)) (T, error) {
	return resilience.RetryWithResult(ctx, c.retry, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		switch {
		case c.health != nil:
			if err == nil {
				c.health.ReportSuccess()
			} else if resilience.IsNetworkError(err) {
				c.health.ReportFailure(err)
			}
		case c.monitor != nil:
			if err == nil {
				c.monitor.RecordSuccess()
			} else if resilience.IsNetworkError(err) {
				c.monitor.RecordFailure()
			}
		}
		return v, err
	})
}

// TokenDecimals returns the decimal count for a symbol.
func (c *Connector) TokenDecimals(ctx context.Context, symbol string) (int, error) {
	token, err := c.resolve(symbol)
	if err != nil {
		return 0, err
	}
	return observed(ctx, c, func(ctx context.Context) (int, error) {
		return c.client.Decimals(ctx, token.AddressChecksummed())
	})
}

// QuantizeAmount floors a human-unit amount to the token's on-chain
// precision. Spending a hair less than asked is safe; overspending is not.
func (c *Connector) QuantizeAmount(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error) {
	decimals, err := c.TokenDecimals(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return dex.Quantize(amount, decimals), nil
}

// GetBalance returns the wallet's balance for a symbol in human units.
func (c *Connector) GetBalance(ctx context.Context, symbol string) (decimal.Decimal, error) {
	token, err := c.resolve(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	addr := token.AddressChecksummed()
	decimals, err := c.TokenDecimals(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := observed(ctx, c, func(ctx context.Context) (*big.Int, error) {
		return c.client.BalanceOf(ctx, addr, c.client.Address())
	})
	if err != nil {
		return decimal.Zero, err
	}
	return dex.FromBaseUnits(bal, decimals), nil
}

// GetAllowance returns the base-unit allowance granted to the V3 router.
func (c *Connector) GetAllowance(ctx context.Context, symbol string) (*big.Int, error) {
	token, err := c.resolve(symbol)
	if err != nil {
		return nil, err
	}
	return observed(ctx, c, func(ctx context.Context) (*big.Int, error) {
		return c.client.Allowance(ctx, token.AddressChecksummed(), c.client.Address(), c.client.V3RouterAddress())
	})
}

// ApproveUnlimited grants the V3 router an unlimited allowance for symbol
// and returns the transaction hash.
func (c *Connector) ApproveUnlimited(ctx context.Context, symbol string) (common.Hash, error) {
	token, err := c.resolve(symbol)
	if err != nil {
		return common.Hash{}, err
	}
	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	return c.client.Approve(ctx, token.AddressChecksummed(), c.client.V3RouterAddress(), maxUint)
}

// price probes the route set with one base unit and converts the answer to
// quote per one base.
func (c *Connector) price(ctx context.Context, baseSymbol, quoteSymbol string, fast bool) (decimal.Decimal, error) {
	cacheKey := ""
	if c.priceCache != nil {
		cacheKey = fmt.Sprintf("price:%s-%s:fast=%t", baseSymbol, quoteSymbol, fast)
		if v, err := c.priceCache.Get(ctx, cacheKey); err == nil {
			if c.metrics != nil {
				c.metrics.RecordCacheHit(ctx, "price")
			}
			return v.(decimal.Decimal), nil
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(ctx, "price")
		}
	}

	base, err := c.resolve(baseSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	quote, err := c.resolve(quoteSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	baseDecimals, err := c.TokenDecimals(ctx, baseSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	quoteDecimals, err := c.TokenDecimals(ctx, quoteSymbol)
	if err != nil {
		return decimal.Zero, err
	}

	oneBase := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(baseDecimals)), nil)
	out, err := observed(ctx, c, func(ctx context.Context) (*big.Int, error) {
		if fast {
			return c.engine.FastAmountOut(ctx, base.AddressChecksummed(), quote.AddressChecksummed(), oneBase)
		}
		return c.engine.FirstAmountOut(ctx, base.AddressChecksummed(), quote.AddressChecksummed(), oneBase)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %s/%s: %w", baseSymbol, quoteSymbol, err)
	}

	px := dex.PriceFromAmounts(oneBase, baseDecimals, out, quoteDecimals)
	if px.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("price %s/%s: %w", baseSymbol, quoteSymbol, dex.ErrNoRoute)
	}
	if c.priceCache != nil {
		_ = c.priceCache.Set(ctx, cacheKey, px, c.priceTTL)
	}
	return px, nil
}

// GetPrice returns the price as quote per one base, probing routes in the
// full first-found order.
func (c *Connector) GetPrice(ctx context.Context, baseSymbol, quoteSymbol string) (decimal.Decimal, error) {
	return c.price(ctx, baseSymbol, quoteSymbol, false)
}

// GetPriceFast returns the price using the cheap route order first.
func (c *Connector) GetPriceFast(ctx context.Context, baseSymbol, quoteSymbol string) (decimal.Decimal, error) {
	return c.price(ctx, baseSymbol, quoteSymbol, true)
}

// MarketSwap spends `amount` of the spend-side token for the other side at
// the best available route and returns the transaction hash. amountIsBase
// selects the spend side: true spends base for quote, false spends quote
// for base.
func (c *Connector) MarketSwap(ctx context.Context, baseSymbol, quoteSymbol string, amount decimal.Decimal, amountIsBase bool, slippageBps int64) (common.Hash, error) {
	spendSymbol, receiveSymbol := baseSymbol, quoteSymbol
	if !amountIsBase {
		spendSymbol, receiveSymbol = quoteSymbol, baseSymbol
	}

	tokenIn, err := c.resolve(spendSymbol)
	if err != nil {
		return common.Hash{}, err
	}
	tokenOut, err := c.resolve(receiveSymbol)
	if err != nil {
		return common.Hash{}, err
	}
	inDecimals, err := c.TokenDecimals(ctx, spendSymbol)
	if err != nil {
		return common.Hash{}, err
	}

	amountIn := dex.ToBaseUnits(dex.Quantize(amount, inDecimals), inDecimals)
	if amountIn.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("swap amount %s %s rounds to zero", amount.String(), spendSymbol)
	}

	balance, err := observed(ctx, c, func(ctx context.Context) (*big.Int, error) {
		return c.client.BalanceOf(ctx, tokenIn.AddressChecksummed(), c.client.Address())
	})
	if err != nil {
		return common.Hash{}, err
	}
	if balance.Cmp(amountIn) < 0 {
		return common.Hash{}, fmt.Errorf("%s balance %s < %s: %w",
			spendSymbol, balance.String(), amountIn.String(), dex.ErrInsufficientBalance)
	}

	route, quote, err := c.engine.BestExactIn(ctx, tokenIn.AddressChecksummed(), tokenOut.AddressChecksummed(), amountIn, slippageBps)
	if err != nil {
		return common.Hash{}, fmt.Errorf("market swap %s->%s: %w", spendSymbol, receiveSymbol, err)
	}

	result, err := c.executor.Swap(ctx, route, quote, dex.ExactIn, slippageBps)
	if err != nil {
		return common.Hash{}, err
	}
	if c.logger != nil {
		c.logger.Info("market swap submitted",
			"pair", baseSymbol+"-"+quoteSymbol,
			"spend", spendSymbol,
			"amount", amount.String(),
			"tx", result.TxHash.Hex(),
			"explorer", c.ExplorerURL(result.TxHash),
		)
	}
	return result.TxHash, nil
}

// EstimateInForExactOut returns the estimated human-unit input of tokenIn
// required to receive targetOut of tokenOut, zero when no route exists.
func (c *Connector) EstimateInForExactOut(ctx context.Context, tokenInSymbol, tokenOutSymbol string, targetOut decimal.Decimal) (decimal.Decimal, error) {
	tokenIn, err := c.resolve(tokenInSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	tokenOut, err := c.resolve(tokenOutSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	inDecimals, err := c.TokenDecimals(ctx, tokenInSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	outDecimals, err := c.TokenDecimals(ctx, tokenOutSymbol)
	if err != nil {
		return decimal.Zero, err
	}

	amountOut := dex.ToBaseUnits(dex.Quantize(targetOut, outDecimals), outDecimals)
	if amountOut.Sign() <= 0 {
		return decimal.Zero, nil
	}
	_, quote, err := c.engine.BestExactOut(ctx, tokenIn.AddressChecksummed(), tokenOut.AddressChecksummed(), amountOut, 0)
	if err != nil {
		if err == dex.ErrNoRoute {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return dex.FromBaseUnits(quote.AmountIn, inDecimals), nil
}

// SwapExactOut swaps to receive exactly targetOut of tokenOut, spending at
// most the quoted input padded by slippage. Returns ErrNoRoute when no
// exact-output route exists; callers fall back to MarketSwap with an
// estimated input.
func (c *Connector) SwapExactOut(ctx context.Context, tokenInSymbol, tokenOutSymbol string, targetOut decimal.Decimal, slippageBps int64) (common.Hash, error) {
	tokenIn, err := c.resolve(tokenInSymbol)
	if err != nil {
		return common.Hash{}, err
	}
	tokenOut, err := c.resolve(tokenOutSymbol)
	if err != nil {
		return common.Hash{}, err
	}
	outDecimals, err := c.TokenDecimals(ctx, tokenOutSymbol)
	if err != nil {
		return common.Hash{}, err
	}

	amountOut := dex.ToBaseUnits(dex.Quantize(targetOut, outDecimals), outDecimals)
	if amountOut.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("target amount %s %s rounds to zero", targetOut.String(), tokenOutSymbol)
	}

	route, quote, err := c.engine.BestExactOut(ctx, tokenIn.AddressChecksummed(), tokenOut.AddressChecksummed(), amountOut, slippageBps)
	if err != nil {
		return common.Hash{}, fmt.Errorf("exact-out swap %s->%s: %w", tokenInSymbol, tokenOutSymbol, err)
	}

	result, err := c.executor.Swap(ctx, route, quote, dex.ExactOut, slippageBps)
	if err != nil {
		return common.Hash{}, err
	}
	if c.logger != nil {
		c.logger.Info("exact-out swap submitted",
			"token_in", tokenInSymbol,
			"token_out", tokenOutSymbol,
			"target_out", targetOut.String(),
			"tx", result.TxHash.Hex(),
			"explorer", c.ExplorerURL(result.TxHash),
		)
	}
	return result.TxHash, nil
}

// ExplorerURL returns the block explorer link for a transaction.
func (c *Connector) ExplorerURL(txHash common.Hash) string {
	base := "https://bscscan.com/tx/"
	if c.client.ChainID() != 56 {
		base = "https://testnet.bscscan.com/tx/"
	}
	return base + txHash.Hex()
}
