package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// exactOutPadBps is the extra headroom added on top of the configured
// slippage when capping the input of an exact-output swap. The quoter's
// required-input answer is a point-in-time estimate; the pad absorbs pool
// drift between quote and inclusion.
const exactOutPadBps = 50

// maxUint256 is the unlimited ERC20 approval amount.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// SwapResult reports a submitted swap.
type SwapResult struct {
	TxHash common.Hash
	Route  Route
	Quote  Quote
}

// Executor turns a selected route plus quote into a signed, submitted
// transaction. It owns allowance management: a missing allowance triggers
// an unlimited approval that is mined before the swap is sent.
type Executor struct {
	client  *Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewExecutor creates a swap executor bound to one wallet client.
func NewExecutor(client *Client, logger *observability.Logger, metrics *observability.Metrics) *Executor {
	return &Executor{client: client, logger: logger, metrics: metrics}
}

// routerFor returns the contract the route executes through.
func (x *Executor) routerFor(route Route) (common.Address, error) {
	switch route.Kind {
	case RouteV2:
		if x.client.v2RouterAddr == (common.Address{}) {
			return common.Address{}, fmt.Errorf("v2 route selected but no v2 router configured")
		}
		return x.client.v2RouterAddr, nil
	case RouteV3Single, RouteV3Path:
		return x.client.v3RouterAddr, nil
	default:
		return common.Address{}, fmt.Errorf("unknown route kind %d", route.Kind)
	}
}

// EnsureAllowance checks the router allowance for tokenIn and, when it is
// below the required spend, submits an unlimited approval and waits for it
// to mine. Swapping before the approval is included would revert.
func (x *Executor) EnsureAllowance(ctx context.Context, token, spender common.Address, required *big.Int) error {
	allowance, err := x.client.Allowance(ctx, token, x.client.Address(), spender)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(required) >= 0 {
		return nil
	}
	if x.logger != nil {
		x.logger.Info("allowance below required spend, approving",
			"token", token.Hex(),
			"spender", spender.Hex(),
			"allowance", allowance.String(),
			"required", required.String(),
		)
	}
	hash, err := x.client.Approve(ctx, token, spender, maxUint256)
	if err != nil {
		return err
	}
	if err := x.waitMined(ctx, hash); err != nil {
		return fmt.Errorf("approval %s not mined: %w", hash.Hex(), err)
	}
	return nil
}

// waitMined polls for the transaction receipt until it appears or the
// context is cancelled.
func (x *Executor) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := x.client.eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction reverted")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Swap submits the swap described by route and quote. For ExactIn the quote's
// MinAmountOut bounds the received amount; for ExactOut the maximum spend is
// the quoted input padded by slippage plus a fixed headroom. The balance and
// allowance of tokenIn are verified before anything is signed.
func (x *Executor) Swap(ctx context.Context, route Route, q Quote, mode SwapMode, slippageBps int64) (SwapResult, error) {
	start := time.Now()

	spender, err := x.routerFor(route)
	if err != nil {
		return SwapResult{}, err
	}

	maxSpend := q.AmountIn
	if mode == ExactOut {
		maxSpend = amountInMax(q.AmountIn, slippageBps)
	}

	balance, err := x.client.BalanceOf(ctx, q.TokenIn, x.client.Address())
	if err != nil {
		return SwapResult{}, fmt.Errorf("read balance: %w", err)
	}
	if balance.Cmp(maxSpend) < 0 {
		return SwapResult{}, fmt.Errorf("need %s of %s, have %s: %w",
			maxSpend.String(), q.TokenIn.Hex(), balance.String(), ErrInsufficientBalance)
	}

	if err := x.EnsureAllowance(ctx, q.TokenIn, spender, maxSpend); err != nil {
		return SwapResult{}, err
	}

	calldata, err := x.packSwap(route, q, mode, maxSpend)
	if err != nil {
		return SwapResult{}, err
	}

	hash, err := x.client.sendContractTx(ctx, spender, calldata)
	if x.metrics != nil {
		x.metrics.RecordSwap(ctx, route.Kind.String(), err == nil, time.Since(start))
	}
	if err != nil {
		return SwapResult{}, fmt.Errorf("submit %s swap: %w", route.Kind, err)
	}
	if x.logger != nil {
		x.logger.Info("swap submitted",
			"kind", route.Kind.String(),
			"token_in", q.TokenIn.Hex(),
			"token_out", q.TokenOut.Hex(),
			"amount_in", q.AmountIn.String(),
			"amount_out", q.AmountOut.String(),
			"min_amount_out", q.MinAmountOut.String(),
			"tx", hash.Hex(),
		)
	}
	return SwapResult{TxHash: hash, Route: route, Quote: q}, nil
}

// packSwap builds the router calldata for the route kind and swap mode.
func (x *Executor) packSwap(route Route, q Quote, mode SwapMode, maxSpend *big.Int) ([]byte, error) {
	deadline := deadlineUnix()
	recipient := x.client.Address()

	switch route.Kind {
	case RouteV3Single:
		fee := big.NewInt(int64(route.Fees[0]))
		if mode == ExactIn {
			return parsedV3RouterABI.Pack("exactInputSingle", struct {
				TokenIn           common.Address
				TokenOut          common.Address
				Fee               *big.Int
				Recipient         common.Address
				Deadline          *big.Int
				AmountIn          *big.Int
				AmountOutMinimum  *big.Int
				SqrtPriceLimitX96 *big.Int
			}{q.TokenIn, q.TokenOut, fee, recipient, deadline, q.AmountIn, q.MinAmountOut, big.NewInt(0)})
		}
		return parsedV3RouterABI.Pack("exactOutputSingle", struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountOut         *big.Int
			AmountInMaximum   *big.Int
			SqrtPriceLimitX96 *big.Int
		}{q.TokenIn, q.TokenOut, fee, recipient, deadline, q.AmountOut, maxSpend, big.NewInt(0)})

	case RouteV3Path:
		if mode == ExactIn {
			path, err := EncodePath(route.Tokens, route.Fees)
			if err != nil {
				return nil, err
			}
			return parsedV3RouterABI.Pack("exactInput", struct {
				Path             []byte
				Recipient        common.Address
				Deadline         *big.Int
				AmountIn         *big.Int
				AmountOutMinimum *big.Int
			}{path, recipient, deadline, q.AmountIn, q.MinAmountOut})
		}
		revTokens, revFees := reversePath(route.Tokens, route.Fees)
		path, err := EncodePath(revTokens, revFees)
		if err != nil {
			return nil, err
		}
		return parsedV3RouterABI.Pack("exactOutput", struct {
			Path            []byte
			Recipient       common.Address
			Deadline        *big.Int
			AmountOut       *big.Int
			AmountInMaximum *big.Int
		}{path, recipient, deadline, q.AmountOut, maxSpend})

	case RouteV2:
		if mode == ExactIn {
			return parsedV2RouterABI.Pack("swapExactTokensForTokens",
				q.AmountIn, q.MinAmountOut, route.Tokens, recipient, deadline)
		}
		return parsedV2RouterABI.Pack("swapTokensForExactTokens",
			q.AmountOut, maxSpend, route.Tokens, recipient, deadline)

	default:
		return nil, fmt.Errorf("unknown route kind %d", route.Kind)
	}
}

// amountInMax caps an exact-output spend: requiredIn * (10000 + slippage +
// pad) / 10000, integer floor.
func amountInMax(requiredIn *big.Int, slippageBps int64) *big.Int {
	n := new(big.Int).Mul(requiredIn, big.NewInt(10000+slippageBps+exactOutPadBps))
	return n.Div(n, big.NewInt(10000))
}
