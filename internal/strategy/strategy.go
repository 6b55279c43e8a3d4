// Package strategy implements the tick-driven trading strategies: one-shot
// simple swap, ladder batch swap, symmetric market making and DCA. All
// strategies speak to the chain through the Connector interface only.
package strategy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Connector is the per-wallet trading surface strategies depend on. The
// production implementation lives in internal/connector; tests substitute
// scripted fakes.
type Connector interface {
	GetPrice(ctx context.Context, baseSymbol, quoteSymbol string) (decimal.Decimal, error)
	GetPriceFast(ctx context.Context, baseSymbol, quoteSymbol string) (decimal.Decimal, error)
	GetBalance(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetAllowance(ctx context.Context, symbol string) (*big.Int, error)
	QuantizeAmount(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error)
	MarketSwap(ctx context.Context, baseSymbol, quoteSymbol string, amount decimal.Decimal, amountIsBase bool, slippageBps int64) (common.Hash, error)
	SwapExactOut(ctx context.Context, tokenInSymbol, tokenOutSymbol string, targetOut decimal.Decimal, slippageBps int64) (common.Hash, error)
	EstimateInForExactOut(ctx context.Context, tokenInSymbol, tokenOutSymbol string, targetOut decimal.Decimal) (decimal.Decimal, error)
	ExplorerURL(txHash common.Hash) string
	Address() common.Address
	Connected() bool
}

// Strategy is the lifecycle every engine implements.
type Strategy interface {
	Start(ctx context.Context) error
	Stop()
	Done() <-chan struct{}
}
