package strategy

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// swapCall records one swap request received by the fake connector.
type swapCall struct {
	base, quote string
	amount      decimal.Decimal
	spendIsBase bool
	exactOut    bool
	targetOut   decimal.Decimal
}

// fakeConn is a scripted Connector for strategy tests. All fields are
// guarded by mu so fan-out tests stay race-free.
type fakeConn struct {
	mu sync.Mutex

	price       decimal.Decimal
	priceErr    error
	balances    map[string]decimal.Decimal
	balanceErr  error
	allowance   *big.Int
	swapErr     error
	exactOutErr error
	decimals    int32

	swaps []swapCall
}

func newFakeConn(price string) *fakeConn {
	return &fakeConn{
		price:     decimal.RequireFromString(price),
		balances:  map[string]decimal.Decimal{},
		allowance: big.NewInt(1),
		decimals:  6,
	}
}

func (f *fakeConn) setBalance(symbol, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[symbol] = decimal.RequireFromString(amount)
}

func (f *fakeConn) setPrice(price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = decimal.RequireFromString(price)
}

func (f *fakeConn) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.swaps)
}

func (f *fakeConn) calls() []swapCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]swapCall, len(f.swaps))
	copy(out, f.swaps)
	return out
}

func (f *fakeConn) GetPrice(context.Context, string, string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return f.price, nil
}

func (f *fakeConn) GetPriceFast(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	return f.GetPrice(ctx, base, quote)
}

func (f *fakeConn) GetBalance(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return decimal.Zero, f.balanceErr
	}
	bal, ok := f.balances[symbol]
	if !ok {
		// Unscripted balances are ample so balance checks pass by default.
		return decimal.RequireFromString("1000000000"), nil
	}
	return bal, nil
}

func (f *fakeConn) GetAllowance(context.Context, string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeConn) QuantizeAmount(_ context.Context, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return amount.Shift(f.decimals).Floor().Shift(-f.decimals), nil
}

func (f *fakeConn) MarketSwap(_ context.Context, base, quote string, amount decimal.Decimal, amountIsBase bool, _ int64) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.swapErr != nil {
		return common.Hash{}, f.swapErr
	}
	f.swaps = append(f.swaps, swapCall{base: base, quote: quote, amount: amount, spendIsBase: amountIsBase})
	return common.HexToHash(fmt.Sprintf("0x%064x", len(f.swaps))), nil
}

func (f *fakeConn) SwapExactOut(_ context.Context, tokenIn, tokenOut string, targetOut decimal.Decimal, _ int64) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exactOutErr != nil {
		return common.Hash{}, f.exactOutErr
	}
	f.swaps = append(f.swaps, swapCall{base: tokenIn, quote: tokenOut, exactOut: true, targetOut: targetOut})
	return common.HexToHash(fmt.Sprintf("0x%064x", len(f.swaps))), nil
}

func (f *fakeConn) EstimateInForExactOut(_ context.Context, _, _ string, targetOut decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.price.Sign() <= 0 {
		return decimal.Zero, nil
	}
	return targetOut.Mul(f.price), nil
}

func (f *fakeConn) ExplorerURL(txHash common.Hash) string {
	return "https://testnet.bscscan.com/tx/" + txHash.Hex()
}

func (f *fakeConn) Address() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000deadbeef")
}

func (f *fakeConn) Connected() bool { return true }

func (f *fakeConn) balance(symbol string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[symbol]
}

// simConn settles market swaps against its balance sheet at the scripted
// price, so end-to-end scenarios can assert final holdings instead of just
// counting calls.
type simConn struct {
	*fakeConn
}

func newSimConn(price string) *simConn {
	return &simConn{fakeConn: newFakeConn(price)}
}

func (s *simConn) MarketSwap(_ context.Context, base, quote string, amount decimal.Decimal, amountIsBase bool, _ int64) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.swapErr != nil {
		return common.Hash{}, s.swapErr
	}

	spend, receive := base, quote
	received := amount.Mul(s.price)
	if !amountIsBase {
		spend, receive = quote, base
		received = amount.Div(s.price)
	}
	s.balances[spend] = s.balances[spend].Sub(amount)
	s.balances[receive] = s.balances[receive].Add(received)

	s.swaps = append(s.swaps, swapCall{base: base, quote: quote, amount: amount, spendIsBase: amountIsBase})
	return common.HexToHash(fmt.Sprintf("0x%064x", len(s.swaps))), nil
}

func testLogger() *observability.Logger {
	return observability.NewNopLogger()
}

// instantManagers removes the retry sleeps from every order manager so
// failure-path tests finish immediately.
func instantManagers(managers map[string]*OrderManager) {
	for _, om := range managers {
		om.sleep = func(time.Duration) {}
	}
}
