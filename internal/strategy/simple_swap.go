package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/Erfaniaa/mini-hummingbot/internal/dex"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// WalletConnector pairs a wallet name with its trading connector. Every
// strategy runs the same plan independently on each wallet.
type WalletConnector struct {
	Name string
	Conn Connector
}

// SimpleSwapConfig configures the one-shot swap strategy.
type SimpleSwapConfig struct {
	BaseSymbol  string
	QuoteSymbol string
	// Amount is denominated in base when BasisIsBase, quote otherwise.
	Amount decimal.Decimal
	// BasisIsBase says which token Amount is counted in.
	BasisIsBase bool
	// SpendIsBase selects the direction: spend base for quote (sell) when
	// true, spend quote for base (buy) when false.
	SpendIsBase bool
	SlippageBps int64
	MaxRetries  int
}

// SimpleSwap executes a single swap on every configured wallet and exits.
// When the amount is denominated in the token being received, it prefers
// an exact-output route and falls back to a price-converted market swap
// if no exact-output route exists.
type SimpleSwap struct {
	cfg     SimpleSwapConfig
	wallets []WalletConnector
	logger  *observability.Logger
	metrics *observability.Metrics

	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	results map[string]error
}

// NewSimpleSwap validates the config and builds the strategy.
func NewSimpleSwap(cfg SimpleSwapConfig, wallets []WalletConnector, logger *observability.Logger, metrics *observability.Metrics) (*SimpleSwap, error) {
	if cfg.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", cfg.Amount.String())
	}
	if len(wallets) == 0 {
		return nil, errors.New("at least one wallet is required")
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 50
	}
	return &SimpleSwap{
		cfg:     cfg,
		wallets: wallets,
		logger:  logger,
		metrics: metrics,
		doneCh:  make(chan struct{}),
		results: make(map[string]error),
	}, nil
}

// Start fans the swap out across all wallets and returns once every wallet
// has finished. Per-wallet failures are collected, not propagated between
// wallets.
func (s *SimpleSwap) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer close(s.doneCh)
	defer cancel()

	var wg conc.WaitGroup
	for _, w := range s.wallets {
		w := w
		wg.Go(func() {
			err := s.runWallet(ctx, w)
			s.mu.Lock()
			s.results[w.Name] = err
			s.mu.Unlock()
		})
	}
	wg.Wait()

	var failed int
	s.mu.Lock()
	for name, err := range s.results {
		if err != nil {
			failed++
			s.logger.LogError(ctx, "swap failed", err, "wallet", name)
		}
	}
	total := len(s.results)
	s.mu.Unlock()

	if failed > 0 {
		return fmt.Errorf("swap failed on %d of %d wallets", failed, total)
	}
	s.logger.Info("all swaps completed", "wallets", total)
	return nil
}

func (s *SimpleSwap) runWallet(ctx context.Context, w WalletConnector) error {
	om := NewOrderManager(w.Name, "simple_swap", s.cfg.MaxRetries, s.logger, s.metrics)

	spendSymbol, receiveSymbol := s.cfg.QuoteSymbol, s.cfg.BaseSymbol
	side := "buy"
	if s.cfg.SpendIsBase {
		spendSymbol, receiveSymbol = s.cfg.BaseSymbol, s.cfg.QuoteSymbol
		side = "sell"
	}

	// Receive-side amounts go through the exact-output path first; the
	// quoter pins the received amount instead of approximating it from a
	// possibly stale price.
	if IsExactOutputCase(s.cfg.BasisIsBase, s.cfg.SpendIsBase) {
		targetOut, err := w.Conn.QuantizeAmount(ctx, receiveSymbol, s.cfg.Amount)
		if err != nil {
			return err
		}
		order := om.CreateOrder(s.cfg.BaseSymbol, s.cfg.QuoteSymbol, side,
			targetOut, receiveSymbol, decimal.Zero, "one-shot exact-output swap")

		requiredIn, err := w.Conn.EstimateInForExactOut(ctx, spendSymbol, receiveSymbol, targetOut)
		if err == nil && requiredIn.Sign() > 0 {
			if check := om.Validate(ctx, w.Conn, spendSymbol, requiredIn); !check.Passed {
				om.MarkFailed(ctx, order, check.Reason)
				return errors.New(check.Reason)
			}
		}

		ok := om.SubmitWithRetry(ctx, order, func(ctx context.Context) (common.Hash, string, error) {
			tx, err := w.Conn.SwapExactOut(ctx, spendSymbol, receiveSymbol, targetOut, s.cfg.SlippageBps)
			if err != nil {
				return common.Hash{}, "", err
			}
			return tx, w.Conn.ExplorerURL(tx), nil
		})
		if ok {
			om.MarkFilled(ctx, order)
			return nil
		}
		// Fall back to a market swap only when no exact-output route
		// exists; any other failure is final.
		if !strings.Contains(order.ErrorMessage, dex.ErrNoRoute.Error()) {
			return errors.New(order.ErrorMessage)
		}

		s.logger.Warn("no exact-output route, falling back to market swap",
			"wallet", w.Name,
			"pair", s.cfg.BaseSymbol+"-"+s.cfg.QuoteSymbol,
		)
		return s.marketSwap(ctx, w, om, side, spendSymbol)
	}

	return s.marketSwap(ctx, w, om, side, spendSymbol)
}

func (s *SimpleSwap) marketSwap(ctx context.Context, w WalletConnector, om *OrderManager, side, spendSymbol string) error {
	spend := s.cfg.Amount
	if s.cfg.BasisIsBase != s.cfg.SpendIsBase {
		price, err := w.Conn.GetPrice(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol)
		if err != nil {
			return fmt.Errorf("price lookup for amount conversion: %w", err)
		}
		spend = ComputeSpendAmount(price, s.cfg.Amount, s.cfg.BasisIsBase, s.cfg.SpendIsBase)
		if spend.Sign() <= 0 {
			return fmt.Errorf("computed spend amount is zero at price %s", price.String())
		}
	}

	spend, err := w.Conn.QuantizeAmount(ctx, spendSymbol, spend)
	if err != nil {
		return err
	}
	if spend.Sign() == 0 {
		return fmt.Errorf("amount too small after quantizing to %s precision", spendSymbol)
	}

	order := om.CreateOrder(s.cfg.BaseSymbol, s.cfg.QuoteSymbol, side,
		spend, spendSymbol, decimal.Zero, "one-shot market swap")

	if check := om.Validate(ctx, w.Conn, spendSymbol, spend); !check.Passed {
		om.MarkFailed(ctx, order, check.Reason)
		return errors.New(check.Reason)
	}

	ok := om.SubmitWithRetry(ctx, order, func(ctx context.Context) (common.Hash, string, error) {
		tx, err := w.Conn.MarketSwap(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol,
			spend, s.cfg.SpendIsBase, s.cfg.SlippageBps)
		if err != nil {
			return common.Hash{}, "", err
		}
		return tx, w.Conn.ExplorerURL(tx), nil
	})
	if !ok {
		return errors.New(order.ErrorMessage)
	}
	om.MarkFilled(ctx, order)
	return nil
}

// Stop cancels any in-flight wallet runs.
func (s *SimpleSwap) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// Done is closed when Start has returned.
func (s *SimpleSwap) Done() <-chan struct{} { return s.doneCh }

// Results returns the per-wallet outcome after Start has returned.
func (s *SimpleSwap) Results() map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]error, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}
