package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// attemptCapFactor bounds a DCA run to NumOrders * attemptCapFactor
// execution attempts. Under a permanent failure the strategy stops and
// reports instead of retrying forever.
const attemptCapFactor = 10

// DCAConfig configures the time-sliced accumulation strategy.
type DCAConfig struct {
	BaseSymbol  string
	QuoteSymbol string
	// TotalAmount is denominated in base when BasisIsBase, quote
	// otherwise, and is split into NumOrders chunks.
	TotalAmount decimal.Decimal
	BasisIsBase bool
	// SpendIsBase selects the direction, as in SimpleSwapConfig.
	SpendIsBase  bool
	NumOrders    int
	Distribution string // "uniform" | "random_uniform"
	SlippageBps  int64
	MaxRetries   int
}

// DCA executes one chunk of the total allocation per interval. A failed
// chunk is retried on the next tick with counters untouched, so the full
// allocation is eventually traded unless the attempt cap trips first.
type DCA struct {
	cfg     DCAConfig
	wallets []WalletConnector
	logger  *observability.Logger
	metrics *observability.Metrics

	remaining       decimal.Decimal
	ordersLeft      int
	completedOrders int
	attemptedOrders int
	managers        map[string]*OrderManager

	// randFloat is replaceable in tests.
	randFloat func() float64

	loop *TickLoop
}

// NewDCA validates the configuration and builds the strategy.
func NewDCA(cfg DCAConfig, interval time.Duration, wallets []WalletConnector, logger *observability.Logger, metrics *observability.Metrics) (*DCA, error) {
	if cfg.TotalAmount.Sign() <= 0 {
		return nil, fmt.Errorf("total amount must be positive, got %s", cfg.TotalAmount.String())
	}
	if cfg.NumOrders <= 0 {
		return nil, fmt.Errorf("number of orders must be positive, got %d", cfg.NumOrders)
	}
	if len(wallets) == 0 {
		return nil, errors.New("at least one wallet is required")
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 50
	}

	managers := make(map[string]*OrderManager, len(wallets))
	for _, w := range wallets {
		managers[w.Name] = NewOrderManager(w.Name, "dca", cfg.MaxRetries, logger, metrics)
	}

	s := &DCA{
		cfg:        cfg,
		wallets:    wallets,
		logger:     logger,
		metrics:    metrics,
		remaining:  cfg.TotalAmount,
		ordersLeft: cfg.NumOrders,
		managers:   managers,
		randFloat:  rand.Float64,
	}
	s.loop = NewTickLoop("dca", interval, s.onTick, logger, metrics)
	return s, nil
}

// Start launches the tick loop.
func (s *DCA) Start(ctx context.Context) error {
	s.logger.Info("dca starting",
		"pair", s.cfg.BaseSymbol+"-"+s.cfg.QuoteSymbol,
		"total_amount", s.cfg.TotalAmount.String(),
		"num_orders", s.cfg.NumOrders,
		"distribution", s.cfg.Distribution,
		"wallets", len(s.wallets),
	)
	s.loop.Start(ctx)
	return nil
}

// pickChunk sizes the next slice of the allocation. The last order takes
// everything left; random_uniform draws from [0.5, 1.5] x the mean chunk,
// clamped to the remaining amount.
func (s *DCA) pickChunk() decimal.Decimal {
	if s.ordersLeft <= 1 {
		return s.remaining
	}
	mean := s.remaining.Div(decimal.NewFromInt(int64(s.ordersLeft)))
	chunk := mean
	if s.cfg.Distribution == "random_uniform" {
		factor := decimal.NewFromFloat(0.5 + s.randFloat())
		chunk = mean.Mul(factor)
	}
	if chunk.GreaterThan(s.remaining) {
		chunk = s.remaining
	}
	return chunk
}

func (s *DCA) onTick(ctx context.Context) error {
	if s.ordersLeft <= 0 || s.remaining.Sign() <= 0 {
		s.logger.Info("dca allocation complete",
			"completed_orders", s.completedOrders,
		)
		go s.Stop()
		return nil
	}
	if s.attemptedOrders >= s.cfg.NumOrders*attemptCapFactor {
		s.logger.Error("dca stopping after persistent failures",
			"attempted_orders", s.attemptedOrders,
			"completed_orders", s.completedOrders,
			"remaining", s.remaining.String(),
		)
		go s.Stop()
		return nil
	}

	chunk := s.pickChunk()
	if chunk.Sign() <= 0 {
		go s.Stop()
		return nil
	}

	lead := s.wallets[0].Conn
	price, err := lead.GetPriceFast(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol)
	if err != nil || price.Sign() <= 0 {
		price, err = lead.GetPrice(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol)
	}
	if err != nil || price.Sign() <= 0 {
		// No price means no trade this tick; the chunk stays in the pool.
		return nil
	}

	spend := ComputeSpendAmount(price, chunk, s.cfg.BasisIsBase, s.cfg.SpendIsBase)
	if spend.Sign() <= 0 {
		return nil
	}

	s.attemptedOrders++
	ok := s.executeChunk(ctx, spend, price)
	if ok {
		s.remaining = s.remaining.Sub(chunk)
		if s.remaining.Sign() < 0 {
			s.remaining = decimal.Zero
		}
		s.ordersLeft--
		s.completedOrders++
	}

	s.logger.Info("dca tick",
		"price", price.String(),
		"executed", ok,
		"chunk", spend.String(),
		"remaining", s.remaining.String(),
		"orders_left", s.ordersLeft,
	)
	return nil
}

// executeChunk trades one chunk on every wallet. The chunk counts as
// completed only when every wallet succeeded.
func (s *DCA) executeChunk(ctx context.Context, spend, price decimal.Decimal) bool {
	side := "buy"
	spendSymbol := s.cfg.QuoteSymbol
	if s.cfg.SpendIsBase {
		side = "sell"
		spendSymbol = s.cfg.BaseSymbol
	}

	allOK := true
	for _, w := range s.wallets {
		om := s.managers[w.Name]

		amount, err := w.Conn.QuantizeAmount(ctx, spendSymbol, spend)
		if err != nil || amount.Sign() <= 0 {
			allOK = false
			continue
		}

		order := om.CreateOrder(s.cfg.BaseSymbol, s.cfg.QuoteSymbol, side,
			amount, spendSymbol, price, fmt.Sprintf("dca chunk %d", s.attemptedOrders))

		if check := om.Validate(ctx, w.Conn, spendSymbol, amount); !check.Passed {
			om.MarkFailed(ctx, order, check.Reason)
			allOK = false
			continue
		}

		ok := om.SubmitWithRetry(ctx, order, func(ctx context.Context) (common.Hash, string, error) {
			tx, err := w.Conn.MarketSwap(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol,
				amount, s.cfg.SpendIsBase, s.cfg.SlippageBps)
			if err != nil {
				return common.Hash{}, "", err
			}
			return tx, w.Conn.ExplorerURL(tx), nil
		})
		if ok {
			om.MarkFilled(ctx, order)
		} else {
			allOK = false
		}
	}
	return allOK
}

// Stop halts the tick loop.
func (s *DCA) Stop() { s.loop.Stop() }

// Done is closed when the tick loop has exited.
func (s *DCA) Done() <-chan struct{} { return s.loop.Done() }

// Progress returns completed and attempted order counts plus the
// remaining allocation.
func (s *DCA) Progress() (completed, attempted int, remaining decimal.Decimal) {
	return s.completedOrders, s.attemptedOrders, s.remaining
}

// Summary aggregates order outcomes across all wallets.
func (s *DCA) Summary() map[string]Summary {
	out := make(map[string]Summary, len(s.managers))
	for name, om := range s.managers {
		out[name] = om.Summary()
	}
	return out
}
