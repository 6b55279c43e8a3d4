package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// BatchSwapConfig configures the price-ladder strategy.
type BatchSwapConfig struct {
	BaseSymbol  string
	QuoteSymbol string
	// TotalAmount is denominated in the spend token and split across
	// levels by the distribution weights.
	TotalAmount decimal.Decimal
	// SpendIsBase selects the ladder side: sell base above the levels when
	// true, buy base below them when false.
	SpendIsBase  bool
	MinPrice     decimal.Decimal
	MaxPrice     decimal.Decimal
	NumOrders    int
	Distribution string // "uniform" | "bell"
	SlippageBps  int64
	MaxRetries   int
}

// BatchSwap runs a one-sided ladder of simulated limit orders. Levels are
// generated once; each tick fetches the price and fires every still-open
// level whose trigger condition holds. A level is marked done after its
// first execution attempt, success or failure, so a persistently failing
// level cannot retry forever.
type BatchSwap struct {
	cfg     BatchSwapConfig
	wallets []WalletConnector
	logger  *observability.Logger
	metrics *observability.Metrics

	levels    []decimal.Decimal
	remaining []decimal.Decimal
	done      []bool
	managers  map[string]*OrderManager

	tickCount int
	loop      *TickLoop
}

// NewBatchSwap validates the ladder configuration and precomputes levels
// and per-level amounts.
func NewBatchSwap(cfg BatchSwapConfig, interval time.Duration, wallets []WalletConnector, logger *observability.Logger, metrics *observability.Metrics) (*BatchSwap, error) {
	if cfg.TotalAmount.Sign() <= 0 {
		return nil, fmt.Errorf("total amount must be positive, got %s", cfg.TotalAmount.String())
	}
	if cfg.NumOrders <= 0 {
		return nil, fmt.Errorf("number of orders must be positive, got %d", cfg.NumOrders)
	}
	if cfg.MinPrice.Sign() <= 0 || !cfg.MinPrice.LessThan(cfg.MaxPrice) {
		return nil, fmt.Errorf("price range invalid: min %s must be positive and below max %s",
			cfg.MinPrice.String(), cfg.MaxPrice.String())
	}
	if len(wallets) == 0 {
		return nil, errors.New("at least one wallet is required")
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 50
	}

	levels := GenerateLevels(cfg.MinPrice, cfg.MaxPrice, cfg.NumOrders)
	weights := DistributionWeights(cfg.NumOrders, cfg.Distribution)
	remaining := make([]decimal.Decimal, cfg.NumOrders)
	for i, w := range weights {
		remaining[i] = cfg.TotalAmount.Mul(w)
	}

	managers := make(map[string]*OrderManager, len(wallets))
	for _, w := range wallets {
		managers[w.Name] = NewOrderManager(w.Name, "batch_swap", cfg.MaxRetries, logger, metrics)
	}

	s := &BatchSwap{
		cfg:       cfg,
		wallets:   wallets,
		logger:    logger,
		metrics:   metrics,
		levels:    levels,
		remaining: remaining,
		done:      make([]bool, cfg.NumOrders),
		managers:  managers,
	}
	s.loop = NewTickLoop("batch_swap", interval, s.onTick, logger, metrics)
	return s, nil
}

// Start launches the tick loop.
func (s *BatchSwap) Start(ctx context.Context) error {
	s.logger.Info("batch swap starting",
		"pair", s.cfg.BaseSymbol+"-"+s.cfg.QuoteSymbol,
		"levels", len(s.levels),
		"min_price", s.cfg.MinPrice.String(),
		"max_price", s.cfg.MaxPrice.String(),
		"distribution", s.cfg.Distribution,
		"wallets", len(s.wallets),
	)
	s.loop.Start(ctx)
	return nil
}

func (s *BatchSwap) onTick(ctx context.Context) error {
	s.tickCount++

	lead := s.wallets[0].Conn
	price, err := lead.GetPrice(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol)
	if err != nil || price.Sign() <= 0 {
		// Price unavailability is routine during RPC trouble; keep the
		// ladder armed and log at a reduced cadence.
		if s.tickCount%5 == 0 {
			s.logger.Warn("price unavailable, ladder waiting",
				"pair", s.cfg.BaseSymbol+"-"+s.cfg.QuoteSymbol,
				"connected", lead.Connected(),
			)
		}
		return nil
	}

	for i := range s.levels {
		if s.done[i] || s.remaining[i].Sign() <= 0 {
			continue
		}
		if !s.shouldExecute(price, s.levels[i]) {
			continue
		}
		s.executeLevel(ctx, i, price)
	}

	open := 0
	for _, d := range s.done {
		if !d {
			open++
		}
	}
	s.logger.Debug("ladder tick",
		"price", price.String(),
		"levels_open", open,
	)

	if open == 0 {
		s.logger.Info("all ladder levels executed, stopping")
		go s.Stop()
	}
	return nil
}

// shouldExecute tests the trigger for one level: selling fires when the
// price rises to the level, buying when it falls to it.
func (s *BatchSwap) shouldExecute(price, level decimal.Decimal) bool {
	if s.cfg.SpendIsBase {
		return price.GreaterThanOrEqual(level)
	}
	return price.LessThanOrEqual(level)
}

// executeLevel fires one rung on every wallet. The level is marked done
// whatever the outcome; failures are reported through the order manager.
func (s *BatchSwap) executeLevel(ctx context.Context, li int, price decimal.Decimal) {
	amount := s.remaining[li]
	side := "buy"
	spendSymbol := s.cfg.QuoteSymbol
	if s.cfg.SpendIsBase {
		side = "sell"
		spendSymbol = s.cfg.BaseSymbol
	}

	s.logger.Info("ladder level triggered",
		"level_index", li,
		"level_price", s.levels[li].String(),
		"price", price.String(),
		"side", side,
		"amount", amount.String()+" "+spendSymbol,
	)

	for _, w := range s.wallets {
		om := s.managers[w.Name]
		order := om.CreateOrder(s.cfg.BaseSymbol, s.cfg.QuoteSymbol, side,
			amount, spendSymbol, price,
			fmt.Sprintf("ladder level %d at %s", li, s.levels[li].String()))

		if check := om.Validate(ctx, w.Conn, spendSymbol, amount); !check.Passed {
			om.MarkFailed(ctx, order, check.Reason)
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
		}
	}

	s.done[li] = true
	s.remaining[li] = decimal.Zero
}

// Stop halts the tick loop.
func (s *BatchSwap) Stop() { s.loop.Stop() }

// Done is closed when the tick loop has exited.
func (s *BatchSwap) Done() <-chan struct{} { return s.loop.Done() }

// Summary aggregates order outcomes across all wallets.
func (s *BatchSwap) Summary() map[string]Summary {
	out := make(map[string]Summary, len(s.managers))
	for name, om := range s.managers {
		out[name] = om.Summary()
	}
	return out
}
