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

// lowerLevelFloorPct keeps the lowest buy level at this percentage of the
// mid price. Aggressive spacing (lower_percent x levels > 100) would
// otherwise produce zero or negative trigger prices.
var lowerLevelFloorPct = decimal.NewFromInt(1)

// MarketMakingConfig configures the symmetric market-making strategy.
type MarketMakingConfig struct {
	BaseSymbol  string
	QuoteSymbol string
	// UpperPercent and LowerPercent are level spacings in percent of the
	// mid price, e.g. 0.5 for half-percent steps.
	UpperPercent   decimal.Decimal
	LowerPercent   decimal.Decimal
	LevelsEachSide int
	// OrderAmount is in base for sells above the mid and in quote for
	// buys below it.
	OrderAmount  decimal.Decimal
	RefreshEvery time.Duration
	SlippageBps  int64
	MaxRetries   int
}

type levelKey struct {
	side  string
	price string
}

// MarketMaking simulates symmetric limit orders around the mid price. On
// a refresh timer the level grid is rebuilt around the latest mid and the
// executed-level set is cleared, so each level fires at most once per
// refresh cycle.
type MarketMaking struct {
	cfg     MarketMakingConfig
	wallets []WalletConnector
	logger  *observability.Logger
	metrics *observability.Metrics

	upperLevels    []decimal.Decimal
	lowerLevels    []decimal.Decimal
	executedLevels map[levelKey]struct{}
	lastRefresh    time.Time
	managers       map[string]*OrderManager

	loop *TickLoop
}

// NewMarketMaking validates the configuration and builds the strategy.
func NewMarketMaking(cfg MarketMakingConfig, tickInterval time.Duration, wallets []WalletConnector, logger *observability.Logger, metrics *observability.Metrics) (*MarketMaking, error) {
	if cfg.OrderAmount.Sign() <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %s", cfg.OrderAmount.String())
	}
	if cfg.LevelsEachSide <= 0 {
		return nil, fmt.Errorf("levels per side must be positive, got %d", cfg.LevelsEachSide)
	}
	if cfg.UpperPercent.Sign() <= 0 || cfg.LowerPercent.Sign() <= 0 {
		return nil, errors.New("level spacing percentages must be positive")
	}
	if len(wallets) == 0 {
		return nil, errors.New("at least one wallet is required")
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = time.Minute
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 50
	}

	managers := make(map[string]*OrderManager, len(wallets))
	for _, w := range wallets {
		managers[w.Name] = NewOrderManager(w.Name, "market_making", cfg.MaxRetries, logger, metrics)
	}

	s := &MarketMaking{
		cfg:            cfg,
		wallets:        wallets,
		logger:         logger,
		metrics:        metrics,
		executedLevels: make(map[levelKey]struct{}),
		managers:       managers,
	}
	s.loop = NewTickLoop("market_making", tickInterval, s.onTick, logger, metrics)
	return s, nil
}

// Start launches the tick loop.
func (s *MarketMaking) Start(ctx context.Context) error {
	s.logger.Info("market making starting",
		"pair", s.cfg.BaseSymbol+"-"+s.cfg.QuoteSymbol,
		"levels_each_side", s.cfg.LevelsEachSide,
		"upper_percent", s.cfg.UpperPercent.String(),
		"lower_percent", s.cfg.LowerPercent.String(),
		"refresh_every", s.cfg.RefreshEvery.String(),
		"wallets", len(s.wallets),
	)
	s.loop.Start(ctx)
	return nil
}

// rebuildLevels regenerates the grid around mid and clears the executed
// set. Lower levels are clamped to a positive floor.
func (s *MarketMaking) rebuildLevels(mid decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	floor := mid.Mul(lowerLevelFloorPct).Div(hundred)

	upper := make([]decimal.Decimal, 0, s.cfg.LevelsEachSide)
	lower := make([]decimal.Decimal, 0, s.cfg.LevelsEachSide)
	for i := 1; i <= s.cfg.LevelsEachSide; i++ {
		step := decimal.NewFromInt(int64(i))
		upper = append(upper, mid.Mul(decimal.NewFromInt(1).Add(s.cfg.UpperPercent.Div(hundred).Mul(step))))
		dn := mid.Mul(decimal.NewFromInt(1).Sub(s.cfg.LowerPercent.Div(hundred).Mul(step)))
		if dn.LessThan(floor) {
			dn = floor
		}
		lower = append(lower, dn)
	}
	s.upperLevels = upper
	s.lowerLevels = lower
	s.executedLevels = make(map[levelKey]struct{})
	s.lastRefresh = time.Now()

	s.logger.Info("levels rebuilt",
		"mid", mid.String(),
		"highest", upper[len(upper)-1].String(),
		"lowest", lower[len(lower)-1].String(),
	)
}

func (s *MarketMaking) onTick(ctx context.Context) error {
	lead := s.wallets[0].Conn
	mid, err := lead.GetPrice(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol)
	if err != nil || mid.Sign() <= 0 {
		return nil
	}

	if len(s.upperLevels) == 0 || time.Since(s.lastRefresh) >= s.cfg.RefreshEvery {
		s.rebuildLevels(mid)
	}

	for _, lvl := range s.upperLevels {
		key := levelKey{side: "sell", price: lvl.String()}
		if _, done := s.executedLevels[key]; done {
			continue
		}
		if mid.GreaterThanOrEqual(lvl) {
			s.executedLevels[key] = struct{}{}
			s.executeLevel(ctx, "sell", lvl, mid)
		}
	}
	for _, lvl := range s.lowerLevels {
		key := levelKey{side: "buy", price: lvl.String()}
		if _, done := s.executedLevels[key]; done {
			continue
		}
		if mid.LessThanOrEqual(lvl) {
			s.executedLevels[key] = struct{}{}
			s.executeLevel(ctx, "buy", lvl, mid)
		}
	}
	return nil
}

// executeLevel fires one crossed level on every wallet. Sells spend base,
// buys spend quote. The level stays in the executed set whatever the
// outcome; a failed level is retried only after the next refresh.
func (s *MarketMaking) executeLevel(ctx context.Context, side string, level, price decimal.Decimal) {
	spendIsBase := side == "sell"
	spendSymbol := s.cfg.QuoteSymbol
	if spendIsBase {
		spendSymbol = s.cfg.BaseSymbol
	}

	s.logger.Info("price crossed level",
		"side", side,
		"level", level.String(),
		"price", price.String(),
		"amount", s.cfg.OrderAmount.String()+" "+spendSymbol,
	)

	for _, w := range s.wallets {
		om := s.managers[w.Name]
		order := om.CreateOrder(s.cfg.BaseSymbol, s.cfg.QuoteSymbol, side,
			s.cfg.OrderAmount, spendSymbol, price,
			fmt.Sprintf("%s level %s crossed", side, level.String()))

		if check := om.Validate(ctx, w.Conn, spendSymbol, s.cfg.OrderAmount); !check.Passed {
			om.MarkFailed(ctx, order, check.Reason)
			continue
		}

		ok := om.SubmitWithRetry(ctx, order, func(ctx context.Context) (common.Hash, string, error) {
			tx, err := w.Conn.MarketSwap(ctx, s.cfg.BaseSymbol, s.cfg.QuoteSymbol,
				s.cfg.OrderAmount, spendIsBase, s.cfg.SlippageBps)
			if err != nil {
				return common.Hash{}, "", err
			}
			return tx, w.Conn.ExplorerURL(tx), nil
		})
		if ok {
			om.MarkFilled(ctx, order)
		}
	}
}

// Stop halts the tick loop.
func (s *MarketMaking) Stop() { s.loop.Stop() }

// Done is closed when the tick loop has exited.
func (s *MarketMaking) Done() <-chan struct{} { return s.loop.Done() }

// Summary aggregates order outcomes across all wallets.
func (s *MarketMaking) Summary() map[string]Summary {
	out := make(map[string]Summary, len(s.managers))
	for name, om := range s.managers {
		out[name] = om.Summary()
	}
	return out
}
