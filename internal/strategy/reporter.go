package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// WalletSnapshot captures one wallet's balances, the observed price and
// the resulting portfolio value in quote units.
type WalletSnapshot struct {
	Timestamp      time.Time
	BaseBalance    decimal.Decimal
	QuoteBalance   decimal.Decimal
	BasePrice      decimal.Decimal // quote per base; zero when unavailable
	PortfolioQuote decimal.Decimal
}

// PeriodicReporter logs balance and profit-and-loss snapshots for one
// wallet on an interval. Snapshot failures are logged and skipped; they
// never interrupt trading.
type PeriodicReporter struct {
	walletName   string
	strategyName string
	baseSymbol   string
	quoteSymbol  string
	interval     time.Duration
	logger       *observability.Logger

	initial    *WalletSnapshot
	last       *WalletSnapshot
	lastReport time.Time
	taken      int
}

// NewPeriodicReporter creates a reporter for one wallet.
func NewPeriodicReporter(walletName, strategyName, baseSymbol, quoteSymbol string, interval time.Duration, logger *observability.Logger) *PeriodicReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PeriodicReporter{
		walletName:   walletName,
		strategyName: strategyName,
		baseSymbol:   baseSymbol,
		quoteSymbol:  quoteSymbol,
		interval:     interval,
		logger:       logger,
	}
}

// TakeSnapshot reads balances and price, records the snapshot and logs a
// report when the interval has elapsed or force is set. Returns nil when
// the reads failed.
func (r *PeriodicReporter) TakeSnapshot(ctx context.Context, conn Connector, force bool) *WalletSnapshot {
	baseBal, err := conn.GetBalance(ctx, r.baseSymbol)
	if err != nil {
		r.logger.Warn("snapshot skipped",
			"wallet", r.walletName,
			"error", err.Error(),
		)
		return nil
	}
	quoteBal, err := conn.GetBalance(ctx, r.quoteSymbol)
	if err != nil {
		r.logger.Warn("snapshot skipped",
			"wallet", r.walletName,
			"error", err.Error(),
		)
		return nil
	}

	// A stale price is better than no portfolio value; fall back through
	// fast quote, full quote, then the last observed price.
	price, err := conn.GetPriceFast(ctx, r.baseSymbol, r.quoteSymbol)
	if err != nil || price.Sign() <= 0 {
		price, err = conn.GetPrice(ctx, r.baseSymbol, r.quoteSymbol)
	}
	if (err != nil || price.Sign() <= 0) && r.last != nil {
		price = r.last.BasePrice
	}
	if price.Sign() < 0 {
		price = decimal.Zero
	}

	portfolio := quoteBal
	if price.Sign() > 0 {
		portfolio = portfolio.Add(baseBal.Mul(price))
	}

	snap := &WalletSnapshot{
		Timestamp:      time.Now(),
		BaseBalance:    baseBal,
		QuoteBalance:   quoteBal,
		BasePrice:      price,
		PortfolioQuote: portfolio,
	}

	if r.initial == nil {
		r.initial = snap
		r.logger.Info("initial balances",
			"wallet", r.walletName,
			"strategy", r.strategyName,
			r.baseSymbol, baseBal.String(),
			r.quoteSymbol, quoteBal.String(),
			"portfolio_"+r.quoteSymbol, portfolio.String(),
		)
	}
	r.last = snap
	r.taken++

	if force || time.Since(r.lastReport) >= r.interval {
		r.logPeriodic(snap)
		r.lastReport = time.Now()
	}
	return snap
}

func (r *PeriodicReporter) logPeriodic(snap *WalletSnapshot) {
	if r.initial == nil {
		return
	}
	pnl := snap.PortfolioQuote.Sub(r.initial.PortfolioQuote)
	pnlPct := decimal.Zero
	if r.initial.PortfolioQuote.Sign() > 0 {
		pnlPct = pnl.Div(r.initial.PortfolioQuote).Mul(decimal.NewFromInt(100))
	}
	r.logger.Info("balance update",
		"wallet", r.walletName,
		"strategy", r.strategyName,
		r.baseSymbol, snap.BaseBalance.String(),
		r.quoteSymbol, snap.QuoteBalance.String(),
		"base_change", snap.BaseBalance.Sub(r.initial.BaseBalance).String(),
		"quote_change", snap.QuoteBalance.Sub(r.initial.QuoteBalance).String(),
		"price", snap.BasePrice.String(),
		"portfolio_"+r.quoteSymbol, snap.PortfolioQuote.String(),
		"pnl", pnl.String(),
		"pnl_pct", pnlPct.StringFixed(2),
	)
}

// FinalReport summarizes a completed run for one wallet.
type FinalReport struct {
	WalletName     string
	Duration       time.Duration
	InitialBase    decimal.Decimal
	InitialQuote   decimal.Decimal
	InitialValue   decimal.Decimal
	FinalBase      decimal.Decimal
	FinalQuote     decimal.Decimal
	FinalValue     decimal.Decimal
	PnL            decimal.Decimal
	PnLPct         decimal.Decimal
	SnapshotsTaken int
}

// FinalReport returns the run summary, or nil when fewer than one
// snapshot succeeded.
func (r *PeriodicReporter) FinalReport() *FinalReport {
	if r.initial == nil || r.last == nil {
		return nil
	}
	pnl := r.last.PortfolioQuote.Sub(r.initial.PortfolioQuote)
	pnlPct := decimal.Zero
	if r.initial.PortfolioQuote.Sign() > 0 {
		pnlPct = pnl.Div(r.initial.PortfolioQuote).Mul(decimal.NewFromInt(100))
	}
	return &FinalReport{
		WalletName:     r.walletName,
		Duration:       r.last.Timestamp.Sub(r.initial.Timestamp),
		InitialBase:    r.initial.BaseBalance,
		InitialQuote:   r.initial.QuoteBalance,
		InitialValue:   r.initial.PortfolioQuote,
		FinalBase:      r.last.BaseBalance,
		FinalQuote:     r.last.QuoteBalance,
		FinalValue:     r.last.PortfolioQuote,
		PnL:            pnl,
		PnLPct:         pnlPct,
		SnapshotsTaken: r.taken,
	}
}

// LogFinalReports writes one final-report line per reporter plus an
// aggregate across all wallets.
func LogFinalReports(logger *observability.Logger, strategyName, quoteSymbol string, reporters []*PeriodicReporter) {
	totalInitial := decimal.Zero
	totalFinal := decimal.Zero
	count := 0

	for _, r := range reporters {
		rep := r.FinalReport()
		if rep == nil {
			continue
		}
		count++
		totalInitial = totalInitial.Add(rep.InitialValue)
		totalFinal = totalFinal.Add(rep.FinalValue)
		logger.Info("final report",
			"strategy", strategyName,
			"wallet", rep.WalletName,
			"duration", rep.Duration.String(),
			"initial_value", rep.InitialValue.String(),
			"final_value", rep.FinalValue.String(),
			"pnl", rep.PnL.String(),
			"pnl_pct", rep.PnLPct.StringFixed(2),
			"snapshots", rep.SnapshotsTaken,
		)
	}
	if count == 0 {
		return
	}

	totalPnL := totalFinal.Sub(totalInitial)
	totalPct := decimal.Zero
	if totalInitial.Sign() > 0 {
		totalPct = totalPnL.Div(totalInitial).Mul(decimal.NewFromInt(100))
	}
	logger.Info("aggregate report",
		"strategy", strategyName,
		"wallets", count,
		"initial_value_"+quoteSymbol, totalInitial.String(),
		"final_value_"+quoteSymbol, totalFinal.String(),
		"pnl", totalPnL.String(),
		"pnl_pct", totalPct.StringFixed(2),
	)
}
