package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Erfaniaa/mini-hummingbot/internal/dex"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// OrderStatus is the lifecycle state of an order. Transitions are forward
// only: Pending -> Submitted -> Filled, or Pending/Submitted -> Failed.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderSubmitted OrderStatus = "submitted"
	OrderFilled    OrderStatus = "filled"
	OrderFailed    OrderStatus = "failed"
)

// OrderInfo tracks one simulated order through submission.
type OrderInfo struct {
	ID           string
	WalletName   string
	StrategyName string
	BaseSymbol   string
	QuoteSymbol  string
	Side         string // "sell" or "buy"
	Amount       decimal.Decimal
	AmountSymbol string
	Price        decimal.Decimal // observed price at decision time
	Reason       string
	TxHash       common.Hash
	ExplorerURL  string
	Status       OrderStatus
	SubmitTime   time.Time
	CompleteTime time.Time
	RetryCount   int
	ErrorMessage string
}

// PreOrderCheck is the result of pre-submission validation. Reason says
// which check failed, in terms the operator can act on.
type PreOrderCheck struct {
	Passed bool
	Reason string
}

// OrderManager owns order records for one wallet within one strategy.
// It retries submissions with exponential backoff and records terminal
// outcomes.
type OrderManager struct {
	walletName   string
	strategyName string
	maxRetries   int
	startTime    time.Time

	logger  *observability.Logger
	metrics *observability.Metrics

	// sleep is replaceable in tests.
	sleep func(time.Duration)

	mu     sync.Mutex
	orders map[string]*OrderInfo
}

// NewOrderManager creates an order manager for one wallet.
func NewOrderManager(walletName, strategyName string, maxRetries int, logger *observability.Logger, metrics *observability.Metrics) *OrderManager {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OrderManager{
		walletName:   walletName,
		strategyName: strategyName,
		maxRetries:   maxRetries,
		startTime:    time.Now(),
		logger:       logger,
		metrics:      metrics,
		sleep:        time.Sleep,
		orders:       make(map[string]*OrderInfo),
	}
}

// CreateOrder registers a new pending order.
func (m *OrderManager) CreateOrder(baseSymbol, quoteSymbol, side string, amount decimal.Decimal, amountSymbol string, price decimal.Decimal, reason string) *OrderInfo {
	order := &OrderInfo{
		ID:           uuid.NewString(),
		WalletName:   m.walletName,
		StrategyName: m.strategyName,
		BaseSymbol:   baseSymbol,
		QuoteSymbol:  quoteSymbol,
		Side:         side,
		Amount:       amount,
		AmountSymbol: amountSymbol,
		Price:        price,
		Reason:       reason,
		Status:       OrderPending,
	}
	m.mu.Lock()
	m.orders[order.ID] = order
	m.mu.Unlock()
	return order
}

// Validate checks balance and allowance before submission, so a doomed
// order fails with a reason instead of a revert.
func (m *OrderManager) Validate(ctx context.Context, conn Connector, spendSymbol string, spendAmount decimal.Decimal) PreOrderCheck {
	balance, err := conn.GetBalance(ctx, spendSymbol)
	if err != nil {
		return PreOrderCheck{Passed: false, Reason: fmt.Sprintf("validation error: %v", err)}
	}
	if balance.LessThan(spendAmount) {
		return PreOrderCheck{
			Passed: false,
			Reason: fmt.Sprintf("insufficient %s balance: have %s, need %s",
				spendSymbol, balance.String(), spendAmount.String()),
		}
	}

	// Allowance shortfall is reported, not fatal: the executor approves
	// on demand during the swap.
	allowance, err := conn.GetAllowance(ctx, spendSymbol)
	if err != nil {
		return PreOrderCheck{Passed: false, Reason: fmt.Sprintf("validation error: %v", err)}
	}
	if allowance.Sign() == 0 {
		m.logger.Debug("spend token has no allowance yet, approval will be submitted with the swap",
			"wallet", m.walletName,
			"symbol", spendSymbol,
		)
	}
	return PreOrderCheck{Passed: true, Reason: "all checks passed"}
}

// SubmitWithRetry runs submitFn up to maxRetries times with 2^attempt
// second backoff, recording the outcome on the order. Returns true on
// successful submission.
func (m *OrderManager) SubmitWithRetry(ctx context.Context, order *OrderInfo, submitFn func(ctx context.Context) (common.Hash, string, error)) bool {
	order.SubmitTime = time.Now()

	for attempt := 0; attempt < m.maxRetries; attempt++ {
		order.RetryCount = attempt

		m.logger.Info("submitting order",
			"wallet", m.walletName,
			"strategy", m.strategyName,
			"order_id", order.ID,
			"attempt", attempt+1,
			"max_attempts", m.maxRetries,
			"side", order.Side,
			"pair", order.BaseSymbol+"-"+order.QuoteSymbol,
			"amount", order.Amount.String()+" "+order.AmountSymbol,
			"reason", order.Reason,
		)

		txHash, explorerURL, err := submitFn(ctx)
		if err == nil {
			order.TxHash = txHash
			order.ExplorerURL = explorerURL
			order.Status = OrderSubmitted
			m.logger.Info("order submitted",
				"wallet", m.walletName,
				"order_id", order.ID,
				"tx", explorerURL,
			)
			return true
		}

		// The last error is kept verbatim; truncating chain errors hides
		// the revert reason.
		order.ErrorMessage = err.Error()

		if attempt < m.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			m.logger.Warn("order submission failed, retrying",
				"wallet", m.walletName,
				"order_id", order.ID,
				"attempt", attempt+1,
				"backoff", backoff.String(),
				"error", err.Error(),
			)
			if m.metrics != nil {
				m.metrics.RecordOrderRetry(ctx, m.strategyName)
			}
			m.sleep(backoff)
			continue
		}

		m.failLocked(ctx, order, err.Error())
	}
	return false
}

// MarkFilled transitions a submitted order to filled.
func (m *OrderManager) MarkFilled(ctx context.Context, order *OrderInfo) {
	order.Status = OrderFilled
	order.CompleteTime = time.Now()
	if m.metrics != nil {
		m.metrics.RecordOrder(ctx, m.strategyName, string(OrderFilled))
	}
	m.logger.Info("order filled",
		"wallet", m.walletName,
		"order_id", order.ID,
		"execution_time", order.CompleteTime.Sub(order.SubmitTime).String(),
	)
}

// MarkFailed transitions an order to failed with a reason.
func (m *OrderManager) MarkFailed(ctx context.Context, order *OrderInfo, reason string) {
	m.failLocked(ctx, order, reason)
}

func (m *OrderManager) failLocked(ctx context.Context, order *OrderInfo, reason string) {
	order.Status = OrderFailed
	order.CompleteTime = time.Now()
	order.ErrorMessage = reason
	if m.metrics != nil {
		m.metrics.RecordOrder(ctx, m.strategyName, string(OrderFailed))
		if reason != "" && !dex.IsUserError(reason) {
			m.metrics.RecordError(ctx, "order_failed")
		}
	}
	m.logger.Error("order failed",
		"wallet", m.walletName,
		"strategy", m.strategyName,
		"order_id", order.ID,
		"reason", reason,
	)
}

// Summary holds aggregate order counts.
type Summary struct {
	Total     int
	Pending   int
	Submitted int
	Filled    int
	Failed    int
}

// Summary returns aggregate counts across all tracked orders.
func (m *OrderManager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Summary
	for _, o := range m.orders {
		s.Total++
		switch o.Status {
		case OrderPending:
			s.Pending++
		case OrderSubmitted:
			s.Submitted++
		case OrderFilled:
			s.Filled++
		case OrderFailed:
			s.Failed++
		}
	}
	return s
}
