package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func newTestManager(maxRetries int) (*OrderManager, *[]time.Duration) {
	om := NewOrderManager("w1", "test", maxRetries, testLogger(), nil)
	var sleeps []time.Duration
	om.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return om, &sleeps
}

func TestSubmitWithRetrySucceedsFirstTry(t *testing.T) {
	om, sleeps := newTestManager(3)
	order := om.CreateOrder("CAKE", "USDT", "sell", dec("1"), "CAKE", dec("2.5"), "test order")

	ok := om.SubmitWithRetry(context.Background(), order, func(context.Context) (common.Hash, string, error) {
		return common.HexToHash("0x01"), "https://example/tx/0x01", nil
	})
	if !ok {
		t.Fatal("submission should succeed")
	}
	if order.Status != OrderSubmitted {
		t.Errorf("status = %s, want submitted", order.Status)
	}
	if order.RetryCount != 0 || len(*sleeps) != 0 {
		t.Errorf("first-try success must not sleep or retry, got retries=%d sleeps=%v", order.RetryCount, *sleeps)
	}
}

func TestSubmitWithRetryBacksOffExponentially(t *testing.T) {
	om, sleeps := newTestManager(3)
	order := om.CreateOrder("CAKE", "USDT", "sell", dec("1"), "CAKE", dec("2.5"), "test order")

	attempts := 0
	ok := om.SubmitWithRetry(context.Background(), order, func(context.Context) (common.Hash, string, error) {
		attempts++
		if attempts < 3 {
			return common.Hash{}, "", errors.New("connection reset")
		}
		return common.HexToHash("0x02"), "", nil
	})
	if !ok {
		t.Fatal("third attempt should succeed")
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, (*sleeps)[i], want[i])
		}
	}
}

func TestSubmitWithRetryKeepsLastErrorVerbatim(t *testing.T) {
	om, _ := newTestManager(2)
	order := om.CreateOrder("CAKE", "USDT", "buy", dec("1"), "USDT", dec("2.5"), "test order")

	ok := om.SubmitWithRetry(context.Background(), order, func(context.Context) (common.Hash, string, error) {
		return common.Hash{}, "", errors.New("execution reverted: TransferHelper: TRANSFER_FROM_FAILED")
	})
	if ok {
		t.Fatal("submission should fail")
	}
	if order.Status != OrderFailed {
		t.Errorf("status = %s, want failed", order.Status)
	}
	if order.ErrorMessage != "execution reverted: TransferHelper: TRANSFER_FROM_FAILED" {
		t.Errorf("error message rewritten: %q", order.ErrorMessage)
	}
	if order.CompleteTime.IsZero() {
		t.Error("failed order must carry a completion time")
	}
}

func TestValidateReportsBalanceShortfall(t *testing.T) {
	om, _ := newTestManager(1)
	conn := newFakeConn("2.5")
	conn.setBalance("CAKE", "0.5")

	check := om.Validate(context.Background(), conn, "CAKE", dec("2"))
	if check.Passed {
		t.Fatal("validation should fail on insufficient balance")
	}
	if check.Reason == "" {
		t.Error("failure reason must name the shortfall")
	}
}

func TestValidatePassesWithFunds(t *testing.T) {
	om, _ := newTestManager(1)
	conn := newFakeConn("2.5")
	conn.setBalance("CAKE", "10")

	check := om.Validate(context.Background(), conn, "CAKE", dec("2"))
	if !check.Passed {
		t.Fatalf("validation failed: %s", check.Reason)
	}
}

func TestSummaryCountsStatuses(t *testing.T) {
	om, _ := newTestManager(1)
	ctx := context.Background()

	filled := om.CreateOrder("CAKE", "USDT", "sell", dec("1"), "CAKE", dec("2.5"), "a")
	filled.Status = OrderSubmitted
	om.MarkFilled(ctx, filled)

	failed := om.CreateOrder("CAKE", "USDT", "sell", dec("1"), "CAKE", dec("2.5"), "b")
	om.MarkFailed(ctx, failed, "no route available for swap")

	om.CreateOrder("CAKE", "USDT", "sell", dec("1"), "CAKE", dec("2.5"), "c")

	s := om.Summary()
	if s.Total != 3 || s.Filled != 1 || s.Failed != 1 || s.Pending != 1 {
		t.Errorf("summary = %+v, want total=3 filled=1 failed=1 pending=1", s)
	}
}
