package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

const (
	// Telegram caps messages at 4096 characters; batches are truncated a
	// little below that to leave room for the truncation marker.
	telegramMessageLimit = 4000

	queueCapacity  = 256
	sendTimeout    = 10 * time.Second
	defaultBatch   = 10
	defaultFlushIn = 30 * time.Second
)

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	BotToken      string
	ChatID        string
	BatchInterval time.Duration
	MaxBatch      int
}

// TelegramNotifier batches messages and posts them to the Telegram Bot
// API from a background goroutine. A full queue drops messages silently;
// send failures are logged and the batch is discarded.
type TelegramNotifier struct {
	cfg     TelegramConfig
	client  *http.Client
	logger  *observability.Logger
	metrics *observability.Metrics

	// baseURL is overridden in tests.
	baseURL string

	queue    chan string
	flushCh  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewTelegramNotifier validates the config and starts the sender.
func NewTelegramNotifier(cfg TelegramConfig, logger *observability.Logger, metrics *observability.Metrics) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = defaultFlushIn
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultBatch
	}
	n := &TelegramNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: sendTimeout},
		logger:  logger,
		metrics: metrics,
		baseURL: "https://api.telegram.org",
		queue:   make(chan string, queueCapacity),
		flushCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go n.run()
	return n, nil
}

// Notify queues a message without blocking. Messages are dropped when the
// queue is full; trading never waits for chat delivery.
func (n *TelegramNotifier) Notify(level Level, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	formatted := fmt.Sprintf("[%s] [%s] %s",
		time.Now().Format("15:04:05"), strings.ToUpper(string(level)), message)

	select {
	case n.queue <- formatted:
	default:
		n.logger.Warn("notification queue full, message dropped")
	}
}

// Flush asks the sender to deliver the current batch now.
func (n *TelegramNotifier) Flush() {
	select {
	case n.flushCh <- struct{}{}:
	default:
	}
}

// Close flushes pending messages and stops the sender.
func (n *TelegramNotifier) Close() {
	n.stopOnce.Do(func() { close(n.stopCh) })
	select {
	case <-n.doneCh:
	case <-time.After(sendTimeout):
		n.logger.Warn("telegram sender did not stop within timeout")
	}
}

func (n *TelegramNotifier) run() {
	defer close(n.doneCh)

	ticker := time.NewTicker(n.cfg.BatchInterval)
	defer ticker.Stop()

	var batch []string
	send := func() {
		if len(batch) == 0 {
			return
		}
		n.sendBatch(batch)
		batch = nil
	}

	for {
		select {
		case msg := <-n.queue:
			batch = append(batch, msg)
			if len(batch) >= n.cfg.MaxBatch {
				send()
			}
		case <-ticker.C:
			send()
		case <-n.flushCh:
			send()
		case <-n.stopCh:
			// Drain what is already queued, then deliver once.
			for {
				select {
				case msg := <-n.queue:
					batch = append(batch, msg)
				default:
					send()
					return
				}
			}
		}
	}
}

func (n *TelegramNotifier) sendBatch(batch []string) {
	text := strings.Join(batch, "\n\n")
	if len(text) > telegramMessageLimit {
		text = text[:telegramMessageLimit] + fmt.Sprintf("\n... (+%d chars truncated)", len(text)-telegramMessageLimit)
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": n.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		n.logger.Warn("telegram payload encoding failed", "error", err.Error())
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.cfg.BotToken)
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		n.logger.Warn("telegram send failed, batch dropped",
			"messages", len(batch),
			"error", err.Error(),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("telegram send rejected, batch dropped",
			"messages", len(batch),
			"status", resp.StatusCode,
		)
	}
}
