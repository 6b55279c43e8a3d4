package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Erfaniaa/mini-hummingbot/internal/chainpool"
	"github.com/Erfaniaa/mini-hummingbot/internal/connector"
	"github.com/Erfaniaa/mini-hummingbot/internal/dex"
	"github.com/Erfaniaa/mini-hummingbot/internal/keystore"
	"github.com/Erfaniaa/mini-hummingbot/internal/notification"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/cache"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/config"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/resilience"
	"github.com/Erfaniaa/mini-hummingbot/internal/strategy"
)

// passwordEnv names the environment variable holding the keystore
// passphrase; the trader runs unattended, so there is no prompt.
const passwordEnv = "KEYSTORE_PASSWORD"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	log.Println("Loading configuration...")
	cfg := config.MustLoad(*configPath)

	// Setup observability (foundational - must be first)
	logger := observability.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	metrics, err := observability.NewMetrics("dex-trader", cfg.Observability.Metrics.Enabled)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	logger.Info("observability setup complete")

	// Token registry and chain contract addresses
	registry, err := config.NewTokenRegistry(cfg.Chain.Network)
	if err != nil {
		logger.LogError(ctx, "failed to load token registry", err)
		log.Fatalf("Failed to load token registry: %v", err)
	}
	addrs, err := cfg.Chain.Addresses()
	if err != nil {
		logger.LogError(ctx, "failed to resolve contract addresses", err)
		log.Fatalf("Failed to resolve contract addresses: %v", err)
	}

	// RPC endpoint pool
	logger.Info("connecting to chain...", "network", cfg.Chain.Network, "chain_id", cfg.Chain.ChainID)
	endpoints := make([]chainpool.EndpointConfig, len(cfg.Chain.RPCEndpoints))
	for i, ep := range cfg.Chain.RPCEndpoints {
		endpoints[i] = chainpool.EndpointConfig{URL: ep.URL, Weight: ep.Weight}
	}
	pool, err := chainpool.New(chainpool.PoolConfig{
		Endpoints:         endpoints,
		Logger:            logger,
		Metrics:           metrics,
		RequestsPerSecond: cfg.Chain.RPCRequestsPerSecond,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create RPC pool", err)
		log.Fatalf("Failed to create RPC pool: %v", err)
	}
	defer pool.Close()

	if cfg.Observability.Metrics.Enabled {
		go startHTTPServer(cfg.Observability.Metrics.Port, pool, metrics, logger)
	}

	// Keystore
	password := os.Getenv(passwordEnv)
	if password == "" {
		log.Fatalf("%s must be set to decrypt wallet keys", passwordEnv)
	}
	store, err := keystore.Open(cfg.Keystore.Path)
	if err != nil {
		logger.LogError(ctx, "failed to open keystore", err)
		log.Fatalf("Failed to open keystore: %v", err)
	}

	// Shared short-lived price cache across wallets
	priceCache := cache.NewMemoryCache(cfg.Cache.MaxSize)
	defer priceCache.Close()

	// Hop tokens for multi-hop routing: wrapped native plus a stable when
	// the registry knows one.
	intermediaries := []common.Address{addrs.WrappedNative}
	if usdc, err := registry.Resolve("USDC"); err == nil {
		intermediaries = append(intermediaries, usdc.AddressChecksummed())
	}

	gasPremium := int64(0)
	if cfg.Chain.MEVProtection {
		gasPremium = cfg.Chain.GasPremiumPct
	}

	// One connector per wallet
	logger.Info("preparing wallets...", "count", len(cfg.Strategy.Wallets))
	wallets := make([]strategy.WalletConnector, 0, len(cfg.Strategy.Wallets))
	for _, name := range cfg.Strategy.Wallets {
		key, err := store.GetPrivateKey(name, password)
		if err != nil {
			logger.LogError(ctx, "failed to decrypt wallet key", err, "wallet", name)
			log.Fatalf("Failed to decrypt wallet %q: %v", name, err)
		}

		bound, err := pool.Bind(ctx)
		if err != nil {
			log.Fatalf("Failed to get chain client: %v", err)
		}

		client, err := dex.NewClient(dex.ClientConfig{
			Eth:             bound.Client,
			ChainID:         cfg.Chain.ChainID,
			PrivateKey:      key,
			QuoterAddress:   addrs.V3QuoterV2,
			V2RouterAddress: addrs.V2Router,
			V3RouterAddress: addrs.V3SwapRouter,
			GasPremiumPct:   gasPremium,
			Logger:          logger,
			Metrics:         metrics,
		})
		if err != nil {
			log.Fatalf("Failed to create chain client for %q: %v", name, err)
		}

		engine := dex.NewEngine(dex.EngineConfig{
			Backend:        client,
			DefaultFee:     cfg.Chain.DefaultFeeTier,
			Intermediaries: intermediaries,
			Logger:         logger,
			Metrics:        metrics,
		})
		executor := dex.NewExecutor(client, logger, metrics)

		conn, err := connector.New(connector.Config{
			Client:     client,
			Engine:     engine,
			Executor:   executor,
			Registry:   registry,
			Monitor:    pool.Monitor(),
			Health:     bound,
			PriceCache: priceCache,
			PriceTTL:   cfg.Cache.PriceTTL,
			Retry:      resilience.DefaultRetryConfig(),
			Logger:     logger,
			Metrics:    metrics,
		})
		if err != nil {
			log.Fatalf("Failed to create connector for %q: %v", name, err)
		}

		logger.Info("wallet ready", "wallet", name, "address", conn.Address().Hex())
		wallets = append(wallets, strategy.WalletConnector{Name: name, Conn: conn})
	}

	// Notification sink
	var notifier notification.Notifier
	if cfg.Notifications.Telegram.Enabled {
		notifier, err = notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken:      cfg.Notifications.Telegram.BotToken,
			ChatID:        cfg.Notifications.Telegram.ChatID,
			BatchInterval: cfg.Notifications.Telegram.BatchInterval,
			MaxBatch:      cfg.Notifications.Telegram.MaxBatch,
		}, logger, metrics)
		if err != nil {
			log.Fatalf("Failed to create Telegram notifier: %v", err)
		}
	} else {
		notifier = notification.NewNoopNotifier(logger)
	}
	defer notifier.Close()

	// Build the configured strategy
	strat, err := buildStrategy(cfg, wallets, logger, metrics)
	if err != nil {
		logger.LogError(ctx, "failed to build strategy", err)
		log.Fatalf("Failed to build strategy: %v", err)
	}

	// Periodic balance / P&L reporting
	var reporters []*strategy.PeriodicReporter
	if cfg.Reporting.Enabled {
		for _, w := range wallets {
			reporters = append(reporters, strategy.NewPeriodicReporter(
				w.Name, cfg.Strategy.Kind,
				cfg.Strategy.BaseSymbol, cfg.Strategy.QuoteSymbol,
				cfg.Reporting.Interval, logger,
			))
		}
		go runReporting(ctx, reporters, wallets, cfg.Reporting.Interval)
	}

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("starting strategy",
		"kind", cfg.Strategy.Kind,
		"pair", cfg.Strategy.BaseSymbol+"-"+cfg.Strategy.QuoteSymbol,
		"wallets", len(wallets),
	)
	notifier.Notify(notification.LevelInfo,
		fmt.Sprintf("%s starting on %s-%s with %d wallet(s)",
			cfg.Strategy.Kind, cfg.Strategy.BaseSymbol, cfg.Strategy.QuoteSymbol, len(wallets)))

	errCh := make(chan error, 1)
	go func() { errCh <- strat.Start(ctx) }()

	select {
	case <-sigCh:
		logger.Info("shutdown signal received, stopping strategy...")
		strat.Stop()
		<-strat.Done()
	case err := <-errCh:
		if err != nil {
			logger.LogError(ctx, "strategy finished with error", err)
			notifier.Notify(notification.LevelCritical, "strategy error: "+err.Error())
		} else {
			logger.Info("strategy finished")
			notifier.Notify(notification.LevelSuccess, cfg.Strategy.Kind+" completed")
		}
		<-strat.Done()
	}

	cancel()
	if len(reporters) > 0 {
		strategy.LogFinalReports(logger, cfg.Strategy.Kind, cfg.Strategy.QuoteSymbol, reporters)
	}
	notifier.Flush()
	logger.Info("trader stopped")
}

// buildStrategy constructs the strategy named in the config.
func buildStrategy(cfg *config.Config, wallets []strategy.WalletConnector, logger *observability.Logger, metrics *observability.Metrics) (strategy.Strategy, error) {
	sc := cfg.Strategy
	basisIsBase := sc.AmountIsBase
	if sc.BasisIsBase != nil {
		basisIsBase = *sc.BasisIsBase
	}
	spendIsBase := sc.AmountIsBase
	if sc.SpendIsBase != nil {
		spendIsBase = *sc.SpendIsBase
	}

	switch sc.Kind {
	case "simple_swap":
		return strategy.NewSimpleSwap(strategy.SimpleSwapConfig{
			BaseSymbol:  sc.BaseSymbol,
			QuoteSymbol: sc.QuoteSymbol,
			Amount:      decimal.NewFromFloat(sc.Amount),
			BasisIsBase: basisIsBase,
			SpendIsBase: spendIsBase,
			SlippageBps: sc.SlippageBps,
			MaxRetries:  sc.MaxOrderRetries,
		}, wallets, logger, metrics)

	case "batch_swap":
		return strategy.NewBatchSwap(strategy.BatchSwapConfig{
			BaseSymbol:   sc.BaseSymbol,
			QuoteSymbol:  sc.QuoteSymbol,
			TotalAmount:  decimal.NewFromFloat(sc.TotalAmount),
			SpendIsBase:  spendIsBase,
			MinPrice:     decimal.NewFromFloat(sc.MinPrice),
			MaxPrice:     decimal.NewFromFloat(sc.MaxPrice),
			NumOrders:    sc.NumOrders,
			Distribution: sc.Distribution,
			SlippageBps:  sc.SlippageBps,
			MaxRetries:   sc.MaxOrderRetries,
		}, sc.TickInterval, wallets, logger, metrics)

	case "market_making":
		return strategy.NewMarketMaking(strategy.MarketMakingConfig{
			BaseSymbol:     sc.BaseSymbol,
			QuoteSymbol:    sc.QuoteSymbol,
			UpperPercent:   decimal.NewFromFloat(sc.UpperPercent),
			LowerPercent:   decimal.NewFromFloat(sc.LowerPercent),
			LevelsEachSide: sc.LevelsEachSide,
			OrderAmount:    decimal.NewFromFloat(sc.OrderAmount),
			RefreshEvery:   sc.RefreshEvery,
			SlippageBps:    sc.SlippageBps,
			MaxRetries:     sc.MaxOrderRetries,
		}, sc.TickInterval, wallets, logger, metrics)

	case "dca":
		return strategy.NewDCA(strategy.DCAConfig{
			BaseSymbol:   sc.BaseSymbol,
			QuoteSymbol:  sc.QuoteSymbol,
			TotalAmount:  decimal.NewFromFloat(sc.TotalAmount),
			BasisIsBase:  basisIsBase,
			SpendIsBase:  spendIsBase,
			NumOrders:    sc.NumOrders,
			Distribution: sc.Distribution,
			SlippageBps:  sc.SlippageBps,
			MaxRetries:   sc.MaxOrderRetries,
		}, sc.OrderInterval, wallets, logger, metrics)
	}
	return nil, fmt.Errorf("unknown strategy kind: %q", sc.Kind)
}

// runReporting drives the per-wallet reporters until the context ends.
func runReporting(ctx context.Context, reporters []*strategy.PeriodicReporter, wallets []strategy.WalletConnector, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i, r := range reporters {
		r.TakeSnapshot(ctx, wallets[i].Conn, true)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, r := range reporters {
				r.TakeSnapshot(ctx, wallets[i].Conn, false)
			}
		}
	}
}

// startHTTPServer serves health checks and Prometheus metrics.
func startHTTPServer(port int, pool *chainpool.Pool, metrics *observability.Metrics, logger *observability.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthy := pool.HealthyCount()
		status := "healthy"
		code := http.StatusOK
		if healthy == 0 {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":            status,
			"healthy_endpoints": healthy,
			"endpoints":         pool.Status(),
		})
	})

	mux.Handle("/metrics", metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("HTTP server listening", "address", addr)

	server := &http.Server{Addr: addr, Handler: mux}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.LogError(context.Background(), "HTTP server error", err)
	}
}
