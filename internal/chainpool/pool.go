// Package chainpool manages the set of RPC endpoints the trader talks to:
// round-robin selection over healthy endpoints, per-endpoint circuit
// breakers, background health probing and a pool-wide request limiter.
package chainpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
	"github.com/Erfaniaa/mini-hummingbot/internal/platform/resilience"
)

// Endpoint is a single RPC endpoint with its health state.
type Endpoint struct {
	URL     string
	Weight  int
	Client  *ethclient.Client
	breaker *resilience.CircuitBreaker
	healthy atomic.Bool
}

// Pool manages multiple RPC endpoints with health tracking and failover.
type Pool struct {
	endpoints      []*Endpoint
	current        int
	mu             sync.RWMutex
	logger         *observability.Logger
	metrics        *observability.Metrics
	monitor        *resilience.ConnectionMonitor
	limiter        *resilience.RateLimiter
	healthCheckTTL time.Duration
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// EndpointConfig represents endpoint configuration.
type EndpointConfig struct {
	URL    string
	Weight int
}

// PoolConfig holds endpoint pool configuration.
type PoolConfig struct {
	Endpoints      []EndpointConfig
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	HealthCheckTTL time.Duration

	// RequestsPerSecond bounds total RPC dispatch rate across endpoints.
	// Zero disables the limiter.
	RequestsPerSecond float64
}

// New creates an RPC endpoint pool. Endpoints that fail to dial are kept
// in the pool unhealthy and retried by the background health checks; at
// least one endpoint must be reachable at startup.
func New(cfg PoolConfig) (*Pool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if cfg.HealthCheckTTL == 0 {
		cfg.HealthCheckTTL = 30 * time.Second
	}

	pool := &Pool{
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		healthCheckTTL: cfg.HealthCheckTTL,
		stopCh:         make(chan struct{}),
	}
	pool.monitor = resilience.NewConnectionMonitor(3, func(connected bool) {
		if cfg.Metrics != nil {
			cfg.Metrics.SetConnected(context.Background(), connected)
		}
		if connected {
			cfg.Logger.Info("chain connectivity restored")
		} else {
			cfg.Logger.Warn("chain connectivity lost")
		}
	})
	if cfg.RequestsPerSecond > 0 {
		pool.limiter = resilience.NewRateLimiter(cfg.RequestsPerSecond, int(cfg.RequestsPerSecond))
	}

	for _, epCfg := range cfg.Endpoints {
		ep := &Endpoint{
			URL:    epCfg.URL,
			Weight: epCfg.Weight,
			breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:             epCfg.URL,
				FailureThreshold: 5,
				SuccessThreshold: 1,
				Timeout:          30 * time.Second,
			}),
		}
		client, err := ethclient.Dial(epCfg.URL)
		if err != nil {
			cfg.Logger.LogError(context.Background(), "failed to connect to RPC endpoint", err,
				"url", epCfg.URL,
			)
			ep.healthy.Store(false)
		} else {
			ep.Client = client
			ep.healthy.Store(true)
			cfg.Logger.Info("connected to RPC endpoint",
				"url", epCfg.URL,
				"weight", epCfg.Weight,
			)
		}
		pool.endpoints = append(pool.endpoints, ep)
	}

	if pool.HealthyCount() == 0 {
		return nil, fmt.Errorf("no healthy RPC endpoints available")
	}

	go pool.runHealthChecks()

	return pool, nil
}

// pick returns the next healthy endpoint using round-robin selection,
// honoring the pool-wide request limiter and skipping open breakers.
func (p *Pool) pick(ctx context.Context) (*Endpoint, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for attempts := 0; attempts < len(p.endpoints); attempts++ {
		ep := p.endpoints[p.current]
		p.current = (p.current + 1) % len(p.endpoints)

		if ep.healthy.Load() && ep.Client != nil && ep.breaker.State() != resilience.StateOpen {
			return ep, nil
		}
	}

	return nil, fmt.Errorf("no healthy RPC endpoints available")
}

// GetClient returns the next healthy client.
func (p *Pool) GetClient(ctx context.Context) (*ethclient.Client, error) {
	ep, err := p.pick(ctx)
	if err != nil {
		return nil, err
	}
	return ep.Client, nil
}

// BoundClient couples a client with the endpoint it came from so callers
// can feed call outcomes back to that endpoint's breaker and the shared
// monitor.
type BoundClient struct {
	Client *ethclient.Client
	URL    string

	pool *Pool
}

// ReportSuccess records a successful call against the bound endpoint.
func (b *BoundClient) ReportSuccess() { b.pool.ReportSuccess(b.URL) }

// ReportFailure records a failed call against the bound endpoint.
func (b *BoundClient) ReportFailure(err error) { b.pool.ReportFailure(b.URL, err) }

// Bind selects the next healthy endpoint and returns its client bound to
// the endpoint, so every call outcome can be reported back.
func (p *Pool) Bind(ctx context.Context) (*BoundClient, error) {
	ep, err := p.pick(ctx)
	if err != nil {
		return nil, err
	}
	return &BoundClient{Client: ep.Client, URL: ep.URL, pool: p}, nil
}

// ReportSuccess records a successful call against an endpoint. Callers
// feed results back so the breaker and the aggregate monitor track real
// traffic, not just health probes.
func (p *Pool) ReportSuccess(url string) {
	p.monitor.RecordSuccess()
	if ep := p.find(url); ep != nil {
		_ = ep.breaker.Execute(context.Background(), func(context.Context) error { return nil })
	}
}

// ReportFailure records a failed call against an endpoint.
func (p *Pool) ReportFailure(url string, err error) {
	p.monitor.RecordFailure()
	if ep := p.find(url); ep != nil {
		_ = ep.breaker.Execute(context.Background(), func(context.Context) error { return err })
	}
}

// Connected reports aggregate connectivity as seen by the monitor.
func (p *Pool) Connected() bool {
	return p.monitor.Connected()
}

// Monitor exposes the shared connection monitor.
func (p *Pool) Monitor() *resilience.ConnectionMonitor {
	return p.monitor
}

func (p *Pool) find(url string) *Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ep := range p.endpoints {
		if ep.URL == url {
			return ep
		}
	}
	return nil
}

// runHealthChecks probes all endpoints on an interval until Close.
func (p *Pool) runHealthChecks() {
	ticker := time.NewTicker(p.healthCheckTTL)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkAll()
		}
	}
}

func (p *Pool) checkAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p.mu.RLock()
	endpoints := p.endpoints
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, ep := range endpoints {
		wg.Add(1)
		go func(ep *Endpoint) {
			defer wg.Done()
			p.checkEndpoint(ctx, ep)
		}(ep)
	}
	wg.Wait()
}

// checkEndpoint probes one endpoint with a block-number fetch, redialing
// dropped connections.
func (p *Pool) checkEndpoint(ctx context.Context, ep *Endpoint) {
	if ep.Client == nil {
		client, err := ethclient.Dial(ep.URL)
		if err != nil {
			ep.healthy.Store(false)
			if p.metrics != nil {
				p.metrics.RecordRPCEndpointHealth(ctx, ep.URL, false)
			}
			return
		}
		ep.Client = client
		p.logger.Info("reconnected to RPC endpoint", "url", ep.URL)
	}

	_, err := ep.Client.BlockNumber(ctx)
	if err != nil {
		// Probe timeouts do not prove the endpoint is down; keep the
		// client and let the next probe decide.
		if ctx.Err() != nil {
			p.logger.Debug("RPC health check timed out, keeping client alive",
				"url", ep.URL,
				"error", err.Error(),
			)
			return
		}

		wasHealthy := ep.healthy.Swap(false)
		if wasHealthy {
			p.logger.LogError(ctx, "RPC endpoint health check failed", err,
				"url", ep.URL,
			)
		}
		if p.metrics != nil {
			p.metrics.RecordRPCEndpointHealth(ctx, ep.URL, false)
		}
		ep.Client.Close()
		ep.Client = nil
		return
	}

	wasUnhealthy := !ep.healthy.Swap(true)
	if wasUnhealthy {
		p.logger.Info("RPC endpoint is now healthy", "url", ep.URL)
	}
	if p.metrics != nil {
		p.metrics.RecordRPCEndpointHealth(ctx, ep.URL, true)
	}
}

// HealthyCount returns the number of healthy endpoints.
func (p *Pool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, ep := range p.endpoints {
		if ep.healthy.Load() {
			count++
		}
	}
	return count
}

// Status returns the health of every endpoint by URL.
func (p *Pool) Status() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := make(map[string]bool, len(p.endpoints))
	for _, ep := range p.endpoints {
		status[ep.URL] = ep.healthy.Load()
	}
	return status
}

// Close stops health checks and closes all client connections.
func (p *Pool) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.Client != nil {
			ep.Client.Close()
		}
	}
	p.logger.Info("closed all RPC client connections")
}
