package dex

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Erfaniaa/mini-hummingbot/internal/platform/observability"
)

// SwapMode selects which side of a swap is fixed.
type SwapMode int

const (
	// ExactIn fixes the spent amount; the received amount is quoted.
	ExactIn SwapMode = iota
	// ExactOut fixes the received amount; the spent amount is quoted.
	ExactOut
)

// RouteKind identifies the pool family a route executes through.
type RouteKind int

const (
	RouteV3Single RouteKind = iota
	RouteV3Path
	RouteV2
)

func (k RouteKind) String() string {
	switch k {
	case RouteV3Single:
		return "v3_single"
	case RouteV3Path:
		return "v3_path"
	case RouteV2:
		return "v2"
	default:
		return "unknown"
	}
}

// Route is an ephemeral swap route candidate. Routes are re-derived on
// every quoting call; the engine keeps no route cache.
type Route struct {
	Kind   RouteKind
	Tokens []common.Address
	Fees   []uint32 // empty for V2
}

// Quote is the result of one quoting call. A Quote with AmountOut == 0 is
// invalid and must never be used to build a transaction.
type Quote struct {
	TokenIn      common.Address
	TokenOut     common.Address
	FeePath      []uint32
	AmountIn     *big.Int
	AmountOut    *big.Int
	MinAmountOut *big.Int
}

// quoteBackend is the slice of Client the engine needs. Narrow so tests can
// substitute a scripted backend.
type quoteBackend interface {
	QuoteV3ExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error)
	QuoteV3ExactInputPath(ctx context.Context, path []byte, amountIn *big.Int) (*big.Int, error)
	QuoteV3ExactOutputSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountOut *big.Int) (*big.Int, error)
	QuoteV3ExactOutputPath(ctx context.Context, path []byte, amountOut *big.Int) (*big.Int, error)
	V2GetAmountsOut(ctx context.Context, path []common.Address, amountIn *big.Int) ([]*big.Int, error)
	V2GetAmountsIn(ctx context.Context, path []common.Address, amountOut *big.Int) ([]*big.Int, error)
}

// pathFeeTiers are the per-edge fee tiers tried for multi-hop routes. The
// cartesian product over at most three edges is deliberately exhaustive;
// the combination count is bounded and the source behavior is preserved
// as-is.
var pathFeeTiers = []uint32{100, 500, 2500, 10000}

// Engine performs the bounded, deterministic route search over pool
// version, fee tier and hop path. It holds no state between calls.
type Engine struct {
	backend        quoteBackend
	defaultFee     uint32
	intermediaries []common.Address
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// EngineConfig holds quoting engine configuration.
type EngineConfig struct {
	Backend    quoteBackend
	DefaultFee uint32
	// Intermediaries is the small fixed allowlist of hop tokens, typically
	// the wrapped native token and one stable token.
	Intermediaries []common.Address
	Logger         *observability.Logger
	Metrics        *observability.Metrics
}

// NewEngine creates a quoting engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.DefaultFee == 0 {
		cfg.DefaultFee = 2500
	}
	return &Engine{
		backend:        cfg.Backend,
		defaultFee:     cfg.DefaultFee,
		intermediaries: cfg.Intermediaries,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}
}

// singleFeeTiers returns the ordered fee tiers tried for direct V3 pools:
// 0.01% first, then the configured default, then the remaining standard
// tiers, deduplicated.
func (e *Engine) singleFeeTiers() []uint32 {
	ordered := []uint32{100, e.defaultFee, 500, 2500, 10000}
	seen := make(map[uint32]bool, len(ordered))
	tiers := make([]uint32, 0, len(ordered))
	for _, t := range ordered {
		if !seen[t] {
			seen[t] = true
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// hopPaths returns the bounded set of multi-hop token paths between tokenIn
// and tokenOut through the intermediary allowlist: one-intermediary paths
// plus both orderings of the two-intermediary path when all four tokens are
// distinct.
func (e *Engine) hopPaths(tokenIn, tokenOut common.Address) [][]common.Address {
	var mids []common.Address
	for _, m := range e.intermediaries {
		if m != tokenIn && m != tokenOut && m != (common.Address{}) {
			mids = append(mids, m)
		}
	}
	var paths [][]common.Address
	for _, m := range mids {
		paths = append(paths, []common.Address{tokenIn, m, tokenOut})
	}
	if len(mids) >= 2 {
		a, b := mids[0], mids[1]
		if a != b {
			paths = append(paths, []common.Address{tokenIn, a, b, tokenOut})
			paths = append(paths, []common.Address{tokenIn, b, a, tokenOut})
		}
	}
	return paths
}

// v2Paths returns the candidate V2 paths: the direct pair plus the same
// multi-hop paths used for V3.
func (e *Engine) v2Paths(tokenIn, tokenOut common.Address) [][]common.Address {
	paths := [][]common.Address{{tokenIn, tokenOut}}
	return append(paths, e.hopPaths(tokenIn, tokenOut)...)
}

// feeSets returns the cartesian product of pathFeeTiers over the given
// number of edges.
func feeSets(tiers []uint32, edges int) [][]uint32 {
	if edges <= 0 {
		return nil
	}
	sets := [][]uint32{{}}
	for e := 0; e < edges; e++ {
		next := make([][]uint32, 0, len(sets)*len(tiers))
		for _, prefix := range sets {
			for _, t := range tiers {
				set := make([]uint32, len(prefix), len(prefix)+1)
				copy(set, prefix)
				next = append(next, append(set, t))
			}
		}
		sets = next
	}
	return sets
}

// minOut applies slippage to a quoted output: out * (10000 - bps) / 10000
// with integer floor division.
func minOut(amountOut *big.Int, slippageBps int64) *big.Int {
	n := new(big.Int).Mul(amountOut, big.NewInt(10000-slippageBps))
	return n.Div(n, big.NewInt(10000))
}

// BestExactIn searches all candidate routes for the given input amount and
// returns the route with the maximum output, or ErrNoRoute when no
// candidate yields a positive amount. Reverting candidates are skipped
// silently and the search continues.
func (e *Engine) BestExactIn(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, slippageBps int64) (Route, Quote, error) {
	start := time.Now()
	var bestRoute Route
	bestOut := new(big.Int)

	consider := func(route Route, out *big.Int) {
		if out != nil && out.Sign() > 0 && out.Cmp(bestOut) > 0 {
			bestOut = out
			bestRoute = route
		}
	}

	// Phase 1: direct v3 pools across the ordered fee tiers. All
	// configured fees are tried and the maximum output kept, not the
	// first that answers.
	for _, fee := range e.singleFeeTiers() {
		out, err := e.backend.QuoteV3ExactInputSingle(ctx, tokenIn, tokenOut, fee, amountIn)
		if err != nil {
			continue
		}
		consider(Route{
			Kind:   RouteV3Single,
			Tokens: []common.Address{tokenIn, tokenOut},
			Fees:   []uint32{fee},
		}, out)
	}

	// Phase 2: v3 multi-hop through the intermediary allowlist, trying
	// the per-edge fee cartesian product.
	for _, tokens := range e.hopPaths(tokenIn, tokenOut) {
		for _, fees := range feeSets(pathFeeTiers, len(tokens)-1) {
			path, err := EncodePath(tokens, fees)
			if err != nil {
				continue
			}
			out, err := e.backend.QuoteV3ExactInputPath(ctx, path, amountIn)
			if err != nil {
				continue
			}
			consider(Route{Kind: RouteV3Path, Tokens: tokens, Fees: fees}, out)
		}
	}

	// Phase 3: v2 constant-product pools over the same candidate paths.
	for _, tokens := range e.v2Paths(tokenIn, tokenOut) {
		amounts, err := e.backend.V2GetAmountsOut(ctx, tokens, amountIn)
		if err != nil || len(amounts) == 0 {
			continue
		}
		consider(Route{Kind: RouteV2, Tokens: tokens}, amounts[len(amounts)-1])
	}

	if e.metrics != nil {
		e.metrics.RecordQuote(ctx, time.Since(start), bestOut.Sign() > 0)
	}
	if bestOut.Sign() <= 0 {
		return Route{}, Quote{}, ErrNoRoute
	}
	if e.logger != nil {
		e.logger.Debug("best exact-in route selected",
			"kind", bestRoute.Kind.String(),
			"hops", len(bestRoute.Tokens)-1,
			"amount_in", amountIn.String(),
			"amount_out", bestOut.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return bestRoute, Quote{
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		FeePath:      bestRoute.Fees,
		AmountIn:     new(big.Int).Set(amountIn),
		AmountOut:    bestOut,
		MinAmountOut: minOut(bestOut, slippageBps),
	}, nil
}

// BestExactOut mirrors BestExactIn for a fixed output amount, keeping the
// route with the minimum required input. V3 path quotes encode the path in
// reverse (tokenOut first) as the quoter requires.
func (e *Engine) BestExactOut(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int, slippageBps int64) (Route, Quote, error) {
	start := time.Now()
	var bestRoute Route
	var bestIn *big.Int

	consider := func(route Route, in *big.Int) {
		if in != nil && in.Sign() > 0 && (bestIn == nil || in.Cmp(bestIn) < 0) {
			bestIn = in
			bestRoute = route
		}
	}

	for _, fee := range e.singleFeeTiers() {
		in, err := e.backend.QuoteV3ExactOutputSingle(ctx, tokenIn, tokenOut, fee, amountOut)
		if err != nil {
			continue
		}
		consider(Route{
			Kind:   RouteV3Single,
			Tokens: []common.Address{tokenIn, tokenOut},
			Fees:   []uint32{fee},
		}, in)
	}

	for _, tokens := range e.hopPaths(tokenIn, tokenOut) {
		for _, fees := range feeSets(pathFeeTiers, len(tokens)-1) {
			revTokens, revFees := reversePath(tokens, fees)
			path, err := EncodePath(revTokens, revFees)
			if err != nil {
				continue
			}
			in, err := e.backend.QuoteV3ExactOutputPath(ctx, path, amountOut)
			if err != nil {
				continue
			}
			consider(Route{Kind: RouteV3Path, Tokens: tokens, Fees: fees}, in)
		}
	}

	for _, tokens := range e.v2Paths(tokenIn, tokenOut) {
		amounts, err := e.backend.V2GetAmountsIn(ctx, tokens, amountOut)
		if err != nil || len(amounts) == 0 {
			continue
		}
		consider(Route{Kind: RouteV2, Tokens: tokens}, amounts[0])
	}

	if e.metrics != nil {
		e.metrics.RecordQuote(ctx, time.Since(start), bestIn != nil)
	}
	if bestIn == nil {
		return Route{}, Quote{}, ErrNoRoute
	}
	return bestRoute, Quote{
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		FeePath:      bestRoute.Fees,
		AmountIn:     bestIn,
		AmountOut:    new(big.Int).Set(amountOut),
		MinAmountOut: new(big.Int).Set(amountOut),
	}, nil
}

// FirstAmountOut returns the output of the first candidate route that
// answers with a positive amount, in the same phase order as BestExactIn.
// Used for price display, where the first non-reverting tier wins.
func (e *Engine) FirstAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	for _, fee := range e.singleFeeTiers() {
		out, err := e.backend.QuoteV3ExactInputSingle(ctx, tokenIn, tokenOut, fee, amountIn)
		if err == nil && out.Sign() > 0 {
			return out, nil
		}
	}
	for _, tokens := range e.hopPaths(tokenIn, tokenOut) {
		for _, fees := range feeSets(pathFeeTiers, len(tokens)-1) {
			path, err := EncodePath(tokens, fees)
			if err != nil {
				continue
			}
			out, err := e.backend.QuoteV3ExactInputPath(ctx, path, amountIn)
			if err == nil && out.Sign() > 0 {
				return out, nil
			}
		}
	}
	for _, tokens := range e.v2Paths(tokenIn, tokenOut) {
		amounts, err := e.backend.V2GetAmountsOut(ctx, tokens, amountIn)
		if err == nil && len(amounts) > 0 && amounts[len(amounts)-1].Sign() > 0 {
			return amounts[len(amounts)-1], nil
		}
	}
	return nil, ErrNoRoute
}

// FastAmountOut tries the cheapest likely routes first: v2 direct and
// multi-hop, v3 direct at the 0.01% and 0.05% tiers, then v3 two-hop at
// 0.05%/0.05%. Falls back to the full first-found search.
func (e *Engine) FastAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	for _, tokens := range e.v2Paths(tokenIn, tokenOut) {
		amounts, err := e.backend.V2GetAmountsOut(ctx, tokens, amountIn)
		if err == nil && len(amounts) > 0 && amounts[len(amounts)-1].Sign() > 0 {
			return amounts[len(amounts)-1], nil
		}
	}
	for _, fee := range []uint32{100, 500} {
		out, err := e.backend.QuoteV3ExactInputSingle(ctx, tokenIn, tokenOut, fee, amountIn)
		if err == nil && out.Sign() > 0 {
			return out, nil
		}
	}
	for _, mid := range e.intermediaries {
		if mid == tokenIn || mid == tokenOut || mid == (common.Address{}) {
			continue
		}
		path, err := EncodePath([]common.Address{tokenIn, mid, tokenOut}, []uint32{500, 500})
		if err != nil {
			continue
		}
		out, err := e.backend.QuoteV3ExactInputPath(ctx, path, amountIn)
		if err == nil && out.Sign() > 0 {
			return out, nil
		}
	}
	return e.FirstAmountOut(ctx, tokenIn, tokenOut, amountIn)
}
