package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EncodePath packs an ordered token list plus per-hop fee tiers into the
// byte format expected by the V3 router and quoter for multi-hop calls:
// 20-byte token address, 3-byte big-endian fee, repeated, with no trailing
// fee after the last token. The layout must match the router ABI
// bit-for-bit.
//
// A length mismatch is a programmer error, not a runtime condition, so the
// returned error must never be retried.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("invalid path specification: require N tokens and N-1 fees, got %d tokens and %d fees", len(tokens), len(fees))
	}
	path := make([]byte, 0, len(tokens)*common.AddressLength+len(fees)*3)
	for i, token := range tokens {
		path = append(path, token.Bytes()...)
		if i < len(fees) {
			fee := fees[i]
			path = append(path, byte(fee>>16), byte(fee>>8), byte(fee))
		}
	}
	return path, nil
}

// reversePath returns tokens and fees in reverse order. Exact-output quoter
// and router calls encode the path from tokenOut back to tokenIn.
func reversePath(tokens []common.Address, fees []uint32) ([]common.Address, []uint32) {
	revTokens := make([]common.Address, len(tokens))
	for i, t := range tokens {
		revTokens[len(tokens)-1-i] = t
	}
	revFees := make([]uint32, len(fees))
	for i, f := range fees {
		revFees[len(fees)-1-i] = f
	}
	return revTokens, revFees
}
