package transaction

import (
	"context"
	"math"

	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

// FeeRateFromEstimates picks the next-block estimate, then the two-block
// one, rounded up to whole sat/vB.
func FeeRateFromEstimates(est explorer.FeeEstimates) (int64, bool) {
	for _, target := range []string{"1", "2"} {
		if v, ok := est[target]; ok && v > 0 {
			return int64(math.Ceil(v)), true
		}
	}
	return 0, false
}

// GetFeeRate asks src for fee estimates and falls back to DefaultFeeRate on
// any failure.
func GetFeeRate(ctx context.Context, src ChainSource) int64 {
	return DefaultFeePolicy().FeeRate(ctx, src)
}

// FeeRate asks src for fee estimates and falls back to the policy's default
// rate on any failure.
func (p FeePolicy) FeeRate(ctx context.Context, src ChainSource) int64 {
	fallback := p.withDefaults().DefaultFeeRate
	est, err := src.FeeEstimates(ctx)
	if err != nil {
		logger.Warn("Failed to get fee estimates, using default fee rate", "error", err, "fee_rate", fallback)
		metrics.FeeRateFallbacks.Inc()
		return fallback
	}
	rate, ok := FeeRateFromEstimates(est)
	if !ok {
		logger.Warn("No usable fee estimate, using default fee rate", "fee_rate", fallback)
		metrics.FeeRateFallbacks.Inc()
		return fallback
	}
	return rate
}

// EstimateVSize estimates the virtual size of a P2WPKH-only transaction.
func EstimateVSize(inputs, outputs int) int64 {
	return int64(TxOverheadVSize + P2WPKHInputVSize*inputs + P2WPKHOutputVSize*outputs)
}
