package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DistributionMetrics records claim and migration activity for the
// distribution engine.
type DistributionMetrics struct {
	claims        *prometheus.CounterVec
	claimedTokens *prometheus.CounterVec
	sweeps        prometheus.Counter
}

var (
	distributionMetricsOnce sync.Once
	distributionRegistry    *DistributionMetrics
)

// Distribution returns the lazily-initialised metrics registry used to record
// distribution engine activity.
func Distribution() *DistributionMetrics {
	distributionMetricsOnce.Do(func() {
		distributionRegistry = &DistributionMetrics{
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tokendrop",
				Subsystem: "distribution",
				Name:      "claims_total",
				Help:      "Total claim attempts segmented by pool and outcome.",
			}, []string{"pool", "outcome"}),
			claimedTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tokendrop",
				Subsystem: "distribution",
				Name:      "claimed_tokens_total",
				Help:      "Cumulative payout per pool in whole tokens.",
			}, []string{"pool"}),
			sweeps: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tokendrop",
				Subsystem: "distribution",
				Name:      "sweeps_total",
				Help:      "Successful remaining-balance sweeps.",
			}),
		}
		prometheus.MustRegister(
			distributionRegistry.claims,
			distributionRegistry.claimedTokens,
			distributionRegistry.sweeps,
		)
	})
	return distributionRegistry
}

// ObserveClaim records a claim attempt for the pool with the given outcome.
func (m *DistributionMetrics) ObserveClaim(pool, outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(pool, outcome).Inc()
}

// ObservePayout records a successful payout amount for the pool. The wei
// amount is scaled to whole tokens before entering the float counter: raw wei
// overflows float64 precision above 2^53, roughly nine tokens at 18 decimals.
func (m *DistributionMetrics) ObservePayout(pool string, wei *big.Int) {
	if m == nil || wei == nil || wei.Sign() < 0 {
		return
	}
	m.claimedTokens.WithLabelValues(pool).Add(tokensFromWei(wei))
}

var weiPerToken = new(big.Float).SetInt(big.NewInt(1_000_000_000_000_000_000))

func tokensFromWei(wei *big.Int) float64 {
	tokens, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerToken).Float64()
	return tokens
}

// ObserveSweep records a successful remaining-balance sweep.
func (m *DistributionMetrics) ObserveSweep() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}
