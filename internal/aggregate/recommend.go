package aggregate

import "github.com/everstacklabs/brandscope/internal/provider"

// MinValidRateForCost is the valid-rate floor of the best-cost pick.
const MinValidRateForCost = 0.8

// Pick is one recommended provider.
type Pick struct {
	Provider provider.Name `json:"provider"`
	Model    string        `json:"model_id"`
	Value    float64       `json:"value"`
}

// Recommendations are the best-of picks over finalized provider stats. A nil
// pick means no provider qualified.
type Recommendations struct {
	BestQuality *Pick `json:"bestQuality"`
	BestCost    *Pick `json:"bestCost"`
	Fastest     *Pick `json:"fastest"`
}

// Recommend reduces provider stats to best quality (max avg quality score),
// best cost (min avg cost among providers with valid rate >= 0.8) and fastest
// (min avg latency). Only non-skipped providers with a positive success rate
// compete. Ties go to the earlier provider.
func Recommend(stats []ProviderStats) Recommendations {
	var rec Recommendations
	for _, ps := range stats {
		if ps.Skipped || ps.SuccessRate <= 0 {
			continue
		}
		if rec.BestQuality == nil || ps.AvgQualityScore > rec.BestQuality.Value {
			rec.BestQuality = pick(ps, ps.AvgQualityScore)
		}
		if rec.Fastest == nil || ps.AvgLatencyMs < rec.Fastest.Value {
			rec.Fastest = pick(ps, ps.AvgLatencyMs)
		}
		if ps.ValidRate >= MinValidRateForCost && (rec.BestCost == nil || ps.AvgCost < rec.BestCost.Value) {
			rec.BestCost = pick(ps, ps.AvgCost)
		}
	}
	return rec
}

func pick(ps ProviderStats, v float64) *Pick {
	return &Pick{Provider: ps.Provider, Model: ps.Model, Value: v}
}
