package aggregate

import (
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/question"
)

// Stats are the derived rates of one bucket.
type Stats struct {
	Questions       int     `json:"questions"`
	SuccessCount    int     `json:"success_count"`
	FailureCount    int     `json:"failure_count"`
	Cached          int     `json:"cached,omitempty"`
	SuccessRate     float64 `json:"success_rate"`
	ValidRate       float64 `json:"valid_rate"`
	AvgQualityScore float64 `json:"avg_quality_score"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	AvgTokensIn     float64 `json:"avg_input_tokens"`
	AvgTokensOut    float64 `json:"avg_output_tokens"`
	AvgCost         float64 `json:"avg_cost"`
	TotalCost       float64 `json:"total_cost"`
}

// ProviderStats are the finalized statistics of one provider.
type ProviderStats struct {
	Provider provider.Name `json:"provider"`
	Model    string        `json:"model_id"`
	Skipped  bool          `json:"skipped"`
	Stats
	ByType   map[question.AnalysisType]Stats `json:"byAnalysisType"`
	Failures []Failure                       `json:"failures"`
	Statuses map[provider.Status]int         `json:"statuses"`
}

// Report is the frozen result of a batch.
type Report struct {
	Overall   Stats                           `json:"overall"`
	ByType    map[question.AnalysisType]Stats `json:"byAnalysisType"`
	Providers []ProviderStats                 `json:"providers"`
}

// Compute derives the rates of a bucket. Every rate is 0 on an empty
// denominator.
func Compute(bk *Bucket) Stats {
	if bk == nil {
		return Stats{}
	}
	s := Stats{
		Questions:    bk.TotalQuestions,
		SuccessCount: bk.SuccessCount,
		FailureCount: bk.FailureCount,
		Cached:       bk.CachedCount,
		TotalCost:    bk.TotalCost,
	}
	if bk.TotalQuestions > 0 {
		s.SuccessRate = float64(bk.SuccessCount) / float64(bk.TotalQuestions)
	}
	// Averages cover calls that reached the provider.
	if n := float64(bk.SuccessCount - bk.CachedCount); n > 0 {
		s.AvgLatencyMs = float64(bk.TotalLatencyMs) / n
		s.AvgTokensIn = float64(bk.TotalTokensIn) / n
		s.AvgTokensOut = float64(bk.TotalTokensOut) / n
		s.AvgCost = bk.TotalCost / n
	}
	if n := len(bk.Validations); n > 0 {
		valid := 0
		score := 0.0
		for _, v := range bk.Validations {
			if v.Valid {
				valid++
			}
			score += v.Score
		}
		s.ValidRate = float64(valid) / float64(n)
		s.AvgQualityScore = score / float64(n)
	}
	return s
}

func computeAll(m map[question.AnalysisType]*Bucket) map[question.AnalysisType]Stats {
	out := make(map[question.AnalysisType]Stats, len(m))
	for t, bk := range m {
		out[t] = Compute(bk)
	}
	return out
}

// Finalize computes the statistics of b. It does not modify b.
func Finalize(b *Batch) Report {
	rep := Report{
		Overall:   Compute(b.Overall),
		ByType:    computeAll(b.ByType),
		Providers: make([]ProviderStats, 0, len(b.Providers)),
	}
	for _, pb := range b.Providers {
		statuses := make(map[provider.Status]int, len(pb.All.StatusCounts))
		for k, v := range pb.All.StatusCounts {
			statuses[k] = v
		}
		failures := make([]Failure, len(pb.All.Failures))
		copy(failures, pb.All.Failures)

		rep.Providers = append(rep.Providers, ProviderStats{
			Provider: pb.Name,
			Model:    pb.Model,
			Skipped:  pb.Skipped,
			Stats:    Compute(pb.All),
			ByType:   computeAll(pb.ByType),
			Failures: failures,
			Statuses: statuses,
		})
	}
	return rep
}
