// Package aggregate folds per-call provider results into batch statistics.
//
// A Batch is a single-owner accumulator: Record must only be called by the
// goroutine that drives the batch, after each question's fan-out resolved.
// Derived rates are computed by Finalize, never incrementally.
package aggregate

import (
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/quality"
	"github.com/everstacklabs/brandscope/internal/question"
)

// Failure records one failed call.
type Failure struct {
	QuestionID string          `json:"questionId"`
	Reason     provider.Status `json:"reason"`
	Error      string          `json:"error"`
}

// Bucket holds running totals for one slice of the batch. Latency, tokens
// and cost only accumulate for successful calls that reached the provider;
// cached replays are counted in CachedCount instead.
type Bucket struct {
	TotalQuestions int                     `json:"totalQuestions"`
	SuccessCount   int                     `json:"successCount"`
	CachedCount    int                     `json:"cachedCount"`
	FailureCount   int                     `json:"failureCount"`
	TotalLatencyMs int64                   `json:"totalLatencyMs"`
	TotalTokensIn  int                     `json:"totalTokensIn"`
	TotalTokensOut int                     `json:"totalTokensOut"`
	TotalCost      float64                 `json:"totalCost"`
	Validations    []quality.Result        `json:"validations"`
	Failures       []Failure               `json:"failures"`
	StatusCounts   map[provider.Status]int `json:"statusCounts"`
}

func newBucket() *Bucket {
	return &Bucket{StatusCounts: make(map[provider.Status]int)}
}

func (b *Bucket) add(q question.Question, r provider.Result, v *quality.Result) {
	b.TotalQuestions++
	b.StatusCounts[r.Status]++
	if !r.OK() {
		b.FailureCount++
		b.Failures = append(b.Failures, Failure{QuestionID: q.ID, Reason: r.Status, Error: r.ErrorMessage})
		return
	}
	b.SuccessCount++
	if v != nil {
		b.Validations = append(b.Validations, *v)
	}
	if r.Cached {
		b.CachedCount++
		return
	}
	b.TotalLatencyMs += max(r.LatencyMs, 0)
	b.TotalTokensIn += max(r.TokensIn, 0)
	b.TotalTokensOut += max(r.TokensOut, 0)
	b.TotalCost += max(r.Cost, 0)
}

// ProviderBuckets are the totals of one provider.
type ProviderBuckets struct {
	Name    provider.Name                     `json:"provider"`
	Model   string                            `json:"model"`
	Skipped bool                              `json:"skipped"`
	All     *Bucket                           `json:"all"`
	ByType  map[question.AnalysisType]*Bucket `json:"byType"`
}

// Batch is the root accumulator of one run.
type Batch struct {
	Overall    *Bucket                           `json:"overall"`
	ByType     map[question.AnalysisType]*Bucket `json:"byType"`
	Providers  []*ProviderBuckets                `json:"providers"`
	byProvider map[provider.Name]*ProviderBuckets
}

// NewBatch creates an empty batch for providers in declared order.
func NewBatch(providers []provider.Config) *Batch {
	b := &Batch{
		Overall:    newBucket(),
		ByType:     make(map[question.AnalysisType]*Bucket),
		byProvider: make(map[provider.Name]*ProviderBuckets),
	}
	for _, cfg := range providers {
		b.provider(cfg.Name, cfg.Model)
	}
	return b
}

func (b *Batch) provider(name provider.Name, model string) *ProviderBuckets {
	pb, ok := b.byProvider[name]
	if !ok {
		pb = &ProviderBuckets{
			Name:   name,
			Model:  model,
			All:    newBucket(),
			ByType: make(map[question.AnalysisType]*Bucket),
		}
		b.byProvider[name] = pb
		b.Providers = append(b.Providers, pb)
	}
	if pb.Model == "" {
		pb.Model = model
	}
	return pb
}

func bucketFor(m map[question.AnalysisType]*Bucket, t question.AnalysisType) *Bucket {
	bk, ok := m[t]
	if !ok {
		bk = newBucket()
		m[t] = bk
	}
	return bk
}

// Record folds one (question, provider) call into the overall, per-type,
// per-provider and per-provider-per-type buckets. v is the validation of an
// ok result and is ignored otherwise. A provider_not_found result marks the
// provider skipped; its earlier totals are kept.
func (b *Batch) Record(q question.Question, r provider.Result, v *quality.Result) {
	if !r.OK() {
		v = nil
	}
	pb := b.provider(r.Provider, r.Model)

	b.Overall.add(q, r, v)
	bucketFor(b.ByType, q.Type).add(q, r, v)
	pb.All.add(q, r, v)
	bucketFor(pb.ByType, q.Type).add(q, r, v)

	if r.Status == provider.StatusProviderNotFound {
		pb.Skipped = true
	}
}

// MarkSkipped flags a provider as skipped without recording a call, as when
// the warm-up pass found it missing.
func (b *Batch) MarkSkipped(name provider.Name) {
	if pb, ok := b.byProvider[name]; ok {
		pb.Skipped = true
	}
}

// Provider returns the buckets of one provider.
func (b *Batch) Provider(name provider.Name) (*ProviderBuckets, bool) {
	pb, ok := b.byProvider[name]
	return pb, ok
}
