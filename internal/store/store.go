// Package store persists benchmark runs, per-call results and merged sources.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/everstacklabs/brandscope/internal/aggregate"
	"github.com/everstacklabs/brandscope/internal/export"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/quality"
	"github.com/everstacklabs/brandscope/internal/question"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one stored batch run.
type Run struct {
	ID              string                     `json:"id"`
	Status          RunStatus                  `json:"status"`
	StartedAt       time.Time                  `json:"startedAt"`
	FinishedAt      *time.Time                 `json:"finishedAt,omitempty"`
	Config          export.RunConfig           `json:"config"`
	Report          *aggregate.Report          `json:"report,omitempty"`
	Recommendations *aggregate.Recommendations `json:"recommendations,omitempty"`
	ArtifactsDir    string                     `json:"artifactsDir,omitempty"`
	Error           string                     `json:"error,omitempty"`
}

// ResultRow is one stored provider call.
type ResultRow struct {
	RunIndex   int                   `json:"run"`
	QuestionID string                `json:"questionId"`
	Type       question.AnalysisType `json:"analysisType"`
	Result     provider.Result       `json:"result"`
	Validation *quality.Result       `json:"validation,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// Store is the run persistence contract.
type Store interface {
	Migrate(ctx context.Context) error
	CreateRun(ctx context.Context, cfg export.RunConfig) (*Run, error)
	SaveResult(ctx context.Context, runID string, runIndex int, q question.Question, r provider.Result, v *quality.Result) error
	SaveSources(ctx context.Context, runID string, qs export.QuestionSources) error
	FinishRun(ctx context.Context, runID string, fin Finish) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListResults(ctx context.Context, runID string) ([]ResultRow, error)
	ListSources(ctx context.Context, runID string) ([]export.QuestionSources, error)
	Close() error
}

// Finish carries the final state of a run.
type Finish struct {
	Status          RunStatus
	Report          *aggregate.Report
	Recommendations *aggregate.Recommendations
	ArtifactsDir    string
	Error           string
}
