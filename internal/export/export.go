// Package export serializes finalized batch statistics as CSV, JSON and XLSX
// artifacts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/everstacklabs/brandscope/internal/aggregate"
	"github.com/everstacklabs/brandscope/internal/question"
	"github.com/everstacklabs/brandscope/internal/sources"
)

// AllTypes is the analysis_type of the per-provider roll-up row.
const AllTypes = "ALL"

// Columns is the CSV header. Its order is part of the artifact contract.
var Columns = []string{
	"model_id", "analysis_type", "questions", "success_rate", "valid_rate",
	"avg_quality_score", "avg_latency_ms", "avg_input_tokens", "avg_output_tokens",
	"avg_cost", "total_cost",
}

// File names written by WriteDir.
const (
	CSVFile     = "benchmark.csv"
	JSONFile    = "benchmark.json"
	XLSXFile    = "benchmark.xlsx"
	SourcesFile = "sources.json"
)

// ProviderInfo describes one configured provider in the exported config.
type ProviderInfo struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Model string `json:"model"`
}

// RunConfig is the batch configuration echoed into the JSON artifact.
type RunConfig struct {
	RunID            string         `json:"runId"`
	Providers        []ProviderInfo `json:"providers"`
	QuestionTypes    []string       `json:"questionTypes"`
	Questions        int            `json:"questions"`
	WarmupRuns       int            `json:"warmupRuns"`
	TestRuns         int            `json:"testRuns"`
	PerCallTimeoutMs int64          `json:"perCallTimeoutMs"`
	InterCallDelayMs int64          `json:"interCallDelayMs"`
}

// QuestionSources is the merged source list of one question.
type QuestionSources struct {
	QuestionID string                 `json:"questionId"`
	Type       question.AnalysisType  `json:"type"`
	Text       string                 `json:"text"`
	Run        int                    `json:"run"`
	Sources    []sources.MergedSource `json:"sources"`
	Summary    sources.Summary        `json:"summary"`
}

// Bundle is everything a run exports.
type Bundle struct {
	ExportedAt      time.Time
	Config          RunConfig
	Report          aggregate.Report
	Recommendations aggregate.Recommendations
	Sources         []QuestionSources
}

// Document is the JSON artifact.
type Document struct {
	ExportedAt      time.Time                 `json:"exportedAt"`
	Config          RunConfig                 `json:"config"`
	Overall         aggregate.Stats           `json:"overall"`
	Results         []aggregate.ProviderStats `json:"results"`
	Recommendations aggregate.Recommendations `json:"recommendations"`
}

// NewDocument builds the JSON artifact of b.
func NewDocument(b Bundle) Document {
	results := b.Report.Providers
	if results == nil {
		results = []aggregate.ProviderStats{}
	}
	return Document{
		ExportedAt:      b.ExportedAt.UTC(),
		Config:          b.Config,
		Overall:         b.Report.Overall,
		Results:         results,
		Recommendations: b.Recommendations,
	}
}

// Rows returns the CSV rows of rep without the header: one row per
// (provider, analysis type) in canonical type order, then an ALL roll-up row
// per provider.
func Rows(rep aggregate.Report) [][]string {
	var rows [][]string
	for _, ps := range rep.Providers {
		id := ps.Model
		if id == "" {
			id = string(ps.Provider)
		}
		for _, t := range question.AllTypes {
			s, ok := ps.ByType[t]
			if !ok {
				continue
			}
			rows = append(rows, row(id, string(t), s))
		}
		rows = append(rows, row(id, AllTypes, ps.Stats))
	}
	return rows
}

func row(id, typ string, s aggregate.Stats) []string {
	return []string{
		id,
		typ,
		strconv.Itoa(s.Questions),
		ratio(s.SuccessRate),
		ratio(s.ValidRate),
		ratio(s.AvgQualityScore),
		strconv.FormatFloat(s.AvgLatencyMs, 'f', 1, 64),
		strconv.FormatFloat(s.AvgTokensIn, 'f', 1, 64),
		strconv.FormatFloat(s.AvgTokensOut, 'f', 1, 64),
		money(s.AvgCost),
		money(s.TotalCost),
	}
}

func ratio(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
func money(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// WriteCSV writes the header and Rows(rep).
func WriteCSV(w io.Writer, rep aggregate.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(Rows(rep)); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

// WriteJSON writes the JSON artifact of b.
func WriteJSON(w io.Writer, b Bundle) error {
	return encode(w, NewDocument(b))
}

// WriteSources writes the per-question merged sources.
func WriteSources(w io.Writer, qs []QuestionSources) error {
	if qs == nil {
		qs = []QuestionSources{}
	}
	return encode(w, qs)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// Artifacts are the paths written by WriteDir.
type Artifacts struct {
	Dir     string `json:"dir"`
	CSV     string `json:"csv"`
	JSON    string `json:"json"`
	XLSX    string `json:"xlsx"`
	Sources string `json:"sources"`
}

// Paths lists the artifact files.
func (a Artifacts) Paths() []string {
	return []string{a.CSV, a.JSON, a.XLSX, a.Sources}
}

// WriteDir writes every artifact of b into dir, creating it if needed.
func WriteDir(dir string, b Bundle) (Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, eris.Wrapf(err, "export: create %s", dir)
	}
	a := Artifacts{
		Dir:     dir,
		CSV:     filepath.Join(dir, CSVFile),
		JSON:    filepath.Join(dir, JSONFile),
		XLSX:    filepath.Join(dir, XLSXFile),
		Sources: filepath.Join(dir, SourcesFile),
	}

	writers := []struct {
		path  string
		write func(io.Writer) error
	}{
		{a.CSV, func(w io.Writer) error { return WriteCSV(w, b.Report) }},
		{a.JSON, func(w io.Writer) error { return WriteJSON(w, b) }},
		{a.XLSX, func(w io.Writer) error { return WriteXLSX(w, b) }},
		{a.Sources, func(w io.Writer) error { return WriteSources(w, b.Sources) }},
	}
	for _, wr := range writers {
		if err := writeFile(wr.path, wr.write); err != nil {
			return Artifacts{}, err
		}
	}
	return a, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}
