package question

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// AnalysisType is the category of a question. Each type has its own
// expected answer schema and validation checks.
type AnalysisType string

const (
	TypeReputation  AnalysisType = "reputation"
	TypeVisibility  AnalysisType = "visibility"
	TypeCompetitive AnalysisType = "competitive"
	TypeCategory    AnalysisType = "category"
)

// AllTypes lists analysis types in their canonical order.
var AllTypes = []AnalysisType{TypeReputation, TypeVisibility, TypeCompetitive, TypeCategory}

// Valid reports whether t is a known analysis type.
func (t AnalysisType) Valid() bool {
	switch t {
	case TypeReputation, TypeVisibility, TypeCompetitive, TypeCategory:
		return true
	}
	return false
}

// ParseType converts a user-supplied string into an AnalysisType.
func ParseType(s string) (AnalysisType, error) {
	t := AnalysisType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", eris.Errorf("question: unknown analysis type %q", s)
	}
	return t, nil
}

// Market is an ISO-ish market code such as "us" or "fr".
type Market string

// Question is one market-research question. Immutable once a batch starts.
type Question struct {
	ID       string       `yaml:"id" json:"id"`
	Type     AnalysisType `yaml:"type" json:"type"`
	Text     string       `yaml:"text" json:"text"`
	Market   Market       `yaml:"market" json:"market"`
	Entities []string     `yaml:"entities,omitempty" json:"entities,omitempty"`
	Brand    string       `yaml:"brand,omitempty" json:"brand,omitempty"`
	Category string       `yaml:"category,omitempty" json:"category,omitempty"`
}

// File is the on-disk layout of a question batch.
type File struct {
	Brand     string     `yaml:"brand" json:"brand"`
	Market    Market     `yaml:"market" json:"market"`
	Questions []Question `yaml:"questions" json:"questions"`
}

// Load reads a question batch from a YAML or JSON file. File-level brand and
// market are applied to questions that do not set their own.
func Load(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "question: read %s", path)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "question: parse %s", path)
	}

	qs := make([]Question, 0, len(f.Questions))
	seen := make(map[string]bool, len(f.Questions))
	for i, q := range f.Questions {
		if q.Brand == "" {
			q.Brand = f.Brand
		}
		if q.Market == "" {
			q.Market = f.Market
		}
		q.Type = AnalysisType(strings.ToLower(string(q.Type)))
		if err := q.validate(); err != nil {
			return nil, eris.Wrapf(err, "question: entry %d", i)
		}
		if seen[q.ID] {
			return nil, eris.Errorf("question: duplicate id %q", q.ID)
		}
		seen[q.ID] = true
		qs = append(qs, q)
	}
	return qs, nil
}

func (q Question) validate() error {
	if q.ID == "" {
		return eris.New("id is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return eris.Errorf("%s: text is required", q.ID)
	}
	if !q.Type.Valid() {
		return eris.Errorf("%s: unknown analysis type %q", q.ID, q.Type)
	}
	return nil
}

// Filter keeps questions whose type is in types, preserving order. An empty
// types slice keeps everything.
func Filter(qs []Question, types []AnalysisType) []Question {
	if len(types) == 0 {
		return qs
	}
	keep := make(map[AnalysisType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if keep[q.Type] {
			out = append(out, q)
		}
	}
	return out
}
