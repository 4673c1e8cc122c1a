// Package quality runs structural checks against parsed provider answers.
package quality

import (
	"embed"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/everstacklabs/brandscope/internal/answer"
	"github.com/everstacklabs/brandscope/internal/question"
)

// Check names.
const (
	CheckHasRanking        = "has_ranking"
	CheckRankingNonEmpty   = "ranking_non_empty"
	CheckEntriesWellFormed = "entries_well_formed"
	CheckRanksContiguous   = "ranks_contiguous"
	CheckTargetPresent     = "target_present"
	CheckHasMentionFlag    = "has_mention_flag"
	CheckHasRank           = "has_rank"
	CheckCategoryMatch     = "category_match"
	CheckHasClassification = "has_classification"
	CheckHasSummary        = "has_summary"
	CheckHasConfidence     = "has_confidence"
	CheckSchemaValid       = "schema_valid"
)

// DefaultPassThreshold requires every check to pass.
const DefaultPassThreshold = 1.0

// Result is the outcome of one validation.
type Result struct {
	Valid  bool            `json:"valid"`
	Score  float64         `json:"score"`
	Checks map[string]bool `json:"checks"`
	Failed []string        `json:"failed,omitempty"`
}

// Context carries the question details checks compare against.
type Context struct {
	Brand    string
	Entities []string
	Category string
}

// ContextFor builds the validation context of q.
func ContextFor(q question.Question) Context {
	return Context{Brand: q.Brand, Entities: q.Entities, Category: q.Category}
}

type check struct {
	name      string
	mandatory bool
	fn        func(a answer.Answer, c Context) bool
}

// Validator scores answers against the check battery of their analysis type.
type Validator struct {
	threshold float64
}

// New creates a Validator. A threshold outside (0, 1] falls back to
// DefaultPassThreshold.
func New(threshold float64) *Validator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultPassThreshold
	}
	return &Validator{threshold: threshold}
}

// Validate runs the battery for t. Missing or wrongly typed fields fail
// their checks. A failed mandatory check forces Valid=false and Score=0.
func (v *Validator) Validate(a answer.Answer, t question.AnalysisType, c Context) Result {
	battery := batteries[t]
	res := Result{Checks: make(map[string]bool, len(battery))}
	if len(battery) == 0 {
		return res
	}

	passed := 0
	mandatoryFailed := false
	for _, ch := range battery {
		ok := safe(ch.fn, a, c)
		res.Checks[ch.name] = ok
		if ok {
			passed++
			continue
		}
		res.Failed = append(res.Failed, ch.name)
		if ch.mandatory {
			mandatoryFailed = true
		}
	}

	if mandatoryFailed {
		return res
	}
	res.Score = float64(passed) / float64(len(battery))
	res.Valid = res.Score >= v.threshold
	return res
}

func safe(fn func(answer.Answer, Context) bool, a answer.Answer, c Context) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if a == nil {
		return false
	}
	return fn(a, c)
}

var batteries = map[question.AnalysisType][]check{
	question.TypeCompetitive: {
		{CheckHasRanking, true, hasRanking},
		{CheckRankingNonEmpty, false, rankingNonEmpty},
		{CheckEntriesWellFormed, false, entriesWellFormed},
		{CheckRanksContiguous, false, ranksContiguous},
		{CheckTargetPresent, false, targetPresent},
		{CheckSchemaValid, false, schemaCheck(question.TypeCompetitive)},
	},
	question.TypeVisibility: {
		{CheckHasMentionFlag, true, hasMentionFlag},
		{CheckHasRank, false, hasRank},
		{CheckCategoryMatch, false, categoryMatch},
		{CheckSchemaValid, false, schemaCheck(question.TypeVisibility)},
	},
	question.TypeReputation: {
		{CheckHasClassification, true, nonEmptyString("sentiment")},
		{CheckHasSummary, false, nonEmptyString("summary")},
		{CheckSchemaValid, false, schemaCheck(question.TypeReputation)},
	},
	question.TypeCategory: {
		{CheckHasClassification, true, nonEmptyString("category")},
		{CheckHasConfidence, false, hasConfidence},
		{CheckSchemaValid, false, schemaCheck(question.TypeCategory)},
	},
}

func hasRanking(a answer.Answer, _ Context) bool {
	_, ok := a.Slice("ranking")
	return ok
}

func rankingNonEmpty(a answer.Answer, _ Context) bool {
	r, ok := a.Slice("ranking")
	return ok && len(r) > 0
}

type entry struct {
	name string
	rank float64
}

// entries returns the well-formed ranking entries and whether every entry
// was well formed.
func entries(a answer.Answer) ([]entry, bool) {
	r, ok := a.Slice("ranking")
	if !ok || len(r) == 0 {
		return nil, false
	}
	out := make([]entry, 0, len(r))
	all := true
	for _, item := range r {
		m, ok := item.(map[string]any)
		if !ok {
			all = false
			continue
		}
		name, _ := m["name"].(string)
		rank, isNum := m["rank"].(float64)
		if strings.TrimSpace(name) == "" || !isNum {
			all = false
			continue
		}
		out = append(out, entry{name: name, rank: rank})
	}
	return out, all
}

func entriesWellFormed(a answer.Answer, _ Context) bool {
	_, all := entries(a)
	return all
}

func ranksContiguous(a answer.Answer, _ Context) bool {
	es, all := entries(a)
	if !all {
		return false
	}
	ranks := make([]float64, len(es))
	for i, e := range es {
		ranks[i] = e.rank
	}
	sort.Float64s(ranks)
	for i, r := range ranks {
		if r != float64(i+1) {
			return false
		}
	}
	return true
}

// targetPresent passes when the brand or any entity appears among ranked
// names. With no brand and no entities there is nothing to look for and the
// check passes.
func targetPresent(a answer.Answer, c Context) bool {
	var targets []string
	for _, t := range append([]string{c.Brand}, c.Entities...) {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return true
	}
	es, _ := entries(a)
	for _, e := range es {
		name := strings.ToLower(e.name)
		for _, t := range targets {
			if strings.Contains(name, t) {
				return true
			}
		}
	}
	return false
}

func hasMentionFlag(a answer.Answer, _ Context) bool {
	_, ok := a.Bool("mentioned")
	return ok
}

// hasRank passes for a positive integer rank, or for an explicit null or 0
// rank when the brand is not mentioned.
func hasRank(a answer.Answer, _ Context) bool {
	if r, ok := a.Number("rank"); ok && r >= 1 && r == math.Trunc(r) {
		return true
	}
	mentioned, _ := a.Bool("mentioned")
	if mentioned {
		return false
	}
	v, present := a["rank"]
	if !present {
		return false
	}
	if v == nil {
		return true
	}
	r, ok := v.(float64)
	return ok && r == 0
}

func categoryMatch(a answer.Answer, c Context) bool {
	got := strings.ToLower(strings.TrimSpace(a.String("category")))
	if got == "" {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(c.Category))
	if want == "" {
		return true
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

func hasConfidence(a answer.Answer, _ Context) bool {
	c, ok := a.Number("confidence")
	return ok && c >= 0 && c <= 1
}

func nonEmptyString(key string) func(answer.Answer, Context) bool {
	return func(a answer.Answer, _ Context) bool {
		return strings.TrimSpace(a.String(key)) != ""
	}
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[question.AnalysisType]*gojsonschema.Schema
	schemaErr  error
)

func loadSchemas() {
	schemas = make(map[question.AnalysisType]*gojsonschema.Schema, len(question.AllTypes))
	for _, t := range question.AllTypes {
		data, err := schemaFS.ReadFile("schemas/" + string(t) + ".json")
		if err != nil {
			schemaErr = eris.Wrapf(err, "quality: read %s schema", t)
			return
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			schemaErr = eris.Wrapf(err, "quality: compile %s schema", t)
			return
		}
		schemas[t] = s
	}
}

// Schema returns the compiled JSON schema of t.
func Schema(t question.AnalysisType) (*gojsonschema.Schema, error) {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	s, ok := schemas[t]
	if !ok {
		return nil, eris.Errorf("quality: no schema for %q", t)
	}
	return s, nil
}

func schemaCheck(t question.AnalysisType) func(answer.Answer, Context) bool {
	return func(a answer.Answer, _ Context) bool {
		s, err := Schema(t)
		if err != nil {
			return false
		}
		res, err := s.Validate(gojsonschema.NewGoLoader(map[string]any(a)))
		return err == nil && res.Valid()
	}
}
