package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/brandscope/internal/answer"
	"github.com/everstacklabs/brandscope/internal/question"
)

func parse(t *testing.T, raw string) answer.Answer {
	t.Helper()
	a, err := answer.Strict(raw)
	require.NoError(t, err)
	return a
}

func TestCompetitive(t *testing.T) {
	v := New(DefaultPassThreshold)
	ctx := Context{Brand: "Acme", Entities: []string{"Nike"}}

	tests := []struct {
		name   string
		raw    string
		valid  bool
		score  float64
		failed []string
	}{
		{
			name:  "perfect",
			raw:   `{"ranking": [{"name": "Nike", "rank": 1}, {"name": "Acme Corp", "rank": 2}]}`,
			valid: true,
			score: 1,
		},
		{
			name:   "gap in ranks",
			raw:    `{"ranking": [{"name": "Nike", "rank": 1}, {"name": "Acme", "rank": 3}]}`,
			score:  5.0 / 6.0,
			failed: []string{CheckRanksContiguous},
		},
		{
			name:   "target missing",
			raw:    `{"ranking": [{"name": "Puma", "rank": 1}]}`,
			score:  5.0 / 6.0,
			failed: []string{CheckTargetPresent},
		},
		{
			name:   "malformed entry",
			raw:    `{"ranking": [{"name": "Nike", "rank": "first"}, "Acme"]}`,
			score:  2.0 / 6.0,
			failed: []string{CheckEntriesWellFormed, CheckRanksContiguous, CheckSchemaValid, CheckTargetPresent},
		},
		{
			name:   "empty ranking",
			raw:    `{"ranking": []}`,
			score:  2.0 / 6.0,
			failed: []string{CheckRankingNonEmpty, CheckEntriesWellFormed, CheckRanksContiguous, CheckTargetPresent},
		},
		{
			name:   "mandatory missing",
			raw:    `{"brands": ["Nike"]}`,
			score:  0,
			failed: []string{CheckHasRanking, CheckRankingNonEmpty, CheckEntriesWellFormed, CheckRanksContiguous, CheckTargetPresent, CheckSchemaValid},
		},
		{
			name:   "ranking wrong type",
			raw:    `{"ranking": "Nike, Acme"}`,
			score:  0,
			failed: []string{CheckHasRanking, CheckRankingNonEmpty, CheckEntriesWellFormed, CheckRanksContiguous, CheckTargetPresent, CheckSchemaValid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(parse(t, tt.raw), question.TypeCompetitive, ctx)

			assert.Equal(t, tt.valid, res.Valid)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
			assert.ElementsMatch(t, tt.failed, res.Failed)
			assert.Len(t, res.Checks, 6)
		})
	}
}

func TestPassThreshold(t *testing.T) {
	a := parse(t, `{"ranking": [{"name": "Nike", "rank": 1}, {"name": "Acme", "rank": 3}]}`)
	ctx := Context{Brand: "Acme"}

	strict := New(1).Validate(a, question.TypeCompetitive, ctx)
	lenient := New(0.8).Validate(a, question.TypeCompetitive, ctx)

	assert.False(t, strict.Valid)
	assert.True(t, lenient.Valid)
	assert.Equal(t, strict.Score, lenient.Score)
}

func TestTargetPresentWithoutTargets(t *testing.T) {
	res := New(1).Validate(parse(t, `{"ranking": [{"name": "Puma", "rank": 1}]}`), question.TypeCompetitive, Context{})
	assert.True(t, res.Checks[CheckTargetPresent])
}

func TestVisibility(t *testing.T) {
	v := New(DefaultPassThreshold)

	tests := []struct {
		name  string
		raw   string
		ctx   Context
		valid bool
		score float64
	}{
		{"mentioned with rank", `{"mentioned": true, "rank": 2, "category": "Running shoes"}`, Context{Category: "running shoes"}, true, 1},
		{"not mentioned null rank", `{"mentioned": false, "rank": null, "category": "shoes"}`, Context{}, true, 1},
		{"mentioned without rank", `{"mentioned": true, "category": "shoes"}`, Context{}, false, 0.75},
		{"category mismatch", `{"mentioned": true, "rank": 1, "category": "banking"}`, Context{Category: "shoes"}, false, 0.75},
		{"no flag", `{"rank": 1}`, Context{}, false, 0},
		{"flag as string", `{"mentioned": "yes", "rank": 1, "category": "x"}`, Context{}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(parse(t, tt.raw), question.TypeVisibility, tt.ctx)
			assert.Equal(t, tt.valid, res.Valid, res.Failed)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
		})
	}
}

func TestReputationAndCategory(t *testing.T) {
	v := New(DefaultPassThreshold)

	res := v.Validate(parse(t, `{"sentiment": "positive", "summary": "Liked"}`), question.TypeReputation, Context{})
	assert.True(t, res.Valid)
	assert.Equal(t, 1.0, res.Score)

	res = v.Validate(parse(t, `{"sentiment": "ecstatic", "summary": "Liked"}`), question.TypeReputation, Context{})
	assert.False(t, res.Valid)
	assert.False(t, res.Checks[CheckSchemaValid])
	assert.InDelta(t, 2.0/3.0, res.Score, 1e-9)

	res = v.Validate(parse(t, `{"sentiment": "", "summary": "Liked"}`), question.TypeReputation, Context{})
	assert.False(t, res.Valid)
	assert.Zero(t, res.Score)

	res = v.Validate(parse(t, `{"category": "Footwear", "confidence": 0.9}`), question.TypeCategory, Context{})
	assert.True(t, res.Valid)

	res = v.Validate(parse(t, `{"category": "Footwear", "confidence": 1.5}`), question.TypeCategory, Context{})
	assert.False(t, res.Checks[CheckHasConfidence])
	assert.False(t, res.Checks[CheckSchemaValid])
	assert.InDelta(t, 1.0/3.0, res.Score, 1e-9)
}

func TestValidateNeverPanics(t *testing.T) {
	v := New(DefaultPassThreshold)
	weird := []answer.Answer{
		nil,
		{},
		{"ranking": []any{nil, 3.0, []any{}}},
		{"ranking": map[string]any{"a": 1}},
		{"mentioned": nil, "rank": "one", "category": 5.0},
		{"sentiment": []any{"positive"}},
	}

	for _, a := range weird {
		for _, typ := range question.AllTypes {
			assert.NotPanics(t, func() {
				res := v.Validate(a, typ, Context{Brand: "Acme"})
				assert.GreaterOrEqual(t, res.Score, 0.0)
				assert.LessOrEqual(t, res.Score, 1.0)
			})
		}
	}
}

func TestSchemaCheckedForEveryType(t *testing.T) {
	for _, typ := range question.AllTypes {
		_, err := Schema(typ)
		require.NoError(t, err, typ)
		res := New(1).Validate(answer.Answer{}, typ, Context{})
		assert.Contains(t, res.Checks, CheckSchemaValid, typ)
	}

	res := New(1).Validate(answer.Answer{"x": 1.0}, "unknown", Context{})
	assert.False(t, res.Valid)
	assert.Zero(t, res.Score)
}

func TestContextFor(t *testing.T) {
	q := question.Question{Brand: "Acme", Entities: []string{"Nike"}, Category: "shoes"}
	assert.Equal(t, Context{Brand: "Acme", Entities: []string{"Nike"}, Category: "shoes"}, ContextFor(q))
}
