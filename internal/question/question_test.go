package question

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "questions.yaml", `
brand: Acme
market: us
questions:
  - id: q1
    type: competitive
    text: Who are the top running shoe brands?
    entities: [Nike, Adidas]
  - id: q2
    type: Visibility
    text: Is Acme a good choice?
    market: fr
`)

	qs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, "Acme", qs[0].Brand)
	assert.Equal(t, Market("us"), qs[0].Market)
	assert.Equal(t, []string{"Nike", "Adidas"}, qs[0].Entities)
	assert.Equal(t, TypeVisibility, qs[1].Type)
	assert.Equal(t, Market("fr"), qs[1].Market)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "questions.json", `{"brand":"Acme","questions":[{"id":"a","type":"category","text":"What does Acme sell?"}]}`)

	qs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, TypeCategory, qs[0].Type)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing id", "questions:\n  - type: reputation\n    text: hi\n", "id is required"},
		{"bad type", "questions:\n  - id: a\n    type: weather\n    text: hi\n", "unknown analysis type"},
		{"empty text", "questions:\n  - id: a\n    type: reputation\n    text: ' '\n", "text is required"},
		{"duplicate", "questions:\n  - {id: a, type: reputation, text: x}\n  - {id: a, type: reputation, text: y}\n", "duplicate id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "q.yaml", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestFilter(t *testing.T) {
	qs := []Question{
		{ID: "1", Type: TypeReputation},
		{ID: "2", Type: TypeCompetitive},
		{ID: "3", Type: TypeReputation},
	}

	assert.Len(t, Filter(qs, nil), 3)

	got := Filter(qs, []AnalysisType{TypeReputation})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" Competitive ")
	require.NoError(t, err)
	assert.Equal(t, TypeCompetitive, got)

	_, err = ParseType("unknown")
	assert.Error(t, err)
}
