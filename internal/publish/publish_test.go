package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-github/v60/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/brandscope/internal/aggregate"
	"github.com/everstacklabs/brandscope/internal/export"
	"github.com/everstacklabs/brandscope/internal/provider"
	"github.com/everstacklabs/brandscope/internal/sources"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("reports\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("init", &git.CommitOptions{Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()}})
	require.NoError(t, err)
	return dir
}

func writeArtifact(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPublishCommitsLocally(t *testing.T) {
	repoDir := initRepo(t)
	csv := writeArtifact(t, "benchmark.csv", "model_id\n")

	p := New(Config{RepoDir: repoDir}, nil)
	res, err := p.Publish(context.Background(), Report{
		RunID:     "20260301-120000",
		Artifacts: []string{csv},
		Summary:   "## summary\n",
	})
	require.NoError(t, err)

	assert.Equal(t, "brandscope/report-20260301-120000", res.Branch)
	assert.Equal(t, "reports/20260301-120000", res.Dir)
	assert.False(t, res.Pushed)
	assert.NotEmpty(t, res.Commit)

	got, err := os.ReadFile(filepath.Join(repoDir, "reports", "20260301-120000", "benchmark.csv"))
	require.NoError(t, err)
	assert.Equal(t, "model_id\n", string(got))
	assert.FileExists(t, filepath.Join(repoDir, "reports", "20260301-120000", SummaryFile))

	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, plumbing.NewBranchReferenceName(res.Branch), head.Name())

	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "chore(reports): add benchmark run 20260301-120000", commit.Message)
	assert.Equal(t, Author.Name, commit.Author.Name)

	status, err := func() (git.Status, error) {
		wt, err := repo.Worktree()
		if err != nil {
			return nil, err
		}
		return wt.Status()
	}()
	require.NoError(t, err)
	assert.True(t, status.IsClean())
}

func TestPublishValidation(t *testing.T) {
	_, err := New(Config{RepoDir: t.TempDir()}, nil).Publish(context.Background(), Report{})
	assert.Error(t, err)

	_, err = New(Config{}, nil).Publish(context.Background(), Report{RunID: "r"})
	assert.Error(t, err)

	_, err = New(Config{RepoDir: t.TempDir()}, nil).Publish(context.Background(), Report{RunID: "r"})
	assert.Error(t, err, "not a git repository")
}

func TestPublishMissingArtifact(t *testing.T) {
	p := New(Config{RepoDir: initRepo(t)}, nil)
	_, err := p.Publish(context.Background(), Report{RunID: "r1", Artifacts: []string{"/nonexistent/benchmark.csv"}})
	assert.Error(t, err)
}

func TestOpenPR(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/reports/pulls", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 7, "html_url": "https://github.com/acme/reports/pull/7"}`))
	}))
	defer srv.Close()

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	pr, err := openPR(context.Background(), client.PullRequests, "acme", "reports", "brandscope/report-r1", "main", "title", "body", true)
	require.NoError(t, err)
	assert.Equal(t, 7, pr.GetNumber())
	assert.Equal(t, "https://github.com/acme/reports/pull/7", pr.GetHTMLURL())
	assert.Equal(t, "brandscope/report-r1", got["head"])
	assert.Equal(t, "main", got["base"])
	assert.Equal(t, true, got["draft"])
}

func TestOpenPRError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "Validation Failed"}`))
	}))
	defer srv.Close()

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	_, err = openPR(context.Background(), client.PullRequests, "acme", "reports", "h", "main", "t", "b", false)
	assert.Error(t, err)
}

func sampleReport() aggregate.Report {
	return aggregate.Report{
		Overall: aggregate.Stats{Questions: 4, SuccessRate: 0.75, ValidRate: 0.5, TotalCost: 0.012},
		Providers: []aggregate.ProviderStats{
			{
				Provider: provider.OpenAI,
				Model:    "gpt-4o-mini",
				Stats:    aggregate.Stats{Questions: 2, SuccessRate: 1, ValidRate: 1, AvgQualityScore: 1, AvgLatencyMs: 850},
				Statuses: map[provider.Status]int{provider.StatusOK: 2},
			},
			{
				Provider: provider.Gemini,
				Model:    "gemini-2.0-flash",
				Skipped:  true,
				Stats:    aggregate.Stats{Questions: 2, SuccessRate: 0.5},
				Statuses: map[provider.Status]int{provider.StatusOK: 1, provider.StatusProviderNotFound: 1},
			},
		},
	}
}

func TestRenderSummary(t *testing.T) {
	rec := aggregate.Recommendations{BestQuality: &aggregate.Pick{Provider: provider.OpenAI, Model: "gpt-4o-mini", Value: 1}}
	qs := []export.QuestionSources{
		{Sources: []sources.MergedSource{{Domain: "a.com", CitationCount: 1}, {Domain: "b.com", CitationCount: 3}}},
		{Sources: []sources.MergedSource{{Domain: "a.com", CitationCount: 1}}},
	}

	out := RenderSummary("run-1", sampleReport(), rec, qs)

	assert.Contains(t, out, "## Benchmark run `run-1`")
	assert.Contains(t, out, "**4** calls, **75.0%** success")
	assert.Contains(t, out, "| openai | `gpt-4o-mini` | 2 | 100.0% |")
	assert.Contains(t, out, "| gemini (skipped) |")
	assert.Contains(t, out, "- Best quality: openai (`gpt-4o-mini`), 1.00")
	assert.Contains(t, out, "- Best cost: none")
	assert.Contains(t, out, "| gemini | provider_not_found | 1 |")
	assert.Contains(t, out, "- `b.com` (3)\n- `a.com` (2)")
	assert.NotContains(t, out, "### Video sources")
}

func TestRenderSummaryVideoPlaylist(t *testing.T) {
	clip := sources.MergedSource{
		Domain:  "youtube.com",
		IsVideo: true,
		URLs: []sources.MergedURL{
			{URL: "https://youtube.com/watch?v=1", Title: "Review", CitationCount: 2},
			{URL: "https://youtube.com/watch?v=2", CitationCount: 1},
		},
	}
	qs := []export.QuestionSources{
		{Sources: []sources.MergedSource{clip, {Domain: "a.com", CitationCount: 1, URLs: []sources.MergedURL{{URL: "https://a.com"}}}}},
		{Sources: []sources.MergedSource{clip}},
	}

	out := RenderSummary("run-1", sampleReport(), aggregate.Recommendations{}, qs)

	assert.Contains(t, out, "### Video sources\n\n- [Review](https://youtube.com/watch?v=1)\n- <https://youtube.com/watch?v=2>\n")
	assert.NotContains(t, out, "(https://a.com)")
	assert.Len(t, playlist(qs, 1), 1)
}

func TestDraft(t *testing.T) {
	rep := sampleReport()
	assert.True(t, Draft(rep))

	rep.Overall.SuccessRate = 0.9
	assert.True(t, Draft(rep), "skipped provider")

	rep.Providers[1].Skipped = false
	assert.False(t, Draft(rep))
}
