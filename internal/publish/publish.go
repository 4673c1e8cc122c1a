// Package publish commits exported run artifacts to a reports repository and
// opens a pull request for them.
package publish

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SummaryFile is the markdown summary written next to the artifacts.
const SummaryFile = "README.md"

// Config locates the reports repository and its GitHub remote.
type Config struct {
	RepoDir     string
	ReportsPath string
	Token       string
	Owner       string
	Repo        string
	BaseBranch  string
}

// Report is one run to publish.
type Report struct {
	RunID     string
	Artifacts []string
	Summary   string
	Draft     bool
}

// Result describes what was published.
type Result struct {
	Branch   string
	Dir      string
	Commit   string
	PRNumber int
	PRURL    string
	Pushed   bool
}

// Publisher commits reports and opens pull requests.
type Publisher struct {
	cfg Config
	prs PullRequests
	now func() time.Time
}

// New creates a Publisher. prs may be nil, in which case reports are only
// committed locally. Pushing also requires a token.
func New(cfg Config, prs PullRequests) *Publisher {
	if cfg.ReportsPath == "" {
		cfg.ReportsPath = "reports"
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	return &Publisher{cfg: cfg, prs: prs, now: time.Now}
}

// BranchName is the branch a run is published on.
func BranchName(runID string) string {
	return "brandscope/report-" + runID
}

// Publish copies the artifacts into <repo>/<reports_path>/<run_id>, commits
// them on a fresh branch, pushes it and opens a pull request.
func (p *Publisher) Publish(ctx context.Context, rep Report) (*Result, error) {
	if rep.RunID == "" {
		return nil, eris.New("publish: run id is required")
	}
	if p.cfg.RepoDir == "" {
		return nil, eris.New("publish: repo_dir is not configured")
	}

	g, err := OpenRepo(p.cfg.RepoDir, p.cfg.Token)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Branch: BranchName(rep.RunID),
		Dir:    filepath.ToSlash(filepath.Join(p.cfg.ReportsPath, rep.RunID)),
	}
	if err := g.CreateBranch(res.Branch); err != nil {
		return nil, err
	}

	dest := filepath.Join(p.cfg.RepoDir, p.cfg.ReportsPath, rep.RunID)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, eris.Wrapf(err, "publish: create %s", dest)
	}
	for _, src := range rep.Artifacts {
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return nil, err
		}
	}
	if rep.Summary != "" {
		if err := os.WriteFile(filepath.Join(dest, SummaryFile), []byte(rep.Summary), 0o644); err != nil {
			return nil, eris.Wrap(err, "publish: write summary")
		}
	}

	if err := g.Add(res.Dir); err != nil {
		return nil, err
	}
	title := "chore(reports): add benchmark run " + rep.RunID
	res.Commit, err = g.Commit(title, p.now())
	if err != nil {
		return nil, err
	}

	if p.cfg.Token == "" {
		zap.L().Info("publish: committed locally, no token configured",
			zap.String("branch", res.Branch), zap.String("commit", res.Commit))
		return res, nil
	}
	if err := g.Push(ctx, res.Branch); err != nil {
		return nil, err
	}
	res.Pushed = true

	if p.prs == nil || p.cfg.Owner == "" || p.cfg.Repo == "" {
		return res, nil
	}
	pr, err := openPR(ctx, p.prs, p.cfg.Owner, p.cfg.Repo, res.Branch, p.cfg.BaseBranch, title, rep.Summary, rep.Draft)
	if err != nil {
		return nil, err
	}
	res.PRNumber = pr.GetNumber()
	res.PRURL = pr.GetHTMLURL()

	zap.L().Info("publish: pull request created",
		zap.String("run_id", rep.RunID),
		zap.Int("number", res.PRNumber),
		zap.Bool("draft", rep.Draft),
		zap.String("url", res.PRURL),
	)
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "publish: open %s", src)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "publish: create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "publish: copy %s", src)
	}
	return eris.Wrapf(out.Close(), "publish: close %s", dst)
}
