package publish

import (
	"context"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rotisserie/eris"
)

// Author signs report commits.
var Author = object.Signature{Name: "brandscope", Email: "brandscope@everstack.dev"}

// GitOps handles git operations on the reports repository.
type GitOps struct {
	repo     *git.Repository
	worktree *git.Worktree
	token    string
}

// OpenRepo opens the git repository at path.
func OpenRepo(path, token string) (*GitOps, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, eris.Wrapf(err, "publish: open repo %s", path)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, eris.Wrap(err, "publish: worktree")
	}

	return &GitOps{repo: repo, worktree: wt, token: token}, nil
}

// CreateBranch creates name at HEAD and checks it out.
func (g *GitOps) CreateBranch(name string) error {
	headRef, err := g.repo.Head()
	if err != nil {
		return eris.Wrap(err, "publish: resolve HEAD")
	}

	branchRef := plumbing.NewBranchReferenceName(name)
	ref := plumbing.NewHashReference(branchRef, headRef.Hash())
	if err := g.repo.Storer.SetReference(ref); err != nil {
		return eris.Wrapf(err, "publish: create branch %s", name)
	}

	return eris.Wrapf(g.worktree.Checkout(&git.CheckoutOptions{Branch: branchRef}), "publish: checkout %s", name)
}

// Add stages path, relative to the worktree root.
func (g *GitOps) Add(path string) error {
	_, err := g.worktree.Add(path)
	return eris.Wrapf(err, "publish: stage %s", path)
}

// Commit records the staged changes and returns the commit hash.
func (g *GitOps) Commit(message string, when time.Time) (string, error) {
	sig := Author
	sig.When = when
	hash, err := g.worktree.Commit(message, &git.CommitOptions{Author: &sig})
	if err != nil {
		return "", eris.Wrap(err, "publish: commit")
	}
	return hash.String(), nil
}

// Push pushes branch to origin using the token as basic auth.
func (g *GitOps) Push(ctx context.Context, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	err := g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec("+" + ref.String() + ":" + ref.String())},
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: g.token,
		},
	})
	if eris.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return eris.Wrapf(err, "publish: push %s", branch)
}
