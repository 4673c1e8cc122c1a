package publish

import (
	"context"

	"github.com/google/go-github/v60/github"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
)

// PullRequests is the subset of the GitHub pull request API used here.
type PullRequests interface {
	Create(ctx context.Context, owner, repo string, pull *github.NewPullRequest) (*github.PullRequest, *github.Response, error)
}

// NewGitHub returns the pull request service of a token-authenticated client.
func NewGitHub(ctx context.Context, token string) PullRequests {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts)).PullRequests
}

// openPR opens a pull request from head into base.
func openPR(ctx context.Context, prs PullRequests, owner, repo, head, base, title, body string, draft bool) (*github.PullRequest, error) {
	pr, _, err := prs.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(title),
		Body:  github.String(body),
		Head:  github.String(head),
		Base:  github.String(base),
		Draft: github.Bool(draft),
	})
	if err != nil {
		return nil, eris.Wrap(err, "publish: create pull request")
	}
	return pr, nil
}
