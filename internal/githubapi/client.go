// Package githubapi adapts the GitHub REST API to the collaborator
// interfaces of package gate and publishes gate decisions back to GitHub.
package githubapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// NewClient creates a GitHub client. A non-empty token authenticates
// requests; a non-empty apiURL points the client at a GitHub Enterprise
// server instead of api.github.com.
func NewClient(token, apiURL string) (*github.Client, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	if apiURL == "" {
		return client, nil
	}

	client, err := client.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}
	return client, nil
}

// Repository reads and writes one GitHub repository. It implements
// gate.BuildReportSource, gate.HistorySource and gate.RepositoryMetadata.
type Repository struct {
	client *github.Client
	owner  string
	repo   string

	// IgnoreContext, when set, drops commit statuses whose context it
	// matches. Used to keep published decisions out of build reports.
	IgnoreContext func(context string) bool
}

// NewRepository binds a client to owner/repo.
func NewRepository(client *github.Client, owner, repo string) *Repository {
	return &Repository{
		client: client,
		owner:  owner,
		repo:   repo,
	}
}

// FullName returns the owner/repo slug.
func (r *Repository) FullName() string {
	return r.owner + "/" + r.repo
}
