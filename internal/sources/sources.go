// Package sources turns a project configuration into the collaborators the
// gates consult and the publisher that reports decisions back to GitHub.
package sources

import (
	"context"
	"fmt"
	"os"
	"sync"

	"buildgate/internal/gate"
	"buildgate/internal/githubapi"
	"buildgate/internal/gitlog"
	"buildgate/internal/history"
	"buildgate/internal/project"
)

// Publisher publishes a decision as a commit status.
type Publisher interface {
	PublishDecision(ctx context.Context, sha, statusContext string, d gate.Decision) error
}

// Binding is everything needed to gate changes of one project.
type Binding struct {
	Sources gate.Sources

	// Publisher is nil unless the project publishes statuses.
	Publisher Publisher
}

// Connector builds and caches bindings per project.
type Connector struct {
	history *history.History

	// Getenv resolves the token variables named by projects.
	Getenv func(string) string

	mu       sync.Mutex
	bindings map[string]*Binding
}

// NewConnector creates a Connector. hist may be nil when no project uses
// the report store.
func NewConnector(hist *history.History) *Connector {
	return &Connector{
		history:  hist,
		Getenv:   os.Getenv,
		bindings: make(map[string]*Binding),
	}
}

// Connect returns the binding for a project, building it on first use.
func (c *Connector) Connect(proj *project.Project) (*Binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if binding, ok := c.bindings[proj.Name]; ok {
		return binding, nil
	}

	binding, err := c.build(proj)
	if err != nil {
		return nil, fmt.Errorf("failed to connect project '%s': %w", proj.Name, err)
	}
	c.bindings[proj.Name] = binding
	return binding, nil
}

func (c *Connector) build(proj *project.Project) (*Binding, error) {
	var binding Binding

	// GitHub is needed for any github backend, for default branch lookup
	// without a configured branch, and for publishing.
	var gh *githubapi.Repository
	needGitHub := proj.Reports == project.BackendGitHub ||
		proj.History == project.BackendGitHub ||
		(proj.ProtectedBranch == "" && proj.History != project.BackendGit) ||
		proj.PublishStatus
	if needGitHub {
		token := c.Getenv(proj.TokenEnv)
		if token == "" && proj.PublishStatus {
			return nil, fmt.Errorf("publish_status requires a token in $%s", proj.TokenEnv)
		}
		client, err := githubapi.NewClient(token, proj.APIURL)
		if err != nil {
			return nil, err
		}
		gh = githubapi.NewRepository(client, proj.Owner, proj.Repo)
		gh.IgnoreContext = proj.IsOwnContext
	}

	switch proj.Reports {
	case project.BackendGitHub:
		binding.Sources.Reports = gh
	default:
		if c.history == nil {
			return nil, fmt.Errorf("report store is not available")
		}
		binding.Sources.Reports = c.history.Reports(proj.Name)
	}

	var local *gitlog.Repository
	switch proj.History {
	case project.BackendGit:
		local = gitlog.New(proj.GitDir, proj.GitCommand)
		binding.Sources.History = local
	default:
		binding.Sources.History = gh
	}

	switch {
	case proj.ProtectedBranch != "":
		binding.Sources.Metadata = gate.StaticBranch(proj.ProtectedBranch)
	case local != nil:
		binding.Sources.Metadata = local
	default:
		binding.Sources.Metadata = gh
	}

	if proj.PublishStatus {
		binding.Publisher = gh
	}

	return &binding, nil
}
