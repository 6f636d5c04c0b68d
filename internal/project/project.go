package project

import (
	"strings"

	"buildgate/internal/gate"
)

// Report and history backends selectable per project
const (
	BackendStore  = "store"
	BackendGitHub = "github"
	BackendGit    = "git"
)

// Project represents a validated gating configuration for one repository
type Project struct {
	Name            string
	Owner           string
	Repo            string
	Secret          string
	ProtectedBranch string // empty means "ask the repository for its default branch"
	Window          int
	Reports         string
	History         string
	GitDir          string
	GitCommand      []string
	PublishStatus   bool
	StatusContext   string
	APIURL          string
	TokenEnv        string
}

// ProjectConfig represents the YAML configuration for a project
type ProjectConfig struct {
	Repository      string `yaml:"repository"`
	Secret          string `yaml:"secret"`
	ProtectedBranch string `yaml:"protected_branch"`
	Window          int    `yaml:"window"`
	Reports         string `yaml:"reports"`
	History         string `yaml:"history"`
	GitDir          string `yaml:"git_dir"`
	GitCommand      string `yaml:"git_command"`
	PublishStatus   bool   `yaml:"publish_status"`
	StatusContext   string `yaml:"status_context"`
	APIURL          string `yaml:"api_url"`
	TokenEnv        string `yaml:"token_env"`
}

// Config represents the root configuration structure
type Config struct {
	Projects map[string]ProjectConfig `yaml:"projects"`
}

// Repository returns the owner/repo slug
func (p *Project) Repository() string {
	return p.Owner + "/" + p.Repo
}

// GateConfig returns the gate tunables for this project
func (p *Project) GateConfig() gate.Config {
	return gate.Config{Window: p.Window}
}

// IsOwnContext reports whether a status context was published by buildgate
// itself for this project, so it is never mistaken for a build report.
func (p *Project) IsOwnContext(context string) bool {
	return context == p.StatusContext || strings.HasPrefix(context, p.StatusContext+"/")
}
