package project

import (
	"fmt"
	"os"
	"strings"

	"buildgate/internal/gate"
	"buildgate/internal/security"
	"buildgate/pkg/cmdutil"
	"buildgate/pkg/fileutil"

	"gopkg.in/yaml.v3"
)

const (
	MaxWindow            = 100
	DefaultStatusContext = "buildgate"
	DefaultTokenEnv      = "BUILDGATE_GITHUB_TOKEN"
	DefaultGitCommand    = "git"
)

// LoadConfig loads and validates the configuration from a YAML file
func LoadConfig(configPath string) (*Config, map[string]*Project, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Initialize Projects map if it's nil (happens with empty YAML files)
	if config.Projects == nil {
		config.Projects = make(map[string]ProjectConfig)
	}

	// Validate and create Project instances
	projects := make(map[string]*Project)
	for name, projectConfig := range config.Projects {
		errors := ValidateProjectConfig(name, projectConfig)
		if len(errors) > 0 {
			return nil, nil, fmt.Errorf("invalid configuration for project '%s':\n%s",
				name, strings.Join(errors, "\n"))
		}

		proj, err := newProject(name, projectConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid configuration for project '%s': %w", name, err)
		}
		projects[name] = proj
	}

	return &config, projects, nil
}

// newProject applies defaults to an already validated project configuration
func newProject(name string, config ProjectConfig) (*Project, error) {
	owner, repo, _ := strings.Cut(config.Repository, "/")

	window := config.Window
	if window == 0 {
		window = gate.DefaultWindow
	}

	reports := config.Reports
	if reports == "" {
		reports = BackendStore
	}

	history := config.History
	if history == "" {
		history = BackendGitHub
	}

	statusContext := config.StatusContext
	if statusContext == "" {
		statusContext = DefaultStatusContext
	}

	tokenEnv := config.TokenEnv
	if tokenEnv == "" {
		tokenEnv = DefaultTokenEnv
	}

	gitCommand := config.GitCommand
	if gitCommand == "" {
		gitCommand = DefaultGitCommand
	}
	gitParts, err := cmdutil.ParseCommandString(gitCommand)
	if err != nil {
		return nil, err
	}

	var gitDir string
	if config.GitDir != "" {
		gitDir, err = security.SanitizePath(config.GitDir)
		if err != nil {
			return nil, err
		}
	}

	return &Project{
		Name:            name,
		Owner:           owner,
		Repo:            repo,
		Secret:          config.Secret,
		ProtectedBranch: config.ProtectedBranch,
		Window:          window,
		Reports:         reports,
		History:         history,
		GitDir:          gitDir,
		GitCommand:      gitParts,
		PublishStatus:   config.PublishStatus,
		StatusContext:   statusContext,
		APIURL:          strings.TrimSuffix(config.APIURL, "/"),
		TokenEnv:        tokenEnv,
	}, nil
}

// ValidateProjectConfig validates a single project configuration
func ValidateProjectConfig(name string, config ProjectConfig) []string {
	var errors []string

	if err := security.ValidateProjectName(name); err != nil {
		errors = append(errors, fmt.Sprintf("  - Project '%s': %v", name, err))
	}

	// Validate repository
	if config.Repository == "" {
		errors = append(errors, fmt.Sprintf("  - Project '%s': missing required 'repository' field", name))
	} else if err := security.ValidateRepository(config.Repository); err != nil {
		errors = append(errors, fmt.Sprintf("  - Project '%s': %v", name, err))
	}

	// Validate secret
	if config.Secret == "" {
		errors = append(errors, fmt.Sprintf("  - Project '%s': missing required 'secret' field", name))
	} else if err := security.ValidateSecret(config.Secret); err != nil {
		errors = append(errors, fmt.Sprintf("  - Project '%s': %v", name, err))
	}

	// Validate protected branch (optional)
	if config.ProtectedBranch != "" {
		if err := security.ValidateBranchName(config.ProtectedBranch); err != nil {
			errors = append(errors, fmt.Sprintf("  - Project '%s': invalid protected_branch '%s': %v", name, config.ProtectedBranch, err))
		}
	}

	// Validate window (zero uses the default)
	if config.Window < 0 || config.Window > MaxWindow {
		errors = append(errors, fmt.Sprintf("  - Project '%s': window must be between 1 and %d, got %d", name, MaxWindow, config.Window))
	}

	// Validate backends
	switch config.Reports {
	case "", BackendStore, BackendGitHub:
	default:
		errors = append(errors, fmt.Sprintf("  - Project '%s': reports must be '%s' or '%s', got '%s'", name, BackendStore, BackendGitHub, config.Reports))
	}

	switch config.History {
	case "", BackendGitHub:
	case BackendGit:
		if config.GitDir == "" {
			errors = append(errors, fmt.Sprintf("  - Project '%s': history 'git' requires 'git_dir'", name))
		}
	default:
		errors = append(errors, fmt.Sprintf("  - Project '%s': history must be '%s' or '%s', got '%s'", name, BackendGitHub, BackendGit, config.History))
	}

	// Validate git directory when given
	if config.GitDir != "" {
		if _, err := security.SanitizePath(config.GitDir); err != nil {
			errors = append(errors, fmt.Sprintf("  - Project '%s': invalid git_dir: %v", name, err))
		} else if !fileutil.DirExists(config.GitDir) {
			errors = append(errors, fmt.Sprintf("  - Project '%s': git_dir does not exist or is not a directory: '%s'", name, config.GitDir))
		}
	}

	if config.GitCommand != "" {
		parts, err := cmdutil.ParseCommandString(config.GitCommand)
		if err == nil {
			err = security.NewSandboxedExecutor("").ValidateCommandParts(parts)
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("  - Project '%s': invalid git_command: %v", name, err))
		}
	}

	// Validate status context
	if strings.ContainsAny(config.StatusContext, " \t\n") {
		errors = append(errors, fmt.Sprintf("  - Project '%s': status_context cannot contain whitespace, got '%s'", name, config.StatusContext))
	}

	// Validate API URL
	if config.APIURL != "" && !strings.HasPrefix(config.APIURL, "https://") && !strings.HasPrefix(config.APIURL, "http://") {
		errors = append(errors, fmt.Sprintf("  - Project '%s': api_url must be an http(s) URL, got '%s'", name, config.APIURL))
	}

	return errors
}
