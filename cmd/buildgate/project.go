package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"buildgate/internal/gate"
	"buildgate/internal/history"
	"buildgate/internal/project"
	"buildgate/pkg/fileutil"
)

// ConfigFileName is the name searched for when --config is not given
const ConfigFileName = "projects.yaml"

// Flags shared by all commands
var (
	configFile string
	dbPath     string
	verbose    bool
)

// resolveConfigFile returns --config or the first projects.yaml found in the
// default locations
func resolveConfigFile() (string, error) {
	if configFile != "" {
		return configFile, nil
	}

	path, err := fileutil.FindConfig(ConfigFileName)
	if err != nil {
		return "", fmt.Errorf("no %s found in default locations %v, use --config to specify one", ConfigFileName, fileutil.DefaultConfigPaths(ConfigFileName))
	}
	return path, nil
}

// loadProject loads the configuration and returns one project from it
func loadProject(name string) (*project.Project, error) {
	path, err := resolveConfigFile()
	if err != nil {
		return nil, err
	}

	_, projects, err := project.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	proj, err := project.NewRegistry(projects).Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w in config file %s", err, path)
	}
	return proj, nil
}

// openStore opens the history database when the project keeps its build
// reports there. It returns nil otherwise.
func openStore(proj *project.Project) (*history.History, error) {
	if proj.Reports != project.BackendStore {
		return nil, nil
	}

	hist, err := history.NewHistory(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return hist, nil
}

// cliLogger logs to w at warn level, or debug level with --verbose, so hook
// output stays readable
func cliLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// gatedBranch names the branch a failed gate evaluation reports on: the
// requested ref, else the configured protected branch.
func gatedBranch(proj *project.Project, ref string) string {
	if ref != "" {
		return gate.BranchName(ref)
	}
	if proj.ProtectedBranch != "" {
		return proj.ProtectedBranch
	}
	return "default branch"
}
