package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Safe patterns for validation
	repositoryPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+$`)
	branchPattern     = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
	projectPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	commitPattern     = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)
)

// ValidateRepository ensures a repository is given as owner/name.
func ValidateRepository(repository string) error {
	if repository == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	if !repositoryPattern.MatchString(repository) {
		return fmt.Errorf("repository must be in the form owner/name, got '%s'", repository)
	}
	if strings.Contains(repository, "..") {
		return fmt.Errorf("repository contains traversal elements: %s", repository)
	}
	return nil
}

// ValidateBranchName ensures branch name is safe for git operations.
// Prevents command injection through branch names.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if strings.Contains(branch, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters")
	}
	return nil
}

// ValidateProjectName ensures project name is safe for use in paths and URLs.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("project name cannot start with '-' or '.'")
	}
	if !projectPattern.MatchString(name) {
		return fmt.Errorf("project name contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)")
	}
	return nil
}

// ValidateCommitHash ensures a commit hash is hexadecimal before it reaches
// git or a database query. Abbreviated hashes of at least 4 digits are accepted.
func ValidateCommitHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("commit hash cannot be empty")
	}
	if !commitPattern.MatchString(hash) {
		return fmt.Errorf("commit hash must be 4 to 64 hexadecimal characters, got '%s'", hash)
	}
	return nil
}

// SanitizePath ensures a path is absolute and doesn't contain traversal attempts.
func SanitizePath(path string) (string, error) {
	// Must be absolute
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}

	// Check for .. before cleaning (filepath.Clean removes them)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains traversal elements: %s", path)
	}

	// Clean the path to remove ./ elements
	cleaned := filepath.Clean(path)

	return cleaned, nil
}
