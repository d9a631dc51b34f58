package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Safe patterns for validation
	branchPattern  = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
	servicePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	repoPattern    = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)
)

// ValidateBranchName ensures a branch name is a plain git branch.
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

// ValidateServiceName ensures a service name is safe for use in URLs and logs.
func ValidateServiceName(name string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("service name cannot start with '-' or '.'")
	}
	if !servicePattern.MatchString(name) {
		return fmt.Errorf("service name contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)")
	}
	return nil
}

// ValidateRepository checks an "owner/repo" slug.
func ValidateRepository(ownerRepo string) (owner, repo string, err error) {
	if !repoPattern.MatchString(ownerRepo) || strings.Contains(ownerRepo, "..") {
		return "", "", fmt.Errorf("invalid owner/repo format: %q", ownerRepo)
	}
	owner, repo, _ = strings.Cut(ownerRepo, "/")
	return owner, repo, nil
}

// SanitizePath ensures a path is absolute and doesn't contain traversal attempts.
func SanitizePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}

	// Check for .. before cleaning (filepath.Clean removes them)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains traversal elements: %s", path)
	}

	return filepath.Clean(path), nil
}
