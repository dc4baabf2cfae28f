// Package git reports whether a plugin install directory is a git working
// copy. Updates replace the directory wholesale, so a developer checkout
// would lose its history and local edits.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Level represents the severity of a git status.
type Level string

const (
	LevelOK      Level = "ok"      // Not a working copy
	LevelInfo    Level = "info"    // Clean working copy
	LevelWarning Level = "warning" // Uncommitted changes
	LevelError   Level = "error"   // Git operation failed
)

// Status represents the git status of an install directory.
type Status struct {
	Path           string `json:"path" yaml:"path"`
	IsGitRepo      bool   `json:"is_git_repo" yaml:"is_git_repo"`
	HasUncommitted bool   `json:"has_uncommitted" yaml:"has_uncommitted"`
	CurrentBranch  string `json:"current_branch,omitempty" yaml:"current_branch,omitempty"`
	Head           string `json:"head,omitempty" yaml:"head,omitempty"` // Abbreviated commit
	Level          Level  `json:"level" yaml:"level"`
	Message        string `json:"message" yaml:"message"`
}

// CommandRunner is an interface for running external commands.
// This allows for mocking in tests.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, error)
	RunInDir(dir, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner uses os/exec to run commands.
type DefaultCommandRunner struct{}

// Run executes a command in the current directory.
func (r *DefaultCommandRunner) Run(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.CombinedOutput()
}

// RunInDir executes a command in the specified directory.
func (r *DefaultCommandRunner) RunInDir(dir, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Checker inspects install directories.
type Checker struct {
	runner        CommandRunner
	skipPathCheck bool // For testing: skip filesystem path existence check
}

// NewChecker creates a new Checker with the default command runner.
func NewChecker() *Checker {
	return &Checker{runner: &DefaultCommandRunner{}}
}

// NewCheckerWithRunner creates a Checker with a custom command runner (for testing).
func NewCheckerWithRunner(runner CommandRunner) *Checker {
	return &Checker{runner: runner}
}

// SetSkipPathCheck sets whether to skip filesystem path existence checks (for testing).
func (c *Checker) SetSkipPathCheck(skip bool) {
	c.skipPathCheck = skip
}

// Inspect reports the git state of the directory at path. The directory
// must be the top of the working copy; a plugin directory nested inside
// a site-wide repository is not reported.
func (c *Checker) Inspect(path string) Status {
	status := Status{Path: path}

	if !c.skipPathCheck {
		if _, err := os.Stat(path); err != nil {
			status.Level = LevelError
			status.Message = fmt.Sprintf("path does not exist: %s", path)
			return status
		}
	}

	if !c.isTopLevel(path) {
		status.Level = LevelOK
		status.Message = "not a git working copy"
		return status
	}
	status.IsGitRepo = true

	branch, err := c.getCurrentBranch(path)
	if err != nil {
		status.Level = LevelError
		status.Message = fmt.Sprintf("failed to get current branch: %v", err)
		return status
	}
	status.CurrentBranch = branch

	if head, err := c.getHead(path); err == nil {
		status.Head = head
	}

	hasChanges, err := c.hasUncommittedChanges(path)
	if err != nil {
		status.Level = LevelError
		status.Message = fmt.Sprintf("failed to check working tree: %v", err)
		return status
	}
	status.HasUncommitted = hasChanges

	if hasChanges {
		status.Level = LevelWarning
		status.Message = "working copy with uncommitted changes; an update will discard them"
		return status
	}

	status.Level = LevelInfo
	status.Message = "clean working copy; an update will replace the checkout"
	return status
}

// isTopLevel checks that path is the root of a git working copy.
func (c *Checker) isTopLevel(path string) bool {
	output, err := c.runner.RunInDir(path, "git", "rev-parse", "--show-prefix")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == ""
}

func (c *Checker) getCurrentBranch(path string) (string, error) {
	output, err := c.runner.RunInDir(path, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (c *Checker) getHead(path string) (string, error) {
	output, err := c.runner.RunInDir(path, "git", "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// hasUncommittedChanges checks for uncommitted or unstaged changes.
func (c *Checker) hasUncommittedChanges(path string) (bool, error) {
	output, err := c.runner.RunInDir(path, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	// Any output means there are changes
	return strings.TrimSpace(string(output)) != "", nil
}

// GitAvailable checks if git is available on the system.
func (c *Checker) GitAvailable() bool {
	_, err := c.runner.Run("git", "--version")
	return err == nil
}
