// Package git turns commits into commit artifacts on the time ledger.
// Shelling out to the git binary keeps the dependency surface small and
// matches what the hooks invoke anyway.
package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const logFormat = "%H|%s|%an <%ae>|%ci"

type CommitInfo struct {
	Hash         string
	Message      string
	Author       string
	Branch       string
	FilesChanged []string
	CommittedAt  time.Time
}

// IsRepo reports whether the working directory is inside a git repository.
func IsRepo() bool {
	return exec.Command("git", "rev-parse", "--git-dir").Run() == nil
}

// RepoRoot returns the repository root directory.
func RepoRoot() (string, error) {
	return runGit("rev-parse", "--show-toplevel")
}

// RepoName returns the repository's directory name.
func RepoName(repoPath string) string {
	return filepath.Base(repoPath)
}

// HeadCommit reads the HEAD commit.
func HeadCommit() (*CommitInfo, error) {
	line, err := runGit("log", "-1", "--format="+logFormat)
	if err != nil {
		return nil, err
	}

	info, err := parseLogLine(line)
	if err != nil {
		return nil, err
	}

	branch, err := runGit("rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		info.Branch = branch
	}
	info.FilesChanged = filesChanged(info.Hash)

	return info, nil
}

type HistoryOptions struct {
	Count  int       // 0 means all
	Since  time.Time // zero = no filter
	Branch string    // empty = all branches
}

// History lists commits newest first.
func History(opts HistoryOptions) ([]CommitInfo, error) {
	args := []string{"log", "--format=" + logFormat}
	if opts.Count > 0 {
		args = append(args, fmt.Sprintf("-n%d", opts.Count))
	}
	if !opts.Since.IsZero() {
		args = append(args, "--since="+opts.Since.Format("2006-01-02"))
	}
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	} else {
		args = append(args, "--all")
	}

	output, err := runGit(args...)
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	if output == "" {
		return []CommitInfo{}, nil
	}

	var commits []CommitInfo
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		info, err := parseLogLine(line)
		if err != nil {
			continue
		}
		info.Branch = branchOf(info.Hash)
		info.FilesChanged = filesChanged(info.Hash)
		commits = append(commits, *info)
	}
	return commits, nil
}

func parseLogLine(line string) (*CommitInfo, error) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		return nil, fmt.Errorf("unexpected log line %q", line)
	}

	committedAt, err := time.Parse("2006-01-02 15:04:05 -0700", parts[3])
	if err != nil {
		return nil, err
	}

	return &CommitInfo{
		Hash:        parts[0],
		Message:     parts[1],
		Author:      parts[2],
		CommittedAt: committedAt,
	}, nil
}

func filesChanged(hash string) []string {
	output, err := runGit("diff-tree", "--no-commit-id", "--name-only", "-r", hash)
	if err != nil {
		// Initial commit has no parent.
		output, err = runGit("ls-tree", "--name-only", "-r", hash)
		if err != nil {
			return []string{}
		}
	}
	if output == "" {
		return []string{}
	}
	return strings.Split(output, "\n")
}

func branchOf(hash string) string {
	output, err := runGit("branch", "--contains", hash, "--format=%(refname:short)")
	if err != nil || output == "" {
		return "unknown"
	}
	return strings.SplitN(output, "\n", 2)[0]
}

func runGit(args ...string) (string, error) {
	output, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
