// Package git derives change entries from a local repository, for running
// the reference scan outside a CI-provided changelog.
package git

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// Client defines the git operations tracklink needs. All methods take a
// path parameter since scans may target arbitrary checkouts.
type Client interface {
	RepoRoot(path string) (string, error)
	ChangesSince(path, fromRev, toRev string) ([]models.ChangeEntry, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

// ChangesSince returns one change entry per commit in fromRev..toRev,
// oldest first. toRev defaults to HEAD.
func (c *RealClient) ChangesSince(path, fromRev, toRev string) ([]models.ChangeEntry, error) {
	if toRev == "" {
		toRev = "HEAD"
	}
	out, err := gitCmd(path, "rev-list", "--reverse", fromRev+".."+toRev)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var changes []models.ChangeEntry
	for _, hash := range strings.Split(out, "\n") {
		change, err := c.changeAt(path, hash)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// changeAt reads one commit's metadata and touched files.
func (c *RealClient) changeAt(path, hash string) (*models.Change, error) {
	// author and full message, separated by a unit separator
	meta, err := gitCmd(path, "show", "-s", "--format=%an%x1f%B", hash)
	if err != nil {
		return nil, err
	}
	author, msg, _ := strings.Cut(meta, "\x1f")

	files, err := gitCmd(path, "show", "--name-status", "--format=", hash)
	if err != nil {
		return nil, err
	}

	change := &models.Change{
		Msg:    strings.TrimSpace(msg),
		Author: author,
		Commit: hash,
		Files:  ParseNameStatus(files),
	}
	return change, nil
}

// ParseNameStatus parses `git show --name-status` output lines such as
// "M\tsrc/a.go" into affected files.
func ParseNameStatus(out string) []models.AffectedFile {
	var files []models.AffectedFile
	for _, line := range strings.Split(out, "\n") {
		status, file, ok := strings.Cut(line, "\t")
		if !ok || file == "" {
			continue
		}
		files = append(files, models.AffectedFile{
			Path:     file,
			EditType: editType(status),
		})
	}
	return files
}

func editType(status string) string {
	switch {
	case strings.HasPrefix(status, "A"):
		return "add"
	case strings.HasPrefix(status, "D"):
		return "delete"
	default:
		return "edit"
	}
}
