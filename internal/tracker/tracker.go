// Package tracker defines the remote issue-tracker surface tracklink talks
// to: a configured Site that can open a Session, and the error taxonomy
// that lets callers tell "no such issue / no permission" apart from a
// communication failure.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// ErrNotPermitted marks a remote refusal: the issue does not exist or the
// caller lacks permission on it. For submission calls the tracker cannot
// reliably distinguish the two, so callers treat both as a
// permanently-invalid reference.
var ErrNotPermitted = errors.New("issue does not exist or is not permitted")

// ErrNotFound marks the tracker definitively answering "no such issue".
// It wraps ErrNotPermitted, so submission paths keep treating it as a
// permanently-invalid reference, while the existence check can tell it
// apart from an auth refusal that says nothing about the issue.
var ErrNotFound = fmt.Errorf("issue does not exist: %w", ErrNotPermitted)

// IsNotPermitted reports whether err is a not-found/no-permission refusal
// rather than a communication failure.
func IsNotPermitted(err error) bool {
	return errors.Is(err, ErrNotPermitted)
}

// IsNotFound reports whether err is a definitive "no such issue" answer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Session exposes the primitive remote operations against one tracker
// instance. Calls are synchronous; each may fail with an error satisfying
// IsNotPermitted, or with a generic communication error.
type Session interface {
	// ExistsIssue checks whether id refers to a real issue. A definitive
	// "not found" answer is (false, nil); an error means the check itself
	// could not be completed.
	ExistsIssue(ctx context.Context, id string) (bool, error)

	// GetIssue fetches full detail for an issue known to exist.
	GetIssue(ctx context.Context, id string) (*models.Issue, error)

	// AddComment appends a comment to the issue, optionally restricted to
	// a visibility group or role (group wins when both are set).
	AddComment(ctx context.Context, id, body, groupVisibility, roleVisibility string) error

	// UpdateCustomField sets a custom field on the issue to value.
	UpdateCustomField(ctx context.Context, id, fieldID, value string) error
}

// SessionOpener is the capability to open a remote session. Site is the
// standard implementation.
type SessionOpener interface {
	OpenSession(ctx context.Context) (Session, error)
}

// Site is the configured tracker instance for a job: where it lives, how
// issue keys look, and the default comment visibility.
type Site struct {
	URL      string
	Username string
	APIToken string

	// IssuePattern matches candidate issue keys in change messages. Its
	// first capturing group is the key.
	IssuePattern *regexp.Regexp

	// Default visibility scoping for submitted comments; blank means
	// unrestricted.
	GroupVisibility string
	RoleVisibility  string
}

// OpenSession connects to the tracker and verifies it is reachable.
// Failure here is a service-level failure: no per-issue work can proceed.
func (s *Site) OpenSession(ctx context.Context) (Session, error) {
	if s == nil || s.URL == "" {
		return nil, fmt.Errorf("tracker site is not configured")
	}
	sess := newJiraSession(s.URL, s.Username, s.APIToken)
	if err := sess.ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to tracker at %s: %w", s.URL, err)
	}
	return sess, nil
}
