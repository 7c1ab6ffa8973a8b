// Package comment renders the per-issue tracker comment for a finished
// build: a headline with the outcome and a link back to the build, followed
// by the change-log entries that mention the issue.
package comment

import (
	"fmt"
	"strings"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// Browser resolves a change entry to a browsable repository URL. Optional;
// without one, revisions are rendered as bare labels.
type Browser interface {
	ChangeSetLink(entry models.ChangeEntry) (string, error)
}

// Logger receives diagnostics about degraded rendering.
type Logger interface {
	Warning(format string, a ...any)
}

// Composer renders comments for one build in either plain text or
// wiki-style markup.
type Composer struct {
	BuildName string // e.g. "frontend #12"
	BuildURL  string // external build URL
	RootURL   string // CI root URL, used for the wiki icon reference
	Outcome   models.Outcome

	WikiStyle     bool
	RecordChanges bool

	Changes []models.ChangeEntry
	Browser Browser
	Log     Logger
}

// Compose renders the comment body for one issue. Only change entries
// whose message mentions the issue id (case-insensitively) are included,
// so each issue attached to the build gets its own scoped body.
//
// Example plain output:
//
//	SUCCESS: Integrated in frontend #12 (See [http://ci/job/frontend/12/])
//	PROJ-1: fix bug (jdoe: [https://git.example.com/c/9af8e4c])
func (c *Composer) Compose(issue *models.Issue) string {
	scm := c.scmComments(issue)
	if c.WikiStyle {
		return fmt.Sprintf("%s: Integrated in !%simages/16x16/%s! [%s|%s]\n%s",
			c.Outcome, c.RootURL, c.Outcome.Icon(), c.BuildName, c.BuildURL, scm)
	}
	return fmt.Sprintf("%s: Integrated in %s (See [%s])\n%s",
		c.Outcome, c.BuildName, c.BuildURL, scm)
}

func (c *Composer) scmComments(issue *models.Issue) string {
	var b strings.Builder
	for _, change := range c.Changes {
		if issue != nil && !containsIgnoreCase(change.Message(), issue.ID) {
			continue
		}

		b.WriteString(change.Message())
		if revision := models.RevisionOf(change); revision != "" {
			c.writeAttribution(&b, change, revision)
		}
		b.WriteString("\n")

		if c.RecordChanges {
			c.writeAffectedFiles(&b, change)
		}
	}
	return b.String()
}

// writeAttribution appends " (author: <link-or-rev>)" for a change that
// carries a revision identifier.
func (c *Composer) writeAttribution(b *strings.Builder, change models.ChangeEntry, revision string) {
	var link string
	if c.Browser != nil {
		url, err := c.Browser.ChangeSetLink(change)
		if err != nil {
			if c.Log != nil {
				c.Log.Warning("failed to calculate repository browser link: %v", err)
			}
		} else {
			link = url
		}
	}

	b.WriteString(" (")
	if author := change.AuthorID(); strings.TrimSpace(author) != "" {
		b.WriteString(author)
		b.WriteString(": ")
	}
	switch {
	case link != "" && c.WikiStyle:
		fmt.Fprintf(b, "[%s|%s]", revision, link)
	case link != "":
		fmt.Fprintf(b, "[%s]", link)
	default:
		b.WriteString("rev ")
		b.WriteString(revision)
	}
	b.WriteString(")")
}

// writeAffectedFiles appends one line per touched file. Entries that can't
// enumerate structured files degrade to plain path strings.
func (c *Composer) writeAffectedFiles(b *strings.Builder, change models.ChangeEntry) {
	if fe, ok := change.(models.FileEnumerating); ok {
		for _, f := range fe.AffectedFiles() {
			b.WriteString("* ")
			b.WriteString(f.Path)
			b.WriteString("\n")
		}
		return
	}
	for _, path := range change.AffectedPaths() {
		b.WriteString("* ")
		b.WriteString(path)
		b.WriteString("\n")
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
