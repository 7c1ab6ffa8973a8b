package models

// ChangeEntry is one source-control change in a build's change set.
// Implementations may additionally expose the capability interfaces below;
// callers discover them with type assertions.
type ChangeEntry interface {
	// Message returns the full commit/change message text.
	Message() string
	// AuthorID returns the author identity, possibly blank.
	AuthorID() string
	// AffectedPaths returns the paths touched by this change as plain
	// strings. Always supported, if only as a degraded view.
	AffectedPaths() []string
}

// CommitIdentified is implemented by change entries that carry a
// commit/revision identifier.
type CommitIdentified interface {
	CommitID() string
}

// LegacyRevisioned is implemented by change entries from older SCM
// representations that expose a numeric revision instead of a commit id.
type LegacyRevisioned interface {
	Revision() string
}

// FileEnumerating is implemented by change entries that can enumerate
// affected files as structured data rather than bare paths.
type FileEnumerating interface {
	AffectedFiles() []AffectedFile
}

// AffectedFile is one file touched by a change.
type AffectedFile struct {
	Path     string
	EditType string // add, edit, delete; may be blank
}

// Change is the standard concrete ChangeEntry used by build records and
// the git changelog source.
type Change struct {
	Msg    string
	Author string
	Commit string
	Files  []AffectedFile
}

func (c *Change) Message() string  { return c.Msg }
func (c *Change) AuthorID() string { return c.Author }
func (c *Change) CommitID() string { return c.Commit }

func (c *Change) AffectedPaths() []string {
	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

func (c *Change) AffectedFiles() []AffectedFile { return c.Files }

// RevisionOf extracts a revision-like identifier from a change entry:
// the commit id when present, the legacy revision as a fallback, or ""
// when the entry identifies neither.
func RevisionOf(entry ChangeEntry) string {
	if c, ok := entry.(CommitIdentified); ok {
		if id := c.CommitID(); id != "" {
			return id
		}
	}
	if r, ok := entry.(LegacyRevisioned); ok {
		return r.Revision()
	}
	return ""
}
