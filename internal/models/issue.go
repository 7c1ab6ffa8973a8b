package models

// Issue is a tracker issue confirmed to exist remotely, with descriptive
// detail fetched at resolution time. Immutable once constructed; owned by
// the build's persisted update result.
type Issue struct {
	ID       string // normalized issue key, e.g. PROJ-42
	Summary  string
	Status   string
	Type     string
	Priority string
	Assignee string
	Reporter string
}
