package build

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// recordYAML mirrors the build-record file a CI system writes after a
// build finishes.
type recordYAML struct {
	Job             string            `yaml:"job"`
	Number          int               `yaml:"number"`
	URL             string            `yaml:"url"`
	Outcome         string            `yaml:"outcome"`
	MatrixMember    bool              `yaml:"matrix_member"`
	Parameters      map[string]string `yaml:"parameters"`
	Environment     map[string]string `yaml:"environment"`
	IssueParameters []string          `yaml:"issue_parameters"`
	Changes         []changeYAML      `yaml:"changes"`
	Dependencies    []dependencyYAML  `yaml:"dependencies"`
}

type changeYAML struct {
	Message string     `yaml:"message"`
	Author  string     `yaml:"author"`
	Commit  string     `yaml:"commit"`
	Files   []fileYAML `yaml:"files"`
}

type fileYAML struct {
	Path string `yaml:"path"`
	Edit string `yaml:"edit"`
}

type dependencyYAML struct {
	Job    string         `yaml:"job"`
	Builds []depBuildYAML `yaml:"builds"`
}

type depBuildYAML struct {
	Number  int          `yaml:"number"`
	Changes []changeYAML `yaml:"changes"`
}

// LoadRecord reads a build-record YAML file into a Record.
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build record: %w", err)
	}
	return ParseRecord(data)
}

// ParseRecord parses build-record YAML.
func ParseRecord(data []byte) (*Record, error) {
	var raw recordYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse build record: %w", err)
	}
	if raw.Job == "" {
		return nil, fmt.Errorf("build record missing job name")
	}
	if raw.Number <= 0 {
		return nil, fmt.Errorf("build record missing build number")
	}

	outcome := models.OutcomeSuccess
	if raw.Outcome != "" {
		o, err := models.ParseOutcome(raw.Outcome)
		if err != nil {
			return nil, err
		}
		outcome = o
	}

	rec := &Record{
		Job:             raw.Job,
		Number:          raw.Number,
		URL:             raw.URL,
		Outcome:         outcome,
		MatrixMember:    raw.MatrixMember,
		Parameters:      raw.Parameters,
		Environment:     raw.Environment,
		IssueParameters: raw.IssueParameters,
		Changes:         toChanges(raw.Changes),
	}
	for _, dep := range raw.Dependencies {
		dc := DependencyChange{Job: dep.Job}
		for _, b := range dep.Builds {
			dc.Builds = append(dc.Builds, DependencyBuild{
				Job:     dep.Job,
				Number:  b.Number,
				Changes: toChanges(b.Changes),
			})
		}
		rec.Dependencies = append(rec.Dependencies, dc)
	}
	return rec, nil
}

func toChanges(raw []changeYAML) []models.ChangeEntry {
	var out []models.ChangeEntry
	for _, c := range raw {
		change := &models.Change{
			Msg:    c.Message,
			Author: c.Author,
			Commit: c.Commit,
		}
		for _, f := range c.Files {
			change.Files = append(change.Files, models.AffectedFile{Path: f.Path, EditType: f.Edit})
		}
		out = append(out, change)
	}
	return out
}
