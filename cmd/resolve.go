package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/output"
	"github.com/tracklinkhq/tracklink/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <build-record.yaml>",
	Short: "Resolve a build's issue references without updating them",
	Long: `Collect candidate issue keys for the build, confirm them against the
tracker, and persist the resolved list. Reuses an already-persisted
result instead of repeating remote lookups.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveRun(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func resolveRun(ctx context.Context, recordPath string) error {
	rec, err := build.LoadRecord(recordPath)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	site, err := getSite()
	if err != nil {
		return err
	}

	if err := s.RecordBuild(ctx, rec.Job, rec.Number); err != nil {
		return err
	}
	engine := &build.Engine{Store: s}
	if err := engine.Prepare(ctx, rec); err != nil {
		return err
	}

	session, err := site.OpenSession(ctx)
	if err != nil {
		return err
	}

	issues, err := resolve.New(s, site).IssuesFor(ctx, session, rec, ui)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		ui.Info("%s resolved no issues", rec.DisplayName())
		return nil
	}
	table := ui.Table([]string{"KEY", "STATUS", "SUMMARY"})
	for _, issue := range issues {
		table.Append([]string{output.Cyan(issue.ID), output.StatusColor(issue.Status), issue.Summary})
	}
	return table.Render()
}
