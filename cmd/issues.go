package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tracklinkhq/tracklink/internal/output"
)

var issuesRuns bool

var issuesCmd = &cobra.Command{
	Use:   "issues <job> <build-number>",
	Short: "Show the issues resolved for a build",
	Long: `Show the persisted resolved-issue list for a build, and with
--runs the per-issue submission attempts recorded for it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid build number %q", args[1])
		}
		return issuesRun(cmd.Context(), args[0], number)
	},
}

func init() {
	issuesCmd.Flags().BoolVar(&issuesRuns, "runs", false, "Also list submission attempts")
	rootCmd.AddCommand(issuesCmd)
}

func issuesRun(ctx context.Context, job string, number int) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	issues, ok, err := s.Result(ctx, job, number)
	if err != nil {
		return err
	}
	if !ok {
		ui.Info("no resolution has run for %s #%d", job, number)
		return nil
	}
	if len(issues) == 0 {
		ui.Info("%s #%d resolved no issues", job, number)
		return nil
	}

	table := ui.Table([]string{"KEY", "STATUS", "TYPE", "ASSIGNEE", "SUMMARY"})
	for _, issue := range issues {
		table.Append([]string{
			output.Cyan(issue.ID),
			output.StatusColor(issue.Status),
			issue.Type,
			issue.Assignee,
			issue.Summary,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if issuesRuns {
		runs, err := s.ListUpdateRuns(ctx, job, number)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			ui.Info("no submission attempts recorded")
			return nil
		}
		fmt.Fprintln(ui.Out)
		runTable := ui.Table([]string{"WHEN", "ISSUE", "ACTION", "STATUS", "DETAIL"})
		for _, run := range runs {
			status := run.Status
			if status == "ok" {
				status = output.Green(status)
			}
			runTable.Append([]string{
				run.CreatedAt.Format("2006-01-02 15:04:05"),
				run.IssueID,
				run.Action,
				status,
				run.Detail,
			})
		}
		return runTable.Render()
	}
	return nil
}
