package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/extract"
	"github.com/tracklinkhq/tracklink/internal/git"
	"github.com/tracklinkhq/tracklink/internal/models"
)

var (
	scanRepoPath string
	scanFromRev  string
	scanToRev    string
)

var scanCmd = &cobra.Command{
	Use:   "scan [build-record.yaml]",
	Short: "Extract issue keys without touching the tracker",
	Long: `Scan change messages for issue keys and print them. Reads either a
build-record file or, with --path and --from, a git revision range.
No remote calls are made, so this works before the tracker project exists.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var recordPath string
		if len(args) > 0 {
			recordPath = args[0]
		}
		return scanRun(recordPath)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanRepoPath, "path", ".", "Git repository to scan")
	scanCmd.Flags().StringVar(&scanFromRev, "from", "", "Start revision (exclusive)")
	scanCmd.Flags().StringVar(&scanToRev, "to", "HEAD", "End revision")
	rootCmd.AddCommand(scanCmd)
}

func scanRun(recordPath string) error {
	var changes []models.ChangeEntry

	switch {
	case recordPath != "":
		rec, err := build.LoadRecord(recordPath)
		if err != nil {
			return err
		}
		changes = rec.Changes
		for _, dep := range rec.Dependencies {
			for _, b := range dep.Builds {
				changes = append(changes, b.Changes...)
			}
		}
	case scanFromRev != "":
		gc := git.NewClient()
		// Resolve to the repository root so scans started from a
		// subdirectory still cover the whole checkout.
		root, err := gc.RepoRoot(scanRepoPath)
		if err != nil {
			return err
		}
		changes, err = gc.ChangesSince(root, scanFromRev, scanToRev)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either a build-record file or --from is required")
	}

	site, err := getSite()
	if err != nil {
		return err
	}

	ids := models.NewTokenSet()
	for _, change := range changes {
		ids.Add(extract.Tokens(change.Message(), site.IssuePattern, ui)...)
	}

	if ids.Len() == 0 {
		ui.Info("no issue keys found in %d change(s)", len(changes))
		return nil
	}
	for _, id := range ids.Tokens() {
		fmt.Fprintln(ui.Out, id)
	}
	return nil
}
