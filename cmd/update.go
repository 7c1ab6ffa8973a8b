package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tracklinkhq/tracklink/internal/build"
	"github.com/tracklinkhq/tracklink/internal/comment"
	"github.com/tracklinkhq/tracklink/internal/models"
	"github.com/tracklinkhq/tracklink/internal/output"
	"github.com/tracklinkhq/tracklink/internal/resolve"
	"github.com/tracklinkhq/tracklink/internal/update"
)

var (
	updateWiki          bool
	updateRecordChanges bool
	updateCustomField   bool
)

var updateCmd = &cobra.Command{
	Use:   "update <build-record.yaml>",
	Short: "Run the tracker update step for a finished build",
	Long: `Scan the build record for issue keys, resolve them against the
tracker, and add a status comment to each resolved issue. With
--custom-field, also set the configured custom field on each issue.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateRun(cmd.Context(), args[0])
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateWiki, "wiki", false, "Render comments in wiki-style markup")
	updateCmd.Flags().BoolVar(&updateRecordChanges, "record-changes", false, "List changed files in each comment")
	updateCmd.Flags().BoolVar(&updateCustomField, "custom-field", false, "Also set the configured custom field")
	rootCmd.AddCommand(updateCmd)
}

func updateRun(ctx context.Context, recordPath string) error {
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
	policy, err := getPolicy()
	if err != nil {
		return err
	}

	engine := &build.Engine{Store: s}
	if err := engine.Prepare(ctx, rec); err != nil {
		return err
	}

	var browser comment.Browser
	if tmpl := viper.GetString("browser.url_template"); tmpl != "" {
		browser = &comment.TemplateBrowser{URLTemplate: tmpl}
	}

	resolver := resolve.New(s, site)
	orch := &update.Orchestrator{
		Store:         s,
		Site:          site,
		Resolver:      resolver,
		Policy:        policy,
		WikiStyle:     updateWiki || viper.GetBool("comment.wiki_style"),
		RecordChanges: updateRecordChanges || viper.GetBool("comment.record_changes"),
		RootURL:       viper.GetString("ci.root_url"),
		Browser:       browser,
		Log:           ui,
	}

	if err := orch.Run(ctx, rec); err != nil {
		return err
	}

	if updateCustomField {
		fieldID := viper.GetString("field.id")
		if fieldID == "" {
			return fmt.Errorf("field.id is not configured")
		}
		cfu := &update.CustomFieldUpdater{
			Store:      s,
			Site:       site,
			Resolver:   resolver,
			Policy:     policy,
			FieldID:    fieldID,
			FieldValue: viper.GetString("field.value"),
			Log:        ui,
		}
		if err := cfu.Run(ctx, rec); err != nil {
			return err
		}
	}

	ui.Success("update step finished for %s with outcome %s", rec.DisplayName(), output.OutcomeColor(rec.Outcome.String()))
	return nil
}

func getPolicy() (update.Policy, error) {
	policy := update.Policy{AlwaysUpdate: viper.GetBool("update.always")}
	min, err := models.ParseOutcome(viper.GetString("update.min_outcome"))
	if err != nil {
		return policy, fmt.Errorf("update.min_outcome: %w", err)
	}
	policy.MinOutcome = min
	return policy, nil
}
