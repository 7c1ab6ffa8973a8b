package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tracklinkhq/tracklink/internal/output"
	"github.com/tracklinkhq/tracklink/internal/store"
	"github.com/tracklinkhq/tracklink/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tracklink",
	Short: "Link build change history to tracker issues",
	Long: `tracklink scans a finished build's change history for issue keys,
resolves them against the configured issue tracker, and pushes build
status back to each issue as comments and custom-field values.
Unresolved references are carried forward to the next build of the job.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tracklink/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "tracklink")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRACKLINK")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "tracklink")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "tracklink.db"))
	viper.SetDefault("ci.root_url", "")
	viper.SetDefault("tracker.url", "")
	viper.SetDefault("tracker.username", "")
	viper.SetDefault("tracker.api_token", "")
	viper.SetDefault("tracker.pattern", `\b([A-Za-z][A-Za-z0-9]+-[0-9]+)\b`)
	viper.SetDefault("tracker.group_visibility", "")
	viper.SetDefault("tracker.role_visibility", "")
	viper.SetDefault("browser.url_template", "")
	viper.SetDefault("comment.wiki_style", false)
	viper.SetDefault("comment.record_changes", false)
	viper.SetDefault("update.always", false)
	viper.SetDefault("update.min_outcome", "UNSTABLE")
	viper.SetDefault("field.id", "")
	viper.SetDefault("field.value", "")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is initialized lazily so config/version commands can run
	// without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getSite builds the tracker site from configuration.
func getSite() (*tracker.Site, error) {
	pattern := viper.GetString("tracker.pattern")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker.pattern %q: %w", pattern, err)
	}

	return &tracker.Site{
		URL:             viper.GetString("tracker.url"),
		Username:        viper.GetString("tracker.username"),
		APIToken:        viper.GetString("tracker.api_token"),
		IssuePattern:    re,
		GroupVisibility: viper.GetString("tracker.group_visibility"),
		RoleVisibility:  viper.GetString("tracker.role_visibility"),
	}, nil
}
