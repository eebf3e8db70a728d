package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencode-ai/logvault/internal/config"
	"github.com/opencode-ai/logvault/internal/db"
	"github.com/opencode-ai/logvault/internal/dispatch"
	"github.com/opencode-ai/logvault/internal/logs"
	"github.com/opencode-ai/logvault/internal/store"
	"github.com/opencode-ai/logvault/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "logvault",
	Short:   "Durable, queryable, in-process structured logging",
	Long:    `logvault stores structured log events in a local SQLite database and serves them back through filters, pagination and a live tail.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("data-dir", "", "database directory")
	rootCmd.PersistentFlags().Bool("in-memory", false, "use an in-memory store")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sizeCmd)
}

// openService loads configuration and wires the store and dispatcher behind
// the facade.
func openService(cmd *cobra.Command) (logs.Service, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		viper.Set("data.directory", dir)
	}
	if inMem, _ := cmd.Flags().GetBool("in-memory"); inMem {
		viper.Set("data.inMemory", true)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(wd, debug)
	if err != nil {
		return nil, err
	}

	conn, err := db.Connect(db.Options{
		Path:         cfg.DatabasePath(),
		MaxSizeBytes: cfg.Data.MaxSizeBytes,
	})
	if err != nil {
		return nil, err
	}

	policy, err := cfg.DropPolicy()
	if err != nil {
		return nil, err
	}

	return logs.NewService(store.New(conn), cfg.AppName, dispatch.Options{
		QueueDepth: cfg.Queue.Depth,
		Policy:     policy,
	}), nil
}
