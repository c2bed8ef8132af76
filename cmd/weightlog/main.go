package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weightlog/internal/config"
	"weightlog/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "weightlog",
	Short: "weightlog - a small self-hosted body weight log",
	Long: `weightlog records body weight entries and serves them over a JSON API
and a single page web app.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a JSON array of {weight, date} entries for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a password login",
	Args:  cobra.NoArgs,
	RunE:  runCreateUser,
}

var (
	importUser     string
	importUnit     string
	createUsername string
	createPassword string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "weightlog.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	importCmd.Flags().StringVar(&importUser, "user", "", "Username that owns the entries (required)")
	importCmd.Flags().StringVar(&importUnit, "unit", "kg", "Unit of every entry in the file (kg or lb)")
	_ = importCmd.MarkFlagRequired("user")

	createUserCmd.Flags().StringVar(&createUsername, "user", "", "Username (required)")
	createUserCmd.Flags().StringVar(&createPassword, "password", "", "Password (or set WEIGHTLOG_PASSWORD env)")
	_ = createUserCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(createUserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
