// kolctl runs one-off operational tasks against the campaign database.
package main

import (
	"context"
	"fmt"
	"os"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/app"
	"kol-campaign-api-server/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir string
	logLevel  string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:           "kolctl",
	Short:         "Operational tasks for the KOL campaign platform",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cfg.Log.Level = logLevel
		cfg.Log.Format = "console"
		cfg.Log.File = ""
		zl, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}
		// jobs run synchronously so the process does not exit before they are sent
		application, err = app.New(cmd.Context(), cfg, zl, app.Options{})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./config", "directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(surveyLinksCmd, bulkSpecialtyCmd, sendRemindersCmd, importHcpsCmd, seedCmd)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if application != nil {
		if err != nil {
			application.Log.Debug("command failed", zap.Error(err))
		}
		application.Close(context.Background())
		_ = application.Log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
