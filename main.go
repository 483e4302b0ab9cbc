package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bikes-api/config"
	"bikes-api/utils"
)

var (
	configPath string

	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bikes",
	Short: "Bikes web app and JSON API",
	Long: `bikes serves a small catalogue of bikes: HTML pages for signed-in users,
a public JSON API and a single-page client.

Configuration comes from an optional YAML file (--config) overridden by
environment variables such as PORT, DB_DRIVER, DATABASE_URL and SESSION_SECRET.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log = utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
