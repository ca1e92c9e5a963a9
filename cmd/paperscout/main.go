// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperscout CLI: download paper
// PDFs and file them into a Zotero library.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperscout/internal/secrets"
	"github.com/pdiddy/paperscout/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// appConfig is built once before any subcommand runs.
var appConfig types.Config

var rootCmd = &cobra.Command{
	Use:   "paperscout",
	Short: "Download academic papers and file them into Zotero",
	Long: `paperscout downloads paper PDFs from the records produced by a discovery
step and, when Zotero credentials are configured, files each paper into a
library collection with its metadata, tags and the PDF attached.

Credentials come from flags, the environment (ZOTERO_LIBRARY_ID,
ZOTERO_API_KEY), a .env file, paperscout.yaml, or the .secrets/ directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(viper.GetViper(), s)
		if err != nil {
			return err
		}
		appConfig = cfg
		slog.SetDefault(setupLogger(cfg.LogLevel, os.Stderr))
		if f := viper.ConfigFileUsed(); f != "" {
			slog.Debug("using config file", "path", f)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./paperscout.yaml or ~/.config/paperscout/paperscout.yaml)")
	flags.String("download-dir", "", "directory PDFs are written to (default ./papers)")
	flags.String("collection", "", "Zotero collection to file papers into")
	flags.String("ledger", "", "download history database (default <user cache dir>/paperscout/paperscout.db)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("timeout", "", "HTTP request timeout (default 60s)")

	_ = viper.BindPFlag(keyDownloadDir, flags.Lookup("download-dir"))
	_ = viper.BindPFlag(keyCollection, flags.Lookup("collection"))
	_ = viper.BindPFlag(keyLedgerPath, flags.Lookup("ledger"))
	_ = viper.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag(keyTimeout, flags.Lookup("timeout"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paperscout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paperscout"))
		}
	}

	configureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("could not read config file", "error", err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
