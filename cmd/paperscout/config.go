package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paperscout/internal/secrets"
	"github.com/pdiddy/paperscout/pkg/types"
)

// Config keys.
const (
	keyDownloadDir = "download_dir"
	keyLibraryID   = "zotero.library_id"
	keyAPIKey      = "zotero.api_key"
	keyLibraryType = "zotero.library_type"
	keyCollection  = "zotero.collection"
	keyLedgerPath  = "ledger_path"
	keyLogLevel    = "log_level"
	keyTimeout     = "timeout"
)

const (
	defaultDownloadDir = "./papers"
	defaultLogLevel    = "info"
	defaultTimeout     = 60 * time.Second
	ledgerFile         = "paperscout.db"
)

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	keyDownloadDir: "DOWNLOAD_DIR",
	keyLibraryID:   "ZOTERO_LIBRARY_ID",
	keyAPIKey:      "ZOTERO_API_KEY",
	keyLibraryType: "ZOTERO_LIBRARY_TYPE",
	keyCollection:  "ZOTERO_COLLECTION",
	keyLedgerPath:  "PAPERSCOUT_LEDGER",
	keyLogLevel:    "PAPERSCOUT_LOG_LEVEL",
	keyTimeout:     "PAPERSCOUT_TIMEOUT",
}

// configureViper sets defaults and environment bindings on v.
func configureViper(v *viper.Viper) {
	v.SetDefault(keyDownloadDir, defaultDownloadDir)
	v.SetDefault(keyLibraryType, types.LibraryUser)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyTimeout, defaultTimeout.String())

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
}

// loadConfig builds the run configuration from v, falling back to s for
// library credentials.
func loadConfig(v *viper.Viper, s secrets.Secrets) (types.Config, error) {
	timeout, err := time.ParseDuration(v.GetString(keyTimeout))
	if err != nil || timeout <= 0 {
		return types.Config{}, fmt.Errorf("invalid timeout %q", v.GetString(keyTimeout))
	}

	level := strings.ToLower(strings.TrimSpace(v.GetString(keyLogLevel)))
	if _, err := parseLevel(level); err != nil {
		return types.Config{}, err
	}

	// An unknown library type is rejected when the library client is built,
	// which only disables cataloging.
	libType := strings.ToLower(strings.TrimSpace(v.GetString(keyLibraryType)))

	downloadDir := v.GetString(keyDownloadDir)
	ledgerPath := v.GetString(keyLedgerPath)
	if ledgerPath == "" {
		ledgerPath = defaultLedgerPath(downloadDir)
	}

	cfg := types.Config{
		Acquisition: types.AcquisitionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   timeout,
				UserAgent: userAgent(),
			},
			DownloadDir: downloadDir,
		},
		Library: types.LibraryConfig{
			LibraryID:   strings.TrimSpace(v.GetString(keyLibraryID)),
			APIKey:      strings.TrimSpace(v.GetString(keyAPIKey)),
			LibraryType: libType,
			Collection:  v.GetString(keyCollection),
		},
		LedgerPath: ledgerPath,
		LogLevel:   level,
	}
	s.ApplyLibrary(&cfg.Library)
	return cfg, nil
}

// defaultLedgerPath keeps the ledger and its WAL files out of the download
// directory. Without a user cache directory it falls back to downloadDir.
func defaultLedgerPath(downloadDir string) string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "paperscout", ledgerFile)
	}
	return filepath.Join(downloadDir, ledgerFile)
}

func userAgent() string {
	return "paperscout/" + version
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}

// setupLogger returns a text logger writing to w at the given level.
// Unknown levels fall back to info.
func setupLogger(level string, w io.Writer) *slog.Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
