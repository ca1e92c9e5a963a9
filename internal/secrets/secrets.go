// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials from a directory of plain-text files,
// one secret per file: the filename is the key and the trimmed contents are
// the value. Recognized files are zotero-api-key and zotero-library-id.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paperscout/pkg/types"
)

// DefaultDir is the secrets directory relative to the working directory.
const DefaultDir = ".secrets"

// Recognized secret files.
const (
	ZoteroAPIKey    = "zotero-api-key"
	ZoteroLibraryID = "zotero-library-id"
)

// Secrets maps secret names to values.
type Secrets map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty set. Unreadable files are logged and skipped.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// ApplyLibrary fills library credentials that cfg does not already carry.
// Values from flags, the environment or the config file take precedence.
func (s Secrets) ApplyLibrary(cfg *types.LibraryConfig) {
	if cfg.APIKey == "" {
		cfg.APIKey = s[ZoteroAPIKey]
	}
	if cfg.LibraryID == "" {
		cfg.LibraryID = s[ZoteroLibraryID]
	}
}
