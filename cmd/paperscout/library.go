package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pdiddy/paperscout/internal/library"
	"github.com/pdiddy/paperscout/pkg/types"
)

var errNoLibrary = errors.New("zotero credentials are not configured (set ZOTERO_LIBRARY_ID and ZOTERO_API_KEY)")

// libraryOptions lets tests point the client at a fake server.
var libraryOptions []library.ClientOption

// newCataloger builds a Cataloger from cfg. It returns errNoLibrary when
// the credentials are incomplete.
func newCataloger(cfg types.Config) (*library.Cataloger, error) {
	if !cfg.Library.Enabled() {
		return nil, errNoLibrary
	}
	opts := []library.ClientOption{
		library.WithHTTPClient(&http.Client{Timeout: cfg.Acquisition.Timeout}),
		library.WithUserAgent(cfg.Acquisition.UserAgent),
		library.WithClientLogger(slog.Default()),
	}
	client, err := library.NewClient(cfg.Library, append(opts, libraryOptions...)...)
	if err != nil {
		return nil, err
	}
	return library.NewCataloger(client, library.WithLogger(slog.Default())), nil
}

// optionalCataloger is newCataloger for commands where cataloging is an
// extra: missing credentials disable it quietly, and a bad configuration
// is logged as a warning.
func optionalCataloger(cfg types.Config) *library.Cataloger {
	cat, err := newCataloger(cfg)
	switch {
	case errors.Is(err, errNoLibrary):
		slog.Debug("cataloging disabled: no library credentials")
		return nil
	case err != nil:
		slog.Warn("cataloging disabled", "error", err)
		return nil
	}
	return cat
}
