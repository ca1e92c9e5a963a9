// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads paper PDFs to local storage and hands each
// successful download to an optional Filer for cataloging.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paperscout/pkg/types"
)

const (
	// chunkSize is the buffer used when streaming a response body to disk.
	chunkSize = 8192

	// maxTitleLen caps the filename stem, in characters.
	maxTitleLen = 100

	defaultDownloadDir = "./papers"
)

var (
	// ErrHTTP marks a failed request or a non-2xx response.
	ErrHTTP = errors.New("http fetch failed")

	// ErrFilesystem marks a failure writing the downloaded file.
	ErrFilesystem = errors.New("filesystem write failed")
)

// Filer catalogs a downloaded file. *library.Cataloger implements it.
type Filer interface {
	FileOne(ctx context.Context, path string, record types.PaperRecord, collection string, tags []string) (string, error)
}

// FetchResult is the outcome of fetching one record.
type FetchResult struct {
	Record types.PaperRecord

	// Path is the written file; empty when the fetch failed or was skipped.
	Path string

	// ItemKey is the library item created for the file, if cataloging ran
	// and succeeded.
	ItemKey string

	// Err is the download failure, wrapping ErrHTTP or ErrFilesystem.
	Err error

	// CatalogErr is the cataloging failure. It does not make the fetch fail.
	CatalogErr error

	// Skipped is set for records without a PDF URL.
	Skipped bool
}

// OK reports whether the file was downloaded.
func (r FetchResult) OK() bool {
	return !r.Skipped && r.Err == nil
}

// Acquirer downloads papers into a single directory.
type Acquirer struct {
	client     *http.Client
	dir        string
	userAgent  string
	filer      Filer
	collection string
	logger     *slog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithFiler enables cataloging: every successful download is passed to f
// and filed under collection (empty for none).
func WithFiler(f Filer, collection string) Option {
	return func(a *Acquirer) {
		a.filer = f
		a.collection = collection
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) {
		a.logger = l
	}
}

// New creates an Acquirer writing to cfg.DownloadDir, creating the
// directory if it does not exist.
func New(client *http.Client, cfg types.AcquisitionConfig, opts ...Option) (*Acquirer, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	dir := cfg.DownloadDir
	if dir == "" {
		dir = defaultDownloadDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory %s: %w", dir, err)
	}

	a := &Acquirer{
		client:    client,
		dir:       dir,
		userAgent: cfg.UserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Dir returns the download directory.
func (a *Acquirer) Dir() string { return a.dir }

// Filename derives the on-disk name for a paper title: slashes become
// underscores and the stem is cut to 100 characters. Titles are not
// otherwise sanitized, and an empty title yields ".pdf".
func Filename(title string) string {
	stem := []rune(strings.ReplaceAll(title, "/", "_"))
	if len(stem) > maxTitleLen {
		stem = stem[:maxTitleLen]
	}
	return string(stem) + ".pdf"
}

// FetchOne downloads url and returns the written path. It never returns an
// error: failures are logged and reported as ok == false.
func (a *Acquirer) FetchOne(ctx context.Context, url string, record types.PaperRecord) (path string, ok bool) {
	res := a.Fetch(ctx, url, record)
	return res.Path, res.OK()
}

// Fetch downloads url into the download directory, naming the file after
// record.Title. On success the file is handed to the Filer, if one is
// configured; cataloging errors are logged and recorded in CatalogErr
// without failing the fetch.
func (a *Acquirer) Fetch(ctx context.Context, url string, record types.PaperRecord) FetchResult {
	res := FetchResult{Record: record}

	path := filepath.Join(a.dir, Filename(record.Title))
	if err := a.download(ctx, url, path); err != nil {
		a.logger.Error("failed to download paper", "url", url, "title", record.Title, "error", err)
		res.Err = err
		return res
	}
	res.Path = path
	a.logger.Info("downloaded paper", "path", path)

	if a.filer == nil {
		return res
	}
	key, err := a.filer.FileOne(ctx, path, record, a.collection, record.Categories)
	if err != nil {
		a.logger.Error("failed to add paper to library", "path", path, "error", err)
		res.CatalogErr = err
		return res
	}
	res.ItemKey = key
	a.logger.Info("added paper to library", "item", key, "collection", a.collection)
	return res
}

// FetchAll fetches every record in order and returns one result per record.
// Records without a PDF URL are marked Skipped and cause no request.
func (a *Acquirer) FetchAll(ctx context.Context, records []types.PaperRecord) []FetchResult {
	results := make([]FetchResult, 0, len(records))
	for _, rec := range records {
		if rec.PDFURL == "" {
			results = append(results, FetchResult{Record: rec, Skipped: true})
			continue
		}
		results = append(results, a.Fetch(ctx, rec.PDFURL, rec))
	}
	return results
}

// FetchMany fetches every record that has a PDF URL and returns the paths
// of the successful downloads in input order. Failures are only logged, so
// a result shorter than the input means some records were skipped or failed.
func (a *Acquirer) FetchMany(ctx context.Context, records []types.PaperRecord) []string {
	var paths []string
	for _, res := range a.FetchAll(ctx, records) {
		if res.OK() {
			paths = append(paths, res.Path)
		}
	}
	return paths
}

// download streams url to destPath through a temporary file in the same
// directory, so a failed transfer never leaves a partial PDF behind.
func (a *Acquirer) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", ErrHTTP, err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHTTP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d from %s", ErrHTTP, resp.StatusCode, url)
	}
	if isWebPage(resp.Header.Get("Content-Type")) {
		return fmt.Errorf("%w: %s returned a web page, not a PDF", ErrHTTP, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrFilesystem, err)
	}
	tmpPath := tmpFile.Name()

	// The wrappers hide ReadFrom/WriteTo so the copy goes through buf.
	body := &bodyReader{r: resp.Body}
	buf := make([]byte, chunkSize)
	_, copyErr := io.CopyBuffer(struct{ io.Writer }{tmpFile}, body, buf)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		if body.err != nil {
			return fmt.Errorf("%w: reading response body: %w", ErrHTTP, body.err)
		}
		return fmt.Errorf("%w: writing download: %w", ErrFilesystem, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %w", ErrFilesystem, closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming temp file: %w", ErrFilesystem, err)
	}
	return nil
}

// isWebPage reports whether a Content-Type is an HTML document, as served
// by publisher landing pages and login walls.
func isWebPage(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// bodyReader remembers read errors so a dropped connection is reported as
// ErrHTTP rather than a write failure.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		b.err = err
	}
	return n, err
}
