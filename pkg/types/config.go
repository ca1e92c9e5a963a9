package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperscout/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AcquisitionConfig holds settings for downloading papers.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline"`

	// DownloadDir is the directory PDFs are written to (default "./papers").
	// It is created on demand.
	DownloadDir string `json:"download_dir" yaml:"download_dir"`
}

// Library types accepted by the Zotero Web API.
const (
	LibraryUser  = "user"
	LibraryGroup = "group"
)

// LibraryConfig holds the credentials and target collection for the
// reference-manager library.
type LibraryConfig struct {
	// LibraryID is the numeric Zotero user or group ID.
	LibraryID string `json:"library_id" yaml:"library_id"`

	// APIKey authenticates requests to the Zotero Web API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// LibraryType is "user" (default) or "group".
	LibraryType string `json:"library_type" yaml:"library_type"`

	// Collection is the collection every downloaded paper is filed into.
	// Empty means items are created without a collection.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
}

// Enabled reports whether enough credentials are present to catalog papers.
func (c LibraryConfig) Enabled() bool {
	return c.LibraryID != "" && c.APIKey != ""
}

// Config groups every setting the CLI passes into its components. It is
// built once at startup.
type Config struct {
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
	Library     LibraryConfig     `json:"library" yaml:"library"`

	// LedgerPath is the SQLite file that records download history.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}
