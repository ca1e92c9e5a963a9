// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/paperscout/pkg/types"
)

// SourceKind classifies a one-off download reference.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceArxiv
	SourceDOI
	SourceURL
)

func (k SourceKind) String() string {
	switch k {
	case SourceArxiv:
		return "arxiv"
	case SourceDOI:
		return "doi"
	case SourceURL:
		return "url"
	default:
		return "unknown"
	}
}

// Declared as vars so tests can point them at httptest servers.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	arxivAbsBase = "https://arxiv.org/abs/"
	doiBase      = "https://doi.org/"
)

// ErrUnknownSource is returned for references that are neither an arXiv
// id, a DOI, nor an absolute http(s) URL.
var ErrUnknownSource = errors.New("unrecognized paper reference")

// arxivRef matches "2301.07041", "arXiv:2301.07041" and "2301.07041v2".
var arxivRef = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// doiRef matches bare DOIs such as "10.1145/1234567.1234568".
var doiRef = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// Source is a resolved download reference.
type Source struct {
	Kind SourceKind

	// ID is the normalized arXiv id or DOI; empty for plain URLs.
	ID string

	// PDFURL is where the PDF is fetched from. It is empty for a DOI until
	// ResolvePDF finds an open-access copy; doi.org itself serves landing
	// pages, not PDFs.
	PDFURL string
}

// ResolveSource classifies ref and derives its PDF location.
func ResolveSource(ref string) (Source, error) {
	ref = strings.TrimSpace(ref)

	if m := arxivRef.FindStringSubmatch(ref); m != nil {
		return Source{Kind: SourceArxiv, ID: m[1], PDFURL: arxivPDFBase + m[1]}, nil
	}
	if doiRef.MatchString(ref) {
		return Source{Kind: SourceDOI, ID: ref}, nil
	}
	if IsWebURL(ref) {
		return Source{Kind: SourceURL, PDFURL: ref}, nil
	}
	return Source{}, fmt.Errorf("%w: %q", ErrUnknownSource, ref)
}

// Apply fills the record's PDF URL, and its DOI and landing URL where the
// source implies them and the record has none.
func (s Source) Apply(rec *types.PaperRecord) {
	rec.PDFURL = s.PDFURL
	switch s.Kind {
	case SourceArxiv:
		if rec.URL == "" {
			rec.URL = arxivAbsBase + s.ID
		}
	case SourceDOI:
		if rec.DOI == "" {
			rec.DOI = s.ID
		}
		if rec.URL == "" {
			rec.URL = doiBase + s.ID
		}
	}
}

// IsWebURL reports whether raw is an absolute http or https URL with a host.
func IsWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
