// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfmeta reads what little metadata a downloaded PDF can offer:
// its page count and a DOI printed on the first pages. Both are best
// effort; callers treat errors as "unknown".
package pdfmeta

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/paperscout/pkg/types"
)

// doiScanPages is how many leading pages ExtractDOI searches.
const doiScanPages = 3

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (n int, err error) {
	err = withReader(path, func(r *pdf.Reader) error {
		n = r.NumPage()
		return nil
	})
	return n, err
}

// ExtractDOI returns the first DOI found in the text of the first pages
// of the PDF at path, or "" when there is none.
func ExtractDOI(path string) (doi string, err error) {
	err = withReader(path, func(r *pdf.Reader) error {
		last := min(r.NumPage(), doiScanPages)
		for i := 1; i <= last; i++ {
			page := r.Page(i)
			if page.V.IsNull() {
				continue
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				continue
			}
			if doi = FindDOI(text); doi != "" {
				return nil
			}
		}
		return nil
	})
	return doi, err
}

// FillDOI sets entry's DOI from its PDF when the metadata has none. It
// reports whether a DOI was filled.
func FillDOI(entry *types.CatalogEntry) bool {
	if entry.Metadata.DOI != "" || entry.Path == "" {
		return false
	}
	doi, err := ExtractDOI(entry.Path)
	if err != nil || doi == "" {
		return false
	}
	entry.Metadata.DOI = doi
	return true
}

// FindDOI returns the first plausible DOI in text, without trailing
// punctuation.
func FindDOI(text string) string {
	for _, m := range doiPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:)")
		if isValidDOI(m) {
			return m
		}
	}
	return ""
}

func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}

// withReader opens path and runs fn on it. The pdf package panics on some
// malformed files; those panics are returned as errors.
func withReader(path string, fn func(*pdf.Reader) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reading pdf %s: %v", path, p)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()
	return fn(r)
}
