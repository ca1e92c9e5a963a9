// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/paperscout/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ErrNotFound is returned when a lookup matches no paper.
var ErrNotFound = errors.New("paper not found")

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	DOI        string          `xml:"http://arxiv.org/schemas/atom doi"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// LookupArxiv fetches the record for an arXiv id from the arXiv API. The
// returned record has its PDF URL set.
func LookupArxiv(ctx context.Context, client *http.Client, id, userAgent string) (types.PaperRecord, error) {
	u := arxivAPIBase + "?id_list=" + url.QueryEscape(id) + "&max_results=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.PaperRecord{}, fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return types.PaperRecord{}, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.PaperRecord{}, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return types.PaperRecord{}, fmt.Errorf("parsing arXiv response: %w", err)
	}
	// Unknown ids come back as an entry without a title.
	if len(feed.Entries) == 0 || strings.TrimSpace(feed.Entries[0].Title) == "" {
		return types.PaperRecord{}, fmt.Errorf("%w: arXiv %s", ErrNotFound, id)
	}
	return feed.Entries[0].record(id), nil
}

func (e arxivEntry) record(id string) types.PaperRecord {
	rec := types.PaperRecord{
		Title:    collapseSpace(e.Title),
		Abstract: collapseSpace(e.Summary),
		DOI:      strings.TrimSpace(e.DOI),
		URL:      arxivAbsBase + id,
		PDFURL:   arxivPDFBase + id,
	}
	for _, a := range e.Authors {
		rec.Authors = append(rec.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range e.Categories {
		rec.Categories = append(rec.Categories, c.Term)
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		rec.Published = t.Format(time.DateOnly)
	}
	return rec
}

// collapseSpace joins the wrapped lines of Atom text fields.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
