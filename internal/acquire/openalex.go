// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

type openAlexWork struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// LookupOpenAccess asks OpenAlex for the open-access PDF of a DOI. It
// returns ErrNotFound when OpenAlex does not know the DOI or lists no PDF
// for it.
func LookupOpenAccess(ctx context.Context, client *http.Client, doi, userAgent string) (string, error) {
	apiURL := openAlexAPIBase + doiBase + doi
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating OpenAlex request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: DOI %s is unknown to OpenAlex", ErrNotFound, doi)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if work.BestOALocation == nil || work.BestOALocation.PDFURL == "" {
		return "", fmt.Errorf("%w: no open-access PDF for DOI %s", ErrNotFound, doi)
	}
	return work.BestOALocation.PDFURL, nil
}

// ResolvePDF fills in the PDF location of a DOI source from OpenAlex.
// Other sources already carry one and are returned unchanged.
func (s Source) ResolvePDF(ctx context.Context, client *http.Client, userAgent string) (Source, error) {
	if s.Kind != SourceDOI || s.PDFURL != "" {
		return s, nil
	}
	pdfURL, err := LookupOpenAccess(ctx, client, s.ID, userAgent)
	if err != nil {
		return s, err
	}
	s.PDFURL = pdfURL
	return s, nil
}
