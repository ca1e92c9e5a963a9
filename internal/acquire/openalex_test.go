// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleOpenAlexOA = `{
  "id": "https://openalex.org/W1234567890",
  "doi": "https://doi.org/10.1145/1234567.1234568",
  "best_oa_location": {
    "pdf_url": "https://example.com/oa-paper.pdf",
    "landing_page_url": "https://example.com/paper-landing"
  }
}`

const sampleOpenAlexNoOA = `{
  "id": "https://openalex.org/W9999999999",
  "best_oa_location": null
}`

const sampleOpenAlexLandingOnly = `{
  "id": "https://openalex.org/W1111111111",
  "best_oa_location": {
    "pdf_url": "",
    "landing_page_url": "https://example.com/landing-only"
  }
}`

func withOpenAlexServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	orig := openAlexAPIBase
	openAlexAPIBase = ts.URL + "/"
	t.Cleanup(func() { openAlexAPIBase = orig })
}

func TestLookupOpenAccess(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		statusCode   int
		wantURL      string
		wantNotFound bool
	}{
		{"OA PDF available", sampleOpenAlexOA, http.StatusOK, "https://example.com/oa-paper.pdf", false},
		{"no OA location", sampleOpenAlexNoOA, http.StatusOK, "", true},
		{"landing page only", sampleOpenAlexLandingOnly, http.StatusOK, "", true},
		{"unknown DOI", `{"error": "not found"}`, http.StatusNotFound, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotUA string
			withOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotUA = r.Header.Get("User-Agent")
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.response)
			})

			got, err := LookupOpenAccess(context.Background(), http.DefaultClient, "10.1145/1234567.1234568", "paperscout-test")
			if gotPath != "/https://doi.org/10.1145/1234567.1234568" {
				t.Errorf("request path = %q", gotPath)
			}
			if gotUA != "paperscout-test" {
				t.Errorf("user agent = %q", gotUA)
			}
			if tt.wantNotFound {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("err = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LookupOpenAccess: %v", err)
			}
			if got != tt.wantURL {
				t.Errorf("LookupOpenAccess() = %q, want %q", got, tt.wantURL)
			}
		})
	}
}

func TestLookupOpenAccessServerError(t *testing.T) {
	withOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := LookupOpenAccess(context.Background(), http.DefaultClient, "10.1145/1", "")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want a non-ErrNotFound failure", err)
	}
}

func TestResolvePDF(t *testing.T) {
	calls := 0
	withOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, sampleOpenAlexOA)
	})

	src, err := ResolveSource("10.1145/1234567.1234568")
	if err != nil {
		t.Fatal(err)
	}
	src, err = src.ResolvePDF(context.Background(), http.DefaultClient, "")
	if err != nil {
		t.Fatalf("ResolvePDF: %v", err)
	}
	if src.PDFURL != "https://example.com/oa-paper.pdf" {
		t.Errorf("pdf url = %q", src.PDFURL)
	}

	arxiv, _ := ResolveSource("2301.07041")
	got, err := arxiv.ResolvePDF(context.Background(), http.DefaultClient, "")
	if err != nil || got != arxiv {
		t.Errorf("arxiv source changed: %+v, %v", got, err)
	}
	if calls != 1 {
		t.Errorf("OpenAlex calls = %d, want 1", calls)
	}
}
