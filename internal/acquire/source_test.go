// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"testing"

	"github.com/pdiddy/paperscout/pkg/types"
)

func TestResolveSource(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind SourceKind
		wantID   string
		wantURL  string
	}{
		{"arxiv bare", "2301.07041", SourceArxiv, "2301.07041", "https://arxiv.org/pdf/2301.07041"},
		{"arxiv prefixed", "arXiv:1706.03762", SourceArxiv, "1706.03762", "https://arxiv.org/pdf/1706.03762"},
		{"arxiv versioned", "2301.07041v2", SourceArxiv, "2301.07041v2", "https://arxiv.org/pdf/2301.07041v2"},
		{"doi", "10.1145/3290605.3300857", SourceDOI, "10.1145/3290605.3300857", ""},
		{"https url", "https://example.org/paper.pdf", SourceURL, "", "https://example.org/paper.pdf"},
		{"http url", "http://example.org/p", SourceURL, "", "http://example.org/p"},
		{"surrounding whitespace", "  2301.07041  ", SourceArxiv, "2301.07041", "https://arxiv.org/pdf/2301.07041"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSource(tt.input)
			if err != nil {
				t.Fatalf("ResolveSource(%q): %v", tt.input, err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.ID != tt.wantID {
				t.Errorf("id = %q, want %q", got.ID, tt.wantID)
			}
			if got.PDFURL != tt.wantURL {
				t.Errorf("pdf url = %q, want %q", got.PDFURL, tt.wantURL)
			}
		})
	}
}

func TestResolveSourceRejects(t *testing.T) {
	for _, in := range []string{"", "hello", "ftp://example.org/a.pdf", "/local/file.pdf", "2301.07", "https://"} {
		_, err := ResolveSource(in)
		if !errors.Is(err, ErrUnknownSource) {
			t.Errorf("ResolveSource(%q) err = %v, want ErrUnknownSource", in, err)
		}
	}
}

func TestSourceApply(t *testing.T) {
	src, _ := ResolveSource("10.1000/xyz123")
	rec := types.PaperRecord{Title: "T"}
	src.Apply(&rec)
	if rec.PDFURL != "" || rec.DOI != "10.1000/xyz123" || rec.URL != "https://doi.org/10.1000/xyz123" {
		t.Errorf("doi apply: %+v", rec)
	}

	src, _ = ResolveSource("2301.07041")
	rec = types.PaperRecord{URL: "https://keep.example"}
	src.Apply(&rec)
	if rec.URL != "https://keep.example" {
		t.Errorf("existing url overwritten: %q", rec.URL)
	}
	if rec.DOI != "" {
		t.Errorf("arxiv source set doi %q", rec.DOI)
	}
}

func TestSourceKindString(t *testing.T) {
	if SourceArxiv.String() != "arxiv" || SourceUnknown.String() != "unknown" {
		t.Error("unexpected SourceKind strings")
	}
}
