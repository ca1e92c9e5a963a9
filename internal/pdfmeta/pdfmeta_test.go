// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfmeta

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperscout/pkg/types"
)

// writeBlankPDF writes a PDF with the given number of empty pages and a
// correct cross-reference table.
func writeBlankPDF(t *testing.T, pages int) string {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	path := filepath.Join(t.TempDir(), "blank.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(writeBlankPDF(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExtractDOIBlankPDF(t *testing.T) {
	doi, _ := ExtractDOI(writeBlankPDF(t, 1))
	assert.Empty(t, doi)
}

func TestNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("<html>not a pdf</html>"), 0o644))

	_, err := PageCount(path)
	assert.Error(t, err)
	_, err = ExtractDOI(path)
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := PageCount(filepath.Join(t.TempDir(), "none.pdf"))
	assert.Error(t, err)
}

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "doi: 10.1145/3290605.3300857 more text", "10.1145/3290605.3300857"},
		{"trailing period", "See https://doi.org/10.1038/nature14539.", "10.1038/nature14539"},
		{"in parens", "(10.48550/arXiv.1706.03762)", "10.48550/arXiv.1706.03762"},
		{"first wins", "10.1000/first and 10.1000/second", "10.1000/first"},
		{"none", "no identifiers here", ""},
		{"registrant too short", "10.12/abc", ""},
		{"nothing after slash", "10.12345/ end", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindDOI(tt.text))
		})
	}
}

func TestFillDOI(t *testing.T) {
	keep := types.CatalogEntry{Path: "whatever.pdf", Metadata: types.PaperRecord{DOI: "10.1000/keep"}}
	assert.False(t, FillDOI(&keep))
	assert.Equal(t, "10.1000/keep", keep.Metadata.DOI)

	missing := types.CatalogEntry{Path: filepath.Join(t.TempDir(), "gone.pdf")}
	assert.False(t, FillDOI(&missing))
	assert.Empty(t, missing.Metadata.DOI)

	blank := types.CatalogEntry{Path: writeBlankPDF(t, 1)}
	assert.False(t, FillDOI(&blank))
}
