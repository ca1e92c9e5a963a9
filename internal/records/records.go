// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records loads paper records and catalog entries from YAML or JSON
// files. A file holds either a bare list or a mapping with a "papers"
// (records) or "entries" (catalog entries) key.
package records

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperscout/internal/acquire"
	"github.com/pdiddy/paperscout/pkg/types"
)

// ErrInvalidRecord marks a record that parsed but failed validation.
var ErrInvalidRecord = errors.New("invalid record")

type paperFile struct {
	Papers []types.PaperRecord `yaml:"papers"`
}

type entryFile struct {
	Entries []types.CatalogEntry `yaml:"entries"`
}

// LoadPapers reads the paper records in path. JSON input is accepted since
// it is valid YAML.
func LoadPapers(path string) ([]types.PaperRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}
	return ParsePapers(data)
}

// ParsePapers decodes and validates paper records.
func ParsePapers(data []byte) ([]types.PaperRecord, error) {
	var recs []types.PaperRecord
	if err := decodeList(data, &recs, func(n *yaml.Node) error {
		var pf paperFile
		if err := n.Decode(&pf); err != nil {
			return err
		}
		recs = pf.Papers
		return nil
	}); err != nil {
		return nil, fmt.Errorf("parsing records file: %w", err)
	}

	for i := range recs {
		normalize(&recs[i])
		if err := validate(recs[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return recs, nil
}

// LoadCatalogEntries reads the catalog entries in path.
func LoadCatalogEntries(path string) ([]types.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entries file: %w", err)
	}
	return ParseCatalogEntries(data)
}

// ParseCatalogEntries decodes and validates catalog entries.
func ParseCatalogEntries(data []byte) ([]types.CatalogEntry, error) {
	var entries []types.CatalogEntry
	if err := decodeList(data, &entries, func(n *yaml.Node) error {
		var ef entryFile
		if err := n.Decode(&ef); err != nil {
			return err
		}
		entries = ef.Entries
		return nil
	}); err != nil {
		return nil, fmt.Errorf("parsing entries file: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		e.Path = strings.TrimSpace(e.Path)
		e.Tags = trimAll(e.Tags)
		normalize(&e.Metadata)
		if err := validate(e.Metadata); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// decodeList decodes a top-level sequence into list, or hands a top-level
// mapping to wrapped. Empty input yields an empty list.
func decodeList(data []byte, list any, wrapped func(*yaml.Node) error) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		return root.Decode(list)
	case yaml.MappingNode:
		return wrapped(root)
	default:
		return fmt.Errorf("line %d: expected a list or a mapping", root.Line)
	}
}

func normalize(r *types.PaperRecord) {
	r.Title = strings.TrimSpace(r.Title)
	r.Abstract = strings.TrimSpace(r.Abstract)
	r.Published = strings.TrimSpace(r.Published)
	r.DOI = strings.TrimSpace(r.DOI)
	r.URL = strings.TrimSpace(r.URL)
	r.PDFURL = strings.TrimSpace(r.PDFURL)
	r.Authors = trimAll(r.Authors)
	r.Categories = trimAll(r.Categories)
}

func validate(r types.PaperRecord) error {
	if r.PDFURL != "" && !acquire.IsWebURL(r.PDFURL) {
		return fmt.Errorf("%w: pdf_url %q is not an absolute http(s) URL", ErrInvalidRecord, r.PDFURL)
	}
	return nil
}

// trimAll trims each element and drops the ones left empty.
func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
