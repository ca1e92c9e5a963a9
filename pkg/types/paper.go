// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for paperscout: paper records
// produced by discovery tools, catalog entries for local files, and the
// configuration passed into each component.
package types

// PaperRecord describes a paper to download and catalog. Records are
// produced by an external discovery step and consumed read-only. Missing
// fields are left at their zero value.
type PaperRecord struct {
	// Title is the paper title. It also names the downloaded file.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Published is the publication date, either ISO formatted or free text.
	Published string `json:"published,omitempty" yaml:"published,omitempty"`

	// DOI is the Digital Object Identifier, if known.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the landing page of the paper.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Categories are subject labels (e.g. "cs.AI"); they become library tags.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// PDFURL is where the PDF is downloaded from. Records without one are skipped.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
}

// CatalogEntry pairs a local PDF with the metadata and tags to file it under.
type CatalogEntry struct {
	Path     string      `json:"path" yaml:"path"`
	Metadata PaperRecord `json:"metadata" yaml:"metadata"`
	Tags     []string    `json:"tags,omitempty" yaml:"tags,omitempty"`
}
