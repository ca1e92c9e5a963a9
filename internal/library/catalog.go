// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"log/slog"
	"os"

	"github.com/pdiddy/paperscout/pkg/types"
)

const (
	itemTypeJournalArticle = "journalArticle"
	creatorTypeAuthor      = "author"
	defaultLanguage        = "en"
)

// Service is the subset of the Zotero Web API the Cataloger needs.
// *Client implements it.
type Service interface {
	Collections(ctx context.Context) ([]Collection, error)
	CreateCollection(ctx context.Context, name string) (string, error)
	CreateItem(ctx context.Context, item ItemTemplate) (ItemRef, error)
	AddToCollection(ctx context.Context, collectionKey string, item ItemRef) error
	AttachFile(ctx context.Context, parentKey, path string) (string, error)
}

// FileResult is the outcome of filing one catalog entry.
type FileResult struct {
	Entry   types.CatalogEntry
	ItemKey string
	Err     error
}

// Cataloger files local papers into a library: one item per paper, linked
// to a named collection, with the PDF attached.
type Cataloger struct {
	svc    Service
	logger *slog.Logger
}

// CatalogerOption configures a Cataloger.
type CatalogerOption func(*Cataloger)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) CatalogerOption {
	return func(c *Cataloger) {
		c.logger = l
	}
}

// NewCataloger returns a Cataloger backed by svc.
func NewCataloger(svc Service, opts ...CatalogerOption) *Cataloger {
	c := &Cataloger{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveCollection returns the key of the first collection named exactly
// name, creating the collection when none exists. Every call lists the
// whole library; nothing is cached. Concurrent calls with the same new name
// can create duplicate collections.
func (c *Cataloger) ResolveCollection(ctx context.Context, name string) (string, error) {
	collections, err := c.svc.Collections(ctx)
	if err != nil {
		return "", err
	}
	for _, col := range collections {
		if col.Name == name {
			return col.Key, nil
		}
	}

	key, err := c.svc.CreateCollection(ctx, name)
	if err != nil {
		return "", err
	}
	c.logger.Info("created collection", "name", name, "key", key)
	return key, nil
}

// NewItemTemplate builds the journal-article item for record. All authors
// are credited as "author".
func NewItemTemplate(record types.PaperRecord, tags []string) ItemTemplate {
	item := ItemTemplate{
		ItemType:     itemTypeJournalArticle,
		Title:        record.Title,
		Creators:     make([]Creator, 0, len(record.Authors)),
		AbstractNote: record.Abstract,
		Date:         record.Published,
		DOI:          record.DOI,
		URL:          record.URL,
		Language:     defaultLanguage,
		Tags:         make([]Tag, 0, len(tags)),
	}
	for _, a := range record.Authors {
		item.Creators = append(item.Creators, Creator{CreatorType: creatorTypeAuthor, Name: a})
	}
	for _, t := range tags {
		item.Tags = append(item.Tags, Tag{Tag: t})
	}
	return item
}

// FileOne creates a library item for record, links it into collection
// (skipped when collection is empty), and attaches the file at path. A
// missing file is logged and not attached. Service errors are returned to
// the caller unhandled.
func (c *Cataloger) FileOne(ctx context.Context, path string, record types.PaperRecord, collection string, tags []string) (string, error) {
	item, err := c.svc.CreateItem(ctx, NewItemTemplate(record, tags))
	if err != nil {
		return "", err
	}

	if collection != "" {
		colKey, err := c.ResolveCollection(ctx, collection)
		if err != nil {
			return "", err
		}
		if err := c.svc.AddToCollection(ctx, colKey, item); err != nil {
			return "", err
		}
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := c.svc.AttachFile(ctx, item.Key, path); err != nil {
			return "", err
		}
	} else {
		c.logger.Warn("file not found, skipping attachment", "path", path)
	}

	c.logger.Info("added paper to library", "title", record.Title, "item", item.Key)
	return item.Key, nil
}

// FileAll files every entry into collection and returns one result per
// entry in input order. A failed entry is logged and does not stop the batch.
func (c *Cataloger) FileAll(ctx context.Context, entries []types.CatalogEntry, collection string) []FileResult {
	results := make([]FileResult, 0, len(entries))
	for _, e := range entries {
		key, err := c.FileOne(ctx, e.Path, e.Metadata, collection, e.Tags)
		if err != nil {
			c.logger.Error("error adding paper", "title", e.Metadata.Title, "error", err)
		}
		results = append(results, FileResult{Entry: e, ItemKey: key, Err: err})
	}
	return results
}

// FileMany files every entry and returns the keys of the items created, in
// input order. Failed entries are dropped from the result.
func (c *Cataloger) FileMany(ctx context.Context, entries []types.CatalogEntry, collection string) []string {
	var keys []string
	for _, r := range c.FileAll(ctx, entries, collection) {
		if r.Err == nil {
			keys = append(keys, r.ItemKey)
		}
	}
	return keys
}
