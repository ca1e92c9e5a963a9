// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperscout/internal/acquire"
	"github.com/pdiddy/paperscout/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "paperscout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRunIDIsUUID(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}

func TestEntryFromResult(t *testing.T) {
	rec := types.PaperRecord{Title: "T", PDFURL: "https://example.org/t.pdf"}
	tests := []struct {
		name       string
		res        acquire.FetchResult
		wantStatus string
		wantErr    string
	}{
		{"skipped", acquire.FetchResult{Record: rec, Skipped: true}, StatusSkipped, ""},
		{"failed", acquire.FetchResult{Record: rec, Err: errors.New("HTTP 404")}, StatusFailed, "HTTP 404"},
		{"catalog failed", acquire.FetchResult{Record: rec, Path: "/p/T.pdf", CatalogErr: errors.New("forbidden")}, StatusCatalogFailed, "forbidden"},
		{"cataloged", acquire.FetchResult{Record: rec, Path: "/p/T.pdf", ItemKey: "ABCD1234"}, StatusCataloged, ""},
		{"downloaded", acquire.FetchResult{Record: rec, Path: "/p/T.pdf"}, StatusDownloaded, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := EntryFromResult("run-1", tt.res, 3)
			assert.Equal(t, tt.wantStatus, e.Status)
			assert.Equal(t, tt.wantErr, e.Error)
			assert.Equal(t, "run-1", e.RunID)
			assert.Equal(t, "T", e.Title)
			assert.Equal(t, rec.PDFURL, e.PDFURL)
			assert.Equal(t, 3, e.Pages)
		})
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, title := range []string{"first", "second", "third"} {
		id, err := s.Record(ctx, Entry{
			RunID:     "run-a",
			Title:     title,
			Status:    StatusDownloaded,
			Pages:     i + 1,
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Title)
	assert.Equal(t, "second", got[1].Title)
	assert.Equal(t, 3, got[0].Pages)
	assert.True(t, got[0].CreatedAt.Equal(at.Add(2*time.Minute)))

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordRequiresRunID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Record(context.Background(), Entry{Title: "x", Status: StatusFailed})
	assert.Error(t, err)
}

func TestRecordRun(t *testing.T) {
	s := openTestStore(t)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	ctx := context.Background()

	results := []acquire.FetchResult{
		{Record: types.PaperRecord{Title: "ok"}, Path: "/papers/ok.pdf", ItemKey: "ITEM0001"},
		{Record: types.PaperRecord{Title: "none"}, Skipped: true},
		{Record: types.PaperRecord{Title: "bad", PDFURL: "https://x/bad.pdf"}, Err: errors.New("boom")},
	}
	var inspected []string
	pages := func(path string) int {
		inspected = append(inspected, path)
		return 12
	}

	runID := NewRunID()
	require.NoError(t, s.RecordRun(ctx, runID, results, pages))
	require.NoError(t, s.RecordRun(ctx, NewRunID(), results[:1], nil))

	got, err := s.Run(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"/papers/ok.pdf"}, inspected)
	assert.Equal(t, StatusCataloged, got[0].Status)
	assert.Equal(t, "ITEM0001", got[0].ItemKey)
	assert.Equal(t, 12, got[0].Pages)
	assert.Equal(t, StatusSkipped, got[1].Status)
	assert.Zero(t, got[1].Pages)
	assert.Equal(t, StatusFailed, got[2].Status)
	assert.Equal(t, "boom", got[2].Error)
	assert.Equal(t, "https://x/bad.pdf", got[2].PDFURL)
	assert.Equal(t, 2026, got[2].CreatedAt.Year())

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 4)
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), Entry{RunID: "r", Title: "kept", Status: StatusDownloaded})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Title)
}
