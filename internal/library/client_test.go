// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperscout/pkg/types"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		cfg        types.LibraryConfig
		wantPrefix string
		wantErr    string
	}{
		{"user default", types.LibraryConfig{LibraryID: "42", APIKey: "k"}, "/users/42", ""},
		{"user explicit", types.LibraryConfig{LibraryID: "42", APIKey: "k", LibraryType: "user"}, "/users/42", ""},
		{"group", types.LibraryConfig{LibraryID: "7", APIKey: "k", LibraryType: "group"}, "/groups/7", ""},
		{"missing id", types.LibraryConfig{APIKey: "k"}, "", "library id is required"},
		{"missing key", types.LibraryConfig{LibraryID: "42"}, "", "api key is required"},
		{"bad type", types.LibraryConfig{LibraryID: "42", APIKey: "k", LibraryType: "team"}, "", "unknown zotero library type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, c.prefix)
			assert.Equal(t, DefaultBaseURL, c.baseURL)
		})
	}
}

func TestWriteResponseFirst(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRef  ItemRef
		wantCode int
		wantMsg  string
	}{
		{
			name:    "successful slot",
			body:    `{"successful":{"0":{"key":"ABCD2345","version":12}},"success":{"0":"ABCD2345"},"unchanged":{},"failed":{}}`,
			wantRef: ItemRef{Key: "ABCD2345", Version: 12},
		},
		{
			name:    "legacy success only",
			body:    `{"success":{"0":"WXYZ6789"},"unchanged":{},"failed":{}}`,
			wantRef: ItemRef{Key: "WXYZ6789"},
		},
		{
			name:     "failed slot",
			body:     `{"successful":{},"success":{},"unchanged":{},"failed":{"0":{"key":"0","code":400,"message":"Invalid creator type"}}}`,
			wantCode: 400,
			wantMsg:  "Invalid creator type",
		},
		{
			name:     "empty response",
			body:     `{}`,
			wantCode: http.StatusOK,
			wantMsg:  "response has no result for object 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wr writeResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &wr))

			ref, err := wr.first("create item")
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRef, ref)
				return
			}
			var se *ServiceError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantCode, se.StatusCode)
			assert.Equal(t, tt.wantMsg, se.Message)
			assert.Equal(t, "create item", se.Op)
		})
	}
}

func TestClientSendsHeaders(t *testing.T) {
	var got http.Header
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"successful":{"0":{"key":"COLL0001","version":1}}}`)
	}))
	defer ts.Close()

	c, err := NewClient(types.LibraryConfig{LibraryID: "99", APIKey: "secret", LibraryType: "group"},
		WithBaseURL(ts.URL+"/"), WithHTTPClient(ts.Client()), WithUserAgent("paperscout-test/0.1"))
	require.NoError(t, err)

	key, err := c.CreateCollection(context.Background(), "LLM Papers")
	require.NoError(t, err)
	assert.Equal(t, "COLL0001", key)

	assert.Equal(t, "/groups/99/collections", gotPath)
	assert.Equal(t, "secret", got.Get("Zotero-API-Key"))
	assert.Equal(t, "3", got.Get("Zotero-API-Version"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "paperscout-test/0.1", got.Get("User-Agent"))
	assert.Len(t, got.Get("Zotero-Write-Token"), 32)
}

func TestClientHTTPErrorIsServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := NewClient(types.LibraryConfig{LibraryID: "1", APIKey: "k"},
		WithBaseURL(ts.URL), WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	_, err = c.Collections(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrService)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "list collections")
	assert.Contains(t, err.Error(), "Not found")
}

func TestCollectionsWithoutTotalHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"key":"AAAA1111","data":{"name":"One","parentCollection":false}},
			{"key":"BBBB2222","data":{"name":"Two","parentCollection":"AAAA1111"}}]`)
	}))
	defer ts.Close()

	c, err := NewClient(types.LibraryConfig{LibraryID: "1", APIKey: "k"},
		WithBaseURL(ts.URL), WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	cols, err := c.Collections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Collection{{Key: "AAAA1111", Name: "One"}, {Key: "BBBB2222", Name: "Two"}}, cols)
}

func TestAttachFileExistingUploadSkipsTransfer(t *testing.T) {
	var uploads int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/users/1/items":
			fmt.Fprint(w, `{"successful":{"0":{"key":"ATT00001","version":1}}}`)
		case r.URL.Path == "/users/1/items/ATT00001/file":
			fmt.Fprint(w, `{"exists":1}`)
		default:
			uploads++
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	c, err := NewClient(types.LibraryConfig{LibraryID: "1", APIKey: "k"},
		WithBaseURL(ts.URL), WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	key, err := c.AttachFile(context.Background(), "PARENT01", path)
	require.NoError(t, err)
	assert.Equal(t, "ATT00001", key)
	assert.Zero(t, uploads)
}

func TestAttachFileMissingFile(t *testing.T) {
	c, err := NewClient(types.LibraryConfig{LibraryID: "1", APIKey: "k"})
	require.NoError(t, err)

	_, err = c.AttachFile(context.Background(), "PARENT01", filepath.Join(t.TempDir(), "gone.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
