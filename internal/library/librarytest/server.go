// Package librarytest provides an in-memory Zotero Web API server for tests.
// It implements the endpoints paperscout uses: collection listing and
// creation, item creation, item collection updates, and the file upload flow.
package librarytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Operation names counted by Calls.
const (
	OpListCollections  = "list collections"
	OpCreateCollection = "create collection"
	OpCreateItem       = "create item"
	OpCreateAttachment = "create attachment"
	OpGetItem          = "get item"
	OpUpdateItem       = "update item"
	OpAuthorizeUpload  = "authorize upload"
	OpUpload           = "upload"
	OpRegisterUpload   = "register upload"
)

const (
	uploadPrefix = "--paperscout-boundary\r\n"
	uploadSuffix = "\r\n--paperscout-boundary--"
)

// Collection is a stored collection.
type Collection struct {
	Key  string
	Name string
}

// Item is a stored item or attachment.
type Item struct {
	Key         string
	Version     int
	Data        map[string]any
	Collections []string
}

// Type returns the item's itemType.
func (it Item) Type() string {
	s, _ := it.Data["itemType"].(string)
	return s
}

// Tags returns the item's tag strings.
func (it Item) Tags() []string {
	raw, _ := it.Data["tags"].([]any)
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			if s, ok := m["tag"].(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return tags
}

// Server is a fake Zotero library.
type Server struct {
	*httptest.Server

	// APIKey is the key requests must present.
	APIKey string

	// FailItemCreate makes regular item creation return a per-object
	// failure with code 400.
	FailItemCreate bool

	// LegacyWrites makes write responses carry only the older "success"
	// map, which has no object versions.
	LegacyWrites bool

	mu          sync.Mutex
	seq         int
	calls       map[string]int
	collections []Collection
	items       map[string]*Item
	order       []string
	pending     map[string][]byte
	uploads     map[string][]byte
}

// New starts a fake library server accepting apiKey. It is closed when the
// test ends.
func New(t testing.TB, apiKey string) *Server {
	t.Helper()
	s := &Server{
		APIKey:  apiKey,
		calls:   map[string]int{},
		items:   map[string]*Item{},
		pending: map[string][]byte{},
		uploads: map[string][]byte{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{kind}/{id}/collections", s.auth(s.listCollections))
	mux.HandleFunc("POST /{kind}/{id}/collections", s.auth(s.createCollections))
	mux.HandleFunc("POST /{kind}/{id}/items", s.auth(s.createItems))
	mux.HandleFunc("GET /{kind}/{id}/items/{key}", s.auth(s.getItem))
	mux.HandleFunc("PATCH /{kind}/{id}/items/{key}", s.auth(s.updateItem))
	mux.HandleFunc("POST /{kind}/{id}/items/{key}/file", s.auth(s.itemFile))
	mux.HandleFunc("POST /upload/{key}", s.upload)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddCollection stores a collection directly and returns its key.
func (s *Server) AddCollection(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.nextKey("C")
	s.collections = append(s.collections, Collection{Key: key, Name: name})
	return key
}

// Calls returns how many requests of the given operation were served.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Collections returns the stored collections in creation order.
func (s *Server) Collections() []Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Collection(nil), s.collections...)
}

// Item returns a copy of the stored item with key.
func (s *Server) Item(key string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Items returns every stored item of itemType in creation order.
func (s *Server) Items(itemType string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, key := range s.order {
		if it := s.items[key]; it.Type() == itemType {
			out = append(out, *it)
		}
	}
	return out
}

// Upload returns the registered file content of an attachment.
func (s *Server) Upload(attachmentKey string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[attachmentKey]
	return data, ok
}

func (s *Server) nextKey(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%07d", prefix, s.seq)
}

func (s *Server) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Zotero-API-Key") != s.APIKey {
			http.Error(w, "Invalid key", http.StatusForbidden)
			return
		}
		if r.Header.Get("Zotero-API-Version") != "3" {
			http.Error(w, "API version 3 required", http.StatusBadRequest)
			return
		}
		next(w, r)
	}
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	s.count(OpListCollections)
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}

	all := s.Collections()
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	page := make([]map[string]any, 0, end-start)
	for _, c := range all[start:end] {
		page = append(page, map[string]any{
			"key":     c.Key,
			"version": 1,
			"data":    map[string]any{"key": c.Key, "name": c.Name, "parentCollection": false},
		})
	}
	w.Header().Set("Total-Results", strconv.Itoa(len(all)))
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createCollections(w http.ResponseWriter, r *http.Request) {
	s.count(OpCreateCollection)
	var objs []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&objs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := s.newWriteResponse()
	for i, obj := range objs {
		name, _ := obj["name"].(string)
		idx := strconv.Itoa(i)
		if name == "" {
			resp.fail(idx, http.StatusBadRequest, "collection name cannot be empty")
			continue
		}
		key := s.AddCollection(name)
		resp.succeed(idx, key, obj)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createItems(w http.ResponseWriter, r *http.Request) {
	var objs []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&objs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := s.newWriteResponse()
	s.mu.Lock()
	for i, obj := range objs {
		idx := strconv.Itoa(i)
		itemType, _ := obj["itemType"].(string)
		if itemType == "attachment" {
			s.calls[OpCreateAttachment]++
		} else {
			s.calls[OpCreateItem]++
		}
		if itemType == "" {
			resp.fail(idx, http.StatusBadRequest, "'itemType' property not provided")
			continue
		}
		if s.FailItemCreate && itemType != "attachment" {
			resp.fail(idx, http.StatusBadRequest, "invalid item data")
			continue
		}
		key := s.nextKey("I")
		s.items[key] = &Item{Key: key, Version: 1, Data: obj}
		s.order = append(s.order, key)
		resp.succeed(idx, key, obj)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	s.count(OpGetItem)
	it, ok := s.Item(r.PathValue("key"))
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Last-Modified-Version", strconv.Itoa(it.Version))
	writeJSON(w, http.StatusOK, map[string]any{"key": it.Key, "version": it.Version, "data": it.Data})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	s.count(OpUpdateItem)
	var patch struct {
		Collections []string `json:"collections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("key")]
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	v := r.Header.Get("If-Unmodified-Since-Version")
	if v == "" {
		http.Error(w, "If-Unmodified-Since-Version not provided", http.StatusPreconditionRequired)
		return
	}
	if v != strconv.Itoa(it.Version) {
		http.Error(w, "Item has been modified since specified version", http.StatusPreconditionFailed)
		return
	}
	for _, c := range patch.Collections {
		if !s.hasCollection(c) {
			http.Error(w, "Collection "+c+" not found", http.StatusBadRequest)
			return
		}
	}
	it.Collections = patch.Collections
	it.Version++
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) hasCollection(key string) bool {
	for _, c := range s.collections {
		if c.Key == key {
			return true
		}
	}
	return false
}

func (s *Server) itemFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if r.Header.Get("If-None-Match") != "*" {
		http.Error(w, "If-Match or If-None-Match header not provided", http.StatusPreconditionRequired)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if uploadKey := r.PostForm.Get("upload"); uploadKey != "" {
		s.count(OpRegisterUpload)
		s.mu.Lock()
		defer s.mu.Unlock()
		data, ok := s.pending[uploadKey]
		if !ok {
			http.Error(w, "Upload key not found", http.StatusBadRequest)
			return
		}
		delete(s.pending, uploadKey)
		s.uploads[key] = data
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.count(OpAuthorizeUpload)
	s.mu.Lock()
	it, ok := s.items[key]
	s.mu.Unlock()
	if !ok || it.Type() != "attachment" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	for _, field := range []string{"md5", "filename", "filesize", "mtime"} {
		if r.PostForm.Get(field) == "" {
			http.Error(w, "'"+field+"' not provided", http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":         s.URL + "/upload/" + key,
		"contentType": "multipart/form-data; boundary=paperscout-boundary",
		"prefix":      uploadPrefix,
		"suffix":      uploadSuffix,
		"uploadKey":   "up-" + key,
	})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	s.count(OpUpload)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body := string(data)
	if !strings.HasPrefix(body, uploadPrefix) || !strings.HasSuffix(body, uploadSuffix) {
		http.Error(w, "malformed upload", http.StatusBadRequest)
		return
	}
	content := strings.TrimSuffix(strings.TrimPrefix(body, uploadPrefix), uploadSuffix)

	s.mu.Lock()
	s.pending["up-"+r.PathValue("key")] = []byte(content)
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

type writeResponse struct {
	Successful map[string]any    `json:"successful,omitempty"`
	Success    map[string]string `json:"success"`
	Unchanged  map[string]string `json:"unchanged"`
	Failed     map[string]any    `json:"failed"`
}

func (s *Server) newWriteResponse() *writeResponse {
	if s.LegacyWrites {
		return &writeResponse{
			Success:   map[string]string{},
			Unchanged: map[string]string{},
			Failed:    map[string]any{},
		}
	}
	return &writeResponse{
		Successful: map[string]any{},
		Success:    map[string]string{},
		Unchanged:  map[string]string{},
		Failed:     map[string]any{},
	}
}

func (wr *writeResponse) succeed(idx, key string, data map[string]any) {
	if wr.Successful != nil {
		wr.Successful[idx] = map[string]any{"key": key, "version": 1, "data": data}
	}
	wr.Success[idx] = key
}

func (wr *writeResponse) fail(idx string, code int, msg string) {
	wr.Failed[idx] = map[string]any{"key": idx, "code": code, "message": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
