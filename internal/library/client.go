// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library files downloaded papers into a Zotero library through the
// Zotero Web API v3: collections, items with metadata and tags, and PDF
// attachments.
package library

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/paperscout/internal/httputil"
	"github.com/pdiddy/paperscout/pkg/types"
)

const (
	// DefaultBaseURL is the Zotero Web API endpoint.
	DefaultBaseURL = "https://api.zotero.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	apiVersion = "3"

	// pageLimit is the largest page the API serves for collection listings.
	pageLimit = 100

	maxErrorBody = 512
)

// Collection is a named folder of items in the library.
type Collection struct {
	Key  string
	Name string
}

// ItemRef identifies a created item. Version is the item version the
// server assigned, needed for conditional updates.
type ItemRef struct {
	Key     string
	Version int
}

// Creator is a person credited on an item.
type Creator struct {
	CreatorType string `json:"creatorType"`
	Name        string `json:"name"`
}

// Tag is a free-text label on an item.
type Tag struct {
	Tag string `json:"tag"`
}

// ItemTemplate is the JSON body for creating a bibliographic item.
type ItemTemplate struct {
	ItemType     string    `json:"itemType"`
	Title        string    `json:"title"`
	Creators     []Creator `json:"creators"`
	AbstractNote string    `json:"abstractNote"`
	Date         string    `json:"date"`
	DOI          string    `json:"DOI"`
	URL          string    `json:"url"`
	Language     string    `json:"language"`
	Tags         []Tag     `json:"tags"`
}

type attachmentTemplate struct {
	ItemType    string `json:"itemType"`
	ParentItem  string `json:"parentItem"`
	LinkMode    string `json:"linkMode"`
	Title       string `json:"title"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	Tags        []Tag  `json:"tags"`
}

type collectionJSON struct {
	Key  string `json:"key"`
	Data struct {
		Name string `json:"name"`
	} `json:"data"`
}

// writeResponse is the body returned by multi-object writes. Results are
// keyed by the index of the object in the request ("0", "1", ...).
type writeResponse struct {
	Successful map[string]writeObject  `json:"successful"`
	Success    map[string]string       `json:"success"`
	Failed     map[string]writeFailure `json:"failed"`
}

type writeObject struct {
	Key     string `json:"key"`
	Version int    `json:"version"`
}

type writeFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// first returns the result for the single object of a one-object write.
// A rejected object becomes a ServiceError carrying its code and message.
func (w writeResponse) first(op string) (ItemRef, error) {
	if obj, ok := w.Successful["0"]; ok && obj.Key != "" {
		return ItemRef{Key: obj.Key, Version: obj.Version}, nil
	}
	if key, ok := w.Success["0"]; ok && key != "" {
		return ItemRef{Key: key}, nil
	}
	if f, ok := w.Failed["0"]; ok {
		return ItemRef{}, &ServiceError{Op: op, StatusCode: f.Code, Message: f.Message}
	}
	return ItemRef{}, &ServiceError{Op: op, StatusCode: http.StatusOK, Message: "response has no result for object 0"}
}

type uploadAuth struct {
	Exists      int    `json:"exists"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Prefix      string `json:"prefix"`
	Suffix      string `json:"suffix"`
	UploadKey   string `json:"uploadKey"`
}

// Client talks to one Zotero user or group library.
type Client struct {
	httpClient *http.Client
	baseURL    string
	prefix     string
	apiKey     string
	userAgent  string
	maxRetries int
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMaxRetries sets how often a rate-limited request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithClientLogger sets the logger. The default is slog.Default().
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the library described by cfg. It fails
// when the library ID or API key is missing or the library type is not
// "user" or "group".
func NewClient(cfg types.LibraryConfig, opts ...ClientOption) (*Client, error) {
	if cfg.LibraryID == "" {
		return nil, fmt.Errorf("zotero library id is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("zotero api key is required")
	}

	var prefix string
	switch cfg.LibraryType {
	case types.LibraryUser, "":
		prefix = "/users/" + url.PathEscape(cfg.LibraryID)
	case types.LibraryGroup:
		prefix = "/groups/" + url.PathEscape(cfg.LibraryID)
	default:
		return nil, fmt.Errorf("unknown zotero library type %q (want %q or %q)",
			cfg.LibraryType, types.LibraryUser, types.LibraryGroup)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		prefix:     prefix,
		apiKey:     cfg.APIKey,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Collections lists every collection in the library, following pagination.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	const op = "list collections"
	var all []Collection
	for start := 0; ; {
		q := url.Values{
			"limit": {strconv.Itoa(pageLimit)},
			"start": {strconv.Itoa(start)},
		}
		req, err := c.newJSONRequest(ctx, op, http.MethodGet, c.prefix+"/collections?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var page []collectionJSON
		hdr, err := c.send(op, req, &page)
		if err != nil {
			return nil, err
		}
		for _, col := range page {
			all = append(all, Collection{Key: col.Key, Name: col.Data.Name})
		}
		start += len(page)

		total, convErr := strconv.Atoi(hdr.Get("Total-Results"))
		if len(page) == 0 || (convErr == nil && start >= total) || (convErr != nil && len(page) < pageLimit) {
			return all, nil
		}
	}
}

// CreateCollection creates a top-level collection and returns its key.
func (c *Client) CreateCollection(ctx context.Context, name string) (string, error) {
	ref, err := c.createOne(ctx, "create collection", "/collections", []map[string]string{{"name": name}})
	if err != nil {
		return "", err
	}
	return ref.Key, nil
}

// CreateItem creates one bibliographic item.
func (c *Client) CreateItem(ctx context.Context, item ItemTemplate) (ItemRef, error) {
	if item.Tags == nil {
		item.Tags = []Tag{}
	}
	if item.Creators == nil {
		item.Creators = []Creator{}
	}
	return c.createOne(ctx, "create item", "/items", []ItemTemplate{item})
}

// AddToCollection sets the collections of a freshly created item to
// collectionKey. The update is conditional on item.Version; when the create
// response did not report one, the current version is fetched first.
func (c *Client) AddToCollection(ctx context.Context, collectionKey string, item ItemRef) error {
	const op = "add to collection"
	if item.Version <= 0 {
		v, err := c.ItemVersion(ctx, item.Key)
		if err != nil {
			return err
		}
		item.Version = v
	}
	body := map[string][]string{"collections": {collectionKey}}
	req, err := c.newJSONRequest(ctx, op, http.MethodPatch, c.prefix+"/items/"+url.PathEscape(item.Key), body)
	if err != nil {
		return err
	}
	req.Header.Set("If-Unmodified-Since-Version", strconv.Itoa(item.Version))
	_, err = c.send(op, req, nil)
	return err
}

// ItemVersion returns the current version of the item with key.
func (c *Client) ItemVersion(ctx context.Context, key string) (int, error) {
	const op = "get item"
	req, err := c.newJSONRequest(ctx, op, http.MethodGet, c.prefix+"/items/"+url.PathEscape(key), nil)
	if err != nil {
		return 0, err
	}
	var it struct {
		Version int `json:"version"`
	}
	hdr, err := c.send(op, req, &it)
	if err != nil {
		return 0, err
	}
	if it.Version > 0 {
		return it.Version, nil
	}
	if v, convErr := strconv.Atoi(hdr.Get("Last-Modified-Version")); convErr == nil && v > 0 {
		return v, nil
	}
	return 0, &ServiceError{Op: op, StatusCode: http.StatusOK, Message: "response has no item version"}
}

// AttachFile uploads the file at path as an imported PDF attachment of
// parentKey and returns the attachment item key. It follows the Zotero file
// upload flow: create the attachment item, request upload authorization,
// post the file to the returned URL, then register the upload.
func (c *Client) AttachFile(ctx context.Context, parentKey, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("reading attachment info: %w", err)
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing attachment: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding attachment: %w", err)
	}

	name := filepath.Base(path)
	att, err := c.createOne(ctx, "create attachment", "/items", []attachmentTemplate{{
		ItemType:    "attachment",
		ParentItem:  parentKey,
		LinkMode:    "imported_file",
		Title:       name,
		ContentType: "application/pdf",
		Filename:    name,
		Tags:        []Tag{},
	}})
	if err != nil {
		return "", err
	}
	filePath := c.prefix + "/items/" + url.PathEscape(att.Key) + "/file"

	form := url.Values{
		"md5":      {hex.EncodeToString(h.Sum(nil))},
		"filename": {name},
		"filesize": {strconv.FormatInt(info.Size(), 10)},
		"mtime":    {strconv.FormatInt(info.ModTime().UnixMilli(), 10)},
	}
	var auth uploadAuth
	if _, err := c.send("authorize upload", c.newFormRequest(ctx, filePath, form), &auth); err != nil {
		return "", err
	}
	if auth.Exists == 1 {
		c.logger.Debug("attachment already stored", "item", att.Key)
		return att.Key, nil
	}

	if err := c.upload(ctx, auth, f, info.Size()); err != nil {
		return "", err
	}

	if _, err := c.send("register upload", c.newFormRequest(ctx, filePath, url.Values{"upload": {auth.UploadKey}}), nil); err != nil {
		return "", err
	}
	return att.Key, nil
}

// upload streams prefix, file, and suffix to the storage URL. It is not
// retried because the body is not replayable.
func (c *Client) upload(ctx context.Context, auth uploadAuth, f io.Reader, size int64) error {
	const op = "upload file"
	body := io.MultiReader(strings.NewReader(auth.Prefix), f, strings.NewReader(auth.Suffix))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.URL, body)
	if err != nil {
		return &ServiceError{Op: op, Err: err}
	}
	req.ContentLength = int64(len(auth.Prefix)) + size + int64(len(auth.Suffix))
	req.Header.Set("Content-Type", auth.ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	return nil
}

func (c *Client) createOne(ctx context.Context, op, path string, objects any) (ItemRef, error) {
	req, err := c.newJSONRequest(ctx, op, http.MethodPost, c.prefix+path, objects)
	if err != nil {
		return ItemRef{}, err
	}
	req.Header.Set("Zotero-Write-Token", strings.ReplaceAll(uuid.NewString(), "-", ""))

	var wr writeResponse
	if _, err := c.send(op, req, &wr); err != nil {
		return ItemRef{}, err
	}
	return wr.first(op)
}

func (c *Client) newJSONRequest(ctx context.Context, op, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ServiceError{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, &ServiceError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) newFormRequest(ctx context.Context, path string, form url.Values) *http.Request {
	// The URL is built from a validated base and escaped keys, so this
	// cannot fail.
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("If-None-Match", "*")
	return req
}

// send performs an API request, mapping transport failures and non-2xx
// responses to ServiceError and decoding a JSON body into out.
func (c *Client) send(op string, req *http.Request, out any) (http.Header, error) {
	req.Header.Set("Zotero-API-Key", c.apiKey)
	req.Header.Set("Zotero-API-Version", apiVersion)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := httputil.DoWithRetry(req.Context(), c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, &ServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, &ServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return resp.Header, nil
}

func readMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
