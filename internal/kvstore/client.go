// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package kvstore publishes ranking snapshots and block lists to a
// Cloudflare Workers KV namespace over its REST API.
package kvstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/metrics"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

// ErrKeyNotFound reports a GET for a key the namespace does not hold.
var ErrKeyNotFound = errors.New("kv key not found")

// StoreError wraps a failed KV operation. Status 429 and 5xx are
// transient; everything else is permanent.
type StoreError struct {
	Op         string
	Key        string
	StatusCode int
	Err        error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kv %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("kv %s %q: status %d", e.Op, e.Key, e.StatusCode)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Transient reports whether the operation is worth retrying.
func (e *StoreError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a minimal Cloudflare KV REST client. Values are gzipped on
// write and transparently gunzipped on read; snapshot metadata travels in
// the same PUT as a multipart sidecar.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New validates the credentials and returns a client. Missing credentials
// fail here, before any network activity.
func New(cfg config.KVConfig) (*Client, error) {
	if cfg.AccountID == "" || cfg.NamespaceID == "" || cfg.APIToken == "" {
		return nil, config.ErrMissingCredentials
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/storage/kv/namespaces/%s",
			cfg.AccountID, cfg.NamespaceID),
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetBaseURL points the client at a different origin, for tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

// Get reads and decompresses one value. ErrKeyNotFound when absent.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, key, nil, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case resp.StatusCode != http.StatusOK:
		return nil, &StoreError{Op: "get", Key: key, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	return gunzipIfCompressed(key, raw)
}

// GetJSON reads a value and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, key string, out any) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &StoreError{Op: "get", Key: key, Err: err}
	}
	return nil
}

// Put gzips value and writes it under key, attaching meta when given.
func (c *Client) Put(ctx context.Context, key string, value []byte, meta *models.SnapshotMetadata) error {
	compressed, err := gzipBytes(value)
	if err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}

	var req *http.Request
	if meta != nil {
		meta.Size = len(compressed)
		req, err = c.newMetadataRequest(ctx, key, compressed, meta)
	} else {
		req, err = c.newRequest(ctx, http.MethodPut, key, bytes.NewReader(compressed), "application/octet-stream")
	}
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.KVWrites.WithLabelValues("error").Inc()
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.KVWrites.WithLabelValues("error").Inc()
		return &StoreError{Op: "put", Key: key, StatusCode: resp.StatusCode}
	}
	metrics.KVWrites.WithLabelValues("success").Inc()
	metrics.KVWriteBytes.Add(float64(len(compressed)))
	return nil
}

// PutJSON encodes v and writes it under key.
func (c *Client) PutJSON(ctx context.Context, key string, v any, meta *models.SnapshotMetadata) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	return c.Put(ctx, key, raw, meta)
}

// Delete removes one key. Deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, key, nil, "")
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return &StoreError{Op: "delete", Key: key, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, key string, body io.Reader, contentType string) (*http.Request, error) {
	reqURL := c.baseURL + "/values/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, &StoreError{Op: strings.ToLower(method), Key: key, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// newMetadataRequest builds the multipart PUT the KV API requires when a
// value and its metadata are written together.
func (c *Client) newMetadataRequest(ctx context.Context, key string, value []byte, meta *models.SnapshotMetadata) (*http.Request, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, &StoreError{Op: "put", Key: key, Err: err}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("metadata", string(metaJSON)); err != nil {
		return nil, &StoreError{Op: "put", Key: key, Err: err}
	}
	part, err := w.CreateFormField("value")
	if err != nil {
		return nil, &StoreError{Op: "put", Key: key, Err: err}
	}
	if _, err := part.Write(value); err != nil {
		return nil, &StoreError{Op: "put", Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &StoreError{Op: "put", Key: key, Err: err}
	}

	return c.newRequest(ctx, http.MethodPut, key, &buf, w.FormDataContentType())
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipIfCompressed(key string, raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	defer gz.Close()
	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	return out, nil
}
