// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package kvstore

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YJSN180/nico-ranking-custom-sub000/internal/config"
	"github.com/YJSN180/nico-ranking-custom-sub000/internal/models"
)

func testKVCfg() config.KVConfig {
	return config.KVConfig{
		AccountID:   "acc",
		NamespaceID: "ns",
		APIToken:    "secret-token",
	}
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := New(testKVCfg())
	require.NoError(t, err)
	client.SetBaseURL(srv.URL)
	return client
}

func gunzip(t *testing.T, raw []byte) []byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer gz.Close()
	out, err := io.ReadAll(gz)
	require.NoError(t, err)
	return out
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.KVConfig{AccountID: "acc"})
	require.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestClientPutCompressesAndAuthorizes(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	client := testClient(t, srv)
	require.NoError(t, client.Put(t.Context(), "ranking-game-24h", []byte(`{"hello":"world"}`), nil))

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "/values/ranking-game-24h", gotPath)
	assert.Equal(t, []byte(`{"hello":"world"}`), gunzip(t, gotBody), "value travels gzipped")
}

func TestClientPutWithMetadata(t *testing.T) {
	var gotContentType string
	var gotMetadata string
	var gotValue []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotMetadata = r.FormValue("metadata")
		gotValue = []byte(r.FormValue("value"))
	}))
	defer srv.Close()

	client := testClient(t, srv)
	meta := &models.SnapshotMetadata{Version: 1, UpdatedAt: "2026-08-31T00:00:00Z", Compressed: true}
	require.NoError(t, client.Put(t.Context(), "RANKING_LATEST", []byte(`{"a":1}`), meta))

	assert.Contains(t, gotContentType, "multipart/form-data")

	var decoded models.SnapshotMetadata
	require.NoError(t, json.Unmarshal([]byte(gotMetadata), &decoded))
	assert.Equal(t, 1, decoded.Version)
	assert.True(t, decoded.Compressed)
	assert.Positive(t, decoded.Size, "metadata records the compressed size")

	assert.Equal(t, []byte(`{"a":1}`), gunzip(t, gotValue))
}

func TestClientGetDecompresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(`{"items": []}`))
		_ = gz.Close()
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	client := testClient(t, srv)
	raw, err := client.Get(t.Context(), "ranking-game-24h")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"items": []}`), raw)
}

func TestClientGetPlainValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["sm1"]`))
	}))
	defer srv.Close()

	client := testClient(t, srv)
	raw, err := client.Get(t.Context(), "ng-list-derived")
	require.NoError(t, err)
	assert.Equal(t, []byte(`["sm1"]`), raw, "uncompressed legacy values pass through")
}

func TestClientGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(t, srv)
	_, err := client.Get(t.Context(), "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"videoIds": ["sm1"]}`))
	}))
	defer srv.Close()

	client := testClient(t, srv)
	var list models.NGList
	require.NoError(t, client.GetJSON(t.Context(), "ng-list-manual", &list))
	assert.Equal(t, []string{"sm1"}, list.VideoIDs)
}

func TestStoreErrorTransient(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{403, false},
	}
	for _, tt := range tests {
		err := &StoreError{Op: "put", Key: "k", StatusCode: tt.status}
		assert.Equal(t, tt.transient, err.Transient(), "status %d", tt.status)
	}
}

func TestClientDeleteToleratesMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(t, srv)
	require.NoError(t, client.Delete(t.Context(), "gone"))
}
