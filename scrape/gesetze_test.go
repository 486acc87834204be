package scrape

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipWithEntry(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFetchDocument(t *testing.T) {
	const xmlBody = `<?xml version="1.0"?><dokumente></dokumente>`

	var gotPath, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Write(zipWithEntry(t, "BJNR001950896.xml", xmlBody))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithUserAgent("test-agent"))
	data, err := client.FetchDocument(context.Background(), "bgb")
	require.NoError(t, err)

	assert.Equal(t, xmlBody, string(data))
	assert.Equal(t, "/bgb/xml.zip", gotPath)
	assert.Equal(t, "test-agent", gotAgent)
}

func TestFetchDocumentNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.FetchDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestFetchDocumentServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.FetchDocument(context.Background(), "bgb")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "bgb", fetchErr.Code)
	assert.NotErrorIs(t, err, ErrDocumentNotFound)
}

func TestFetchDocumentBadArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip archive"))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.FetchDocument(context.Background(), "bgb")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Reason, "archive")
}

func TestFetchDocumentInvalidCode(t *testing.T) {
	client := NewClient()
	_, err := client.FetchDocument(context.Background(), "BGB")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
}
