package tika

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bents-assistant-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, docxMime, r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "raw-bytes", string(body))
		_, _ = w.Write([]byte("Building a Workbench\nToday we glue up the top."))
	}))
	defer srv.Close()

	client := NewClient(config.TikaConfig{ServerURL: srv.URL + "/"})
	text, err := client.ExtractText(context.Background(), strings.NewReader("raw-bytes"), "Workbench.DOCX")
	require.NoError(t, err)
	assert.Equal(t, "Building a Workbench\nToday we glue up the top.", text)
}

func TestExtractTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewClient(config.TikaConfig{ServerURL: srv.URL}).ExtractText(context.Background(), strings.NewReader("x"), "a.docx")
	assert.Error(t, err)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, docxMime, detectMimeType("a.docx"))
	assert.Equal(t, "application/octet-stream", detectMimeType("noext"))
}
