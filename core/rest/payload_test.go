package rest

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docstack-tech/docstack/core/storage"
)

func TestExtractPayloadStampsType(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/articles",
		strings.NewReader(`{"title":"hello","type_":"spoofed"}`))
	r.Header.Set("Content-Type", "application/json")

	p, err := extractPayload(r, "article")
	require.NoError(t, err)
	assert.Equal(t, "article", p.Doc.Type())
	assert.Equal(t, "hello", p.Doc["title"])
	assert.Nil(t, p.File)
}

func TestExtractPayloadMalformedBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader(`{"title":`))
	r.Header.Set("Content-Type", "application/json")
	_, err := extractPayload(r, "article")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, storage.CodeOf(err))
}

func TestExtractPayloadNullBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader(`null`))
	r.Header.Set("Content-Type", "application/json")
	_, err := extractPayload(r, "article")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, storage.CodeOf(err))
}

func multipartRequest(t *testing.T, doc string, withFile bool) *http.Request {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if doc != "" {
		require.NoError(t, writer.WriteField("doc", doc))
	}
	if withFile {
		part, err := writer.CreateFormFile("file", "cover.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("pretend this is a png"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	r := httptest.NewRequest(http.MethodPost, "/articles", &buf)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

func TestExtractPayloadMultipart(t *testing.T) {
	r := multipartRequest(t, `{"title":"hello"}`, true)
	p, err := extractPayload(r, "article")
	require.NoError(t, err)
	assert.Equal(t, "article", p.Doc.Type())
	assert.Equal(t, "hello", p.Doc["title"])
	require.NotNil(t, p.File)
	assert.Equal(t, "cover.png", p.FileHeader.Filename)
}

func TestExtractPayloadMultipartWithoutFile(t *testing.T) {
	r := multipartRequest(t, `{"title":"hello"}`, false)
	p, err := extractPayload(r, "article")
	require.NoError(t, err)
	assert.Nil(t, p.File)
}

func TestExtractPayloadMultipartMissingDoc(t *testing.T) {
	r := multipartRequest(t, "", true)
	_, err := extractPayload(r, "article")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, storage.CodeOf(err))
}

func TestExtractPayloadMultipartMalformedDoc(t *testing.T) {
	r := multipartRequest(t, `{"title":`, false)
	_, err := extractPayload(r, "article")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, storage.CodeOf(err))
}

func TestExtractPayloadMultipartNullDoc(t *testing.T) {
	r := multipartRequest(t, `null`, false)
	_, err := extractPayload(r, "article")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, storage.CodeOf(err))
}
