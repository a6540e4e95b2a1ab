package rest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docstack-tech/docstack/core/storage"
)

type testCoded struct{ code int }

func (e testCoded) Error() string { return "coded" }
func (e testCoded) Code() int     { return e.code }

func TestNormalizeError(t *testing.T) {
	e := normalizeError(storage.Conflict("document update conflict"))
	assert.Equal(t, http.StatusConflict, e.Code)
	assert.Equal(t, "document update conflict", e.Message)

	e = normalizeError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, e.Code)

	e = normalizeError(testCoded{code: http.StatusTeapot})
	assert.Equal(t, http.StatusTeapot, e.Code)
}

func TestWriteErrorKeepsValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/articles", nil)
	writeError(rec, r, storage.ValidationFailed("Validation failed",
		[]string{"title is required", "likes: Invalid type"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Equal(t, "Bad Request", response.Error)
	assert.Equal(t, []string{"title is required", "likes: Invalid type"}, response.Errors)
}

func TestWriteErrorDefault(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/articles/a", nil)
	writeError(rec, r, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}
