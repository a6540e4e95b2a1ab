package rest

import (
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/docstack-tech/docstack/core/storage"
)

const maxMultipartMemory = 32 << 20 // 32 MB

// payload is the parsed request body of a write operation: the document,
// plus the uploaded file when the request was multipart.
type payload struct {
	Doc        storage.Document
	File       multipart.File
	FileHeader *multipart.FileHeader
}

// extractPayload parses the request body into a document. Plain requests
// carry the document as the JSON body; multipart requests carry it JSON
// encoded in the "doc" form field, with an optional "file" part. The
// document's type field is always stamped with the resource name, no
// matter what the client sent.
func extractPayload(r *http.Request, resourceName string) (*payload, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "multipart/") {
		return extractMultipartPayload(r, resourceName)
	}

	var doc storage.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		return nil, storage.BadRequest("malformed document: " + err.Error())
	}
	if doc == nil {
		return nil, storage.BadRequest("document must be a JSON object")
	}
	doc[storage.FieldType] = resourceName
	return &payload{Doc: doc}, nil
}

func extractMultipartPayload(r *http.Request, resourceName string) (*payload, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, storage.BadRequest("malformed multipart payload: " + err.Error())
	}
	raw := r.FormValue("doc")
	if raw == "" {
		return nil, storage.BadRequest("multipart payload lacks a doc part")
	}
	var doc storage.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, storage.BadRequest("malformed doc part: " + err.Error())
	}
	if doc == nil {
		return nil, storage.BadRequest("doc part must be a JSON object")
	}
	doc[storage.FieldType] = resourceName

	file, header, err := r.FormFile("file")
	if err != nil && err != http.ErrMissingFile {
		return nil, storage.BadRequest("malformed file part: " + err.Error())
	}
	return &payload{Doc: doc, File: file, FileHeader: header}, nil
}
