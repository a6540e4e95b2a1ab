// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to a generated REST api

Instead of marshalling HTTP, the client talks directly to the mux router. This
makes it the tool of choice for unit tests and for handlers that need to call
other handlers to fulfill their task. The same client can also talk to a remote
instance of the api through a URL.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/access"
	"github.com/docstack-tech/docstack/core/storage"
)

// Client provides easy access to the generated REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	role       string
	basePath   string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client that makes pseudo-REST requests directly
// through the mux router.
//
// WithRole() injects a role into the request context.
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client that makes REST requests to a remote instance.
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            url,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithBasePath returns a new client with the api's base path prepended to
// all generated paths.
func (c Client) WithBasePath(basePath string) Client {
	c.basePath = basePath
	return c
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	c.defaultHeaders[key] = value
	return c
}

// WithToken returns a new client with a bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithRole returns a new client with role authorization. This works only
// directly against the mux router, a remote client uses WithToken().
func (c Client) WithRole(role string) Client {
	c.role = role
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the base context for requests made by this client.
func (c Client) Context() context.Context {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.role != "" {
		ctx = access.ContextWithRole(ctx, c.role)
	}
	return ctx
}

// Collection represents one exposed resource
type Collection struct {
	client   *Client
	resource string
}

// Collection returns a collection client for the resource
func (c Client) Collection(resource string) Collection {
	return Collection{client: &c, resource: resource}
}

func (r Collection) path() string {
	return r.client.basePath + "/" + core.Plural(strings.ToLower(r.resource))
}

// Create creates a new document with a generated id.
//
// The operation corresponds to a POST request. Expects http.StatusOK as
// response, otherwise it will flag an error. Returns the actual http
// status code.
func (r Collection) Create(body interface{}, result interface{}) (int, error) {
	return r.client.RawPost(r.path(), body, result)
}

// CreateWithID creates a new document under a chosen id.
//
// The operation corresponds to a PUT request to the id path.
func (r Collection) CreateWithID(id string, body interface{}, result interface{}) (int, error) {
	return r.client.RawPut(r.path()+"/"+id, body, result)
}

// Update replaces the document at the given id and revision.
//
// The operation corresponds to a PUT request to the id and rev path. A
// stale revision yields http.StatusConflict.
func (r Collection) Update(id, rev string, body interface{}, result interface{}) (int, error) {
	return r.client.RawPut(r.path()+"/"+id+"/"+rev, body, result)
}

// Read loads one document by id.
func (r Collection) Read(id string, result interface{}) (int, error) {
	return r.client.RawGet(r.path()+"/"+id, result)
}

// Delete destroys the document at the given id and revision.
func (r Collection) Delete(id, rev string) (int, error) {
	return r.client.RawDelete(r.path() + "/" + id + "/" + rev)
}

// Schema reads the resource's JSON schema.
func (r Collection) Schema(result interface{}) (int, error) {
	return r.client.RawGet(r.path()+"/_schema", result)
}

// List queries the built-in all view.
func (r Collection) List(result *storage.ViewResult, params map[string]string) (int, error) {
	return r.client.RawGet(r.path()+query(params), result)
}

// View queries a named view.
func (r Collection) View(name string, result *storage.ViewResult, params map[string]string) (int, error) {
	return r.client.RawGet(r.path()+"/_views/"+name+query(params), result)
}

// Search queries a search index.
func (r Collection) Search(name string, result *storage.ViewResult, params map[string]string) (int, error) {
	return r.client.RawGet(r.path()+"/_search/"+name+query(params), result)
}

// CreateWithFile creates a document together with an uploaded file, as a
// multipart request with a "doc" and a "file" part.
func (r Collection) CreateWithFile(body interface{}, filename string, file io.Reader, result interface{}) (int, error) {
	return r.client.RawPostMultipart(r.path(), body, filename, file, result)
}

// Index reads the route index of the api.
func (c Client) Index(result interface{}) (int, error) {
	return c.RawGet(c.basePath+"/_index", result)
}

// UUIDs fetches a batch of fresh document ids.
func (c Client) UUIDs(count int) ([]string, error) {
	var batch storage.UUIDBatch
	path := c.basePath + "/_uuids"
	if count > 0 {
		path += "?count=" + strconv.Itoa(count)
	}
	if _, err := c.RawGet(path, &batch); err != nil {
		return nil, err
	}
	return batch.UUIDs, nil
}

func query(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for key, value := range params {
		parts = append(parts, key+"="+value)
	}
	return "?" + strings.Join(parts, "&")
}

func (c Client) do(r *http.Request) (int, []byte, error) {
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		return rec.Result().StatusCode, rec.Body.Bytes(), nil
	}
	if c.token != "" {
		r.Header.Add("Authorization", "Bearer "+c.token)
	}
	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	defer res.Body.Close()
	resBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, resBody, nil
}

func expectOK(status int, resBody []byte) error {
	if status != http.StatusOK {
		return fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, http.StatusOK, strings.TrimSpace(string(resBody)))
	}
	return nil
}

func decodeResult(resBody []byte, result interface{}) error {
	if len(resBody) == 0 || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return nil
	}
	return json.Unmarshal(resBody, result)
}

func encodeBody(body interface{}) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return bytes.NewReader(raw), nil
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(encoded), nil
}

// RawGet gets the resource from path. Expects http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// The path can be extended with query strings.
//
// result can be map[string]interface{} or a raw *[]byte. result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodGet, c.url+path, nil)
	status, resBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if err := expectOK(status, resBody); err != nil {
		return status, err
	}
	return status, decodeResult(resBody, result)
}

// RawPost posts body to path. Expects http.StatusOK as response, otherwise
// it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be a raw *[]byte. result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.write(http.MethodPost, path, body, result)
}

// RawPut puts body to path. Expects http.StatusOK as response, otherwise
// it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be a raw *[]byte. result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	return c.write(http.MethodPut, path, body, result)
}

func (c Client) write(method, path string, body interface{}, result interface{}) (int, error) {
	reader, err := encodeBody(body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	r, _ := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	r.Header.Set("Content-Type", "application/json")
	status, resBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if err := expectOK(status, resBody); err != nil {
		return status, err
	}
	return status, decodeResult(resBody, result)
}

// RawPostMultipart posts a multipart request with a JSON encoded "doc"
// part and an optional "file" part. Expects http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
func (c Client) RawPostMultipart(path string, body interface{}, filename string, file io.Reader, result interface{}) (int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return http.StatusBadRequest, err
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("doc", string(encoded)); err != nil {
		return http.StatusBadRequest, err
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return http.StatusBadRequest, err
		}
		if _, err := io.Copy(part, file); err != nil {
			return http.StatusBadRequest, err
		}
	}
	if err := writer.Close(); err != nil {
		return http.StatusBadRequest, err
	}

	r, _ := http.NewRequestWithContext(c.Context(), http.MethodPost, c.url+path, &buf)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	status, resBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if err := expectOK(status, resBody); err != nil {
		return status, err
	}
	return status, decodeResult(resBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusOK as
// response, otherwise it will flag an error. Returns the actual http
// status code.
func (c Client) RawDelete(path string) (int, error) {
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodDelete, c.url+path, nil)
	status, resBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	return status, expectOK(status, resBody)
}
