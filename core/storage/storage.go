/*Package storage defines the narrow interface between the generated REST
routes and the underlying document store.

The route layer only ever talks to a Store and its named Resources. How
documents are persisted, how views are materialized and how references are
resolved is entirely the store's business.
*/
package storage

import (
	"context"

	"github.com/goccy/go-json"
)

// reserved document fields
const (
	FieldID   = "_id"
	FieldRev  = "_rev"
	FieldType = "type_"
	FieldFile = "file_"
)

// Document is the payload unit exchanged with the store. Next to arbitrary
// JSON fields it carries the reserved fields "_id" (identity), "_rev"
// (opaque concurrency token) and "type_" (resource type tag).
type Document map[string]interface{}

// ID returns the document identity, or the empty string.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Rev returns the document revision token, or the empty string.
func (d Document) Rev() string {
	s, _ := d[FieldRev].(string)
	return s
}

// Type returns the document type tag, or the empty string.
func (d Document) Type() string {
	s, _ := d[FieldType].(string)
	return s
}

// Copy returns a shallow copy of the document.
func (d Document) Copy() Document {
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// DocumentRef is the minimal reference needed to destroy a document.
type DocumentRef struct {
	Type string `json:"type_"`
	ID   string `json:"_id"`
	Rev  string `json:"_rev"`
}

// Query holds coerced query parameters for view and search calls. Values are
// native types, e.g. float64 for "limit=1" or []interface{} for a JSON array.
type Query map[string]interface{}

// Int returns the named parameter as an int, or the fallback.
func (q Query) Int(name string, fallback int) int {
	if f, ok := q[name].(float64); ok {
		return int(f)
	}
	return fallback
}

// Bool returns the named parameter as a bool, false if absent.
func (q Query) Bool(name string) bool {
	b, _ := q[name].(bool)
	return b
}

// ViewRow is one row of a view or search result.
type ViewRow struct {
	ID    string      `json:"id,omitempty"`
	Key   interface{} `json:"key"`
	Value interface{} `json:"value"`
	Doc   Document    `json:"doc,omitempty"`
}

// ViewResult is the result of a view or search call.
type ViewResult struct {
	TotalRows int       `json:"total_rows"`
	Rows      []ViewRow `json:"rows"`
}

// UUIDBatch is the result of a batch id generation call.
type UUIDBatch struct {
	UUIDs []string `json:"uuids"`
}

// Resource is one named document type in the store: a schema, a set of named
// views and optionally a set of named search indexes.
type Resource interface {
	// Name returns the canonical resource name, e.g. "Article".
	Name() string
	// Schema returns the JSON-serializable schema description.
	Schema() json.RawMessage
	// Views returns the names of the resource's materialized views. Every
	// resource has at least the "all" view.
	Views() []string
	// Indexes returns the names of the resource's search indexes, if any.
	Indexes() []string

	// Load retrieves a document by id. Returns a NotFound error when absent.
	Load(ctx context.Context, id string) (Document, error)
	// Save persists a document. It assigns "_id" and "_rev" on create and
	// bumps "_rev" on update. Returns a ValidationFailed error on schema
	// violation and a Conflict error on a stale revision.
	Save(ctx context.Context, doc Document) (Document, error)
	// Destroy deletes the referenced document. Returns NotFound or Conflict
	// when the reference does not match a current document.
	Destroy(ctx context.Context, ref DocumentRef) error
	// View executes the named view with the given query parameters.
	View(ctx context.Context, name string, query Query) (*ViewResult, error)
	// Search executes the named search index with the given query parameters.
	Search(ctx context.Context, name string, query Query) (*ViewResult, error)
}

// Store is a collection of named resources plus the store-wide services the
// route layer relies on.
type Store interface {
	// Resources returns all configured resources by canonical name.
	Resources() map[string]Resource
	// UUIDs generates count fresh document ids.
	UUIDs(ctx context.Context, count int) (UUIDBatch, error)
	// FetchRefs resolves embedded document references in place.
	FetchRefs(ctx context.Context, docs ...Document) error
}
