/*Package memory provides an in-memory document store.

It implements the full storage.Store contract including views, search
indexes and reference hydration, and is the store of choice for unit tests
and examples.
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/google/uuid"

	"github.com/docstack-tech/docstack/core/schema"
	"github.com/docstack-tech/docstack/core/storage"
)

// ViewFunc maps one document to a view row. Return ok=false to skip the
// document.
type ViewFunc func(doc storage.Document) (key, value interface{}, ok bool)

// ResourceConfig describes one resource of the store
type ResourceConfig struct {
	// Schema is the JSON schema for documents of this resource. Optional;
	// without a schema every document is accepted.
	Schema []byte
	// SchemaRefs are additional schemas referenced by Schema.
	SchemaRefs []string
	// Views are the named materialized views. The "all" view is always
	// available and does not need to be configured.
	Views map[string]ViewFunc
	// Indexes are the named search indexes, each a list of searchable
	// document fields.
	Indexes map[string][]string
}

// Store is the in-memory document store
type Store struct {
	mu        sync.RWMutex
	resources map[string]*resource
}

// New creates an empty store.
func New() *Store {
	return &Store{resources: make(map[string]*resource)}
}

// AddResource adds a resource to the store.
func (s *Store) AddResource(name string, rc ResourceConfig) error {
	if name == "" {
		return fmt.Errorf("resource name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[name]; ok {
		return fmt.Errorf("resource %s already exists", name)
	}
	r := &resource{
		store:   s,
		name:    name,
		docs:    make(map[string]storage.Document),
		views:   rc.Views,
		indexes: rc.Indexes,
	}
	if rc.Schema != nil {
		validator, err := schema.New(rc.Schema, rc.SchemaRefs...)
		if err != nil {
			return fmt.Errorf("resource %s: %w", name, err)
		}
		r.validator = validator
	}
	s.resources[name] = r
	return nil
}

// MustAddResource is like AddResource but panics on error. Resources are
// configuration, a broken one is a startup error.
func (s *Store) MustAddResource(name string, rc ResourceConfig) {
	if err := s.AddResource(name, rc); err != nil {
		panic(err)
	}
}

// Resources returns all configured resources by canonical name.
func (s *Store) Resources() map[string]storage.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]storage.Resource, len(s.resources))
	for name, r := range s.resources {
		result[name] = r
	}
	return result
}

// UUIDs generates count fresh document ids.
func (s *Store) UUIDs(ctx context.Context, count int) (storage.UUIDBatch, error) {
	batch := storage.UUIDBatch{UUIDs: make([]string, count)}
	for i := 0; i < count; i++ {
		batch.UUIDs[i] = uuid.NewString()
	}
	return batch, nil
}

// FetchRefs resolves embedded document references in place. A reference is
// any object value carrying both "_id" and "type_"; it is replaced by the
// current content of the referenced document. Unresolvable references are
// left untouched.
func (s *Store) FetchRefs(ctx context.Context, docs ...storage.Document) error {
	for _, doc := range docs {
		for key, value := range doc {
			if key == storage.FieldID || key == storage.FieldRev || key == storage.FieldType {
				continue
			}
			doc[key] = s.resolveRefs(ctx, value)
		}
	}
	return nil
}

func (s *Store) resolveRefs(ctx context.Context, value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		if target, ok := s.resolveRef(ctx, v); ok {
			return map[string]interface{}(target)
		}
		for key, nested := range v {
			v[key] = s.resolveRefs(ctx, nested)
		}
		return v
	case storage.Document:
		return s.resolveRefs(ctx, map[string]interface{}(v))
	case []interface{}:
		for i, nested := range v {
			v[i] = s.resolveRefs(ctx, nested)
		}
		return v
	default:
		return value
	}
}

func (s *Store) resolveRef(ctx context.Context, value map[string]interface{}) (storage.Document, bool) {
	id, _ := value[storage.FieldID].(string)
	typ, _ := value[storage.FieldType].(string)
	if id == "" || typ == "" {
		return nil, false
	}
	s.mu.RLock()
	r, ok := s.resources[typ]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	doc, err := r.Load(ctx, id)
	if err != nil {
		return nil, false
	}
	return doc, true
}

type resource struct {
	store     *Store
	name      string
	validator *schema.Validator
	mu        sync.RWMutex
	docs      map[string]storage.Document
	views     map[string]ViewFunc
	indexes   map[string][]string
}

func (r *resource) Name() string {
	return r.name
}

func (r *resource) Schema() json.RawMessage {
	if r.validator == nil {
		return json.RawMessage(`{}`)
	}
	return r.validator.Description()
}

func (r *resource) Views() []string {
	names := []string{"all"}
	for name := range r.views {
		if name != "all" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *resource) Indexes() []string {
	var names []string
	for name := range r.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *resource) Load(ctx context.Context, id string) (storage.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, storage.NotFound("no such " + r.name)
	}
	return doc.Copy(), nil
}

func (r *resource) Save(ctx context.Context, doc storage.Document) (storage.Document, error) {
	if doc.Type() != r.name {
		return nil, storage.BadRequest("document type " + doc.Type() + " does not match resource " + r.name)
	}
	if r.validator != nil {
		if err := r.validator.Validate(map[string]interface{}(doc)); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := doc.ID()
	rev := doc.Rev()
	if id == "" {
		if rev != "" {
			return nil, storage.Conflict("revision token on new document")
		}
		id = uuid.NewString()
	} else if current, ok := r.docs[id]; ok {
		if rev != current.Rev() {
			return nil, storage.Conflict("document update conflict")
		}
	} else if rev != "" {
		return nil, storage.NotFound("no such " + r.name)
	}

	saved := doc.Copy()
	saved[storage.FieldID] = id
	saved[storage.FieldRev] = uuid.NewString()
	r.docs[id] = saved
	return saved.Copy(), nil
}

func (r *resource) Destroy(ctx context.Context, ref storage.DocumentRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.docs[ref.ID]
	if !ok {
		return storage.NotFound("no such " + r.name)
	}
	if ref.Rev != current.Rev() {
		return storage.Conflict("document update conflict")
	}
	delete(r.docs, ref.ID)
	return nil
}

func (r *resource) View(ctx context.Context, name string, query storage.Query) (*storage.ViewResult, error) {
	var view ViewFunc
	if name == "all" {
		view = func(doc storage.Document) (interface{}, interface{}, bool) {
			return doc.ID(), map[string]interface{}(doc), true
		}
	} else {
		var ok bool
		view, ok = r.views[name]
		if !ok {
			return nil, storage.NotFound("no such view: " + name)
		}
	}

	r.mu.RLock()
	var rows []storage.ViewRow
	for id, doc := range r.docs {
		key, value, ok := view(doc.Copy())
		if !ok {
			continue
		}
		row := storage.ViewRow{ID: id, Key: key, Value: value}
		if query.Bool("include_docs") {
			row.Doc = doc.Copy()
		}
		rows = append(rows, row)
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return fmt.Sprint(rows[i].Key) < fmt.Sprint(rows[j].Key)
	})

	if keys, ok := query["keys"].([]interface{}); ok {
		wanted := make(map[string]bool, len(keys))
		for _, key := range keys {
			wanted[fmt.Sprint(key)] = true
		}
		var filtered []storage.ViewRow
		for _, row := range rows {
			if wanted[fmt.Sprint(row.Key)] {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	total := len(rows)
	if limit := query.Int("limit", 0); limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return &storage.ViewResult{TotalRows: total, Rows: rows}, nil
}

func (r *resource) Search(ctx context.Context, name string, query storage.Query) (*storage.ViewResult, error) {
	fields, ok := r.indexes[name]
	if !ok {
		return nil, storage.NotFound("no such search index: " + name)
	}
	term, _ := query["q"].(string)
	term = strings.ToLower(term)

	r.mu.RLock()
	var rows []storage.ViewRow
	for id, doc := range r.docs {
		for _, field := range fields {
			text, ok := doc[field].(string)
			if !ok || term == "" || !strings.Contains(strings.ToLower(text), term) {
				continue
			}
			row := storage.ViewRow{ID: id, Key: field, Value: text}
			if query.Bool("include_docs") {
				row.Doc = doc.Copy()
			}
			rows = append(rows, row)
			break
		}
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ID < rows[j].ID
	})
	return &storage.ViewResult{TotalRows: len(rows), Rows: rows}, nil
}
