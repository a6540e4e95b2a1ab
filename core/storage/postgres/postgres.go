// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package postgres provides a document store backed by a postgres database.

Documents live in one jsonb table per resource with a revision column for
optimistic concurrency. The package implements the storage.Store contract.
*/
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // load database driver for postgres

	"github.com/docstack-tech/docstack/core/logger"
	"github.com/docstack-tech/docstack/core/schema"
	"github.com/docstack-tech/docstack/core/storage"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

// OpenWithSchema opens a postgres database with a schema.
// The schema gets created if it does not exist yet.
func OpenWithSchema(dataSourceName, password, dbSchema string) *DB {
	logger.Default().Infoln("connecting to postgres database:", dataSourceName)
	if password != "" {
		dataSourceName += " password=" + password
	}
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		panic(err)
	}
	if err = db.Ping(); err != nil {
		panic(err)
	}
	if len(dbSchema) == 0 {
		dbSchema = "public"
	} else {
		logger.Default().Infoln("selected database schema:", dbSchema)
		if _, err = db.Exec(`CREATE schema IF NOT EXISTS ` + dbSchema + `;`); err != nil {
			panic(err)
		}
	}
	return &DB{DB: db, Schema: dbSchema}
}

// ClearSchema clears all the data contained in the database's schema
// Technically this is done by dropping the schema and then recreating it
func (db *DB) ClearSchema() {
	if db.Schema == "public" {
		panic("refuse to drop public schema")
	}
	_, err := db.Exec(`DROP SCHEMA ` + db.Schema + ` CASCADE;
	CREATE schema IF NOT EXISTS ` + db.Schema + `;`)
	if err != nil {
		logger.Default().Errorln("clear schema error:", db.Schema, err.Error())
	}
}

// ViewDef describes one materialized view of a resource.
type ViewDef struct {
	// KeyField is the document field used as the view key. Rows are sorted
	// by it.
	KeyField string
	// Filter is an optional SQL predicate over the jsonb doc column, e.g.
	// "doc->>'published' = 'true'".
	Filter string
}

// ResourceConfig describes one resource of the store
type ResourceConfig struct {
	// Schema is the JSON schema for documents of this resource. Optional.
	Schema []byte
	// SchemaRefs are additional schemas referenced by Schema.
	SchemaRefs []string
	// Views are the named materialized views. The "all" view is always
	// available and does not need to be configured.
	Views map[string]ViewDef
	// Indexes are the named search indexes, each a list of searchable
	// document fields.
	Indexes map[string][]string
}

// Store is the postgres document store
type Store struct {
	db        *DB
	resources map[string]*resource
}

// New creates a store on the given database.
func New(db *DB) *Store {
	return &Store{db: db, resources: make(map[string]*resource)}
}

// AddResource adds a resource to the store. The backing table is created if
// it does not exist yet.
func (s *Store) AddResource(name string, rc ResourceConfig) error {
	if name == "" {
		return fmt.Errorf("resource name must not be empty")
	}
	if _, ok := s.resources[name]; ok {
		return fmt.Errorf("resource %s already exists", name)
	}

	table := strings.ToLower(name)
	createQuery := fmt.Sprintf(`CREATE table IF NOT EXISTS %s."%s" `+
		`(id varchar NOT NULL PRIMARY KEY, `+
		`rev uuid NOT NULL, `+
		`timestamp timestamp NOT NULL DEFAULT now(), `+
		`doc jsonb NOT NULL DEFAULT '{}'::jsonb);`, s.db.Schema, table)
	if _, err := s.db.Exec(createQuery); err != nil {
		return fmt.Errorf("create table for %s: %w", name, err)
	}

	r := &resource{
		store:   s,
		name:    name,
		table:   fmt.Sprintf(`%s."%s"`, s.db.Schema, table),
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

// MustAddResource is like AddResource but panics on error.
func (s *Store) MustAddResource(name string, rc ResourceConfig) {
	if err := s.AddResource(name, rc); err != nil {
		panic(err)
	}
}

// Resources returns all configured resources by canonical name.
func (s *Store) Resources() map[string]storage.Resource {
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

// FetchRefs resolves embedded document references in place, see the memory
// store for the reference convention.
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
		id, _ := v[storage.FieldID].(string)
		typ, _ := v[storage.FieldType].(string)
		if id != "" && typ != "" {
			if r, ok := s.resources[typ]; ok {
				if target, err := r.Load(ctx, id); err == nil {
					return map[string]interface{}(target)
				}
			}
			return v
		}
		for key, nested := range v {
			v[key] = s.resolveRefs(ctx, nested)
		}
		return v
	case []interface{}:
		for i, nested := range v {
			v[i] = s.resolveRefs(ctx, nested)
		}
		return v
	default:
		return value
	}
}

type resource struct {
	store     *Store
	name      string
	table     string
	validator *schema.Validator
	views     map[string]ViewDef
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

// merge reassembles a full document from a table row
func merge(r *resource, id, rev string, docJSON []byte) (storage.Document, error) {
	doc := storage.Document{}
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", r.name, id, err)
	}
	doc[storage.FieldID] = id
	doc[storage.FieldRev] = rev
	doc[storage.FieldType] = r.name
	return doc, nil
}

// strip removes the reserved fields before the doc goes into the jsonb column
func strip(doc storage.Document) ([]byte, error) {
	body := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == storage.FieldID || k == storage.FieldRev || k == storage.FieldType {
			continue
		}
		body[k] = v
	}
	return json.Marshal(body)
}

func (r *resource) Load(ctx context.Context, id string) (storage.Document, error) {
	var rev string
	var docJSON []byte
	err := r.store.db.QueryRowContext(ctx,
		`SELECT rev, doc FROM `+r.table+` WHERE id = $1;`, id).Scan(&rev, &docJSON)
	if err == sql.ErrNoRows {
		return nil, storage.NotFound("no such " + r.name)
	}
	if err != nil {
		return nil, err
	}
	return merge(r, id, rev, docJSON)
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
	docJSON, err := strip(doc)
	if err != nil {
		return nil, err
	}

	id := doc.ID()
	rev := doc.Rev()
	newRev := uuid.NewString()

	if rev == "" {
		if id == "" {
			id = uuid.NewString()
		}
		_, err = r.store.db.ExecContext(ctx,
			`INSERT INTO `+r.table+`(id, rev, doc) VALUES($1, $2, $3);`,
			id, newRev, docJSON)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate key") {
				return nil, storage.Conflict("document update conflict")
			}
			return nil, err
		}
		return merge(r, id, newRev, docJSON)
	}

	result, err := r.store.db.ExecContext(ctx,
		`UPDATE `+r.table+` SET rev = $3, doc = $4, timestamp = now() WHERE id = $1 AND rev = $2;`,
		id, rev, newRev, docJSON)
	if err != nil {
		return nil, err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		var exists bool
		if err := r.store.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM `+r.table+` WHERE id = $1);`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, storage.Conflict("document update conflict")
		}
		return nil, storage.NotFound("no such " + r.name)
	}
	return merge(r, id, newRev, docJSON)
}

func (r *resource) Destroy(ctx context.Context, ref storage.DocumentRef) error {
	result, err := r.store.db.ExecContext(ctx,
		`DELETE FROM `+r.table+` WHERE id = $1 AND rev = $2;`, ref.ID, ref.Rev)
	if err != nil {
		return err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		var exists bool
		if err := r.store.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM `+r.table+` WHERE id = $1);`, ref.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return storage.Conflict("document update conflict")
		}
		return storage.NotFound("no such " + r.name)
	}
	return nil
}

func (r *resource) View(ctx context.Context, name string, query storage.Query) (*storage.ViewResult, error) {
	keyExpr := "id"
	filter := ""
	if name != "all" {
		view, ok := r.views[name]
		if !ok {
			return nil, storage.NotFound("no such view: " + name)
		}
		keyExpr = "doc->>'" + view.KeyField + "'"
		filter = view.Filter
	}

	sqlQuery := `SELECT id, rev, doc, ` + keyExpr + ` AS key, count(*) OVER() AS full_count FROM ` + r.table
	var where []string
	var args []interface{}
	if filter != "" {
		where = append(where, "("+filter+")")
	}
	if keys, ok := query["keys"].([]interface{}); ok {
		list := make([]string, 0, len(keys))
		for _, key := range keys {
			list = append(list, fmt.Sprint(key))
		}
		args = append(args, "{"+strings.Join(list, ",")+"}")
		where = append(where, fmt.Sprintf("%s = ANY($%d::varchar[])", keyExpr, len(args)))
	}
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY " + keyExpr
	if limit := query.Int("limit", 0); limit > 0 {
		args = append(args, limit)
		sqlQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	sqlQuery += ";"

	rows, err := r.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &storage.ViewResult{}
	for rows.Next() {
		var id, rev, key string
		var docJSON []byte
		var total int
		if err := rows.Scan(&id, &rev, &docJSON, &key, &total); err != nil {
			return nil, err
		}
		result.TotalRows = total
		doc, err := merge(r, id, rev, docJSON)
		if err != nil {
			return nil, err
		}
		row := storage.ViewRow{ID: id, Key: key, Value: map[string]interface{}(doc)}
		if query.Bool("include_docs") {
			row.Doc = doc
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

func (r *resource) Search(ctx context.Context, name string, query storage.Query) (*storage.ViewResult, error) {
	fields, ok := r.indexes[name]
	if !ok {
		return nil, storage.NotFound("no such search index: " + name)
	}
	term, _ := query["q"].(string)
	if term == "" {
		return &storage.ViewResult{}, nil
	}

	var matches []string
	for _, field := range fields {
		matches = append(matches, "doc->>'"+field+"' ILIKE $1")
	}
	sqlQuery := `SELECT id, rev, doc FROM ` + r.table +
		` WHERE ` + strings.Join(matches, " OR ") + ` ORDER BY id;`

	rows, err := r.store.db.QueryContext(ctx, sqlQuery, "%"+term+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &storage.ViewResult{}
	for rows.Next() {
		var id, rev string
		var docJSON []byte
		if err := rows.Scan(&id, &rev, &docJSON); err != nil {
			return nil, err
		}
		doc, err := merge(r, id, rev, docJSON)
		if err != nil {
			return nil, err
		}
		row := storage.ViewRow{ID: id, Key: name, Value: map[string]interface{}(doc)}
		if query.Bool("include_docs") {
			row.Doc = doc
		}
		result.Rows = append(result.Rows, row)
		result.TotalRows++
	}
	return result, rows.Err()
}
