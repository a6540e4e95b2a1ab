// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package schema

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/docstack-tech/docstack/core/storage"
)

// Validator validates documents against a resource's JSON schema. It also
// keeps the raw schema document around for the _schema introspection route.
type Validator struct {
	raw      json.RawMessage
	compiled *gojsonschema.Schema
}

// New compiles the given JSON schema. Additional refs may be passed for
// schemas that reference shared definitions; top level schemas cannot
// reference each other.
func New(schemaJSON []byte, refs ...string) (*Validator, error) {
	if !json.Valid(schemaJSON) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}
	sl := gojsonschema.NewSchemaLoader()
	for _, ref := range refs {
		if err := sl.AddSchemas(gojsonschema.NewStringLoader(ref)); err != nil {
			return nil, fmt.Errorf("cannot add ref: %w", err)
		}
	}
	compiled, err := sl.Compile(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("cannot compile schema: %w", err)
	}
	return &Validator{raw: schemaJSON, compiled: compiled}, nil
}

// MustNew is like New but panics on a broken schema. Schemas are
// configuration, a broken one is a startup error.
func MustNew(schemaJSON []byte, refs ...string) *Validator {
	v, err := New(schemaJSON, refs...)
	if err != nil {
		panic(err)
	}
	return v
}

// Description returns the raw schema document.
func (v *Validator) Description() json.RawMessage {
	return v.raw
}

// Validate validates the given document. If the document violates the
// schema, the returned error is a storage.ValidationFailed carrying one
// entry per violation.
func (v *Validator) Validate(doc interface{}) error {
	result, err := v.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return storage.BadRequest(err.Error())
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return storage.ValidationFailed("Validation failed", violations)
}
