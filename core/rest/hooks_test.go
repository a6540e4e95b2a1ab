package rest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/storage"
	"github.com/docstack-tech/docstack/core/storage/memory"
)

func testResource() storage.Resource {
	store := memory.New()
	store.MustAddResource("article", memory.ResourceConfig{})
	return store.Resources()["article"]
}

func TestHooksSpecializedRunsFirst(t *testing.T) {
	res := testResource()
	hooks := NewHooks()
	var order []string
	hooks.On(core.ActionCreate, func(ctx context.Context, r *http.Request, res storage.Resource, action core.Action, payload interface{}) (interface{}, error) {
		order = append(order, "generic")
		doc := payload.(storage.Document)
		doc["generic"] = true
		return doc, nil
	})
	hooks.OnResource(core.ActionCreate, "article", func(ctx context.Context, r *http.Request, res storage.Resource, action core.Action, payload interface{}) (interface{}, error) {
		order = append(order, "specialized")
		doc := payload.(storage.Document)
		doc["specialized"] = true
		return doc, nil
	})

	out, err := hooks.run(context.Background(), nil, res, core.ActionCreate, storage.Document{})
	require.NoError(t, err)
	assert.Equal(t, []string{"specialized", "generic"}, order)
	doc := out.(storage.Document)
	assert.Equal(t, true, doc["specialized"])
	assert.Equal(t, true, doc["generic"])
}

func TestHooksErrorAborts(t *testing.T) {
	res := testResource()
	hooks := NewHooks()
	genericCalled := false
	hooks.OnResource(core.ActionCreate, "article", func(ctx context.Context, r *http.Request, res storage.Resource, action core.Action, payload interface{}) (interface{}, error) {
		return nil, errors.New("rejected")
	})
	hooks.On(core.ActionCreate, func(ctx context.Context, r *http.Request, res storage.Resource, action core.Action, payload interface{}) (interface{}, error) {
		genericCalled = true
		return payload, nil
	})

	_, err := hooks.run(context.Background(), nil, res, core.ActionCreate, storage.Document{})
	require.Error(t, err)
	assert.False(t, genericCalled)
}

func TestHooksPassThrough(t *testing.T) {
	res := testResource()
	hooks := NewHooks()
	doc := storage.Document{"title": "unchanged"}
	out, err := hooks.run(context.Background(), nil, res, core.ActionUpdate, doc)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}
