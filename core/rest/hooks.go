package rest

import (
	"context"
	"net/http"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/storage"
)

// HookFunc is a user-supplied function invoked around a storage operation.
// It receives the in-flight payload and returns the payload for the next
// stage; returning an error rejects the operation. The payload is the
// document for create and update, the document reference for destroy, the
// result for post-load and post-view hooks, and nil for pre-load and
// pre-view hooks.
type HookFunc func(ctx context.Context, r *http.Request, res storage.Resource, action core.Action, payload interface{}) (interface{}, error)

// Hooks is an ordered, action-scoped hook registry. For each action there
// can be one resource-specific handler per resource and one generic handler;
// the specialized handler always runs first and the generic one runs on its
// result.
//
// Registration is a startup-time concern; the registry maps are not
// synchronized.
type Hooks struct {
	generic map[core.Action]HookFunc
	scoped  map[string]map[core.Action]HookFunc
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{
		generic: make(map[core.Action]HookFunc),
		scoped:  make(map[string]map[core.Action]HookFunc),
	}
}

// On registers a generic handler for the action, applying to all resources.
func (h *Hooks) On(action core.Action, fn HookFunc) {
	h.generic[action] = fn
}

// OnResource registers a handler for the action on one specific resource.
func (h *Hooks) OnResource(action core.Action, resourceName string, fn HookFunc) {
	handlers, ok := h.scoped[resourceName]
	if !ok {
		handlers = make(map[core.Action]HookFunc)
		h.scoped[resourceName] = handlers
	}
	handlers[action] = fn
}

// run invokes the registered handlers for the action on the resource. When
// no handler is registered the payload passes through unchanged.
func (h *Hooks) run(ctx context.Context, r *http.Request, res storage.Resource, action core.Action, payload interface{}) (interface{}, error) {
	if handlers, ok := h.scoped[res.Name()]; ok {
		if fn, ok := handlers[action]; ok {
			var err error
			payload, err = fn(ctx, r, res, action, payload)
			if err != nil {
				return nil, err
			}
		}
	}
	if fn, ok := h.generic[action]; ok {
		return fn(ctx, r, res, action, payload)
	}
	return payload, nil
}
