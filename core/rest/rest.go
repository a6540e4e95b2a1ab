// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
//
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
//
// info@dalarub.com
//

package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/access"
	"github.com/docstack-tech/docstack/core/blob"
	"github.com/docstack-tech/docstack/core/logger"
	"github.com/docstack-tech/docstack/core/notifier"
	"github.com/docstack-tech/docstack/core/storage"
)

// Builder is the configuration of a generated REST API.
type Builder struct {
	// Store provides the resources to expose. Mandatory.
	Store storage.Store
	// Router is the mux router the routes are mounted on. Mandatory.
	Router *mux.Router
	// BasePath is prepended to every generated path, for example "/api".
	BasePath string
	// Permissions is the access policy. A nil policy grants everything.
	Permissions Policy
	// GetRole resolves the caller's role for the permission gate. Defaults
	// to the role stored in the request context by the auth middleware.
	GetRole func(*http.Request) string
	// Auth wraps every generated route, typically a JWT middleware.
	// Individual routes can opt out through TransformRoutes.
	Auth mux.MiddlewareFunc
	// Handlers registers resource-scoped pre hooks straight from
	// configuration, keyed by resource name and action.
	Handlers map[string]map[core.Action]HookFunc
	// TransformRoutes is called with the assembled route set before
	// mounting, for late path or auth overrides.
	TransformRoutes func(*RouteSet)
	// Notifier receives a notification after every successful write.
	Notifier notifier.Notifier
	// BlobConfiguration enables file storage for multipart writes.
	BlobConfiguration *blob.Configuration
	// Compression enables gzip compression of responses.
	Compression bool
	// CORS installs permissive cross origin headers.
	CORS bool
}

// API is a running route-generated REST frontend over a document store.
type API struct {
	store    storage.Store
	router   *mux.Router
	basePath string
	gate     *permissionGate
	auth     mux.MiddlewareFunc
	notifier notifier.Notifier
	blobs    blob.Driver
	index    RouteIndex

	pre  *Hooks
	post *Hooks
}

// New realizes the API from the builder and mounts all routes. It panics
// on invalid configuration, as this is a configuration error.
func New(bb *Builder) *API {
	if bb.Store == nil {
		panic("rest: store is missing")
	}
	if bb.Router == nil {
		panic("rest: router is missing")
	}
	getRole := bb.GetRole
	if getRole == nil {
		getRole = access.RoleFromRequest
	}
	api := &API{
		store:    bb.Store,
		router:   bb.Router,
		basePath: bb.BasePath,
		gate:     newPermissionGate(bb.Permissions, getRole),
		auth:     bb.Auth,
		notifier: bb.Notifier,
		pre:      NewHooks(),
		post:     NewHooks(),
	}
	if bb.BlobConfiguration != nil {
		driver, err := blob.NewDriver(*bb.BlobConfiguration)
		if err != nil {
			panic("rest: " + err.Error())
		}
		api.blobs = driver
	}
	for name, actions := range bb.Handlers {
		if _, ok := bb.Store.Resources()[name]; !ok {
			panic("rest: handler for unknown resource " + name)
		}
		for action, fn := range actions {
			api.pre.OnResource(action, name, fn)
		}
	}

	if bb.Compression {
		api.router.Use(handlers.CompressHandler)
	}
	if bb.CORS {
		api.router.Use(corsMiddleware())
	}

	set := api.buildRoutes()
	if bb.TransformRoutes != nil {
		bb.TransformRoutes(set)
	}
	api.mount(set)
	return api
}

// Pre returns the hook registry running before storage operations.
func (api *API) Pre() *Hooks { return api.pre }

// Post returns the hook registry running after storage operations.
func (api *API) Post() *Hooks { return api.post }

// RouteIndex returns the final route index, as served at _index.
func (api *API) RouteIndex() RouteIndex { return api.index }

// Router returns the router the API is mounted on.
func (api *API) Router() *mux.Router { return api.router }

func (api *API) notify(ctx context.Context, action core.Action, res storage.Resource, id string, doc storage.Document) {
	if api.notifier == nil {
		return
	}
	var payload []byte
	if doc != nil {
		payload, _ = json.Marshal(doc)
	}
	n := notifier.Notification{
		Resource:   res.Name(),
		Action:     action,
		ResourceID: id,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := api.notifier.Notify(ctx, n); err != nil {
		logger.FromContext(ctx).Errorf("could not notify %s %s: %v", action, res.Name(), err)
	}
}

func corsMiddleware() mux.MiddlewareFunc {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
}
