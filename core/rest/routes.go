package rest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/storage"
)

// Route is one mountable endpoint. TransformRoutes callbacks may rewrite
// Path, swap the Handler or clear Auth before the routes are mounted.
type Route struct {
	Method  string
	Path    string
	Auth    bool
	Handler http.HandlerFunc
}

// ResourceRoutes groups the generated routes of one resource. View and
// Search are pattern routes matching any name; names the resource does
// not know yield the store's not found error.
type ResourceRoutes struct {
	Schema *Route
	All    *Route
	View   *Route
	Search *Route

	Load       *Route
	Save       *Route
	SaveWithID *Route
	Update     *Route
	Destroy    *Route

	viewNames   []string
	searchNames []string
}

// RouteSet is the full set of generated routes, handed to the
// TransformRoutes callback before mounting.
type RouteSet struct {
	Index     *Route
	UUIDs     *Route
	Resources map[string]*ResourceRoutes
}

// RouteInfo describes the endpoints of one resource in the route index.
type RouteInfo struct {
	Type        string            `json:"type"`
	Path        string            `json:"path"`
	SchemaPath  string            `json:"schemaPath"`
	ViewPaths   map[string]string `json:"viewPaths"`
	SearchPaths map[string]string `json:"searchPaths,omitempty"`
}

// RouteIndex maps resource names to their route descriptions. It is
// served at GET {basePath}/_index.
type RouteIndex map[string]RouteInfo

func (api *API) buildRoutes() *RouteSet {
	set := &RouteSet{
		Index: &Route{Method: http.MethodGet, Path: api.basePath + "/_index",
			Auth: true, Handler: api.getIndex},
		UUIDs: &Route{Method: http.MethodGet, Path: api.basePath + "/_uuids",
			Auth: true, Handler: api.getUUIDs},
		Resources: make(map[string]*ResourceRoutes),
	}
	for name, res := range api.store.Resources() {
		set.Resources[name] = api.buildResourceRoutes(name, res)
	}
	return set
}

func (api *API) buildResourceRoutes(name string, res storage.Resource) *ResourceRoutes {
	h := &resourceHandlers{api: api, res: res}
	base := api.basePath + "/" + core.Plural(strings.ToLower(name))
	routes := &ResourceRoutes{
		Schema: &Route{Method: http.MethodGet, Path: base + "/_schema",
			Auth: true, Handler: h.getSchema},
		All: &Route{Method: http.MethodGet, Path: base,
			Auth: true, Handler: h.getAll},
		View: &Route{Method: http.MethodGet, Path: base + "/_views/{view}",
			Auth: true, Handler: h.getView},
		Search: &Route{Method: http.MethodGet, Path: base + "/_search/{index}",
			Auth: true, Handler: h.getSearch},
		Load: &Route{Method: http.MethodGet, Path: base + "/{id}",
			Auth: true, Handler: h.getByID},
		Save: &Route{Method: http.MethodPost, Path: base,
			Auth: true, Handler: h.save},
		SaveWithID: &Route{Method: http.MethodPut, Path: base + "/{id}",
			Auth: true, Handler: h.saveWithID},
		Update: &Route{Method: http.MethodPut, Path: base + "/{id}/{rev}",
			Auth: true, Handler: h.update},
		Destroy: &Route{Method: http.MethodDelete, Path: base + "/{id}/{rev}",
			Auth: true, Handler: h.destroy},
	}
	for _, view := range res.Views() {
		if view == "all" {
			continue
		}
		routes.viewNames = append(routes.viewNames, view)
	}
	routes.searchNames = append(routes.searchNames, res.Indexes()...)
	sort.Strings(routes.viewNames)
	sort.Strings(routes.searchNames)
	return routes
}

// mount registers the route set on the router. The schema, view and
// search routes go first so the id patterns cannot shadow them. The route
// index is derived from the final, possibly transformed, paths.
func (api *API) mount(set *RouteSet) {
	api.index = make(RouteIndex, len(set.Resources))
	api.mountRoute(set.Index)
	api.mountRoute(set.UUIDs)

	names := make([]string, 0, len(set.Resources))
	for name := range set.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		routes := set.Resources[name]
		info := RouteInfo{
			Type:        name,
			Path:        routes.All.Path,
			SchemaPath:  routes.Schema.Path,
			ViewPaths:   make(map[string]string, len(routes.viewNames)+1),
			SearchPaths: make(map[string]string, len(routes.searchNames)),
		}
		info.ViewPaths["all"] = routes.All.Path
		for _, view := range routes.viewNames {
			info.ViewPaths[view] = strings.Replace(routes.View.Path, "{view}", view, 1)
		}
		for _, index := range routes.searchNames {
			info.SearchPaths[index] = strings.Replace(routes.Search.Path, "{index}", index, 1)
		}

		api.mountRoute(routes.Schema)
		api.mountRoute(routes.View)
		api.mountRoute(routes.Search)
		api.mountRoute(routes.All)
		api.mountRoute(routes.Save)
		api.mountRoute(routes.Load)
		api.mountRoute(routes.SaveWithID)
		api.mountRoute(routes.Update)
		api.mountRoute(routes.Destroy)

		api.index[name] = info
	}
}

func (api *API) mountRoute(route *Route) {
	if route == nil || route.Handler == nil {
		return
	}
	handler := http.Handler(route.Handler)
	if route.Auth && api.auth != nil {
		handler = api.auth(handler)
	}
	api.router.Handle(route.Path, handler).Methods(route.Method)
}

func (api *API) getIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.index)
}

// maxUUIDCount caps a single id batch.
const maxUUIDCount = 1000

// getUUIDs serves batches of fresh document ids. A missing or non-numeric
// count yields a single id, oversized counts are capped.
func (api *API) getUUIDs(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count < 1 {
		count = 1
	}
	if count > maxUUIDCount {
		count = maxUUIDCount
	}
	batch, err := api.store.UUIDs(r.Context(), count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}
