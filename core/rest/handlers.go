// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
//
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
//
// info@dalarub.com
//

package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/logger"
	"github.com/docstack-tech/docstack/core/storage"
)

// resourceHandlers binds the generated handlers for one resource. Every
// handler runs the same sequence: permission gate, pre hooks, storage
// operation, post hooks, reply. Permission failures reject the request
// before any hook or storage call.
type resourceHandlers struct {
	api *API
	res storage.Resource
}

func asDocument(value interface{}) (storage.Document, error) {
	switch doc := value.(type) {
	case storage.Document:
		return doc, nil
	case map[string]interface{}:
		return storage.Document(doc), nil
	}
	return nil, storage.NewError(http.StatusInternalServerError, "hook returned a payload that is not a document")
}

func (h *resourceHandlers) getSchema(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.api.gate.check(ctx, core.ActionSchema, h.res, r); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.res.Schema())
}

func (h *resourceHandlers) getByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.api.gate.check(ctx, core.ActionLoad, h.res, r); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.api.pre.run(ctx, r, h.res, core.ActionLoad, nil); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := h.res.Load(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := coerceQuery(r.URL.Query())
	if query.Bool("include_refs") {
		if err := h.api.store.FetchRefs(ctx, doc); err != nil {
			writeError(w, r, err)
			return
		}
	}
	out, err := h.api.post.run(ctx, r, h.res, core.ActionLoad, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *resourceHandlers) getAll(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, core.ActionView, func(query storage.Query) (*storage.ViewResult, error) {
		return h.res.View(r.Context(), "all", query)
	})
}

// getView serves the named views. The name comes from the path, unknown
// names surface the store's not found error.
func (h *resourceHandlers) getView(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["view"]
	h.query(w, r, core.ActionView, func(query storage.Query) (*storage.ViewResult, error) {
		return h.res.View(r.Context(), name, query)
	})
}

func (h *resourceHandlers) getSearch(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["index"]
	h.query(w, r, core.ActionSearch, func(query storage.Query) (*storage.ViewResult, error) {
		return h.res.Search(r.Context(), name, query)
	})
}

// query is the shared view and search pipeline. Reference hydration with
// include_refs mutates the row documents in place, the result keeps its
// shape.
func (h *resourceHandlers) query(w http.ResponseWriter, r *http.Request, action core.Action, fetch func(storage.Query) (*storage.ViewResult, error)) {
	ctx := r.Context()
	if err := h.api.gate.check(ctx, action, h.res, r); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.api.pre.run(ctx, r, h.res, action, nil); err != nil {
		writeError(w, r, err)
		return
	}
	query := coerceQuery(r.URL.Query())
	result, err := fetch(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if query.Bool("include_refs") {
		docs := make([]storage.Document, 0, len(result.Rows))
		for _, row := range result.Rows {
			if row.Doc != nil {
				docs = append(docs, row.Doc)
			} else if value, ok := row.Value.(map[string]interface{}); ok {
				docs = append(docs, storage.Document(value))
			}
		}
		if err := h.api.store.FetchRefs(ctx, docs...); err != nil {
			writeError(w, r, err)
			return
		}
	}
	out, err := h.api.post.run(ctx, r, h.res, action, result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// save handles POST. Documents without an id are created under a
// generated one; a document carrying its id and current revision is an
// update, the store enforces the revision match.
func (h *resourceHandlers) save(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, core.ActionCreate, func(doc storage.Document) error { return nil })
}

// saveWithID handles PUT to /{id}, creating a document under a caller
// chosen id. The payload must not carry a revision; revision-bearing
// updates go through the id and rev route.
func (h *resourceHandlers) saveWithID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.write(w, r, core.ActionCreate, func(doc storage.Document) error {
		if doc.Rev() != "" {
			return storage.BadRequest("document carries a revision, use the update route")
		}
		doc[storage.FieldID] = id
		return nil
	})
}

// update handles PUT to /{id}/{rev}. Path id and rev override whatever the
// payload carries, the store enforces the revision match.
func (h *resourceHandlers) update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.write(w, r, core.ActionUpdate, func(doc storage.Document) error {
		doc[storage.FieldID] = vars["id"]
		doc[storage.FieldRev] = vars["rev"]
		return nil
	})
}

func (h *resourceHandlers) write(w http.ResponseWriter, r *http.Request, action core.Action, stamp func(storage.Document) error) {
	ctx := r.Context()
	rlog := logger.FromContext(ctx)
	if err := h.api.gate.check(ctx, action, h.res, r); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := extractPayload(r, h.res.Name())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p.File != nil {
		defer p.File.Close()
	}
	if err := stamp(p.Doc); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.api.pre.run(ctx, r, h.res, action, p.Doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := asDocument(out)
	if err != nil {
		writeError(w, r, err)
		return
	}

	blobKey := ""
	if p.File != nil && h.api.blobs != nil {
		blobKey, err = h.uploadFile(r, doc, p)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	saved, err := h.res.Save(ctx, doc)
	if err != nil {
		if blobKey != "" {
			if derr := h.api.blobs.Delete(ctx, blobKey); derr != nil {
				rlog.Warningf("could not roll back blob %s: %v", blobKey, derr)
			}
		}
		writeError(w, r, err)
		return
	}
	h.api.notify(ctx, action, h.res, saved.ID(), saved)
	out, err = h.api.post.run(ctx, r, h.res, action, saved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// uploadFile stores the file part of a multipart write and records its
// location in the document. Newly created documents get their id assigned
// up front so the blob key is stable.
func (h *resourceHandlers) uploadFile(r *http.Request, doc storage.Document, p *payload) (string, error) {
	ctx := r.Context()
	if doc.ID() == "" {
		batch, err := h.api.store.UUIDs(ctx, 1)
		if err != nil {
			return "", err
		}
		doc[storage.FieldID] = batch.UUIDs[0]
	}
	key := h.res.Name() + "/" + doc.ID()
	if err := h.api.blobs.Put(ctx, key, p.File); err != nil {
		return "", err
	}
	doc[storage.FieldFile] = map[string]interface{}{
		"key":          key,
		"name":         p.FileHeader.Filename,
		"size":         p.FileHeader.Size,
		"content_type": p.FileHeader.Header.Get("Content-Type"),
	}
	return key, nil
}

// destroy handles DELETE to /{id}/{rev}. A stale or reused revision is
// rejected by the store, deleting an already deleted document yields the
// store's not-found error. On success the reply has no body.
func (h *resourceHandlers) destroy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rlog := logger.FromContext(ctx)
	if err := h.api.gate.check(ctx, core.ActionDestroy, h.res, r); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	ref := storage.DocumentRef{Type: h.res.Name(), ID: vars["id"], Rev: vars["rev"]}
	if _, err := h.api.pre.run(ctx, r, h.res, core.ActionDestroy, ref); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.res.Destroy(ctx, ref); err != nil {
		writeError(w, r, err)
		return
	}
	if h.api.blobs != nil {
		if err := h.api.blobs.DeleteAllWithPrefix(ctx, h.res.Name()+"/"+ref.ID); err != nil {
			rlog.Warningf("could not delete blobs for %s/%s: %v", h.res.Name(), ref.ID, err)
		}
	}
	h.api.notify(ctx, core.ActionDestroy, h.res, ref.ID, nil)
	if _, err := h.api.post.run(ctx, r, h.res, core.ActionDestroy, ref); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
