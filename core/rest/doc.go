/*
Package rest generates a RESTful route surface for a document store.

The API is declared with a Builder and mounted on a gorilla mux router.
Every resource of the store gets the same uniform set of routes, here for
a resource "article" behind the base path "/api":

	GET    /api/articles/_schema
	GET    /api/articles
	POST   /api/articles
	GET    /api/articles/{id}
	PUT    /api/articles/{id}
	PUT    /api/articles/{id}/{rev}
	DELETE /api/articles/{id}/{rev}
	GET    /api/articles/_views/{view}
	GET    /api/articles/_search/{index}

plus two general routes:

	GET    /api/_index
	GET    /api/_uuids

POST creates a document under a fresh id, PUT to an id creates it under a
caller chosen id, and PUT to an id and revision updates it. Writes are
guarded by optimistic concurrency: the revision in the path must match the
stored document, otherwise the store answers with a conflict. Every stored
document carries its resource name in the "type_" field, stamped by the
api no matter what the client sent.

Query parameters of view and search routes are coerced from JSON, so
limit=10 arrives as a number and keys=["a","b"] as an array, while plain
words stay strings. With include_refs=true, embedded documents of the
form {"_id": ..., "type_": ...} are replaced by the documents they point
to, without changing the shape of the response.

Writes can be wrapped with pre and post hooks, per action and optionally
per resource, and guarded by a declarative role based permission policy.
Multipart writes carry the document in a "doc" form field and an optional
"file" part, which is stored through the configured blob driver.
*/
package rest
