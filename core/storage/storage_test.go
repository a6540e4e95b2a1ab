package storage

import "testing"

func TestDocumentAccessors(t *testing.T) {
	doc := Document{"_id": "i", "_rev": "r", "type_": "Article", "title": "t"}
	if doc.ID() != "i" || doc.Rev() != "r" || doc.Type() != "Article" {
		t.Fatalf("unexpected accessors: %v", doc)
	}

	c := doc.Copy()
	c["title"] = "changed"
	if doc["title"] != "t" {
		t.Fatal("copy is not independent")
	}
}

func TestQueryHelpers(t *testing.T) {
	q := Query{"limit": float64(3), "include_docs": true}
	if q.Int("limit", 0) != 3 {
		t.Fatal("limit not coerced")
	}
	if q.Int("skip", 7) != 7 {
		t.Fatal("fallback not used")
	}
	if !q.Bool("include_docs") || q.Bool("include_refs") {
		t.Fatal("bool lookup broken")
	}
}

func TestErrorCodes(t *testing.T) {
	if !IsNotFound(NotFound("x")) {
		t.Fatal("not found code")
	}
	if !IsConflict(Conflict("x")) {
		t.Fatal("conflict code")
	}
	err := ValidationFailed("Validation failed", []string{"a", "b"})
	if err.Code != 400 || len(err.Errors) != 2 {
		t.Fatalf("unexpected validation error: %+v", err)
	}
	if CodeOf(errPlain{}) != 0 {
		t.Fatal("plain errors have no code")
	}
}

type errPlain struct{}

func (errPlain) Error() string { return "plain" }
