package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionPaths(t *testing.T) {
	c := NewWithRouter(nil).WithBasePath("/api")
	assert.Equal(t, "/api/articles", c.Collection("article").path())
	assert.Equal(t, "/api/categories", c.Collection("category").path())
	assert.Equal(t, "/children", NewWithRouter(nil).Collection("child").path())
}

func TestQueryString(t *testing.T) {
	assert.Equal(t, "", query(nil))
	assert.Equal(t, "?limit=2", query(map[string]string{"limit": "2"}))
}
