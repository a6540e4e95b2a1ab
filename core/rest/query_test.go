package rest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceQuery(t *testing.T) {
	values := url.Values{}
	values.Set("limit", "10")
	values.Set("descending", "true")
	values.Set("keys", `["a","b"]`)
	values.Set("startkey", "alice")
	values.Set("q", `"quoted"`)

	query := coerceQuery(values)
	assert.Equal(t, float64(10), query["limit"])
	assert.Equal(t, true, query["descending"])
	assert.Equal(t, []interface{}{"a", "b"}, query["keys"])
	assert.Equal(t, "alice", query["startkey"])
	assert.Equal(t, "quoted", query["q"])

	assert.Equal(t, 10, query.Int("limit", 0))
	assert.True(t, query.Bool("descending"))
}

func TestCoerceQueryFirstValueWins(t *testing.T) {
	values := url.Values{"limit": {"3", "7"}}
	query := coerceQuery(values)
	assert.Equal(t, float64(3), query["limit"])
}
