package rest

import (
	"net/url"

	"github.com/goccy/go-json"

	"github.com/docstack-tech/docstack/core/storage"
)

// coerceQuery turns raw URL query values into typed view parameters. Each
// value is parsed as JSON: `limit=10` becomes the number 10, `descending=true`
// a boolean, `keys=["a","b"]` an array. Values that are not valid JSON, such
// as `startkey=alice`, stay plain strings. Only the first value per key is
// considered.
func coerceQuery(values url.Values) storage.Query {
	query := make(storage.Query, len(values))
	for key := range values {
		raw := values.Get(key)
		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			query[key] = raw
			continue
		}
		query[key] = parsed
	}
	return query
}
