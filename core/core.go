package core

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Action represents a resource action, one of Load, Create, Update, Destroy, View, Search, Schema.
//
// Actions are the keys used by the hook registries and the permission policy.
type Action string

// all supported resource actions
const (
	ActionLoad    Action = "load"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
	ActionView    Action = "view"
	ActionSearch  Action = "search"
	ActionSchema  Action = "schema"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = Action(s)
	switch *a {
	case ActionLoad, ActionCreate, ActionUpdate, ActionDestroy, ActionView, ActionSearch, ActionSchema:
		return nil
	default:
		return fmt.Errorf("%s is not a valid Action", s)
	}
}

// Plural returns the plural form of the passed singular string.
//
// This is the algorithm used to create idiomatic REST routes
func Plural(singular string) string {
	if strings.HasSuffix(singular, "y") {
		return strings.TrimSuffix(singular, "y") + "ies"
	}
	if strings.HasSuffix(singular, "child") {
		return strings.TrimSuffix(singular, "child") + "children"
	}
	return singular + "s"
}
