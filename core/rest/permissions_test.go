package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/storage"
)

func roleResolver(role string) func(*http.Request) string {
	return func(*http.Request) string { return role }
}

func TestPermissionGateInactive(t *testing.T) {
	res := testResource()
	gate := newPermissionGate(nil, roleResolver(""))
	assert.NoError(t, gate.check(context.Background(), core.ActionDestroy, res, nil))
}

func TestPermissionGateDefaultDeny(t *testing.T) {
	res := testResource()
	policy := Policy{
		"admin": AllResources(),
		"editor": Resources(map[string]ResourcePermissions{
			"article": Actions(map[core.Action]Leaf{
				core.ActionLoad:   Grant(),
				core.ActionCreate: Grant(),
				core.ActionUpdate: Grant(),
			}),
		}),
	}

	check := func(role string, action core.Action) error {
		gate := newPermissionGate(policy, roleResolver(role))
		return gate.check(context.Background(), action, res, nil)
	}

	assert.NoError(t, check("admin", core.ActionDestroy))
	assert.NoError(t, check("editor", core.ActionLoad))
	assert.NoError(t, check("editor", core.ActionCreate))
	assert.NoError(t, check("editor", core.ActionUpdate))

	err := check("editor", core.ActionDestroy)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, storage.CodeOf(err))

	// unknown role, unknown action on a resource-scoped role
	assert.Error(t, check("guest", core.ActionLoad))
	assert.Error(t, check("editor", core.ActionView))
}

func TestPermissionGateExplicitDeny(t *testing.T) {
	res := testResource()
	policy := Policy{
		"editor": Resources(map[string]ResourcePermissions{
			"article": Actions(map[core.Action]Leaf{
				core.ActionDestroy: Deny(),
			}),
		}),
	}
	gate := newPermissionGate(policy, roleResolver("editor"))
	err := gate.check(context.Background(), core.ActionDestroy, res, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, storage.CodeOf(err))
}

func TestPermissionGatePredicate(t *testing.T) {
	res := testResource()
	var seenRole string
	policy := Policy{
		"editor": Resources(map[string]ResourcePermissions{
			"article": Actions(map[core.Action]Leaf{
				core.ActionUpdate: Predicate(func(ctx context.Context, role string, action core.Action, res storage.Resource, r *http.Request) (bool, error) {
					seenRole = role
					return r.Header.Get("X-Trusted") == "yes", nil
				}),
				core.ActionDestroy: Predicate(func(ctx context.Context, role string, action core.Action, res storage.Resource, r *http.Request) (bool, error) {
					return false, errors.New("backend down")
				}),
			}),
		}),
	}
	gate := newPermissionGate(policy, roleResolver("editor"))

	r := httptest.NewRequest(http.MethodPut, "/articles/a/1", nil)
	r.Header.Set("X-Trusted", "yes")
	assert.NoError(t, gate.check(context.Background(), core.ActionUpdate, res, r))
	assert.Equal(t, "editor", seenRole)

	r.Header.Set("X-Trusted", "no")
	err := gate.check(context.Background(), core.ActionUpdate, res, r)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, storage.CodeOf(err))

	// predicate errors surface unchanged, not as permission errors
	err = gate.check(context.Background(), core.ActionDestroy, res, r)
	require.EqualError(t, err, "backend down")
	assert.NotEqual(t, http.StatusUnauthorized, storage.CodeOf(err))
}
