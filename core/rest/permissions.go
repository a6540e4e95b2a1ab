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

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/storage"
)

// PredicateFunc decides a permission dynamically per request. Returning
// false denies the action; a returned error aborts the request and is
// surfaced unchanged to the caller.
type PredicateFunc func(ctx context.Context, role string, action core.Action, res storage.Resource, r *http.Request) (bool, error)

// Leaf is the decision at the bottom of the permission tree: a static
// grant or deny, or a predicate evaluated at request time.
type Leaf struct {
	grant     bool
	predicate PredicateFunc
}

// Grant returns a leaf that always permits the action.
func Grant() Leaf { return Leaf{grant: true} }

// Deny returns a leaf that always rejects the action.
func Deny() Leaf { return Leaf{} }

// Predicate returns a leaf that consults fn at request time.
func Predicate(fn PredicateFunc) Leaf { return Leaf{predicate: fn} }

// ResourcePermissions describes what a role may do with one resource,
// either everything or a per-action set of leaves.
type ResourcePermissions struct {
	All     bool
	Actions map[core.Action]Leaf
}

// AllActions grants every action on the resource.
func AllActions() ResourcePermissions { return ResourcePermissions{All: true} }

// Actions grants exactly the listed action leaves.
func Actions(actions map[core.Action]Leaf) ResourcePermissions {
	return ResourcePermissions{Actions: actions}
}

// RolePermissions describes what a role may do, either everything or a
// per-resource set.
type RolePermissions struct {
	All       bool
	Resources map[string]ResourcePermissions
}

// AllResources grants the role every action on every resource.
func AllResources() RolePermissions { return RolePermissions{All: true} }

// Resources grants the role the listed per-resource permissions.
func Resources(resources map[string]ResourcePermissions) RolePermissions {
	return RolePermissions{Resources: resources}
}

// Policy maps a role name to its permissions. The policy is default-deny:
// any role, resource or action not mentioned is rejected. A nil policy
// disables the gate entirely and every request passes.
type Policy map[string]RolePermissions

// permissionGate evaluates a policy against incoming requests. The role
// is resolved per request with the configured resolver.
type permissionGate struct {
	policy  Policy
	getRole func(*http.Request) string
}

func newPermissionGate(policy Policy, getRole func(*http.Request) string) *permissionGate {
	return &permissionGate{policy: policy, getRole: getRole}
}

// check walks role, resource and action down the policy tree. It returns
// nil when the action is permitted, a 401 permission error when it is not,
// and the predicate's own error unchanged when a predicate fails.
func (g *permissionGate) check(ctx context.Context, action core.Action, res storage.Resource, r *http.Request) error {
	if g.policy == nil {
		return nil
	}
	role := g.getRole(r)
	denied := func() error {
		return storage.PermissionDenied("role " + role + " may not " + string(action) + " " + res.Name())
	}
	rp, ok := g.policy[role]
	if !ok {
		return denied()
	}
	if rp.All {
		return nil
	}
	resp, ok := rp.Resources[res.Name()]
	if !ok {
		return denied()
	}
	if resp.All {
		return nil
	}
	leaf, ok := resp.Actions[action]
	if !ok {
		return denied()
	}
	if leaf.predicate != nil {
		granted, err := leaf.predicate(ctx, role, action, res, r)
		if err != nil {
			return err
		}
		if !granted {
			return denied()
		}
		return nil
	}
	if !leaf.grant {
		return denied()
	}
	return nil
}
