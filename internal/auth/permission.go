package auth

import (
	"fmt"
	"regexp"
	"strings"
)

// Scope is the breadth of a permission.
type Scope string

const (
	ScopeNone Scope = ""    // unscoped permission, or no grant at all
	ScopeAll  Scope = "all" // every row within the principal's visibility domain
	ScopeOwn  Scope = "own" // only rows owned by the acting user
)

// Permission is the structured form of a "resource:action:scope" string.
// Scope is optional; unscoped permissions match verbatim only.
type Permission struct {
	Resource string
	Action   string
	Scope    Scope
}

func (p Permission) String() string {
	if p.Scope == ScopeNone {
		return p.Resource + ":" + p.Action
	}
	return p.Resource + ":" + p.Action + ":" + string(p.Scope)
}

var permPart = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ParsePermission parses and validates a permission string. Malformed strings
// are rejected here, at role-save time, never at check time.
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Permission{}, fmt.Errorf("permission %q: want resource:action[:scope]", s)
	}
	for _, part := range parts[:2] {
		if !permPart.MatchString(part) {
			return Permission{}, fmt.Errorf("permission %q: invalid segment %q", s, part)
		}
	}
	p := Permission{Resource: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		switch parts[2] {
		case "all":
			p.Scope = ScopeAll
		case "own":
			p.Scope = ScopeOwn
		default:
			return Permission{}, fmt.Errorf("permission %q: scope must be all or own", s)
		}
	}
	return p, nil
}

// ValidatePermissions parses every entry, failing on the first malformed one.
// Role writes call this so bad strings never reach the resolver.
func ValidatePermissions(list []string) error {
	for _, s := range list {
		if _, err := ParsePermission(s); err != nil {
			return err
		}
	}
	return nil
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Scope   Scope
}

// Check resolves (resource, action) against the principal's permission set,
// applying the all-beats-own widening rule: holding resource:action:all makes
// any own grant for the same pair irrelevant.
func Check(p *Principal, resource, action string) Decision {
	if p == nil {
		return Decision{}
	}
	all := resource + ":" + action + ":all"
	own := resource + ":" + action + ":own"
	hasOwn := false
	for _, perm := range p.Permissions {
		if perm == all {
			return Decision{Allowed: true, Scope: ScopeAll}
		}
		if perm == own {
			hasOwn = true
		}
	}
	if hasOwn {
		return Decision{Allowed: true, Scope: ScopeOwn}
	}
	return Decision{}
}

// Any reports whether the principal holds at least one of the listed
// permissions by EXACT string match. No scope widening is applied.
func Any(p *Principal, perms []string) bool {
	if p == nil {
		return false
	}
	for _, want := range perms {
		for _, have := range p.Permissions {
			if have == want {
				return true
			}
		}
	}
	return false
}

// All reports whether the principal holds EVERY listed permission by exact
// string match. No scope widening is applied.
func All(p *Principal, perms []string) bool {
	if p == nil {
		return false
	}
	for _, want := range perms {
		found := false
		for _, have := range p.Permissions {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
