package models

import "strings"

// Identity is the caller's presented identity set: one user identity plus
// any team memberships. It is parsed from the identity header once at the
// request boundary.
type Identity struct {
	User  string
	Teams []string
}

// ParseIdentityHeader parses an identity header of the form
// "user:bob,team:finance,team:sales". Entries that do not parse as user or
// team scopes are ignored. A header with no user entry yields an anonymous
// identity, which can resolve against system/primary terms but cannot
// confirm matches.
func ParseIdentityHeader(header string) Identity {
	var id Identity
	for _, part := range strings.Split(header, ",") {
		scope, err := ParseScope(part)
		if err != nil {
			continue
		}
		switch scope.Kind {
		case ScopeUser:
			if id.User == "" {
				id.User = scope.ID
			}
		case ScopeTeam:
			id.Teams = append(id.Teams, scope.ID)
		}
	}
	return id
}

// IsAnonymous reports whether no user identity was presented.
func (id Identity) IsAnonymous() bool { return id.User == "" }

// MemberOf reports whether the identity includes the given team.
func (id Identity) MemberOf(team string) bool {
	for _, t := range id.Teams {
		if t == team {
			return true
		}
	}
	return false
}

// CanSee reports whether a search term with the given scope is visible to
// this caller. System and primary terms are visible to everyone; user and
// team terms only to the matching identity.
func (id Identity) CanSee(s Scope) bool {
	switch s.Kind {
	case ScopePrimary, ScopeSystem:
		return true
	case ScopeTeam:
		return id.MemberOf(s.ID)
	case ScopeUser:
		return id.User != "" && id.User == s.ID
	default:
		return false
	}
}

// ScopePriority ranks a scope relative to this caller for result ordering:
// user > team > system > primary. Scopes the caller cannot see rank below
// everything (callers should filter with CanSee first).
func (id Identity) ScopePriority(s Scope) int {
	switch s.Kind {
	case ScopeUser:
		if id.User != "" && id.User == s.ID {
			return 3
		}
		return -1
	case ScopeTeam:
		if id.MemberOf(s.ID) {
			return 2
		}
		return -1
	case ScopeSystem:
		return 1
	default:
		return 0
	}
}
