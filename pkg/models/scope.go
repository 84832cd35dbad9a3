package models

import (
	"fmt"
	"strings"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
)

// ScopeKind identifies who owns a search term or confirmation.
type ScopeKind int

const (
	// ScopePrimary marks terms derived from a store's source query at refresh.
	ScopePrimary ScopeKind = iota
	// ScopeSystem marks terms promoted by the consensus rule.
	ScopeSystem
	// ScopeTeam marks terms confirmed on behalf of a team.
	ScopeTeam
	// ScopeUser marks terms confirmed by an individual user.
	ScopeUser
)

// Scope is the parsed form of a scope string. Free-form strings
// ("user:bob", "team:finance") are parsed once at the API boundary;
// everything past that point works with the tagged form.
type Scope struct {
	Kind ScopeKind
	// ID is the team id or user identity. Empty for primary and system.
	ID string
}

var (
	Primary = Scope{Kind: ScopePrimary}
	System  = Scope{Kind: ScopeSystem}
)

// TeamScope returns a team-owned scope.
func TeamScope(teamID string) Scope { return Scope{Kind: ScopeTeam, ID: teamID} }

// UserScope returns a user-owned scope.
func UserScope(identity string) Scope { return Scope{Kind: ScopeUser, ID: identity} }

// ParseScope parses a scope string ("primary", "system", "team:<id>",
// "user:<identity>") into its tagged form.
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "primary":
		return Primary, nil
	case s == "system":
		return System, nil
	case strings.HasPrefix(s, "team:"):
		id := strings.TrimPrefix(s, "team:")
		if id == "" {
			return Scope{}, fmt.Errorf("%w: empty team id in %q", apperrors.ErrInvalidScope, s)
		}
		return TeamScope(id), nil
	case strings.HasPrefix(s, "user:"):
		id := strings.TrimPrefix(s, "user:")
		if id == "" {
			return Scope{}, fmt.Errorf("%w: empty user identity in %q", apperrors.ErrInvalidScope, s)
		}
		return UserScope(id), nil
	default:
		return Scope{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidScope, s)
	}
}

// String renders the canonical scope string used in storage and responses.
func (s Scope) String() string {
	switch s.Kind {
	case ScopePrimary:
		return "primary"
	case ScopeSystem:
		return "system"
	case ScopeTeam:
		return "team:" + s.ID
	case ScopeUser:
		return "user:" + s.ID
	default:
		return "unknown"
	}
}

// IsLearned reports whether the scope is written through the learning
// ledger rather than the refresh pipeline.
func (s Scope) IsLearned() bool {
	return s.Kind != ScopePrimary
}
