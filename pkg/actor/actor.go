// Package actor identifies the user or system performing a stock operation.
// The actor's ID is recorded as created_by on imports and exports.
package actor

import (
	"context"
	"fmt"

	"github.com/restoflow/restoflow-backend/pkg/permissions"
)

// SystemID is the actor ID used for background jobs such as the expiry sweep.
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	if a.Email == "" {
		return a.ID
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Email)
}

// Can reports whether the actor holds the permission. The system actor can do anything.
func (a *Actor) Can(permission string) bool {
	if a.IsSystem() {
		return true
	}
	return permissions.HasPermission(a.Permissions, permission)
}

// CanAny reports whether the actor holds at least one of the permissions.
func (a *Actor) CanAny(perms ...string) bool {
	if a.IsSystem() {
		return true
	}
	return permissions.HasAnyPermission(a.Permissions, perms)
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// IDFromContext returns the acting user's ID, or SystemID when none is attached.
func IDFromContext(ctx context.Context) string {
	if a := FromContext(ctx); a != nil && a.ID != "" {
		return a.ID
	}
	return SystemID
}

// SystemActor returns an Actor representing the system itself.
func SystemActor() *Actor {
	return &Actor{
		ID:    SystemID,
		Name:  "System",
		Email: "system@restoflow.local",
	}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemID
}
