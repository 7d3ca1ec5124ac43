// Package identity materializes a durable principal for an authenticated
// caller. The credential layer upstream only hands us claims; this package
// makes sure a matching user row exists before authorization runs.
package identity

import (
	"context"
	"log"

	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
)

// Claims are what the credential-verification layer vouches for. This core
// never verifies credentials itself.
type Claims struct {
	UserID      uint
	Username    string
	DisplayName string
	Role        string
}

type Resolver struct {
	Users store.UserStore
}

func NewResolver(users store.UserStore) *Resolver {
	return &Resolver{Users: users}
}

// Resolve loads the caller's user row, creating it from the claims when
// absent. The self-heal is an idempotent insert-or-ignore, so concurrent
// first requests from a new identity never race into a constraint failure.
// Store failures degrade to a principal built from the claims alone; the
// surrounding request proceeds and a later request repairs the row.
func (r *Resolver) Resolve(ctx context.Context, claims Claims) models.User {
	u, err := r.Users.GetUser(ctx, claims.UserID)
	if err == nil {
		u.Role = roles.Normalize(string(u.Role))
		return u
	}
	if err != store.ErrNotFound {
		log.Printf("identity: lookup for user %d failed: %v", claims.UserID, err)
		return r.fromClaims(claims)
	}

	seed := r.fromClaims(claims)
	if err := r.Users.EnsureUser(ctx, seed); err != nil {
		log.Printf("identity: self-heal for user %d failed: %v", claims.UserID, err)
		return seed
	}

	// re-read so concurrent creators all observe the same row
	u, err = r.Users.GetUser(ctx, claims.UserID)
	if err != nil {
		return seed
	}
	u.Role = roles.Normalize(string(u.Role))
	return u
}

func (r *Resolver) fromClaims(claims Claims) models.User {
	u := models.User{
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Role:        roles.Normalize(claims.Role),
		IsActive:    true,
	}
	u.ID = claims.UserID
	if u.Username == "" {
		u.Username = "unknown"
	}
	return u
}
