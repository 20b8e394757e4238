package middleware

import (
	"context"

	"github.com/trydo/wts-backend/pkg/enums"
)

// Actor is the authenticated caller resolved from a bearer token.
type Actor struct {
	UserID string
	Email  string
	Role   enums.UserRole
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

type actorKey struct{}

// WithActor stores the actor on ctx. Later calls replace earlier ones.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the stored actor and whether one was present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.UserID
}
