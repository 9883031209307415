// Package identity extracts the authenticated user attached to a request
// by the auth gateway. Authentication itself (credentials, tokens) is an
// upstream concern; this service only consumes the resulting identity and
// uses the user ID for ownership checks.
package identity

import (
	"context"
	"net/http"
	"roombook/pkg/model"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

type contextKey string

const userKey contextKey = "authenticated_user"

// FromRequest reads the gateway identity headers. Returns false when the
// request carries no user ID.
func FromRequest(r *http.Request) (model.User, bool) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		return model.User{}, false
	}
	return model.User{
		ID:       id,
		Username: r.Header.Get(HeaderUsername),
	}, true
}

func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFrom(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userKey).(model.User)
	return user, ok
}
