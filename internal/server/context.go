package server

import (
	"context"
	"net/http"
)

func contextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// userFrom returns the authenticated user id stashed by withAuth.
func userFrom(r *http.Request) string {
	user, _ := r.Context().Value(userKey).(string)
	return user
}
