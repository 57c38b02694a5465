package auth

import "context"

type contextKey string

const userKey contextKey = "user"

// User is the authenticated caller of the payment API.
type User struct {
	ID    string
	Email string
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom retrieves the authenticated user safely.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}
