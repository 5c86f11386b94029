package domain

import "context"

type AuthService interface {
	ValidateToken(token string) (*SupabaseUser, error)
}

type accessTokenKey struct{}

// ContextWithAccessToken attaches the caller's access token so repositories can
// query with the caller's row-level permissions.
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the token set by ContextWithAccessToken.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(string)
	return token, ok && token != ""
}
