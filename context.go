package splitdb

import "context"

type tokenKey struct{}

type forcePrimaryKey struct{}

// ContextWithToken returns a context carrying the operation token.
//
// SQLClient uses the token found in the context instead of minting one,
// which lets callers correlate Prepare and Open across layers.
func ContextWithToken(ctx context.Context, token Token) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the operation token carried by ctx.
func TokenFromContext(ctx context.Context) (Token, bool) {
	token, ok := ctx.Value(tokenKey{}).(Token)
	if !ok || token.IsZero() {
		return Token{}, false
	}

	return token, true
}

// ContextWithForcePrimary returns a context that keeps reads on the primary.
//
// Use it for reads that must observe the caller's own recent writes.
//
// Example:
//
//	ctx = splitdb.ContextWithForcePrimary(ctx, true)
//	row := client.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = $1", id)
func ContextWithForcePrimary(ctx context.Context, force bool) context.Context {
	return context.WithValue(ctx, forcePrimaryKey{}, force)
}

// ForcePrimaryFromContext reports whether ctx keeps reads on the primary.
func ForcePrimaryFromContext(ctx context.Context) bool {
	force, _ := ctx.Value(forcePrimaryKey{}).(bool)

	return force
}
