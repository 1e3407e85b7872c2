package market

import "context"

// Principal is the acting identity. The zero value is the anonymous principal.
type Principal struct {
	ID      string
	Name    string
	IsAdmin bool
}

func (p Principal) Authenticated() bool {
	return p.ID != ""
}

func (p Principal) owns(sellerID string) bool {
	return p.IsAdmin || p.ID == sellerID
}

type SessionProvider interface {
	CurrentPrincipal(ctx context.Context) Principal
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// ContextSession reads the principal stored by WithPrincipal and falls back to
// anonymous.
type ContextSession struct{}

func (ContextSession) CurrentPrincipal(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
