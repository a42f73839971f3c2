package middleware

import "context"

// principal is the authenticated caller as carried on the request context.
// Identifiers stay as strings; controllers parse what they need.
type principal struct {
	userID    string
	role      string
	partnerID string
}

type principalKey struct{}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, edit func(*principal)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	edit(&p)
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string    { return principalFrom(ctx).userID }
func RoleFromContext(ctx context.Context) string      { return principalFrom(ctx).role }
func PartnerIDFromContext(ctx context.Context) string { return principalFrom(ctx).partnerID }

// WithUserID returns ctx carrying userID as the caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.role = role })
}

func WithPartnerID(ctx context.Context, partnerID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.partnerID = partnerID })
}
