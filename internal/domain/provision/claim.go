package provision

import "context"

// Scope names a capability a Claim may carry. ResourcesWrite is the only
// scope this package checks; others may exist on the Claim but are ignored.
type Scope string

// ResourcesWrite gates every provisioning call.
const ResourcesWrite Scope = "resources:write"

// Claim describes the authenticated principal attached to an inbound
// request by an upstream authenticator (out of scope for this service; it
// only ever consumes a Claim already placed on the context).
type Claim struct {
	Scopes map[Scope]struct{}
}

// NewClaim builds a Claim from a scope list.
func NewClaim(scopes ...Scope) Claim {
	c := Claim{Scopes: make(map[Scope]struct{}, len(scopes))}
	for _, s := range scopes {
		c.Scopes[s] = struct{}{}
	}
	return c
}

// Has reports whether the claim carries the given scope.
func (c Claim) Has(scope Scope) bool {
	if c.Scopes == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

type claimContextKey struct{}

// ContextWithClaim returns a context carrying the given Claim. The
// transport binding (out of scope for the core) is responsible for calling
// this after validating the caller's bearer token.
func ContextWithClaim(ctx context.Context, claim Claim) context.Context {
	return context.WithValue(ctx, claimContextKey{}, claim)
}

// ClaimFromContext retrieves the Claim placed by ContextWithClaim. ok is
// false if no claim is present, which callers must treat as an internal
// error rather than a permission failure.
func ClaimFromContext(ctx context.Context) (Claim, bool) {
	claim, ok := ctx.Value(claimContextKey{}).(Claim)
	return claim, ok
}

// RequireResourcesWrite verifies that ctx carries a Claim with the
// ResourcesWrite scope. It returns an *Error with KindInternal if no claim
// is present, or KindPermissionDenied if the claim lacks the scope.
func RequireResourcesWrite(ctx context.Context) error {
	claim, ok := ClaimFromContext(ctx)
	if !ok {
		return &Error{Kind: KindInternal, Err: errMissingClaim}
	}
	if !claim.Has(ResourcesWrite) {
		return &Error{Kind: KindPermissionDenied, Err: errMissingScope}
	}
	return nil
}
