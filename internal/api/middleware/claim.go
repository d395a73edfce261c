// Package middleware holds HTTP middleware for the provisioner's thin RPC
// facade.
package middleware

import (
	"net/http"
	"strings"

	"github.com/homeport/provisioner/internal/domain/provision"
)

// ClaimHeader is the header a real authenticating interceptor would
// populate after validating a caller's bearer token. That interceptor is
// out of scope for this service (see the facade's design notes); this
// middleware only reads whatever scopes a trusted upstream has already
// attached, the same way the facade only ever reads a Claim already placed
// on the request context and never re-validates a token itself.
const ClaimHeader = "X-Resources-Scopes"

// InjectClaim reads a comma-separated scope list from ClaimHeader and
// attaches it to the request context as a provision.Claim. An absent
// header produces a context with no claim at all, which downstream
// RequireResourcesWrite calls treat as an internal error.
func InjectClaim(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(ClaimHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		var scopes []provision.Scope
		for _, raw := range strings.Split(header, ",") {
			if s := strings.TrimSpace(raw); s != "" {
				scopes = append(scopes, provision.Scope(s))
			}
		}

		ctx := provision.ContextWithClaim(r.Context(), provision.NewClaim(scopes...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
