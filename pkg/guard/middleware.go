package guard

import (
	"net/http"

	"github.com/inkwell-cms/inkwell/pkg/contextkeys"
	"github.com/inkwell-cms/inkwell/pkg/httputil"
)

// Middleware gates every request behind the guard. Authenticated requests
// proceed with the principal in the request context and rate-limit headers
// set; everything else is rejected with the guard error's status.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, headers, gateErr := g.Authenticate(r.Context(), r)
		headers.Apply(w)
		if gateErr != nil {
			writeGateError(w, gateErr)
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithRateLimit(ctx, headers)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeGateError maps the guard error taxonomy onto the typed JSON writers
func writeGateError(w http.ResponseWriter, gateErr *Error) {
	switch gateErr.Code {
	case CodeUnauthorized:
		httputil.WriteUnauthorized(w, gateErr.Message)
	case CodeForbidden:
		httputil.WriteForbidden(w, gateErr.Message)
	case CodeTooManyRequests:
		httputil.WriteTooManyRequests(w, gateErr.Message)
	default:
		httputil.WriteErrorMessage(w, gateErr.HTTPStatus(), gateErr.Message)
	}
}

// GetPrincipal pulls the authenticated principal out of a request context.
// Handlers behind the middleware can rely on it being present.
func GetPrincipal(r *http.Request) (*Principal, bool) {
	principal, ok := r.Context().Value(contextkeys.PrincipalKey).(*Principal)
	return principal, ok
}
