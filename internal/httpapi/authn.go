package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"adjutant.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth authenticates the bearer token and resolves the operator's
// effective roles against the registry. The registry is the live truth: a
// removed operator is locked out even while their token is still valid.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			respondError(w, http.StatusInternalServerError, "authentication error")
			return
		}

		roles, err := auth.RolesFor(r.Context(), a.operators, a.superadmin, claims.Subject)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		if len(roles) == 0 {
			respondError(w, http.StatusForbidden, "operator is not registered")
			return
		}

		ctx := auth.ContextWithOperator(r.Context(), claims.Subject, roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireRole(r *http.Request, role string) error {
	if !auth.HasRole(r.Context(), role) {
		return errors.New("insufficient privileges")
	}
	return nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
