package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessiontrust"
	"github.com/MrEthical07/sessiontrust/session"
)

// SessionResolver is the part of [sessiontrust.Engine] the guards need.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (sessiontrust.Principal, error)
	Cookies() *session.CookieManager
}

// RequireSession rejects requests without a valid session token with 401.
func RequireSession(engine SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := sessionToken(engine.Cookies(), r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			p, err := engine.ResolveSession(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(sessiontrust.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects principals whose role is not listed with 403. It must run
// after RequireSession.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToUpper(role)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := sessiontrust.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[strings.ToUpper(p.Role)]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionToken returns the token carried by the session cookie or, failing that,
// an Authorization bearer header.
func SessionToken(engine SessionResolver, r *http.Request) (string, bool) {
	if engine == nil {
		return "", false
	}
	return sessionToken(engine.Cookies(), r)
}

func sessionToken(cookies *session.CookieManager, r *http.Request) (string, bool) {
	if cookies != nil {
		if token, ok := cookies.Value(r); ok {
			return token, true
		}
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
