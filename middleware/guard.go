package middleware

import (
	"context"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// Session is the part of *goAuthClient.Client the middleware needs.
type Session interface {
	Session() goAuthClient.Session
	AccessToken(ctx context.Context) (string, error)
	CredentialRejected(ctx context.Context, bearer string)
	Config() goAuthClient.Config
}

type sessionContextKey struct{}

// SessionFromContext returns the session snapshot stored by a guard.
func SessionFromContext(ctx context.Context) (goAuthClient.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(goAuthClient.Session)
	return s, ok
}

// RequireSession lets requests through only while the client holds a live session.
// GET and HEAD requests without one are redirected to the login route with the
// requested path as "next"; other methods get 401.
func RequireSession(client Session) func(http.Handler) http.Handler {
	return guard(client, "")
}

func guard(client Session, role goAuthClient.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if _, err := client.AccessToken(r.Context()); err != nil {
				deny(w, r, client)
				return
			}
			s := client.Session()
			if !s.Authenticated() {
				deny(w, r, client)
				return
			}
			if role != "" && s.User.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, client Session) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	target := client.Config().Redirect.LoginRedirect(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}
