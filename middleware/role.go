package middleware

import (
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// RequireRole behaves like [RequireSession] and answers 403 when the signed-in user
// has a different role.
func RequireRole(client Session, role goAuthClient.Role) func(http.Handler) http.Handler {
	return guard(client, role)
}
