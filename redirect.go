package goAuthClient

import (
	"net/url"
	"strings"
)

// SafeNext returns candidate when it is a same-origin absolute path and roleDefault
// otherwise. An empty candidate is treated as absent.
//
// A candidate must start with exactly one "/". Backslashes, "://", ASCII control
// characters and anything net/url resolves to a scheme or host are rejected.
func SafeNext(candidate, roleDefault string) string {
	if isSafePath(candidate) {
		return candidate
	}
	return roleDefault
}

func isSafePath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	if strings.ContainsRune(p, '\\') || strings.Contains(p, "://") {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] == 0x7f {
			return false
		}
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

// Landing returns the home route for role, or LoginPath for an unknown role.
func (r RedirectConfig) Landing(role Role) string {
	switch role {
	case RoleAdmin:
		return r.AdminHome
	case RoleCustomer:
		return r.CustomerHome
	default:
		return r.LoginPath
	}
}

// LoginRedirect returns LoginPath carrying next as the return target when next is safe.
func (r RedirectConfig) LoginRedirect(next string) string {
	if !isSafePath(next) || next == r.LoginPath {
		return r.LoginPath
	}
	return r.LoginPath + "?next=" + url.QueryEscape(next)
}
