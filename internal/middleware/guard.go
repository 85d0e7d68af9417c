// AngelaMos | 2026
// guard.go

package middleware

import (
	"net/http"
	"strings"
)

const (
	HomePath     = "/"
	RegisterPath = "/register"
	ProfilePath  = "/profile"
)

// RouteGuard redirects page requests by session state: anonymous visitors
// are sent away from the profile pages, signed-in users away from the
// login and registration pages. It must run after OptionalAuth.
func RouteGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		authed := IsAuthenticated(r.Context())

		switch {
		case !authed && isProfilePath(path):
			http.Redirect(w, r, HomePath, http.StatusFound)
			return
		case authed && (path == HomePath || path == RegisterPath):
			http.Redirect(w, r, ProfilePath, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isProfilePath(path string) bool {
	return path == ProfilePath || strings.HasPrefix(path, ProfilePath+"/")
}
