package httpapi

import (
	"net/http"
	"strings"
)

func normalizeBasePath(value string) string {
	path := strings.TrimSpace(value)
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "/" {
		return ""
	}
	return path
}

// withBasePath prefixes an app route with the mount point.
func withBasePath(basePath, route string) string {
	base := normalizeBasePath(basePath)
	if base == "" {
		return route
	}
	if route == "" || route == "/" {
		return base + "/"
	}
	return base + route
}

// mountBasePath serves next under basePath. Requests outside the prefix get
// a 404; the bare prefix redirects to its trailing-slash form.
func mountBasePath(basePath string, next http.Handler) http.Handler {
	base := normalizeBasePath(basePath)
	if base == "" {
		return next
	}
	stripped := http.StripPrefix(base, next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == base {
			http.Redirect(w, r, base+"/", http.StatusMovedPermanently)
			return
		}
		if !strings.HasPrefix(r.URL.Path, base+"/") {
			http.NotFound(w, r)
			return
		}
		stripped.ServeHTTP(w, r)
	})
}
