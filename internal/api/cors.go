package api

import (
	"net/http"
	"strings"
)

// corsLoopback grants cross-origin access to loopback origins only. The
// daemon binds 127.0.0.1 and is consumed by a desktop client whose embedded
// webview serves its UI from a localhost origin; there is no configurable
// origin whitelist and no credentialed cross-site access.
func corsLoopback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isLoopbackOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isLoopbackOrigin reports whether origin is http(s)://localhost or
// http(s)://127.0.0.1, with or without a port.
func isLoopbackOrigin(origin string) bool {
	for _, host := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if origin == host || strings.HasPrefix(origin, host+":") {
			return true
		}
	}
	return false
}
