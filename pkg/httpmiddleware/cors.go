package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// defaultAllowHeaders is the set of request headers the API actually reads:
// JSON bodies, bearer or key authentication, and request correlation.
// Franchise portals send X-API-Key on every call, so it must clear
// preflight without extra configuration.
var defaultAllowHeaders = []string{
	"Content-Type",
	"Authorization",
	"X-API-Key",
	"X-Request-ID",
}

// CORSConfig controls cross-origin access to the API.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to call the API. Empty, or a "*"
	// entry, permits any origin.
	AllowOrigins []string

	// AllowMethods defaults to every method the API routes.
	AllowMethods []string

	// AllowHeaders defaults to defaultAllowHeaders.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read, beyond the
	// CORS-safelisted set.
	ExposeHeaders []string

	// AllowCredentials echoes the caller's origin instead of "*", since the
	// wildcard is invalid on credentialed responses.
	AllowCredentials bool

	// MaxAge is how long, in seconds, browsers may cache a preflight
	// result. Zero omits the header, negative disables caching.
	MaxAge int
}

// CORS answers preflights and stamps allow headers on cross-origin
// responses. Origin matching is case-insensitive; Vary headers are set so
// shared caches never serve one origin's response to another.
func CORS(cfg CORSConfig) Middleware {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions,
		}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = defaultAllowHeaders
	}

	anyOrigin := len(cfg.AllowOrigins) == 0
	origins := make(map[string]string, len(cfg.AllowOrigins)) // lowercased -> as configured
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			anyOrigin = true
		}
		origins[strings.ToLower(o)] = o
	}
	// Credentialed responses must name the origin, so the wildcard path is
	// disabled and the caller's origin is echoed after a map hit.
	wildcard := anyOrigin && !cfg.AllowCredentials

	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := ""
	switch {
	case cfg.MaxAge > 0:
		maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		maxAge = "0"
	}

	allowValue := func(origin string) string {
		if wildcard {
			return "*"
		}
		if anyOrigin {
			return origin
		}
		return origins[strings.ToLower(origin)]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin or non-browser caller.
				if !wildcard {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allow := allowValue(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Origin")
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allow != "" {
					w.Header().Set("Access-Control-Allow-Origin", allow)
					w.Header().Set("Access-Control-Allow-Methods", methods)
					w.Header().Set("Access-Control-Allow-Headers", headers)
					if cfg.AllowCredentials {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
					if maxAge != "" {
						w.Header().Set("Access-Control-Max-Age", maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if !wildcard {
				w.Header().Add("Vary", "Origin")
			}
			if allow != "" {
				w.Header().Set("Access-Control-Allow-Origin", allow)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if expose != "" {
					w.Header().Set("Access-Control-Expose-Headers", expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
