// Package middleware provides optional net/http adapters over the engine:
// a request-authentication guard and helpers for wiring client metadata
// into the request context.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	hmsAuth "github.com/MrEthical07/hmsAuth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the validation result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*hmsAuth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*hmsAuth.AuthResult)
	return res, ok
}

// Guard rejects requests without a valid bearer access token and stores the
// validation result in the request context for downstream handlers.
func Guard(engine *hmsAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientContext attaches the request's client IP and User-Agent to its
// context so engine calls made by the handler are rate-limited and audited
// against the right source. Use it on login and refresh routes.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := hmsAuth.WithClientIP(r.Context(), clientIP(r))
		ctx = hmsAuth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
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

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
