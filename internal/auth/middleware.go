package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "discordID", id), ANY package that knows the string
// can read or shadow your value. Using a package-private type prevents
// collisions: only THIS package can create a key of type contextKey.
type contextKey string

const discordIDKey contextKey = "discordID"

// OptionalAuth extracts the verified Discord id from the session cookie if a
// valid one is present, but never blocks the request.
//
// Every read route here is public — anyone can look up any participant — so
// there is nothing to require. The session only adds convenience: a handler
// can default to "your own" profile when no id is given. Handlers check via
// DiscordIDFromContext; ("", false) means the request is anonymous.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := extractDiscordID(r, tokens); err == nil && id != "" {
				ctx := context.WithValue(r.Context(), discordIDKey, id)
				r = r.WithContext(ctx)
			}
			// Always continue — no 401 even if no token
			next.ServeHTTP(w, r)
		})
	}
}

// DiscordIDFromContext retrieves the verified Discord id from the request
// context. Returns ("", false) for anonymous requests.
func DiscordIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(discordIDKey).(string)
	return id, ok && id != ""
}

// extractDiscordID reads the session JWT cookie and validates it.
//
// COOKIE FLOW:
// 1. Set-Cookie: token=<jwt>; HttpOnly; SameSite=Lax (set after OAuth callback)
// 2. Browser automatically sends Cookie: token=<jwt> on subsequent requests
// 3. We read r.Cookie("token") and validate it
func extractDiscordID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie("token")
	if err != nil {
		// http.ErrNoCookie means the cookie isn't present — not an error, just anonymous
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
