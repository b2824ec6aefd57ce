package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/levelboard/internal/apperror"
	"github.com/sakif/levelboard/internal/auth"
)

// AuthHandler manages the Discord OAuth login flow and session issuance.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to Discord's authorization page
//   - HandleCallback → receive the code, complete the PKCE exchange, issue JWT
//
// DEPENDENCY CHAIN:
//   - discord *auth.DiscordProvider → owns state/verifier storage and the exchange
//   - tokens  *auth.TokenService    → issues JWT session tokens
//
// There is no logout and no server-side session: the session is a 15-minute
// HttpOnly JWT cookie, and "logging out" is just letting it expire.
type AuthHandler struct {
	discord *auth.DiscordProvider
	tokens  *auth.TokenService
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(discord *auth.DiscordProvider, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		discord: discord,
		tokens:  tokens,
		logger:  logger,
	}
}

// HandleLogin redirects the user to Discord's authorization page.
//
// HTTP: GET /o
//
// CSRF AND CODE-THEFT PROTECTION:
// BeginLogin generates both a random state token and a PKCE verifier, storing
// them server-side. Nothing secret travels through the browser: the redirect
// URL carries only the state and the verifier's SHA-256 challenge. No cookie
// is involved — the callback validates the state against the server-side
// store, which also enforces single use and a 10-minute expiry.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.discord.BeginLogin(), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /oc?code=xxx&state=yyy
//
// FLOW:
//  1. Check whether Discord sent an error (user denied authorization)
//  2. CompleteLogin: pop the verifier for the state (CSRF check), exchange
//     the code, fetch the account identity, revoke the token
//  3. Issue a JWT session cookie bound to the verified Discord id
//  4. Redirect to the profile page with userexists=true — the visitor just
//     proved the account is real, so a cache miss gets the softer message
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, apperror.InvalidState())
		return
	}

	user, err := h.discord.CompleteLogin(r.Context(), code, state)
	if err != nil {
		h.logger.Warn("auth callback: login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("user authenticated",
		slog.String("discordID", user.ID),
		slog.String("username", user.Username),
	)

	tokenStr, err := h.tokens.Generate(user.ID)
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
	// Secure should be true in production (HTTPS only); false for local dev.
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int((15 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, fmt.Sprintf("/?id=%s&userexists=true", user.ID), http.StatusSeeOther)
}
