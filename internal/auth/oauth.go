package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/xid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/sakif/levelboard/internal/apperror"
)

// DiscordUser is the portion of the Discord /users/@me API response we care
// about. Discord returns a much larger object — we only unmarshal the fields
// we need. The ID is the snowflake as a string, exactly as Discord sends it.
type DiscordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

const (
	identityURL   = "https://discord.com/api/v10/users/@me"
	revocationURL = "https://discord.com/api/oauth2/token/revoke"
)

// DiscordProvider wraps golang.org/x/oauth2 for the Discord Authorization
// Code flow with PKCE.
//
// WHY PKCE ON TOP OF THE CODE FLOW?
// PKCE (Proof Key for Code Exchange) binds the authorization code to the
// party that started the flow: BeginLogin generates a random verifier, sends
// only its SHA-256 challenge upstream, and CompleteLogin must present the
// original verifier during the exchange. A stolen code alone is useless.
//
// The verifier is a short-lived server-side secret. It is stored in the
// StateStore keyed by the CSRF state token, with a 10-minute expiry and
// at-most-one retrieval — fetching it deletes it, so a state token can never
// complete two logins.
//
// WHY REVOKE THE TOKEN IMMEDIATELY?
// This service only needs the account's identity, not continued API access.
// Once /users/@me has answered, the access token is a liability, so it is
// revoked fire-and-forget; a failed revocation is swallowed (the token
// expires upstream on its own anyway).
type DiscordProvider struct {
	config *oauth2.Config
	states *StateStore
	http   *http.Client
	logger *slog.Logger
}

// NewDiscordProvider creates a DiscordProvider with the given credentials.
//
// callbackURL must exactly match a redirect URI registered on the Discord
// application. The only scope requested is "identify" — the public profile,
// nothing more.
func NewDiscordProvider(clientID, clientSecret, callbackURL string, logger *slog.Logger) *DiscordProvider {
	return &DiscordProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"identify"},
			Endpoint:     endpoints.Discord, // pre-defined Discord OAuth endpoints
		},
		states: NewStateStore(10 * time.Minute),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// BeginLogin starts a login attempt: it generates the PKCE verifier/challenge
// pair and a CSRF state token, stores (state → verifier) with TTL, and returns
// the upstream authorization URL embedding the state and the challenge.
func (p *DiscordProvider) BeginLogin() string {
	verifier := oauth2.GenerateVerifier()
	state := xid.New().String()
	p.states.Put(state, verifier)
	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// CompleteLogin finishes the flow: it atomically pops the verifier for the
// state token, exchanges the authorization code (with the verifier) for an
// access token, fetches the account's identity, and schedules revocation of
// the token.
//
// Errors are deliberately coarse: ErrInvalidState for any unusable state
// token (absent, expired, already used — indistinguishable on purpose) and
// ErrExchangeFailed for any upstream rejection of the code.
func (p *DiscordProvider) CompleteLogin(ctx context.Context, code, state string) (*DiscordUser, error) {
	verifier, ok := p.states.Take(state)
	if !ok {
		return nil, apperror.InvalidState()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		p.logger.Warn("oauth code exchange rejected", slog.String("error", err.Error()))
		return nil, apperror.ExchangeFailed()
	}

	user, err := p.fetchIdentity(ctx, token)
	if err != nil {
		return nil, err
	}

	// Only the identity was needed; drop the token upstream. Detached on
	// purpose — the login must not wait on, or fail because of, revocation.
	go p.revoke(token)

	return user, nil
}

// fetchIdentity calls Discord's /users/@me with the obtained token.
func (p *DiscordProvider) fetchIdentity(ctx context.Context, token *oauth2.Token) (*DiscordUser, error) {
	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, token)

	resp, err := client.Get(identityURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Discord identity API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Discord identity API returned status %d", resp.StatusCode)
	}

	var user DiscordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding Discord identity response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("auth: Discord returned an identity without an id")
	}

	return &user, nil
}

// revoke posts the access token (and refresh token, if any) to Discord's
// revocation endpoint. Failures are logged at debug and otherwise swallowed.
func (p *DiscordProvider) revoke(token *oauth2.Token) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, t := range []struct{ hint, value string }{
		{"refresh_token", token.RefreshToken},
		{"access_token", token.AccessToken},
	} {
		if t.value == "" {
			continue
		}
		form := url.Values{
			"client_id":       {p.config.ClientID},
			"client_secret":   {p.config.ClientSecret},
			"token":           {t.value},
			"token_type_hint": {t.hint},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, revocationURL,
			strings.NewReader(form.Encode()))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := p.http.Do(req)
		if err != nil {
			p.logger.Debug("token revocation failed", slog.String("error", err.Error()))
			continue
		}
		resp.Body.Close()
	}
}
