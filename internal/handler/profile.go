// Package handler contains the HTTP request handlers.
//
// Handlers are the glue between HTTP and the application: they parse the
// request, call the service layer, and write the response. Business rules
// (identifier resolution, level math) live below them.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/levelboard/internal/auth"
	"github.com/sakif/levelboard/internal/model"
	"github.com/sakif/levelboard/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// CardRenderer produces a rank-card image for a participant. Satisfied by
// *card.Renderer; an interface here lets tests stub out the avatar fetch.
type CardRenderer interface {
	RenderCard(p model.Participant) (data []byte, contentType string, err error)
}

// ProfileHandler serves the read surface: the HTML lookup page, the JSON API,
// and the rendered rank card.
//
// It holds parsed templates so we don't re-parse them on every request.
type ProfileHandler struct {
	lookups   *service.LookupService
	cards     CardRenderer
	templates *template.Template
	logger    *slog.Logger
}

// NewProfileHandler creates a ProfileHandler and parses the embedded HTML
// templates. Template parse errors are programmer errors caught at startup.
func NewProfileHandler(lookups *service.LookupService, cards CardRenderer, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		lookups:   lookups,
		cards:     cards,
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		logger:    logger,
	}
}

// indexData is the context for the index template.
type indexData struct {
	Query   string
	Profile *service.Profile
}

// HandleIndex serves the lookup page.
//
// HTTP: GET /?id=<identifier>&userexists=<bool>
//
// Without an id the page is just the lookup form. With an id, the resolved
// profile and its rank card are shown inline. A logged-in visitor with no id
// gets their own profile — the session cookie provides the default.
//
// userexists=true is set by the OAuth callback redirect: the visitor just
// proved the account exists, so a cache miss renders the softer "not ranked"
// message instead of "not known".
func (h *ProfileHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("id")
	expectExists := r.URL.Query().Get("userexists") == "true"

	if identifier == "" {
		// Fall back to the session's own id, if any.
		if sessionID, ok := auth.DiscordIDFromContext(r.Context()); ok {
			identifier = sessionID
			expectExists = true
		}
	}

	data := indexData{Query: identifier}
	if identifier != "" {
		p, err := h.lookups.Resolve(r.Context(), identifier, expectExists)
		if err != nil {
			h.renderError(w, err)
			return
		}
		profile := h.lookups.ProfileFor(p)
		data.Profile = &profile
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.Error("failed to render index", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleAPI serves a profile as JSON.
//
// HTTP: GET /api?id=<identifier>&userexists=<bool>
//
// RESPONSE FORMAT:
//
//	{"id":123,"username":"alice","discriminator":"0001","avatar_url":"...",
//	 "xp":900,"rank":3,"level":4,"level_progress":0.34,...}
func (h *ProfileHandler) HandleAPI(w http.ResponseWriter, r *http.Request) {
	p, err := h.resolveRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.lookups.ProfileFor(p))
}

// HandleCard serves the rendered rank card.
//
// HTTP: GET /card?id=<identifier> (also mounted at /c)
//
// The response is a self-contained SVG document — same bytes the webhook
// notifier attaches to level-up messages.
func (h *ProfileHandler) HandleCard(w http.ResponseWriter, r *http.Request) {
	p, err := h.resolveRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	svg, contentType, err := h.cards.RenderCard(*p)
	if err != nil {
		h.logger.Error("failed to render card",
			slog.Uint64("id", p.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "max-age=60")
	if _, err := w.Write(svg); err != nil {
		h.logger.Error("failed to write card response", slog.String("error", err.Error()))
	}
}

// resolveRequest applies the shared id-or-session resolution used by the API
// and card endpoints.
func (h *ProfileHandler) resolveRequest(r *http.Request) (*model.Participant, error) {
	identifier := r.URL.Query().Get("id")
	expectExists := r.URL.Query().Get("userexists") == "true"

	if identifier == "" {
		if sessionID, ok := auth.DiscordIDFromContext(r.Context()); ok {
			identifier = sessionID
			expectExists = true
		}
	}

	return h.lookups.Resolve(r.Context(), identifier, expectExists)
}

// errorData is the context for the error template.
type errorData struct {
	Status  int
	Message string
}

// renderError is the HTML counterpart of writeError: same status mapping,
// rendered as a page instead of JSON.
func (h *ProfileHandler) renderError(w http.ResponseWriter, err error) {
	status, _, message := classify(err)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if tmplErr := h.templates.ExecuteTemplate(w, "error.html", errorData{Status: status, Message: message}); tmplErr != nil {
		h.logger.Error("failed to render error page", slog.String("error", tmplErr.Error()))
	}
}
