package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/levelboard/internal/apperror"
	"github.com/sakif/levelboard/internal/model"
	"github.com/sakif/levelboard/internal/service"
)

// stubStore backs the LookupService in handler tests.
type stubStore struct {
	byID   map[uint64]model.Participant
	bySlug map[string]model.Participant
}

func (s *stubStore) GetByID(ctx context.Context, id uint64) (*model.Participant, error) {
	if p, ok := s.byID[id]; ok {
		return &p, nil
	}
	return nil, apperror.UnknownID("?")
}

func (s *stubStore) GetBySlug(ctx context.Context, slug string) (*model.Participant, error) {
	if p, ok := s.bySlug[slug]; ok {
		return &p, nil
	}
	return nil, apperror.UnknownID(slug)
}

func (s *stubStore) GetBatch(ctx context.Context, ids []uint64) (map[uint64]model.Participant, error) {
	return nil, nil
}

func (s *stubStore) PutBatch(ctx context.Context, participants []model.Participant) error {
	return nil
}

// stubCards renders a fixed document without touching the avatar CDN.
type stubCards struct {
	err error
}

func (s *stubCards) RenderCard(p model.Participant) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("<svg>" + p.Username + "</svg>"), "image/svg+xml", nil
}

func newTestProfileHandler(store *stubStore, cards CardRenderer) *ProfileHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProfileHandler(service.NewLookupService(store, logger), cards, logger)
}

func seededStore() *stubStore {
	p := model.Participant{
		ID:            42,
		Username:      "alice",
		Discriminator: "0001",
		XP:            900,
		Rank:          3,
	}
	return &stubStore{
		byID:   map[uint64]model.Participant{42: p},
		bySlug: map[string]model.Participant{"alice#0001": p},
	}
}

func TestHandleAPI(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/api?id=42", nil)
	rec := httptest.NewRecorder()
	h.HandleAPI(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var profile service.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, uint64(42), profile.ID)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, uint64(4), profile.Level)
	assert.Equal(t, int64(3), profile.Rank)
}

func TestHandleAPIBySlug(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/api?id=alice%230001", nil)
	rec := httptest.NewRecorder()
	h.HandleAPI(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestHandleAPINotFound(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/api?id=99", nil)
	rec := httptest.NewRecorder()
	h.HandleAPI(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "not_found", errResp.Error)
}

func TestHandleAPINotRanked(t *testing.T) {
	// userexists=true flips a miss from not_found to the softer not_ranked.
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/api?id=99&userexists=true", nil)
	rec := httptest.NewRecorder()
	h.HandleAPI(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "not_ranked", errResp.Error)
	assert.Contains(t, errResp.Message, "not ranked")
}

func TestHandleAPIMissingID(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	rec := httptest.NewRecorder()
	h.HandleAPI(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestHandleCard(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/card?id=42", nil)
	rec := httptest.NewRecorder()
	h.HandleCard(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestHandleCardRenderFailure(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{err: errors.New("CDN down")})

	req := httptest.NewRequest(http.MethodGet, "/card?id=42", nil)
	rec := httptest.NewRecorder()
	h.HandleCard(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// The raw cause must not leak to the client.
	assert.NotContains(t, rec.Body.String(), "CDN down")
}

func TestHandleIndexForm(t *testing.T) {
	// No id and no session: just the lookup form.
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.HandleIndex(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<form")
	assert.NotContains(t, rec.Body.String(), "rank card")
}

func TestHandleIndexWithProfile(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/?id=42", nil)
	rec := httptest.NewRecorder()
	h.HandleIndex(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "/card?id=42")
}

func TestHandleIndexMissRendersErrorPage(t *testing.T) {
	h := newTestProfileHandler(seededStore(), &stubCards{})

	req := httptest.NewRequest(http.MethodGet, "/?id=99", nil)
	rec := httptest.NewRecorder()
	h.HandleIndex(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "back to lookup")
	assert.True(t, strings.Contains(rec.Body.String(), "not known"))
}
