// Package service — read-path business logic.
//
// LookupService sits between the HTTP handlers and the participant store:
//
//	ProfileHandler (HTTP) → LookupService (resolution rules) → ParticipantStore (DB)
//
// It owns the one non-trivial read rule: how a raw identifier string maps to
// a cached record, and which flavour of "not there" the caller gets back.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/levelboard/internal/apperror"
	"github.com/sakif/levelboard/internal/level"
	"github.com/sakif/levelboard/internal/model"
	"github.com/sakif/levelboard/internal/repository"
)

// LookupService resolves participants by id or slug and derives the level
// fields the read surface exposes.
type LookupService struct {
	store  repository.ParticipantStore
	logger *slog.Logger
}

// NewLookupService creates a LookupService.
func NewLookupService(store repository.ParticipantStore, logger *slog.Logger) *LookupService {
	return &LookupService{store: store, logger: logger}
}

// Profile is a participant record decorated with its derived level fields.
// This is the shape the JSON API serves and the profile page renders.
type Profile struct {
	ID            uint64  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	Avatar        string  `json:"avatar,omitempty"`
	AvatarURL     string  `json:"avatar_url"`
	MessageCount  uint64  `json:"message_count,omitempty"`
	XP            uint64  `json:"xp"`
	Rank          int64   `json:"rank"`
	Level         uint64  `json:"level"`
	LevelProgress float64 `json:"level_progress"`
}

// Resolve maps an identifier string to a cached participant.
//
// RESOLUTION RULE:
// An all-digits identifier is an id and is looked up by id ONLY — a name that
// happens to be numeric cannot shadow somebody's id. Anything else goes
// through the name index ("name#discriminator" slug).
//
// expectExists selects the error flavour for a miss: false → ErrNotFound
// ("may not exist or may not be cached"), true → ErrNotRanked, the softer
// message used when the caller has proven the account exists (e.g. they just
// logged in with it) and the only explanation is rank or cache lag.
func (s *LookupService) Resolve(ctx context.Context, identifier string, expectExists bool) (*model.Participant, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperror.ValidationFailed("id", "you must specify an ID")
	}

	var (
		p   *model.Participant
		err error
	)
	if isNumeric(identifier) {
		id, convErr := strconv.ParseUint(identifier, 10, 64)
		if convErr != nil {
			return nil, apperror.ValidationFailed("id", "you must specify a valid ID")
		}
		p, err = s.store.GetByID(ctx, id)
	} else {
		p, err = s.store.GetBySlug(ctx, identifier)
	}

	if err != nil {
		if expectExists && errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotRanked(identifier)
		}
		return nil, err
	}

	return p, nil
}

// ProfileFor derives the level fields for a resolved participant.
func (s *LookupService) ProfileFor(p *model.Participant) Profile {
	return Profile{
		ID:            p.ID,
		Username:      p.Username,
		Discriminator: p.Discriminator,
		Avatar:        p.Avatar,
		AvatarURL:     p.AvatarURL(),
		MessageCount:  p.MessageCount,
		XP:            p.XP,
		Rank:          p.Rank,
		Level:         level.FromXP(p.XP),
		LevelProgress: level.Progress(p.XP),
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
