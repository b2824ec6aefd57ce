package repository

import (
	"context"

	"github.com/sakif/levelboard/internal/model"
)

// ParticipantStore is the keyed snapshot store the sync loop writes and the
// read path serves from. The reconciler is the only writer; reads may happen
// concurrently at any time, and the store guarantees per-key atomicity (a
// reader sees the old or the new snapshot for a key, never a torn value).
type ParticipantStore interface {
	// GetByID returns the cached snapshot for a participant id.
	// Returns apperror.ErrNotFound (via UnknownID) if the id has never been
	// synced, or if the stored snapshot fails to decode.
	GetByID(ctx context.Context, id uint64) (*model.Participant, error)

	// GetBySlug resolves a "name#discriminator" slug through the name index
	// and returns the record it points to. The index entry may be stale if a
	// name was reused — the record it resolves to is still a valid record.
	GetBySlug(ctx context.Context, slug string) (*model.Participant, error)

	// GetBatch returns the prior snapshots for the given ids in one lookup.
	// Ids with no snapshot, or whose snapshot fails to decode, are simply
	// absent from the result — absence is how the reconciler treats both.
	GetBatch(ctx context.Context, ids []uint64) (map[uint64]model.Participant, error)

	// PutBatch writes the given records and their name-index entries as one
	// logical update. All-or-nothing: a reader never observes a name index
	// entry without the record it points to for records in the same batch.
	PutBatch(ctx context.Context, participants []model.Participant) error
}

// SyncCursor is the process-durable progress state of the sync loop: the page
// counter and the rank counter. It survives restarts and is shared across
// sequential sync passes.
type SyncCursor interface {
	// NextPage atomically advances the page counter and returns the 0-based
	// page number to fetch. The advance happens before the fetch, so a crash
	// mid-fetch skips a page rather than refetching the same one forever.
	NextPage(ctx context.Context) (int64, error)

	// Rank returns the current 1-based rank counter.
	Rank(ctx context.Context) (int64, error)

	// AdvanceRank increments the rank counter by the number of records the
	// page actually accepted.
	AdvanceRank(ctx context.Context, n int64) error

	// Reset returns the cursor to (page=0, rank=1). Called when the upstream
	// listing is detected to have wrapped around to its top.
	Reset(ctx context.Context) error
}
