package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/levelboard/internal/apperror"
	"github.com/sakif/levelboard/internal/model"
)

// newTestDB creates an in-memory SQLite database for testing.
// ":memory:" means the database lives in RAM and disappears when closed —
// perfect for tests: fast, isolated, no cleanup needed.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// putTestParticipant writes a single participant through the batch API and
// fails the test on error.
func putTestParticipant(t *testing.T, db *DB, p model.Participant) {
	t.Helper()
	if err := db.PutBatch(context.Background(), []model.Participant{p}); err != nil {
		t.Fatalf("failed to put test participant: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	db := newTestDB(t)

	putTestParticipant(t, db, model.Participant{
		ID:            7,
		Username:      "testuser",
		Discriminator: "0001",
		XP:            1500,
		Rank:          42,
	})

	got, err := db.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "testuser" {
		t.Errorf("Username = %q, want %q", got.Username, "testuser")
	}
	if got.XP != 1500 {
		t.Errorf("XP = %d, want 1500", got.XP)
	}
	if got.Rank != 42 {
		t.Errorf("Rank = %d, want 42", got.Rank)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), 99999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetByID_CorruptSnapshot(t *testing.T) {
	db := newTestDB(t)

	// Plant a snapshot that is not valid JSON. The store must report it as
	// not-found, never as an internal error — the next sync overwrites it.
	_, err := db.conn.Exec(
		`INSERT INTO participants (id, snapshot) VALUES (5, 'not-json{')`)
	if err != nil {
		t.Fatalf("failed to plant corrupt snapshot: %v", err)
	}

	_, err = db.GetByID(context.Background(), 5)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() on corrupt snapshot error = %v, want ErrNotFound", err)
	}
}

func TestGetBySlug(t *testing.T) {
	db := newTestDB(t)

	putTestParticipant(t, db, model.Participant{
		ID:            12,
		Username:      "alice",
		Discriminator: "1234",
		XP:            900,
	})

	got, err := db.GetBySlug(context.Background(), "alice#1234")
	if err != nil {
		t.Fatalf("GetBySlug() error = %v", err)
	}
	if got.ID != 12 {
		t.Errorf("ID = %d, want 12", got.ID)
	}

	// Name index and direct id lookup must resolve to the same record
	// for an id written in the same batch.
	byID, err := db.GetByID(context.Background(), 12)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if *got != *byID {
		t.Errorf("slug lookup = %+v, id lookup = %+v — want identical", got, byID)
	}
}

func TestGetBySlug_Unknown(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetBySlug(context.Background(), "nobody#0000")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetBySlug() error = %v, want ErrNotFound", err)
	}
}

func TestGetBatch(t *testing.T) {
	db := newTestDB(t)

	putTestParticipant(t, db, model.Participant{ID: 1, Username: "a", Discriminator: "0001", XP: 100})
	putTestParticipant(t, db, model.Participant{ID: 2, Username: "b", Discriminator: "0002", XP: 200})

	got, err := db.GetBatch(context.Background(), []uint64{1, 2, 3})
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetBatch() returned %d records, want 2", len(got))
	}
	if got[1].Username != "a" || got[2].Username != "b" {
		t.Errorf("GetBatch() = %+v, wrong records", got)
	}
	if _, ok := got[3]; ok {
		t.Error("GetBatch() returned a record for an id that was never stored")
	}
}

func TestGetBatch_SkipsCorrupt(t *testing.T) {
	db := newTestDB(t)

	putTestParticipant(t, db, model.Participant{ID: 1, Username: "a", Discriminator: "0001", XP: 100})
	if _, err := db.conn.Exec(
		`INSERT INTO participants (id, snapshot) VALUES (2, '{{broken')`); err != nil {
		t.Fatalf("failed to plant corrupt snapshot: %v", err)
	}

	got, err := db.GetBatch(context.Background(), []uint64{1, 2})
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if _, ok := got[2]; ok {
		t.Error("GetBatch() decoded a corrupt snapshot — want it treated as absent")
	}
	if _, ok := got[1]; !ok {
		t.Error("GetBatch() lost a valid record alongside a corrupt one")
	}
}

func TestGetBatch_Empty(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetBatch(nil) error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetBatch(nil) = %+v, want empty", got)
	}
}

func TestPutBatch_Overwrite(t *testing.T) {
	db := newTestDB(t)

	putTestParticipant(t, db, model.Participant{ID: 7, Username: "old", Discriminator: "0001", XP: 100, Rank: 9})
	putTestParticipant(t, db, model.Participant{ID: 7, Username: "new", Discriminator: "0001", XP: 500, Rank: 3})

	got, err := db.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "new" || got.XP != 500 || got.Rank != 3 {
		t.Errorf("overwrite did not take: got %+v", got)
	}
}

func TestPutBatch_StaleSlugAccepted(t *testing.T) {
	db := newTestDB(t)

	// Participant 1 is "alice", then renames; participant 2 takes "alice".
	// The old slug keeps pointing at whoever wrote it last — accepted staleness.
	putTestParticipant(t, db, model.Participant{ID: 1, Username: "alice", Discriminator: "1234", XP: 100})
	putTestParticipant(t, db, model.Participant{ID: 2, Username: "alice", Discriminator: "1234", XP: 200})

	got, err := db.GetBySlug(context.Background(), "alice#1234")
	if err != nil {
		t.Fatalf("GetBySlug() error = %v", err)
	}
	if got.ID != 2 {
		t.Errorf("reused slug resolves to %d, want the latest writer 2", got.ID)
	}

	// The original record is still reachable by id — nothing was corrupted.
	if _, err := db.GetByID(context.Background(), 1); err != nil {
		t.Errorf("GetByID(1) after slug reuse error = %v", err)
	}
}
