package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sakif/levelboard/internal/apperror"
	"github.com/sakif/levelboard/internal/model"
	"github.com/sakif/levelboard/internal/repository"
)

// compile-time check that *DB implements repository.ParticipantStore
var _ repository.ParticipantStore = (*DB)(nil)

// GetByID retrieves the cached snapshot for a participant id.
//
// WHY STORE SERIALIZED JSON INSTEAD OF ONE COLUMN PER FIELD?
// The record is always written and read as a whole — there are no partial
// updates and no queries over individual attributes. A single snapshot column
// keeps the write path one INSERT OR REPLACE per record and makes "one key's
// value" the unit of atomicity, exactly the consistency the readers rely on.
//
// A snapshot that fails to decode is reported as not-found rather than as an
// internal error: the next sync pass will overwrite it with a fresh value, so
// from the reader's perspective the id is simply not cached right now.
func (db *DB) GetByID(ctx context.Context, id uint64) (*model.Participant, error) {
	var snapshot string
	err := db.conn.QueryRowContext(ctx,
		`SELECT snapshot FROM participants WHERE id = ?`, int64(id),
	).Scan(&snapshot)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.UnknownID(strconv.FormatUint(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting participant %d: %w", id, err)
	}

	var p model.Participant
	if err := json.Unmarshal([]byte(snapshot), &p); err != nil {
		return nil, apperror.UnknownID(strconv.FormatUint(id, 10))
	}

	return &p, nil
}

// GetBySlug resolves a "name#discriminator" slug via the name index, then
// fetches the record it points to.
//
// The index entry may be stale if the name was reused — in that case this
// returns whichever record the index still points to, which is accepted
// staleness, not corruption. Callers preferring exactness look up by id first.
func (db *DB) GetBySlug(ctx context.Context, slug string) (*model.Participant, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT participant_id FROM slugs WHERE slug = ?`, slug,
	).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.UnknownID(slug)
		}
		return nil, fmt.Errorf("sqlite: resolving slug %q: %w", slug, err)
	}

	return db.GetByID(ctx, uint64(id))
}

// GetBatch returns prior snapshots for the given ids in a single query.
//
// Missing ids and snapshots that fail to decode are left out of the result —
// the reconciler treats both as "no prior state", which means first-ever
// sightings and corrupt prior values never qualify for a level-up comparison.
func (db *DB) GetBatch(ctx context.Context, ids []uint64) (map[uint64]model.Participant, error) {
	result := make(map[uint64]model.Participant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	// Build the IN (?, ?, ...) placeholder list. database/sql has no slice
	// binding, so this is the standard pattern.
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = int64(id)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, snapshot FROM participants WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: batch getting %d participants: %w", len(ids), err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var snapshot string
		if err := rows.Scan(&id, &snapshot); err != nil {
			return nil, fmt.Errorf("sqlite: scanning batch row: %w", err)
		}
		var p model.Participant
		if err := json.Unmarshal([]byte(snapshot), &p); err != nil {
			continue // corrupt prior value — treated as absent, will be overwritten
		}
		result[uint64(id)] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating batch rows: %w", err)
	}

	return result, nil
}

// PutBatch writes all records of a reconciled page plus their name-index
// entries in one transaction.
//
// TRANSACTION = BATCH ATOMICITY:
// The consistency guarantee is per-page: a reader must never observe a
// name-index entry whose record is missing, for records written together. A
// single transaction gives exactly that — both tables commit or neither does.
// Across pages there is no atomicity, and none is needed.
func (db *DB) PutBatch(ctx context.Context, participants []model.Participant) error {
	if len(participants) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning batch write: %w", err)
	}
	// Rollback is a no-op after Commit — safe to always defer.
	defer tx.Rollback()

	recordStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO participants (id, snapshot, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing record upsert: %w", err)
	}
	defer recordStmt.Close()

	slugStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO slugs (slug, participant_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing slug upsert: %w", err)
	}
	defer slugStmt.Close()

	now := time.Now()
	for i := range participants {
		p := &participants[i]

		snapshot, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("sqlite: serializing participant %d: %w", p.ID, err)
		}

		if _, err := recordStmt.ExecContext(ctx, int64(p.ID), string(snapshot), now); err != nil {
			return fmt.Errorf("sqlite: upserting participant %d: %w", p.ID, err)
		}
		if _, err := slugStmt.ExecContext(ctx, p.Slug(), int64(p.ID)); err != nil {
			return fmt.Errorf("sqlite: upserting slug %q: %w", p.Slug(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing batch of %d: %w", len(participants), err)
	}

	return nil
}
