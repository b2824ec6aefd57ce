package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/levelboard/internal/repository"
)

// compile-time check that *DB implements repository.SyncCursor
var _ repository.SyncCursor = (*DB)(nil)

// The cursor rows ('sync:page', 'sync:rank') are seeded by migrate(), so every
// statement here can assume the rows exist.

// NextPage atomically advances the page counter and returns the 0-based page
// number the caller should fetch.
//
// ADVANCE-BEFORE-FETCH:
// The counter moves forward before the fetch is attempted. If the process
// crashes or the fetch fails, the next tick fetches the page after the one
// that was lost — the loop can skip a page but can never get stuck refetching
// one. The skipped page's records go stale until the next full wrap, which is
// the accepted trade (bounded staleness over retry complexity).
//
// UPDATE ... RETURNING makes the read-modify-write a single atomic statement,
// the SQL equivalent of an atomic INCR.
func (db *DB) NextPage(ctx context.Context) (int64, error) {
	var value int64
	err := db.conn.QueryRowContext(ctx,
		`UPDATE cursor SET value = value + 1 WHERE name = 'sync:page' RETURNING value`,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sqlite: advancing page cursor: %w", err)
	}
	// The stored value is the count of pages handed out; pages are 0-based.
	return value - 1, nil
}

// Rank returns the current 1-based rank counter. Read once per page — every
// accepted record in the page gets rank, rank+1, ... locally, and the counter
// is advanced by the accepted count afterwards via AdvanceRank.
func (db *DB) Rank(ctx context.Context) (int64, error) {
	var value int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM cursor WHERE name = 'sync:rank'`,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading rank cursor: %w", err)
	}
	return value, nil
}

// AdvanceRank increments the rank counter by the page's accepted record count.
func (db *DB) AdvanceRank(ctx context.Context, n int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE cursor SET value = value + ? WHERE name = 'sync:rank'`, n,
	)
	if err != nil {
		return fmt.Errorf("sqlite: advancing rank cursor by %d: %w", n, err)
	}
	return nil
}

// Reset returns the cursor to the top of the listing: page 0, rank 1.
// Called when a fetched record falls below the experience floor, which signals
// the upstream listing wrapped around to its start. Both counters move in one
// transaction so a crash between them cannot leave a half-reset cursor.
func (db *DB) Reset(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning cursor reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE cursor SET value = 0 WHERE name = 'sync:page'`); err != nil {
		return fmt.Errorf("sqlite: resetting page cursor: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cursor SET value = 1 WHERE name = 'sync:rank'`); err != nil {
		return fmt.Errorf("sqlite: resetting rank cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing cursor reset: %w", err)
	}
	return nil
}
