// Package sync implements the leaderboard reconciliation loop.
//
// One timer-driven task runs sequentially for the process lifetime. Each tick
// performs exactly one page-fetch-and-merge step: advance the page cursor,
// fetch that page from the upstream listing, assign sequential ranks, diff the
// page against the prior cached snapshots, hand level-up transitions to the
// notifier, and write the page's records plus name-index entries as one batch.
// Over many ticks the loop covers the whole upstream leaderboard, then wraps
// around and starts over.
//
// The reconciler has no callers to surface errors to — every tick-local
// failure is logged and the loop continues on the next tick.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sakif/levelboard/internal/level"
	"github.com/sakif/levelboard/internal/model"
	"github.com/sakif/levelboard/internal/repository"
)

// Fetcher is the upstream page source. Implemented by leaderboard.Client;
// an interface so reconciler tests can feed synthetic pages.
type Fetcher interface {
	FetchPage(ctx context.Context, page int64, pageSize int) ([]model.RawPlayer, error)
}

// Dispatcher receives level-up events for asynchronous delivery. Dispatch must
// never block: it reports whether the event was accepted, and a false return
// (queue full, notifications disabled) is not an error the reconciler acts on.
type Dispatcher interface {
	Dispatch(ev model.LevelUpEvent) bool
}

// Config tunes the reconciliation loop. Zero values are replaced with the
// defaults matching the upstream's behaviour.
type Config struct {
	PageSize  int           // upstream "limit" parameter
	XPFloor   uint64        // below this, a record signals the listing wrapped
	Threshold uint64        // level whose upward crossing triggers a notification
	Interval  time.Duration // time between page syncs
}

func (c *Config) applyDefaults() {
	if c.PageSize == 0 {
		c.PageSize = 1000
	}
	if c.XPFloor == 0 {
		c.XPFloor = 100
	}
	if c.Threshold == 0 {
		c.Threshold = 5
	}
	if c.Interval == 0 {
		c.Interval = 3 * time.Second
	}
}

// Reconciler drives the sync loop. It is the sole writer to the participant
// store and the sync cursor; readers coordinate with it only through the
// store's per-key atomicity.
type Reconciler struct {
	fetcher  Fetcher
	store    repository.ParticipantStore
	cursor   repository.SyncCursor
	notifier Dispatcher
	cfg      Config
	logger   *slog.Logger

	now func() time.Time // swapped in tests for deterministic timestamps
}

// New creates a Reconciler. notifier may be nil, in which case level-up
// detection still runs but events go nowhere — the degraded no-webhook mode.
func New(
	fetcher Fetcher,
	store repository.ParticipantStore,
	cursor repository.SyncCursor,
	notifier Dispatcher,
	cfg Config,
	logger *slog.Logger,
) *Reconciler {
	cfg.applyDefaults()
	return &Reconciler{
		fetcher:  fetcher,
		store:    store,
		cursor:   cursor,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the loop until ctx is canceled. One tick, one page; ticks are
// never re-entered concurrently with themselves (sequential driver). Each tick
// gets a 30-second deadline so one stuck upstream call cannot stall the loop
// past the next natural trigger forever.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Int("pageSize", r.cfg.PageSize),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := r.SyncPage(tickCtx); err != nil {
				r.logger.Error("sync pass failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}

// SyncPage performs one page-fetch-and-merge step.
//
// The page cursor advances BEFORE the fetch. A crash or fetch failure
// therefore skips that page's records until the next full wrap rather than
// risking an infinite refetch of the same page — the accepted trade of
// bounded staleness over retry complexity.
func (r *Reconciler) SyncPage(ctx context.Context) error {
	page, err := r.cursor.NextPage(ctx)
	if err != nil {
		return fmt.Errorf("sync: advancing page cursor: %w", err)
	}

	players, err := r.fetcher.FetchPage(ctx, page, r.cfg.PageSize)
	if err != nil {
		// The page counter already moved on; the next tick fetches the next
		// page. No rollback.
		return fmt.Errorf("sync: fetching page %d: %w", page, err)
	}

	rank, err := r.cursor.Rank(ctx)
	if err != nil {
		return fmt.Errorf("sync: reading rank cursor: %w", err)
	}

	staged, wrapped := r.stagePage(players, rank)

	if len(staged) > 0 {
		r.detectLevelUps(ctx, staged)

		// The rank counter advances by the accepted count whether or not the
		// batch write below succeeds; a failed write loses the page for this
		// cycle, and the skipped rank range goes with it.
		if err := r.cursor.AdvanceRank(ctx, int64(len(staged))); err != nil {
			r.logger.Error("advancing rank cursor failed", slog.String("error", err.Error()))
		}

		if err := r.store.PutBatch(ctx, staged); err != nil {
			// Page lost for this cycle; no retry within the tick.
			return fmt.Errorf("sync: writing page %d (%d records): %w", page, len(staged), err)
		}
	}

	if wrapped {
		r.logger.Info("upstream listing wrapped, resetting cursor", slog.Int64("page", page))
		if err := r.cursor.Reset(ctx); err != nil {
			return fmt.Errorf("sync: resetting cursor after wrap: %w", err)
		}
	}

	r.logger.Debug("page synced",
		slog.Int64("page", page),
		slog.Int("accepted", len(staged)),
		slog.Bool("wrapped", wrapped),
	)
	return nil
}

// stagePage converts raw upstream records into ranked, timestamped participant
// records, in upstream order. The first record below the experience floor
// signals that the upstream listing wrapped around to its top: the record
// itself is not staged, the rest of the page is abandoned, and the caller
// resets the cursor. Records whose id fails to parse are skipped without
// consuming a rank.
func (r *Reconciler) stagePage(players []model.RawPlayer, rank int64) ([]model.Participant, bool) {
	staged := make([]model.Participant, 0, len(players))
	now := r.now().UnixMilli()

	for _, pl := range players {
		if pl.XP < r.cfg.XPFloor {
			return staged, true
		}

		id, err := strconv.ParseUint(pl.ID, 10, 64)
		if err != nil {
			r.logger.Error("skipping record with unparseable id",
				slog.String("id", pl.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		p := model.Participant{
			ID:            id,
			Username:      pl.Username,
			Discriminator: pl.Discriminator,
			XP:            pl.XP,
			Rank:          rank,
			LastSynced:    now,
		}
		if pl.Avatar != nil {
			p.Avatar = *pl.Avatar
		}
		if pl.MessageCount != nil {
			p.MessageCount = *pl.MessageCount
		}

		staged = append(staged, p)
		rank++
	}

	return staged, false
}

// detectLevelUps compares each staged record's derived level against the prior
// cached snapshot and dispatches a level-up event for every upward crossing of
// the notification threshold.
//
// An id with no prior snapshot never qualifies — a first-ever sighting is
// silently absorbed. A corrupt prior snapshot is treated the same (GetBatch
// omits it), and the fresh value overwrites it regardless. Because the prior
// level is re-read from the store each pass, feeding the same page twice
// cannot double-notify: the second pass finds the prior level already at or
// above the threshold.
func (r *Reconciler) detectLevelUps(ctx context.Context, staged []model.Participant) {
	if r.notifier == nil {
		return
	}

	ids := make([]uint64, len(staged))
	for i := range staged {
		ids[i] = staged[i].ID
	}

	prior, err := r.store.GetBatch(ctx, ids)
	if err != nil {
		// Notification is best-effort: a failed prior lookup costs this
		// page's notifications, never the page's write.
		r.logger.Error("prior snapshot lookup failed", slog.String("error", err.Error()))
		return
	}

	for i := range staged {
		p := staged[i]
		old, ok := prior[p.ID]
		if !ok {
			continue
		}

		prevLevel := level.FromXP(old.XP)
		newLevel := level.FromXP(p.XP)
		if prevLevel < r.cfg.Threshold && newLevel >= r.cfg.Threshold {
			ev := model.LevelUpEvent{
				Participant: p,
				PrevLevel:   prevLevel,
				NewLevel:    newLevel,
			}
			if !r.notifier.Dispatch(ev) {
				r.logger.Warn("level-up event dropped",
					slog.Uint64("participant", p.ID),
					slog.Uint64("level", newLevel),
				)
			}
		}
	}
}
