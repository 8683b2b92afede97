package release

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/apptrail-sh/control-plane/pkg/history"
)

// Linker associates timeline rows with upstream releases. The immediate
// path (TryLinkLocal) runs at row creation against local storage only; the
// background worker re-attempts unlinked rows against the provider, with
// the attempt ledger providing backoff between misses.
type Linker struct {
	db       *gorm.DB
	provider Provider
	cfg      *LinkerConfig
	logger   *slog.Logger
}

// NewLinker creates a new release linker.
func NewLinker(db *gorm.DB, provider Provider, cfg *LinkerConfig, logger *slog.Logger) *Linker {
	if cfg == nil {
		cfg = DefaultLinkerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{db: db, provider: provider, cfg: cfg, logger: logger}
}

// TryLinkLocal attempts to link a freshly created entry to a release
// already present in local storage, searching the tag variants in order.
// No provider call is made here; unknown releases are left to the
// background worker.
func (l *Linker) TryLinkLocal(tx *gorm.DB, entry *history.Entry, repositoryURL string) (bool, error) {
	if repositoryURL == "" || entry.ReleaseID != nil {
		return false, nil
	}

	rel, err := NewStore(tx).FindByTagCandidates(repositoryURL, entry.CurrentVersion)
	if err != nil {
		return false, err
	}
	if rel == nil {
		return false, nil
	}

	err = tx.Model(&history.Entry{}).
		Where("id = ? AND release_id IS NULL", entry.ID).
		Update("release_id", rel.ID).Error
	if err != nil {
		return false, fmt.Errorf("link entry: %w", err)
	}
	entry.ReleaseID = &rel.ID
	return true, nil
}

// Run starts the background poll and ledger-sweep loops. It blocks until
// the context is cancelled.
func (l *Linker) Run(ctx context.Context) {
	if !l.cfg.Enabled {
		l.logger.Info("release linker disabled")
		return
	}

	l.logger.Info("release linker starting",
		"pollInterval", l.cfg.PollInterval.String(),
		"batchSize", l.cfg.BatchSize,
		"attemptBackoff", l.cfg.AttemptBackoff.String())

	pollTicker := time.NewTicker(l.cfg.PollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(l.cfg.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("release linker stopped")
			return
		case <-pollTicker.C:
			l.pollOnce(ctx)
		case <-sweepTicker.C:
			l.sweepOnce()
		}
	}
}

// linkCandidate is one unlinked row selected for processing.
type linkCandidate struct {
	EntryID    uint   `gorm:"column:entry_id"`
	Repository string `gorm:"column:repository"`
	Version    string `gorm:"column:version"`
}

// pollOnce selects a batch of unlinked rows that are not inside a backoff
// window and processes each in its own transaction. One row's failure is
// logged and never affects its siblings.
func (l *Linker) pollOnce(ctx context.Context) {
	candidates, err := l.selectCandidates()
	if err != nil {
		l.logger.Error("failed to select link candidates", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	l.logger.Info("processing unlinked entries", "count", len(candidates))

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return
		}
		if err := l.processCandidate(ctx, cand); err != nil {
			l.logger.Error("failed to process unlinked entry",
				"entryID", cand.EntryID,
				"repository", cand.Repository,
				"version", cand.Version,
				"error", err)
		}
	}
}

// selectCandidates returns up to BatchSize unlinked rows whose
// (repository, version) pair has no ledger entry newer than the backoff
// cutoff, oldest detection first.
func (l *Linker) selectCandidates() ([]linkCandidate, error) {
	cutoff := time.Now().UTC().Add(-l.cfg.AttemptBackoff)

	var candidates []linkCandidate
	err := l.db.Raw(`
		SELECT vh.id AS entry_id, w.repository_url AS repository, vh.current_version AS version
		FROM version_history_entries vh
		JOIN workload_instances wi ON wi.id = vh.workload_instance_id
		JOIN workloads w ON w.id = wi.workload_id
		LEFT JOIN release_fetch_attempts fa
			ON fa.repository = w.repository_url AND fa.version = vh.current_version
		WHERE vh.release_id IS NULL
			AND w.repository_url <> ''
			AND (fa.id IS NULL OR fa.attempted_at < ?)
		ORDER BY vh.detected_at ASC
		LIMIT ?
	`, cutoff, l.cfg.BatchSize).Scan(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("select link candidates: %w", err)
	}
	return candidates, nil
}

// processCandidate handles one row inside its own commit boundary. A
// provider miss or transient failure commits a ledger entry; only
// storage-level errors roll the row's transaction back.
func (l *Linker) processCandidate(ctx context.Context, cand linkCandidate) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		entry, err := l.claimEntry(tx, cand.EntryID)
		if err != nil {
			return err
		}
		if entry == nil {
			// Linked meanwhile, or claimed by a concurrent worker.
			return nil
		}

		store := NewStore(tx)

		// The release may have arrived locally (webhook, sibling link)
		// since selection.
		linked, err := l.TryLinkLocal(tx, entry, cand.Repository)
		if err != nil {
			return err
		}
		if linked {
			return store.DeleteAttempt(cand.Repository, cand.Version)
		}

		info, err := l.provider.FetchRelease(ctx, cand.Repository, cand.Version)
		if err != nil {
			// Transient provider failure: same backoff as a miss, and the
			// ledger write must commit, so it is not returned as an error.
			l.logger.Warn("release lookup failed",
				"repository", cand.Repository, "version", cand.Version, "error", err)
			return store.RecordAttempt(cand.Repository, cand.Version, time.Now().UTC())
		}
		if info == nil {
			return store.RecordAttempt(cand.Repository, cand.Version, time.Now().UTC())
		}

		rel, err := store.Upsert(&Release{
			Repository:  cand.Repository,
			TagName:     info.TagName,
			Name:        info.Name,
			Notes:       info.Notes,
			Author:      info.Author,
			URL:         info.URL,
			PublishedAt: info.PublishedAt,
		})
		if err != nil {
			return err
		}

		// Link this row and, opportunistically, every sibling of the same
		// repository whose version matches a tag variant.
		versions := TagCandidates(rel.TagName)
		versions = appendUnique(versions, cand.Version)
		linkedCount, err := store.LinkMatching(cand.Repository, rel.ID, versions)
		if err != nil {
			return err
		}

		l.logger.Info("linked release",
			"repository", cand.Repository,
			"tag", rel.TagName,
			"entries", linkedCount)

		return store.DeleteAttempt(cand.Repository, cand.Version)
	})
}

// claimEntry locks one unlinked row for this worker. Uses FOR UPDATE SKIP
// LOCKED where supported (PostgreSQL) so concurrent workers never retry
// the same row; falls back to a plain read elsewhere. Returns nil when the
// row is already linked or claimed.
func (l *Linker) claimEntry(tx *gorm.DB, entryID uint) (*history.Entry, error) {
	var entry history.Entry

	result := tx.Raw(`
		SELECT * FROM version_history_entries
		WHERE id = ? AND release_id IS NULL
		FOR UPDATE SKIP LOCKED
	`, entryID).Scan(&entry)

	if result.Error != nil {
		// SQLite and older MySQL do not support SKIP LOCKED.
		result = tx.Where("id = ? AND release_id IS NULL", entryID).First(&entry)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				return nil, nil
			}
			return nil, fmt.Errorf("claim entry: %w", result.Error)
		}
	}

	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

// sweepOnce deletes ledger entries older than the retention window.
func (l *Linker) sweepOnce() {
	cutoff := time.Now().UTC().Add(-l.cfg.LedgerRetention)
	deleted, err := NewStore(l.db).SweepAttempts(cutoff)
	if err != nil {
		l.logger.Error("failed to sweep attempt ledger", "error", err)
		return
	}
	if deleted > 0 {
		l.logger.Info("swept attempt ledger", "deleted", deleted)
	}
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
