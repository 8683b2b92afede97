// Package ingest accepts agent-reported deployment events and release
// webhooks and drives them through the registry, timeline, notification,
// and release-linking subsystems.
package ingest

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/apptrail-sh/control-plane/pkg/cache"
	"github.com/apptrail-sh/control-plane/pkg/event"
	"github.com/apptrail-sh/control-plane/pkg/history"
	"github.com/apptrail-sh/control-plane/pkg/registry"
	"github.com/apptrail-sh/control-plane/pkg/release"
)

// Service processes deployment events. Resolution and timeline recording
// share one transaction; notification dispatch and local release linking
// run after commit so their failures never unwind a recorded event.
type Service struct {
	db     *gorm.DB
	engine *history.Engine
	linker *release.Linker
	cache  *cache.TTLCache
	logger *slog.Logger
}

// NewService creates an ingestion service. linker and cache may be nil.
func NewService(db *gorm.DB, engine *history.Engine, linker *release.Linker, c *cache.TTLCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, engine: engine, linker: linker, cache: c, logger: logger}
}

// Outcome reports what processing an event did.
type Outcome struct {
	Instance *registry.WorkloadInstance
	Result   *history.RecordResult
}

// ProcessEvent validates and records a deployment event. Validation errors
// are returned as *event.ValidationError so the handler can map them to a
// client error; everything else is a server-side failure.
func (s *Service) ProcessEvent(ev *event.DeploymentEvent) (*Outcome, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	var (
		instance *registry.WorkloadInstance
		workload *registry.Workload
		result   *history.RecordResult
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		store := registry.NewStore(tx)

		var err error
		instance, err = store.Resolve(ev)
		if err != nil {
			return err
		}

		workload, err = store.GetWorkload(instance.WorkloadID)
		if err != nil {
			return err
		}

		result, err = s.engine.Record(tx, instance, ev)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("process event %s: %w", ev.EventID, err)
	}

	s.afterCommit(ev, instance, workload, result)

	return &Outcome{Instance: instance, Result: result}, nil
}

// afterCommit runs the best-effort steps that follow a recorded event:
// report-cache invalidation, notification dispatch, and the immediate
// local-only release link for fresh rows.
func (s *Service) afterCommit(ev *event.DeploymentEvent, instance *registry.WorkloadInstance, workload *registry.Workload, result *history.RecordResult) {
	if result == nil || !result.Changed {
		return
	}

	if s.cache != nil {
		s.cache.InvalidateAll()
	}

	s.engine.Notify(history.NewStore(s.db), result, ev, ev.Source.ClusterID, instance.Environment)

	if result.Created && s.linker != nil && workload != nil && workload.RepositoryURL != "" {
		linked, err := s.linker.TryLinkLocal(s.db, result.Entry, workload.RepositoryURL)
		if err != nil {
			s.logger.Warn("immediate release link failed",
				"entryID", result.Entry.ID,
				"repository", workload.RepositoryURL,
				"error", err)
		} else if linked {
			s.logger.Debug("entry linked to local release",
				"entryID", result.Entry.ID, "version", result.Entry.CurrentVersion)
		}
	}
}

// RegisterRelease stores a webhook-delivered release and links every
// matching unlinked timeline row of its repository.
func (s *Service) RegisterRelease(rel *release.Release) (*release.Release, int64, error) {
	var stored *release.Release
	var linkedCount int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		store := release.NewStore(tx)

		var err error
		stored, err = store.Upsert(rel)
		if err != nil {
			return err
		}

		versions := release.TagCandidates(stored.TagName)
		linkedCount, err = store.LinkMatching(stored.Repository, stored.ID, versions)
		if err != nil {
			return err
		}

		return store.DeleteAttempt(stored.Repository, stored.TagName)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("register release %s@%s: %w", rel.Repository, rel.TagName, err)
	}

	if linkedCount > 0 && s.cache != nil {
		s.cache.InvalidateAll()
	}

	s.logger.Info("release registered",
		"repository", stored.Repository,
		"tag", stored.TagName,
		"linkedEntries", linkedCount)
	return stored, linkedCount, nil
}
