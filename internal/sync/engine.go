// Package sync orchestrates the report lifecycle: photo upload, record
// commit to the authoritative store, owner-partitioned reads, and deletes.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
)

// Repository is the authoritative remote document store for reports.
type Repository interface {
	// Create persists a new report and returns its store-assigned id.
	Create(ctx context.Context, report domain.Report) (string, error)

	// QueryByOwner returns the owner's reports, newest first.
	QueryByOwner(ctx context.Context, ownerID string) ([]domain.Report, error)

	// QueryNotOwner returns every other owner's reports, newest first.
	QueryNotOwner(ctx context.Context, ownerID string) ([]domain.Report, error)

	// QueryAll returns all reports, newest first.
	QueryAll(ctx context.Context) ([]domain.Report, error)

	// Delete removes one report by id. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error

	// DeleteBatch removes the given ids in a single remote command.
	DeleteBatch(ctx context.Context, ids []string) error
}

// Store is the local report cache, mirrored best-effort on commit.
type Store interface {
	Insert(report domain.Report) error
	ListAll() ([]domain.Report, error)
	ListByOwner(ownerID string) ([]domain.Report, error)
	Clear() error
}

// Uploader persists a photo and returns the asset reference to embed in the
// committed record. Which variant backs it (cloud host, S3, local disk) is
// a wiring decision.
type Uploader interface {
	Upload(ctx context.Context, photo []byte, filenameHint string) (domain.AssetRef, error)
}

// Engine drives report submissions and queries. The local store and the
// geocoder are optional; a nil store disables cache mirroring and a nil
// geocoder disables free-text resolution and address annotation.
type Engine struct {
	repo     Repository
	store    Store
	uploader Uploader
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New wires an Engine from its collaborators.
func New(repo Repository, store Store, uploader Uploader, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		repo:     repo,
		store:    store,
		uploader: uploader,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

// AcquireLocation resolves a free-text location query ("my" meaning the
// current fix) and attaches the result to the submission. Address
// annotation runs in the background and is attached only if it completes
// before the record is committed; its failure is never surfaced.
func (e *Engine) AcquireLocation(ctx context.Context, sub *Submission, query string, fix *domain.Fix) (domain.Point, error) {
	p, err := domain.ResolvePoint(ctx, query, fix, e.geocoder)
	if err != nil {
		return domain.Point{}, err
	}
	sub.setLocation(p)

	if e.geocoder != nil {
		go func() {
			if addr := domain.AnnotateAddress(ctx, p, e.geocoder, e.logger); addr != "" {
				sub.setAddress(addr)
			}
		}()
	}

	return p, nil
}

// Submit runs the upload-then-commit pipeline for a submission. On failure
// the captured state is preserved and the submission can be retried; a
// retry after a commit failure reuses the uploaded asset and does not
// upload again.
func (e *Engine) Submit(ctx context.Context, sub *Submission, ownerID string) (domain.Report, error) {
	snap, err := sub.beginAttempt()
	if err != nil {
		return domain.Report{}, err
	}

	asset := snap.asset
	if asset == nil {
		ref, err := e.uploader.Upload(ctx, snap.photo, snap.photoName)
		if err != nil {
			sub.fail()
			e.metrics.SubmitFailures.WithLabelValues("upload").Inc()
			e.logger.Error("photo upload failed", "error", err)
			if !errors.Is(err, domain.ErrUploadFailed) && !errors.Is(err, domain.ErrLocalWriteFailed) {
				err = fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
			}
			return domain.Report{}, err
		}
		sub.setAsset(ref)
		asset = &ref
	}

	report := domain.Report{
		OwnerID:    ownerID,
		CapturedAt: snap.capturedAt,
		Location:   snap.location,
		Severity:   snap.severity,
		Address:    snap.address,
		Asset:      *asset,
	}
	if err := report.Validate(); err != nil {
		sub.fail()
		return domain.Report{}, err
	}

	id, err := e.repo.Create(ctx, report)
	if err != nil {
		sub.fail()
		e.metrics.SubmitFailures.WithLabelValues("commit").Inc()
		e.logger.Error("report commit failed", "error", err)
		return domain.Report{}, fmt.Errorf("%w: %w", domain.ErrCommitFailed, err)
	}
	report.ID = id
	sub.finish(id)
	e.metrics.ReportsSubmitted.Inc()

	if e.store != nil {
		if err := e.store.Insert(report); err != nil {
			e.logger.Warn("local cache mirror failed", "report_id", id, "error", err)
		}
	}

	e.logger.Info("report committed",
		"report_id", id,
		"severity", report.Severity.String(),
		"lat", report.Location.Lat,
		"lon", report.Location.Lon,
	)
	return report, nil
}

// LoadReports lists one owner partition from the remote store: the caller's
// own reports or everyone else's.
func (e *Engine) LoadReports(ctx context.Context, ownerID string, scope domain.Scope) ([]domain.Report, error) {
	var (
		reports []domain.Report
		err     error
	)
	if scope == domain.ScopeOthers {
		reports, err = e.repo.QueryNotOwner(ctx, ownerID)
	} else {
		reports, err = e.repo.QueryByOwner(ctx, ownerID)
	}
	if err != nil {
		return nil, err
	}
	e.metrics.ReportsLoaded.WithLabelValues(scope.String()).Add(float64(len(reports)))
	return reports, nil
}

// LoadAllReports lists every report, newest first.
func (e *Engine) LoadAllReports(ctx context.Context) ([]domain.Report, error) {
	reports, err := e.repo.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	e.metrics.ReportsLoaded.WithLabelValues("all").Add(float64(len(reports)))
	return reports, nil
}

// DeleteOne removes a single report from the remote store. Deleting an id
// that no longer exists is not an error.
func (e *Engine) DeleteOne(ctx context.Context, id string) error {
	if err := e.repo.Delete(ctx, id); err != nil {
		return err
	}
	e.metrics.ReportsDeleted.WithLabelValues("one").Inc()
	return nil
}

// DeleteMine removes all of the owner's reports in one batch and clears the
// local cache mirror. Returns the number of reports deleted.
func (e *Engine) DeleteMine(ctx context.Context, ownerID string) (int, error) {
	mine, err := e.repo.QueryByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(mine) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(mine))
	for _, r := range mine {
		ids = append(ids, r.ID)
	}
	if err := e.repo.DeleteBatch(ctx, ids); err != nil {
		return 0, err
	}
	e.metrics.ReportsDeleted.WithLabelValues("mine").Add(float64(len(ids)))

	if e.store != nil {
		if err := e.store.Clear(); err != nil {
			e.logger.Warn("local cache clear failed", "error", err)
		}
	}

	e.logger.Info("owner reports deleted", "owner_id", ownerID, "count", len(ids))
	return len(ids), nil
}
