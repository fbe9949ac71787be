package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/authz"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/database"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/pkg/logger"
	"github.com/appdedupe/appdedupe/pkg/metrics"
)

// Archiver stores the raw upload and returns its object key.
type Archiver interface {
	Archive(ctx context.Context, runID, fileName string, data []byte) (string, error)
}

type Upload struct {
	FileName string
	Data     []byte
}

type Service struct {
	mu      sync.Mutex
	store   repository.Store
	tx      database.Transactor
	policy  authz.Policy
	runs    RunStore
	archive Archiver
	now     func() time.Time
}

// NewService wires the pipeline. archive may be nil.
func NewService(store repository.Store, tx database.Transactor, policy authz.Policy, runs RunStore, archive Archiver) *Service {
	return &Service{
		store:   store,
		tx:      tx,
		policy:  policy,
		runs:    runs,
		archive: archive,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest replaces every cluster and app name with the contents of up. The
// caller must be allow-listed. The CSV is parsed and the replacement built in
// full before anything is written, and runs are serialized.
func (s *Service) Ingest(ctx context.Context, actor *models.User, up Upload) (*models.IngestRun, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("Please authenticate")
	}
	if !s.policy.IsAdmin(actor.Email) {
		logger.Warnf("csv upload denied for %s", actor.Email)
		return nil, apperr.Forbidden("Access denied")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run := &models.IngestRun{
		ID:         ksuid.New().String(),
		UploadedBy: actor.ID,
		FileName:   up.FileName,
		Skipped:    []models.SkippedRow{},
		StartedAt:  s.now(),
	}

	parsed, err := Parse(up.Data)
	if err != nil {
		s.fail(ctx, run, err.Error())
		return nil, apperr.Validation("Invalid CSV format", apperr.FieldError{Field: "file", Message: err.Error()})
	}
	run.RowsRead = parsed.RowsRead
	run.Skipped = append(run.Skipped, parsed.Skipped...)
	for _, sk := range parsed.Skipped {
		logger.Warnf("ingest %s: skipped row %d: %s", run.ID, sk.Row, sk.Reason)
	}
	metrics.IngestRows.WithLabelValues("skipped").Add(float64(len(parsed.Skipped)))
	if len(parsed.Rows) == 0 {
		s.fail(ctx, run, "no valid rows")
		return nil, apperr.Validation("Invalid CSV format", apperr.FieldError{Field: "file", Message: "CSV contains no rows with a canonical name"})
	}

	plan := BuildPlan(parsed.Rows, actor.ID, run.StartedAt)

	if s.archive != nil {
		key, err := s.archive.Archive(ctx, run.ID, up.FileName, up.Data)
		if err != nil {
			logger.Warnf("ingest %s: archive upload failed: %v", run.ID, err)
		} else {
			run.ObjectKey = key
		}
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.store.ReplaceAll(ctx, plan.Clusters, plan.Apps)
	})
	if err != nil {
		s.fail(ctx, run, err.Error())
		return nil, apperr.Internal("Database error", err)
	}

	run.Clusters = len(plan.Clusters)
	run.Apps = len(plan.Apps)
	run.Status = models.IngestSucceeded
	run.CompletedAt = s.now()
	s.record(ctx, run)
	metrics.IngestRuns.WithLabelValues(string(models.IngestSucceeded)).Inc()
	metrics.IngestRows.WithLabelValues("ingested").Add(float64(len(parsed.Rows)))
	logger.Infof("ingest %s: %d rows, %d skipped, %d clusters, %d apps", run.ID, run.RowsRead, len(run.Skipped), run.Clusters, run.Apps)
	return run, nil
}

func (s *Service) fail(ctx context.Context, run *models.IngestRun, reason string) {
	run.Status = models.IngestFailed
	run.Error = reason
	run.CompletedAt = s.now()
	s.record(ctx, run)
	metrics.IngestRuns.WithLabelValues(string(models.IngestFailed)).Inc()
	logger.Warnf("ingest %s failed: %s", run.ID, reason)
}

func (s *Service) record(ctx context.Context, run *models.IngestRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Save(ctx, run); err != nil {
		logger.Errorf("ingest %s: save run: %v", run.ID, err)
	}
}

func (s *Service) Runs(ctx context.Context, limit int) ([]*models.IngestRun, error) {
	if s.runs == nil {
		return []*models.IngestRun{}, nil
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return runs, nil
}

func (s *Service) Run(ctx context.Context, id string) (*models.IngestRun, error) {
	if s.runs == nil {
		return nil, apperr.NotFound("Ingest run not found")
	}
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	if run == nil {
		return nil, apperr.NotFound("Ingest run not found")
	}
	return run, nil
}
