package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	"github.com/modoudou1/vaxcare-api/internal/repository"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
	"github.com/modoudou1/vaxcare-api/pkg/export"
	"github.com/modoudou1/vaxcare-api/pkg/jobs"
	"github.com/modoudou1/vaxcare-api/pkg/storage"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type coverageRepository interface {
	CoverageRows(ctx context.Context, filter models.ChildFilter) ([]models.CoverageRow, error)
}

type reportStockRepository interface {
	List(ctx context.Context, filter models.StockFilter) ([]models.StockItem, int, error)
}

// stockExportPageSize is the repository page size used when draining the
// scoped stock table into an export.
const stockExportPageSize = 100

// ReportConfig tunes the asynchronous export pipeline.
type ReportConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	CleanupInterval   time.Duration
	RetentionPeriod   time.Duration
}

// ReportService runs the asynchronous export pipeline: a submission freezes
// the actor's scope into the job parameters, a worker renders the dataset to
// CSV or PDF on local storage, and the result is fetched through a signed
// URL.
type ReportService struct {
	repo      reportRepository
	coverage  coverageRepository
	stock     reportStockRepository
	scope     *ScopeResolver
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	metrics   decisionRecorder
	config    ReportConfig
}

// NewReportService constructs a ReportService and its worker queue. Call
// Start before submitting jobs.
func NewReportService(repo reportRepository, coverage coverageRepository, stock reportStockRepository, scope *ScopeResolver, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, metrics decisionRecorder, config ReportConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.RetentionPeriod <= 0 {
		config.RetentionPeriod = 7 * 24 * time.Hour
	}

	s := &ReportService{
		repo:      repo,
		coverage:  coverage,
		stock:     stock,
		scope:     scope,
		storage:   store,
		signer:    signer,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		config:    config,
	}
	s.queue = jobs.NewQueue("reports", s.process, jobs.QueueConfig{
		Workers:    config.WorkerConcurrency,
		MaxRetries: config.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the workers, re-enqueues jobs left queued by a previous
// run, and begins the cleanup loop.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)

	queued, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
	} else {
		for _, job := range queued {
			if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
				s.logger.Warn("failed to re-enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}

	if s.config.CleanupInterval > 0 {
		go s.cleanupLoop(ctx)
	}
}

// Stop drains the worker pool.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Create queues a report export. The actor's scope at submission time is
// frozen into the job so a later role change cannot widen the output.
func (s *ReportService) Create(ctx context.Context, actor authz.Actor, req models.CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	entity := authz.EntityChildren
	if req.Type == models.ReportTypeStock {
		entity = authz.EntityStock
	}
	decision := authz.Authorize(actor, authz.ActionRead, authz.Target{Type: entity, Region: actor.Region, Facility: actor.Facility})
	if s.metrics != nil {
		s.metrics.RecordDecision(decision.Allowed)
	}
	if !decision.Allowed {
		return nil, decisionError(decision)
	}

	scope, err := authz.ScopeFor(ctx, actor, entity, authz.ScopeHintNone, s.scope.Lookup())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}

	params := models.ReportJobParams{
		Region:  scope.Region,
		Vaccine: req.Vaccine,
		Format:  req.Format,
	}
	switch {
	case scope.MatchNone:
		// An empty district still gets its (empty) report.
		params.Facilities = []string{""}
	case scope.Facility != "":
		params.Facilities = []string{scope.Facility}
	case len(scope.Facilities) > 0:
		params.Facilities = scope.Facilities
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    params,
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.ID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	s.logger.Info("report queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("created_by", actor.ID))
	return job, nil
}

// Get returns a job's status. Only the creator and national actors may see
// it.
func (s *ReportService) Get(ctx context.Context, actor authz.Actor, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	if job.CreatedBy != actor.ID && actor.Role != models.RoleNational {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// OpenDownload validates a signed token and returns the stored file path.
func (s *ReportService) OpenDownload(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	return s.storage.Path(relPath), nil
}

func (s *ReportService) process(ctx context.Context, qj jobs.Job) error {
	job, err := s.repo.GetByID(ctx, qj.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", qj.ID, err)
	}

	processing := models.ReportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}

	data, err := s.buildDataset(ctx, job)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}

	var payload []byte
	ext := "csv"
	switch job.Params.Format {
	case models.ReportFormatPDF:
		ext = "pdf"
		payload, err = export.NewPDFExporter().Render(data, fmt.Sprintf("%s report", job.Type))
	default:
		payload, err = export.NewCSVExporter().Render(data)
	}
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}

	relPath := fmt.Sprintf("%s/%s.%s", job.CreatedAt.UTC().Format("2006-01-02"), job.ID, ext)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}
	resultURL := fmt.Sprintf("/reports/download/%s", token)

	finished := models.ReportStatusFinished
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark report job finished: %w", err)
	}

	s.logger.Info("report finished", zap.String("job_id", job.ID), zap.String("path", relPath))
	return nil
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeCoverage:
		rows, err := s.coverage.CoverageRows(ctx, models.ChildFilter{
			Region:     job.Params.Region,
			Facilities: job.Params.Facilities,
		})
		if err != nil {
			return export.Dataset{}, fmt.Errorf("build coverage dataset: %w", err)
		}
		data := export.Dataset{Headers: []string{"region", "facility", "vaccine", "children", "doses"}}
		for _, row := range rows {
			if job.Params.Vaccine != "" && row.Vaccine != job.Params.Vaccine {
				continue
			}
			data.Rows = append(data.Rows, map[string]string{
				"region":   row.Region,
				"facility": row.Facility,
				"vaccine":  row.Vaccine,
				"children": strconv.Itoa(row.ChildrenTotal),
				"doses":    strconv.Itoa(row.DosesGiven),
			})
		}
		return data, nil

	case models.ReportTypeStock:
		data := export.Dataset{Headers: []string{"region", "facility", "vaccine", "doses_on_hand", "threshold"}}
		// Exports cover the whole scoped stock table, so page through the
		// repository rather than cutting off at one listing page.
		for page := 1; ; page++ {
			items, total, err := s.stock.List(ctx, models.StockFilter{
				Region:     job.Params.Region,
				Facilities: job.Params.Facilities,
				Vaccine:    job.Params.Vaccine,
				Page:       page,
				PageSize:   stockExportPageSize,
			})
			if err != nil {
				return export.Dataset{}, fmt.Errorf("build stock dataset: %w", err)
			}
			for _, item := range items {
				data.Rows = append(data.Rows, map[string]string{
					"region":        item.Region,
					"facility":      item.Facility,
					"vaccine":       item.Vaccine,
					"doses_on_hand": strconv.Itoa(item.DosesOnHand),
					"threshold":     strconv.Itoa(item.Threshold),
				})
			}
			if len(items) == 0 || len(data.Rows) >= total {
				break
			}
		}
		return data, nil
	}
	return export.Dataset{}, fmt.Errorf("unknown report type %q", job.Type)
}

func (s *ReportService) fail(ctx context.Context, jobID string, cause error) {
	failed := models.ReportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, jobID, repository.UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark report job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ReportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *ReportService) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.config.RetentionPeriod)
	jobsDone, err := s.repo.ListFinishedBefore(ctx, cutoff, 50)
	if err != nil {
		s.logger.Warn("report cleanup listing failed", zap.Error(err))
		return
	}
	removed, err := s.storage.CleanupOlderThan(s.config.RetentionPeriod)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(jobsDone) > 0 || len(removed) > 0 {
		s.logger.Info("report cleanup completed",
			zap.Int("expired_jobs", len(jobsDone)),
			zap.Int("removed_files", len(removed)))
	}
}
