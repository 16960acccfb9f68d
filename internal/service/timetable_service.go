package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/repository"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/export"
	"github.com/noah-isme/eduschedule-api/pkg/jobs"
)

type schoolDataSource interface {
	Snapshot(ctx context.Context) (*models.SchoolData, error)
	Replace(ctx context.Context, data models.SchoolData) (*models.SchoolData, error)
}

type patternInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type schedulingEngine interface {
	Run(ctx context.Context, req scheduler.Request) (*scheduler.Result, error)
	Validate(data models.SchoolData, grid scheduler.Grid, assignments []models.Assignment) (scheduler.Report, error)
	Repair(data models.SchoolData, grid scheduler.Grid, candidate models.Schedule) (*scheduler.Result, error)
}

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	List(ctx context.Context, status models.TimetableStatus) ([]models.Timetable, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, keepID string) error
}

type timetableAssignmentRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, timetableID string, assignments []models.Assignment) error
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableAssignment, error)
	DeleteByTimetable(ctx context.Context, exec sqlx.ExtContext, timetableID string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableExporter interface {
	Export(ctx context.Context, resourceID string, format models.ExportFormat, doc export.Document) (*dto.ExportResponse, error)
}

// TimetableConfig governs generation and storage of timetables.
type TimetableConfig struct {
	Grid         scheduler.Grid
	ProposalTTL  time.Duration
	DefaultLabel string
}

// timetableMeta is the JSON stored alongside a timetable row.
type timetableMeta struct {
	ProposalID      string           `json:"proposal_id,omitempty"`
	Source          string           `json:"source,omitempty"`
	Steps           int              `json:"steps"`
	InitialFindings int              `json:"initial_findings"`
	Notes           []string         `json:"notes"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Validation      scheduler.Report `json:"validation"`
	ValidatedAt     time.Time        `json:"validated_at"`
	PublishedAt     *time.Time       `json:"published_at,omitempty"`
}

type inflightRun struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// TimetableService generates, validates, stores and publishes timetables.
type TimetableService struct {
	domain      schoolDataSource
	engine      schedulingEngine
	timetables  timetableRepository
	assignments timetableAssignmentRepository
	tx          txProvider
	cache       keyValueCache
	exporter    timetableExporter
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TimetableConfig
	proposals   *proposalStore

	mu       sync.Mutex
	seq      uint64
	inflight map[string]inflightRun
}

// NewTimetableService wires timetable dependencies. cache, exporter and
// metrics may be nil.
func NewTimetableService(
	domain schoolDataSource,
	engine schedulingEngine,
	timetables timetableRepository,
	assignments timetableAssignmentRepository,
	tx txProvider,
	cache keyValueCache,
	exporter timetableExporter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if len(cfg.Grid.Days) == 0 {
		cfg.Grid = scheduler.DefaultGrid()
	}
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = "timetable"
	}
	return &TimetableService{
		domain:      domain,
		engine:      engine,
		timetables:  timetables,
		assignments: assignments,
		tx:          tx,
		cache:       cache,
		exporter:    exporter,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		proposals:   newProposalStore(),
		inflight:    make(map[string]inflightRun),
	}
}

// Grid returns the weekly grid used by every run.
func (s *TimetableService) Grid() scheduler.Grid {
	return s.cfg.Grid
}

// Generate runs the engine and stores the outcome as a proposal. A newer
// request for the same scope cancels this one.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}
	mode, err := scheduler.ParseMode(req.Mode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	scope := strings.TrimSpace(req.Scope)
	if scope == "" {
		scope = dto.DefaultScope
	}

	runCtx, release := s.claim(ctx, scope)
	defer release()

	var data *models.SchoolData
	if req.Snapshot != nil {
		data, err = s.domain.Replace(runCtx, *req.Snapshot)
	} else {
		data, err = s.domain.Snapshot(runCtx)
	}
	if err != nil {
		return nil, err
	}
	if len(data.Courses) == 0 || len(data.Teachers) == 0 || len(data.Subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "add at least one course, teacher and subject before generating")
	}

	budget := scheduler.Budget{MaxSteps: req.MaxSteps, Timeout: time.Duration(req.TimeoutMs) * time.Millisecond}
	started := time.Now()
	result, err := s.engine.Run(runCtx, scheduler.Request{
		Data:   *data,
		Grid:   s.cfg.Grid,
		Pinned: req.Pinned,
		Mode:   mode,
		Budget: budget,
	})
	if err != nil {
		return nil, s.runError(runCtx, scope, err, time.Since(started))
	}
	s.recordRun(result)

	now := time.Now().UTC()
	proposal := dto.TimetableProposal{
		ProposalID:      uuid.NewString(),
		Scope:           scope,
		Schedule:        result.Schedule,
		Report:          result.Report,
		Source:          result.Source,
		Truncated:       result.Truncated,
		Unsatisfiable:   result.Unsatisfiable,
		Steps:           result.Steps,
		InitialFindings: result.InitialFindings,
		OracleError:     result.OracleError,
		DurationMs:      result.Duration.Milliseconds(),
		GeneratedAt:     now,
		ExpiresAt:       now.Add(s.cfg.ProposalTTL),
	}
	s.storeProposal(ctx, proposal)

	s.logger.Info("timetable generated",
		zap.String("proposal_id", proposal.ProposalID),
		zap.String("scope", scope),
		zap.String("source", proposal.Source),
		zap.String("status", string(proposal.Report.Status)),
		zap.Int("findings", len(proposal.Report.Findings)),
		zap.Int64("duration_ms", proposal.DurationMs),
	)
	return &proposal, nil
}

// GetProposal returns a proposal that has not expired yet.
func (s *TimetableService) GetProposal(ctx context.Context, id string) (*dto.TimetableProposal, error) {
	if proposal, ok := s.proposals.Get(id); ok {
		return &proposal, nil
	}
	if s.cache != nil {
		var cached dto.TimetableProposal
		hit, err := s.cache.Get(ctx, repository.ProposalCacheKey(id), &cached)
		if err == nil && hit && time.Now().Before(cached.ExpiresAt) {
			s.proposals.Save(cached)
			return &cached, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
}

// PurgeProposals drops every pending proposal, shared copies included.
func (s *TimetableService) PurgeProposals(ctx context.Context) (int, error) {
	dropped := s.proposals.Clear()
	if inv, ok := s.cache.(patternInvalidator); ok && s.cache != nil {
		if err := inv.Invalidate(ctx, repository.ProposalCachePattern); err != nil {
			return dropped, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge cached proposals")
		}
	}
	s.logger.Info("proposals purged", zap.Int("in_memory", dropped))
	return dropped, nil
}

// Validate checks assignments against the supplied or stored school data.
func (s *TimetableService) Validate(ctx context.Context, req dto.ValidateScheduleRequest) (*scheduler.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validation payload")
	}
	data, err := s.snapshotOr(ctx, req.Snapshot)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.Validate(*data, s.cfg.Grid, req.Assignments)
	if err != nil {
		return nil, modelError(err)
	}
	return &report, nil
}

// Repair fixes an externally produced candidate as far as possible.
func (s *TimetableService) Repair(ctx context.Context, req dto.RepairScheduleRequest) (*dto.RepairScheduleResponse, error) {
	data, err := s.snapshotOr(ctx, req.Snapshot)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.Repair(*data, s.cfg.Grid, req.Schedule)
	if err != nil {
		return nil, modelError(err)
	}
	return &dto.RepairScheduleResponse{
		Schedule:        result.Schedule,
		Report:          result.Report,
		InitialFindings: result.InitialFindings,
	}, nil
}

// Save persists a proposal as a new draft version. The proposal is checked
// again against the current school data; schedules with hard conflicts are refused.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (detail *models.TimetableDetail, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, err := s.GetProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	data, err := s.domain.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.Validate(*data, s.cfg.Grid, proposal.Schedule.Assignments)
	if err != nil {
		return nil, modelError(err)
	}
	if report.Status == scheduler.StatusViolated {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "proposal contains unresolved conflicts"), report.Findings)
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	now := time.Now().UTC()
	meta, err := encodeMeta(timetableMeta{
		ProposalID:      proposal.ProposalID,
		Source:          proposal.Source,
		Steps:           proposal.Steps,
		InitialFindings: proposal.InitialFindings,
		Notes:           proposal.Schedule.Notes,
		GeneratedAt:     proposal.GeneratedAt,
		Validation:      report,
		ValidatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = s.cfg.DefaultLabel
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record := &models.Timetable{Label: label, Status: models.TimetableStatusDraft, Meta: meta}
	if err = s.timetables.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
		return nil, err
	}
	if err = s.assignments.InsertBatch(ctx, tx, record.ID, proposal.Schedule.Assignments); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable assignments")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}

	s.dropProposal(ctx, proposal.ProposalID)
	s.logger.Info("timetable saved", zap.String("timetable_id", record.ID), zap.String("label", record.Label), zap.Int("version", record.Version))
	return &models.TimetableDetail{Timetable: *record, Schedule: proposal.Schedule.Clone()}, nil
}

// List returns stored timetables, newest first.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable filter")
	}
	items, err := s.timetables.List(ctx, models.TimetableStatus(query.Status))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	page, size := query.Page, query.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a stored timetable with its schedule.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableDetail, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.assignments.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable assignments")
	}
	schedule := models.Schedule{Assignments: make([]models.Assignment, 0, len(rows)), Notes: []string{}}
	for _, row := range rows {
		schedule.Assignments = append(schedule.Assignments, row.ToAssignment())
	}
	if meta, ok := decodeMeta(record.Meta); ok && meta.Notes != nil {
		schedule.Notes = meta.Notes
	}
	return &models.TimetableDetail{Timetable: *record, Schedule: schedule}, nil
}

// Revalidate checks a stored timetable against the current school data.
func (s *TimetableService) Revalidate(ctx context.Context, id string) (*dto.RevalidationResponse, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := s.validateAgainstCurrent(ctx, detail.Schedule.Assignments)
	if err != nil {
		return nil, err
	}
	return &dto.RevalidationResponse{TimetableID: id, Report: report, CheckedAt: time.Now().UTC()}, nil
}

// Publish marks a timetable as the published one and archives the previous.
// Only schedules that are fully valid against the current data qualify.
func (s *TimetableService) Publish(ctx context.Context, id string) (result *models.Timetable, err error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch detail.Status {
	case models.TimetableStatusPublished:
		return &detail.Timetable, nil
	case models.TimetableStatusArchived:
		return nil, appErrors.Clone(appErrors.ErrConflict, "archived timetables cannot be published")
	}

	report, err := s.validateAgainstCurrent(ctx, detail.Schedule.Assignments)
	if err != nil {
		return nil, err
	}
	if !report.Valid() {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("timetable is %s against the current school data", report.Status)), report.Findings)
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	meta, _ := decodeMeta(detail.Meta)
	now := time.Now().UTC()
	meta.Validation = report
	meta.ValidatedAt = now
	meta.PublishedAt = &now
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.timetables.ArchivePublished(ctx, tx, id); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive published timetables")
		return nil, err
	}
	if err = s.timetables.UpdateStatus(ctx, tx, id, models.TimetableStatusPublished, metaJSON); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable status")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}

	published := detail.Timetable
	published.Status = models.TimetableStatusPublished
	published.Meta = metaJSON
	published.UpdatedAt = now
	s.logger.Info("timetable published", zap.String("timetable_id", id), zap.Int("version", published.Version))
	return &published, nil
}

// Delete removes a draft timetable.
func (s *TimetableService) Delete(ctx context.Context, id string) (err error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.assignments.DeleteByTimetable(ctx, tx, id); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable assignments")
		return err
	}
	if err = s.timetables.Delete(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return err
	}
	return nil
}

// View projects a stored timetable onto the grid.
func (s *TimetableService) View(ctx context.Context, id string, query dto.ViewQuery) (*dto.TimetableView, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.domain.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	view := buildView(s.cfg.Grid, *data, detail.Schedule, query)
	view.TimetableID = id
	return &view, nil
}

// ProposalView projects a proposal onto the grid.
func (s *TimetableService) ProposalView(ctx context.Context, proposalID string, query dto.ViewQuery) (*dto.TimetableView, error) {
	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	data, err := s.domain.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	view := buildView(s.cfg.Grid, *data, proposal.Schedule, query)
	return &view, nil
}

// Export renders a stored timetable view as CSV or PDF.
func (s *TimetableService) Export(ctx context.Context, id string, req dto.ExportTimetableRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if s.exporter == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "exports are not configured")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.domain.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	view := buildView(s.cfg.Grid, *data, detail.Schedule, dto.ViewQuery{CourseID: req.CourseID, TeacherID: req.TeacherID})
	heading := fmt.Sprintf("%s v%d (%s)", detail.Label, detail.Version, detail.Status)
	doc := viewDocument(view, heading, detail.Schedule.Notes)

	result, err := s.exporter.Export(ctx, id, models.ExportFormat(req.Format), doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export timetable")
	}
	return result, nil
}

func (s *TimetableService) claim(ctx context.Context, scope string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	s.mu.Lock()
	s.seq++
	id := s.seq
	if prev, ok := s.inflight[scope]; ok {
		prev.cancel(jobs.ErrSuperseded)
		s.logger.Info("generation superseded", zap.String("scope", scope))
	}
	s.inflight[scope] = inflightRun{id: id, cancel: cancel}
	s.mu.Unlock()

	return runCtx, func() {
		s.mu.Lock()
		if cur, ok := s.inflight[scope]; ok && cur.id == id {
			delete(s.inflight, scope)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

func (s *TimetableService) runError(ctx context.Context, scope string, err error, elapsed time.Duration) error {
	var buildErr *scheduler.ModelBuildError
	switch {
	case errors.As(err, &buildErr):
		s.metrics.RecordSchedulerRun(SchedulerRun{Outcome: OutcomeInvalidModel, Duration: elapsed})
		return modelError(err)
	case errors.Is(context.Cause(ctx), jobs.ErrSuperseded):
		return appErrors.Wrap(jobs.ErrSuperseded, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "generation superseded by a newer request for scope "+scope)
	case ctx.Err() != nil:
		return appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "generation cancelled")
	default:
		s.metrics.RecordSchedulerRun(SchedulerRun{Outcome: OutcomeError, Duration: elapsed})
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
	}
}

func (s *TimetableService) recordRun(result *scheduler.Result) {
	outcome := string(result.Report.Status)
	switch {
	case result.Unsatisfiable != nil:
		outcome = OutcomeUnsatisfiable
	case result.Truncated:
		outcome = OutcomeTruncated
	}
	s.metrics.RecordSchedulerRun(SchedulerRun{
		Source:         result.Source,
		Outcome:        outcome,
		Duration:       result.Duration,
		Steps:          result.Steps,
		Findings:       len(result.Report.Findings),
		OracleFallback: result.OracleError != "",
	})
}

func (s *TimetableService) storeProposal(ctx context.Context, proposal dto.TimetableProposal) {
	s.proposals.Save(proposal)
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, repository.ProposalCacheKey(proposal.ProposalID), proposal, s.cfg.ProposalTTL); err != nil {
		s.logger.Debug("proposal not shared through cache", zap.String("proposal_id", proposal.ProposalID), zap.Error(err))
	}
}

func (s *TimetableService) dropProposal(ctx context.Context, id string) {
	s.proposals.Delete(id)
	if s.cache != nil {
		_ = s.cache.Delete(ctx, repository.ProposalCacheKey(id))
	}
}

func (s *TimetableService) snapshotOr(ctx context.Context, supplied *models.SchoolData) (*models.SchoolData, error) {
	if supplied != nil {
		return supplied, nil
	}
	return s.domain.Snapshot(ctx)
}

func (s *TimetableService) validateAgainstCurrent(ctx context.Context, assignments []models.Assignment) (scheduler.Report, error) {
	data, err := s.domain.Snapshot(ctx)
	if err != nil {
		return scheduler.Report{}, err
	}
	report, err := s.engine.Validate(*data, s.cfg.Grid, assignments)
	if err != nil {
		return scheduler.Report{}, modelError(err)
	}
	return report, nil
}

func (s *TimetableService) find(ctx context.Context, id string) (*models.Timetable, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

// modelError maps engine failures that are not run outcomes.
func modelError(err error) error {
	var buildErr *scheduler.ModelBuildError
	if errors.As(err, &buildErr) {
		return appErrors.WithDetails(appErrors.Wrap(err, appErrors.ErrInvalidModel.Code, appErrors.ErrInvalidModel.Status, appErrors.ErrInvalidModel.Message), buildErr.Problems)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule check failed")
}

func encodeMeta(meta timetableMeta) (types.JSONText, error) {
	if meta.Notes == nil {
		meta.Notes = []string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}
	return types.JSONText(raw), nil
}

func decodeMeta(raw types.JSONText) (timetableMeta, bool) {
	var meta timetableMeta
	if len(raw) == 0 {
		return meta, false
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return timetableMeta{}, false
	}
	return meta, true
}
