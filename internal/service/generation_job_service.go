package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/jobs"
)

// GenerationJobType identifies generation jobs on the shared queue.
const GenerationJobType = "timetable.generate"

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error)
}

// GenerationJobConfig governs retention of finished jobs.
type GenerationJobConfig struct {
	Retention time.Duration
}

// GenerationJobService runs timetable generation in the background. Jobs of
// the same scope supersede each other.
type GenerationJobService struct {
	generator timetableGenerator
	queue     jobDispatcher
	logger    *zap.Logger
	cfg       GenerationJobConfig
	now       func() time.Time

	mu       sync.RWMutex
	jobs     map[string]*models.GenerationJob
	requests map[string]dto.GenerateTimetableRequest
}

// NewGenerationJobService constructs the service. The queue is attached with
// AttachQueue once the queue has been built around Handle.
func NewGenerationJobService(generator timetableGenerator, logger *zap.Logger, cfg GenerationJobConfig) *GenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	return &GenerationJobService{
		generator: generator,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		jobs:      make(map[string]*models.GenerationJob),
		requests:  make(map[string]dto.GenerateTimetableRequest),
	}
}

// AttachQueue sets the dispatcher used by Submit.
func (s *GenerationJobService) AttachQueue(queue jobDispatcher) {
	s.queue = queue
}

// Submit records a job and enqueues it, superseding queued or running jobs of the same scope.
func (s *GenerationJobService) Submit(ctx context.Context, req dto.GenerateTimetableRequest, actorID string) (*models.GenerationJob, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "generation queue is not running")
	}
	scope := strings.TrimSpace(req.Scope)
	if scope == "" {
		scope = dto.DefaultScope
	}
	req.Scope = scope

	now := s.now().UTC()
	job := &models.GenerationJob{
		ID:        uuid.NewString(),
		Scope:     scope,
		Status:    models.GenerationJobQueued,
		CreatedBy: actorID,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.pruneLocked(now)
	for _, prev := range s.jobs {
		if prev.Scope == scope && !prev.Status.Terminal() {
			s.finishLocked(prev, models.GenerationJobSuperseded, nil, jobs.ErrSuperseded.Error(), now)
		}
	}
	s.jobs[job.ID] = job
	s.requests[job.ID] = req
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: GenerationJobType, Key: scope}); err != nil {
		s.mu.Lock()
		s.finishLocked(job, models.GenerationJobFailed, nil, "failed to enqueue job", s.now().UTC())
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}
	s.logger.Sugar().Infow("generation job queued", "job_id", job.ID, "scope", scope)
	copied := *job
	return &copied, nil
}

// Handle is the queue handler. Failures are recorded on the job rather than retried.
func (s *GenerationJobService) Handle(ctx context.Context, job jobs.Job) error {
	s.mu.Lock()
	record, ok := s.jobs[job.ID]
	req := s.requests[job.ID]
	if !ok || record.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	record.Status = models.GenerationJobRunning
	s.mu.Unlock()

	proposal, err := s.generator.Generate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Status.Terminal() {
		return nil
	}
	now := s.now().UTC()
	switch {
	case err == nil:
		id := proposal.ProposalID
		s.finishLocked(record, models.GenerationJobSucceeded, &id, "", now)
		s.logger.Sugar().Infow("generation job finished", "job_id", job.ID, "proposal_id", id)
	case errors.Is(err, jobs.ErrSuperseded) || errors.Is(context.Cause(ctx), jobs.ErrSuperseded):
		s.finishLocked(record, models.GenerationJobSuperseded, nil, jobs.ErrSuperseded.Error(), now)
	default:
		s.finishLocked(record, models.GenerationJobFailed, nil, err.Error(), now)
		s.logger.Sugar().Warnw("generation job failed", "job_id", job.ID, "error", err)
	}
	return nil
}

// Get returns a job by id.
func (s *GenerationJobService) Get(_ context.Context, id string) (*models.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	copied := *job
	return &copied, nil
}

// List returns known jobs, newest first, optionally restricted to a scope.
func (s *GenerationJobService) List(_ context.Context, scope string) []models.GenerationJob {
	s.mu.Lock()
	s.pruneLocked(s.now().UTC())
	out := make([]models.GenerationJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if scope != "" && job.Scope != scope {
			continue
		}
		out = append(out, *job)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *GenerationJobService) finishLocked(job *models.GenerationJob, status models.GenerationJobStatus, proposalID *string, message string, at time.Time) {
	job.Status = status
	job.ProposalID = proposalID
	if message != "" {
		job.ErrorMessage = &message
	}
	finished := at
	job.FinishedAt = &finished
	delete(s.requests, job.ID)
}

func (s *GenerationJobService) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.cfg.Retention)
	for id, job := range s.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			delete(s.requests, id)
		}
	}
}
