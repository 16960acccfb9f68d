package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/repository"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type schoolDataStore interface {
	Load(ctx context.Context) (*models.SchoolData, error)
	Save(ctx context.Context, data models.SchoolData) error
}

type assignmentPruner interface {
	DeleteBySubjects(ctx context.Context, exec sqlx.ExtContext, subjectIDs []string) (int64, error)
}

type keyValueCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DomainConfig tunes the domain service.
type DomainConfig struct {
	SnapshotTTL time.Duration
	// SeedWhenEmpty installs the default structure on first load.
	SeedWhenEmpty bool
}

// DomainService owns the academic structure: levels, courses, teachers and
// subjects. Writes are serialized and always go through the referential checks
// of scheduler.Store before reaching the gateway.
type DomainService struct {
	store     schoolDataStore
	pruner    assignmentPruner
	cache     keyValueCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DomainConfig
	mu        sync.Mutex
}

// NewDomainService wires the domain dependencies. pruner and cache may be nil.
func NewDomainService(store schoolDataStore, pruner assignmentPruner, cache keyValueCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg DomainConfig) *DomainService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 5 * time.Minute
	}
	return &DomainService{
		store:     store,
		pruner:    pruner,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Snapshot returns the current school data.
func (s *DomainService) Snapshot(ctx context.Context) (*models.SchoolData, error) {
	if s.cache != nil {
		var cached models.SchoolData
		if hit, err := s.cache.Get(ctx, repository.SnapshotCacheKey, &cached); err == nil && hit {
			normalizeSchoolData(&cached)
			return &cached, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, data)
	return &data, nil
}

// Replace swaps the whole structure. Orphaned subjects are accepted; duplicate
// identifiers, unresolved course or level references and subjects without weekly
// hours are not.
func (s *DomainService) Replace(ctx context.Context, data models.SchoolData) (*models.SchoolData, error) {
	normalizeSchoolData(&data)
	if problems := scheduler.CheckStructure(data); len(problems) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "school data has integrity problems"), problems)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(ctx, data); err != nil {
		return nil, err
	}
	snapshot := data.Clone()
	normalizeSchoolData(&snapshot)
	return &snapshot, nil
}

// Orphans lists subjects whose teacher no longer exists.
func (s *DomainService) Orphans(ctx context.Context) ([]models.Subject, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	orphans := scheduler.Orphans(*data)
	if orphans == nil {
		orphans = []models.Subject{}
	}
	return orphans, nil
}

// ListLevels returns every level in stored order.
func (s *DomainService) ListLevels(ctx context.Context) ([]models.Level, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return data.Levels, nil
}

// CreateLevel adds a level.
func (s *DomainService) CreateLevel(ctx context.Context, req dto.LevelRequest) (*models.Level, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid level payload")
	}
	level := models.Level{ID: newEntityID(req.ID), Name: strings.TrimSpace(req.Name)}
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.AddLevel(level)
	}); err != nil {
		return nil, err
	}
	return &level, nil
}

// UpdateLevel renames a level.
func (s *DomainService) UpdateLevel(ctx context.Context, id string, req dto.LevelRequest) (*models.Level, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid level payload")
	}
	level := models.Level{ID: id, Name: strings.TrimSpace(req.Name)}
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.UpdateLevel(level)
	}); err != nil {
		return nil, err
	}
	return &level, nil
}

// DeleteLevel removes a level with its courses and their subjects.
func (s *DomainService) DeleteLevel(ctx context.Context, id string) (*dto.RemovalResponse, error) {
	return s.remove(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return store.RemoveLevel(id)
	})
}

// ListCourses returns courses, optionally restricted to one level.
func (s *DomainService) ListCourses(ctx context.Context, levelID string) ([]models.Course, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	courses := make([]models.Course, 0, len(data.Courses))
	for _, course := range data.Courses {
		if levelID == "" || course.LevelID == levelID {
			courses = append(courses, course)
		}
	}
	return courses, nil
}

// CreateCourse adds a course under an existing level.
func (s *DomainService) CreateCourse(ctx context.Context, req dto.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := models.Course{ID: newEntityID(req.ID), Name: strings.TrimSpace(req.Name), LevelID: req.LevelID}
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.AddCourse(course)
	}); err != nil {
		return nil, err
	}
	return &course, nil
}

// UpdateCourse renames or moves a course.
func (s *DomainService) UpdateCourse(ctx context.Context, id string, req dto.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := models.Course{ID: id, Name: strings.TrimSpace(req.Name), LevelID: req.LevelID}
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.UpdateCourse(course)
	}); err != nil {
		return nil, err
	}
	return &course, nil
}

// DeleteCourse removes a course and its subjects.
func (s *DomainService) DeleteCourse(ctx context.Context, id string) (*dto.RemovalResponse, error) {
	return s.remove(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return store.RemoveCourse(id)
	})
}

// ListTeachers returns every teacher in stored order.
func (s *DomainService) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return data.Teachers, nil
}

// CreateTeacher adds a teacher.
func (s *DomainService) CreateTeacher(ctx context.Context, req dto.TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher := models.Teacher{ID: newEntityID(req.ID), Name: strings.TrimSpace(req.Name), Specialty: strings.TrimSpace(req.Specialty)}
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.AddTeacher(teacher)
	}); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// UpdateTeacher changes a teacher's name or specialty.
func (s *DomainService) UpdateTeacher(ctx context.Context, id string, req dto.TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher := models.Teacher{ID: id, Name: strings.TrimSpace(req.Name), Specialty: strings.TrimSpace(req.Specialty)}
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.UpdateTeacher(teacher)
	}); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// DeleteTeacher removes a teacher. Subjects are kept and reported as orphaned.
func (s *DomainService) DeleteTeacher(ctx context.Context, id string) (*dto.RemovalResponse, error) {
	return s.remove(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return store.RemoveTeacher(id)
	})
}

// ListSubjects returns subjects filtered by course and teacher when set.
func (s *DomainService) ListSubjects(ctx context.Context, courseID, teacherID string) ([]models.Subject, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	subjects := make([]models.Subject, 0, len(data.Subjects))
	for _, sub := range data.Subjects {
		if courseID != "" && sub.CourseID != courseID {
			continue
		}
		if teacherID != "" && sub.TeacherID != teacherID {
			continue
		}
		subjects = append(subjects, sub)
	}
	return subjects, nil
}

// CreateSubject adds a subject.
func (s *DomainService) CreateSubject(ctx context.Context, req dto.SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject := subjectFromRequest(newEntityID(req.ID), req)
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.AddSubject(subject)
	}); err != nil {
		return nil, err
	}
	return &subject, nil
}

// UpdateSubject replaces a subject. Reassigning the teacher clears an orphan.
func (s *DomainService) UpdateSubject(ctx context.Context, id string, req dto.SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject := subjectFromRequest(id, req)
	if _, err := s.mutate(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return scheduler.Removal{}, store.UpdateSubject(subject)
	}); err != nil {
		return nil, err
	}
	return &subject, nil
}

// DeleteSubject removes a subject and its stored assignments.
func (s *DomainService) DeleteSubject(ctx context.Context, id string) (*dto.RemovalResponse, error) {
	return s.remove(ctx, func(store *scheduler.Store) (scheduler.Removal, error) {
		return store.RemoveSubject(id)
	})
}

func (s *DomainService) remove(ctx context.Context, fn func(*scheduler.Store) (scheduler.Removal, error)) (*dto.RemovalResponse, error) {
	removal, err := s.mutate(ctx, fn)
	if err != nil {
		return nil, err
	}
	resp := &dto.RemovalResponse{Removal: removal}
	if s.pruner == nil || len(removal.SubjectIDs) == 0 {
		return resp, nil
	}
	pruned, err := s.pruner.DeleteBySubjects(ctx, nil, removal.SubjectIDs)
	if err != nil {
		// stale rows surface as dangling references on revalidation
		s.logger.Warn("failed to prune stored assignments", zap.Strings("subjects", removal.SubjectIDs), zap.Error(err))
		return resp, nil
	}
	resp.PrunedAssignments = pruned
	if pruned > 0 {
		s.logger.Info("pruned stored assignments", zap.Strings("subjects", removal.SubjectIDs), zap.Int64("rows", pruned))
	}
	return resp, nil
}

func (s *DomainService) mutate(ctx context.Context, fn func(*scheduler.Store) (scheduler.Removal, error)) (scheduler.Removal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadLocked(ctx)
	if err != nil {
		return scheduler.Removal{}, err
	}
	store, err := scheduler.NewStore(data)
	if err != nil {
		return scheduler.Removal{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored school data is inconsistent")
	}
	removal, err := fn(store)
	if err != nil {
		return scheduler.Removal{}, mapStoreError(err)
	}
	if err := s.saveLocked(ctx, store.Snapshot()); err != nil {
		return scheduler.Removal{}, err
	}
	return removal, nil
}

func (s *DomainService) loadLocked(ctx context.Context) (models.SchoolData, error) {
	start := time.Now()
	data, err := s.store.Load(ctx)
	s.observe("school_data.load", start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.SchoolData{}, appErrors.Wrap(ctxErr, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "request cancelled")
		}
		return models.SchoolData{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school data")
	}
	if data != nil {
		normalizeSchoolData(data)
		return *data, nil
	}
	if !s.cfg.SeedWhenEmpty {
		empty := models.SchoolData{}
		normalizeSchoolData(&empty)
		return empty, nil
	}

	seed := scheduler.DefaultSchoolData()
	if err := s.saveLocked(ctx, seed); err != nil {
		return models.SchoolData{}, err
	}
	s.logger.Info("installed default school data", zap.Int("subjects", len(seed.Subjects)))
	return seed, nil
}

func (s *DomainService) saveLocked(ctx context.Context, data models.SchoolData) error {
	start := time.Now()
	err := s.store.Save(ctx, data)
	s.observe("school_data.save", start)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save school data")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, repository.SnapshotCacheKey); err != nil {
			s.logger.Warn("failed to invalidate snapshot cache", zap.Error(err))
		}
	}
	return nil
}

func (s *DomainService) remember(ctx context.Context, data models.SchoolData) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, repository.SnapshotCacheKey, data, s.cfg.SnapshotTTL); err != nil {
		s.logger.Debug("snapshot not cached", zap.Error(err))
	}
}

func (s *DomainService) observe(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrEntityNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, err.Error())
	case errors.Is(err, scheduler.ErrDuplicateID):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
	case errors.Is(err, scheduler.ErrBrokenReference), errors.Is(err, scheduler.ErrInvalidEntity):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school data")
	}
}

func subjectFromRequest(id string, req dto.SubjectRequest) models.Subject {
	return models.Subject{
		ID:           id,
		Name:         strings.TrimSpace(req.Name),
		TeacherID:    req.TeacherID,
		CourseID:     req.CourseID,
		HoursPerWeek: req.HoursPerWeek,
		Color:        req.Color,
	}
}

func newEntityID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	return uuid.NewString()
}

// normalizeSchoolData replaces nil collections so JSON renders empty arrays.
func normalizeSchoolData(data *models.SchoolData) {
	if data.Levels == nil {
		data.Levels = []models.Level{}
	}
	if data.Courses == nil {
		data.Courses = []models.Course{}
	}
	if data.Teachers == nil {
		data.Teachers = []models.Teacher{}
	}
	if data.Subjects == nil {
		data.Subjects = []models.Subject{}
	}
}
