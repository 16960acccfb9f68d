package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

func twoLevelData() models.SchoolData {
	data := seedData()
	data.Levels = append(data.Levels, models.Level{ID: "l2", Name: "Secondary"})
	data.Courses = append(data.Courses, models.Course{ID: "c2", Name: "1st ESO", LevelID: "l2"})
	data.Subjects = append(data.Subjects, models.Subject{ID: "s3", Name: "History", TeacherID: "t1", CourseID: "c2", HoursPerWeek: 2})
	return data
}

func TestNewStoreRejectsDuplicateIDs(t *testing.T) {
	data := seedData()
	data.Teachers = append(data.Teachers, models.Teacher{ID: "t1", Name: "Clone"})

	_, err := NewStore(data)
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestStoreRemoveLevelCascades(t *testing.T) {
	store, err := NewStore(twoLevelData())
	require.NoError(t, err)

	removal, err := store.RemoveLevel("l1")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, removal.LevelIDs)
	assert.Equal(t, []string{"c1"}, removal.CourseIDs)
	assert.ElementsMatch(t, []string{"s1", "s2"}, removal.SubjectIDs)

	snap := store.Snapshot()
	require.Len(t, snap.Levels, 1)
	require.Len(t, snap.Courses, 1)
	require.Len(t, snap.Subjects, 1)
	assert.Equal(t, "s3", snap.Subjects[0].ID)
	assert.Len(t, snap.Teachers, 2, "teachers are never removed by a level cascade")
	assert.Empty(t, CheckIntegrity(snap))
}

func TestStoreRemoveCourseCascades(t *testing.T) {
	store, err := NewStore(twoLevelData())
	require.NoError(t, err)

	removal, err := store.RemoveCourse("c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, removal.SubjectIDs)
	assert.Len(t, store.Snapshot().Subjects, 2)
}

func TestStoreRemoveTeacherOrphansSubjects(t *testing.T) {
	store, err := NewStore(seedData())
	require.NoError(t, err)

	removal, err := store.RemoveTeacher("t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, removal.OrphanedSubjectIDs)
	assert.Empty(t, removal.SubjectIDs)

	snap := store.Snapshot()
	assert.Len(t, snap.Subjects, 2, "orphaned subjects stay in the store")
	orphans := store.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, "s2", orphans[0].ID)
	assert.Equal(t, []string{"subject s2 references unknown teacher t2"}, CheckIntegrity(snap))
	assert.Empty(t, CheckStructure(snap))

	_, err = BuildModel(snap, DefaultGrid(), nil)
	require.Error(t, err)
	assert.True(t, IsModelBuildError(err))
}

func TestStoreWritesEnforceReferences(t *testing.T) {
	store, err := NewStore(seedData())
	require.NoError(t, err)

	err = store.AddCourse(models.Course{ID: "c9", LevelID: "missing"})
	assert.ErrorIs(t, err, ErrBrokenReference)

	err = store.AddSubject(models.Subject{ID: "s9", TeacherID: "t1", CourseID: "missing", HoursPerWeek: 1})
	assert.ErrorIs(t, err, ErrBrokenReference)

	err = store.AddSubject(models.Subject{ID: "s9", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 0})
	assert.ErrorIs(t, err, ErrInvalidEntity)

	err = store.AddTeacher(models.Teacher{ID: "t1"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = store.UpdateLevel(models.Level{ID: "nope"})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = store.RemoveSubject("nope")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestStoreUpdatesKeepIdentity(t *testing.T) {
	store, err := NewStore(seedData())
	require.NoError(t, err)

	require.NoError(t, store.UpdateTeacher(models.Teacher{ID: "t1", Name: "Ana G.", Specialty: "Maths"}))
	require.NoError(t, store.UpdateSubject(models.Subject{ID: "s1", Name: "Maths", TeacherID: "t2", CourseID: "c1", HoursPerWeek: 5}))

	snap := store.Snapshot()
	assert.Equal(t, "Ana G.", snap.Teachers[0].Name)
	assert.Equal(t, "t2", snap.Subjects[0].TeacherID)
	assert.Equal(t, 5, snap.Subjects[0].HoursPerWeek)
}

func TestSnapshotIsIsolated(t *testing.T) {
	store, err := NewStore(seedData())
	require.NoError(t, err)

	snap := store.Snapshot()
	snap.Subjects[0].HoursPerWeek = 99
	assert.Equal(t, 4, store.Snapshot().Subjects[0].HoursPerWeek)
}

// Deleting a level while stored assignments are not pruned leaves dangling references.
func TestCascadeLeavesDanglingAssignmentsUnlessPruned(t *testing.T) {
	data := twoLevelData()
	model := mustModel(t, data)
	outcome, err := Solve(testContext(t), model, SolveOptions{})
	require.NoError(t, err)
	require.True(t, outcome.Complete)
	stored := outcome.Assignments

	store, err := NewStore(data)
	require.NoError(t, err)
	removal, err := store.RemoveLevel("l1")
	require.NoError(t, err)

	pruned := mustModel(t, store.Snapshot())
	stale := Validate(pruned, stored)
	assert.Equal(t, StatusViolated, stale.Status)
	assert.Equal(t, 7, stale.Count(KindDanglingReference))
	for _, f := range stale.Findings {
		if f.Kind == KindDanglingReference {
			assert.Equal(t, RefSubject, f.RefKind)
			assert.Contains(t, []string{"s1", "s2"}, f.SubjectID)
		}
	}

	clean := Validate(pruned, PruneAssignments(stored, removal))
	assert.True(t, clean.Valid())
}

func TestCheckStructureFlagsCourseAndLevelReferences(t *testing.T) {
	data := seedData()
	data.Courses = append(data.Courses, data.Courses[0])
	data.Courses[0].LevelID = "missing"
	data.Subjects[1].CourseID = "nowhere"

	problems := CheckStructure(data)
	assert.Contains(t, problems, "duplicate course id c1")
	assert.Contains(t, problems, "course c1 references unknown level missing")
	assert.Contains(t, problems, "subject s2 references unknown course nowhere")
}

func TestCheckStructureFlagsNonPositiveHours(t *testing.T) {
	data := seedData()
	data.Subjects[0].HoursPerWeek = 0
	data.Subjects[1].HoursPerWeek = -2

	problems := CheckStructure(data)
	assert.Contains(t, problems, "subject s1 has non-positive hours_per_week 0")
	assert.Contains(t, problems, "subject s2 has non-positive hours_per_week -2")
	assert.NotEmpty(t, CheckIntegrity(data))
}
