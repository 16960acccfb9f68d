package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

func TestBuildModelCreatesOneVariablePerOccurrence(t *testing.T) {
	model := mustModel(t, seedData())

	require.Len(t, model.Variables, 7)
	assert.Equal(t, "s1#1", model.Variables[0].ID)
	assert.Equal(t, "s2#3", model.Variables[6].ID)
	for i, v := range model.Variables {
		assert.Len(t, v.Domain, 30)
		// every other occurrence shares the course.
		assert.Len(t, model.Neighbors[i], 6)
	}
}

func TestBuildModelRejectsZeroHours(t *testing.T) {
	data := seedData()
	data.Subjects[1].HoursPerWeek = 0

	_, err := BuildModel(data, DefaultGrid(), nil)
	require.Error(t, err)
	var buildErr *ModelBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Error(), "s2")
}

func TestBuildModelRejectsUnresolvedReferences(t *testing.T) {
	data := seedData()
	data.Subjects[0].TeacherID = "ghost"
	data.Subjects[1].CourseID = "nowhere"
	data.Courses = append(data.Courses, models.Course{ID: "c2", LevelID: "gone"})

	_, err := BuildModel(data, DefaultGrid(), nil)
	var buildErr *ModelBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Len(t, buildErr.Problems, 3)
}

func TestBuildModelRejectsGridWithoutSlots(t *testing.T) {
	grid := Grid{Days: []string{"Mon"}, Hours: []string{"break"}, BreakIndex: 0}

	_, err := BuildModel(seedData(), grid, nil)
	require.Error(t, err)
	assert.True(t, IsModelBuildError(err))
}

func TestBuildModelRejectsDuplicateIdentities(t *testing.T) {
	data := seedData()
	data.Subjects = append(data.Subjects, data.Subjects[0])

	_, err := BuildModel(data, DefaultGrid(), nil)
	assert.True(t, IsModelBuildError(err))
}

func TestBuildModelPinnedAssignmentsShrinkSharingDomains(t *testing.T) {
	data := seedData()
	data.Courses = append(data.Courses, models.Course{ID: "c2", Name: "2nd A", LevelID: "l1"})
	data.Teachers = append(data.Teachers, models.Teacher{ID: "t3"})
	data.Subjects = append(data.Subjects, models.Subject{ID: "s3", TeacherID: "t3", CourseID: "c2", HoursPerWeek: 1})

	model := mustModel(t, data, models.Assignment{ID: "s1#1", Day: "Monday", HourIndex: 0, SubjectID: "s1"})

	require.Len(t, model.Pinned, 1)
	assert.Equal(t, "t1", model.Pinned[0].TeacherID, "teacher is derived from the subject")
	assert.Equal(t, 7, model.OccurrenceCount())

	monday0, _ := model.Grid.cellOf("Monday", 0)
	for _, v := range model.Variables {
		switch v.SubjectID {
		case "s3":
			assert.Contains(t, v.Domain, monday0, "unrelated course keeps the pinned slot")
		default:
			assert.NotContains(t, v.Domain, monday0)
		}
	}
	ids := make([]string, 0)
	for _, v := range model.Variables {
		if v.SubjectID == "s1" {
			ids = append(ids, v.ID)
		}
	}
	assert.Equal(t, []string{"s1#2", "s1#3", "s1#4"}, ids)
}

func TestBuildModelRejectsBadPins(t *testing.T) {
	cases := map[string][]models.Assignment{
		"unknown subject": {{ID: "x", Day: "Monday", HourIndex: 0, SubjectID: "zz"}},
		"break":           {{ID: "x", Day: "Monday", HourIndex: 3, SubjectID: "s1"}},
		"outside grid":    {{ID: "x", Day: "Sunday", HourIndex: 0, SubjectID: "s1"}},
		"clash": {
			{ID: "x", Day: "Monday", HourIndex: 0, SubjectID: "s1"},
			{ID: "y", Day: "Monday", HourIndex: 0, SubjectID: "s2"},
		},
		"too many": {
			{Day: "Monday", HourIndex: 0, SubjectID: "s2"},
			{Day: "Monday", HourIndex: 1, SubjectID: "s2"},
			{Day: "Monday", HourIndex: 2, SubjectID: "s2"},
			{Day: "Monday", HourIndex: 4, SubjectID: "s2"},
		},
	}
	for name, pins := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildModel(seedData(), DefaultGrid(), pins)
			assert.True(t, IsModelBuildError(err))
		})
	}
}
