package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	"github.com/noah-isme/eduschedule-api/pkg/export"
)

const breakCellLabel = "Break"

type viewIndex struct {
	subjects map[string]models.Subject
	teachers map[string]models.Teacher
	courses  map[string]models.Course
}

func newViewIndex(data models.SchoolData) viewIndex {
	idx := viewIndex{
		subjects: make(map[string]models.Subject, len(data.Subjects)),
		teachers: make(map[string]models.Teacher, len(data.Teachers)),
		courses:  make(map[string]models.Course, len(data.Courses)),
	}
	for _, sub := range data.Subjects {
		idx.subjects[sub.ID] = sub
	}
	for _, t := range data.Teachers {
		idx.teachers[t.ID] = t
	}
	for _, c := range data.Courses {
		idx.courses[c.ID] = c
	}
	return idx
}

// buildView projects a schedule onto the grid, keeping only the assignments of
// the requested course and teacher when those are set. Assignments whose
// subject no longer resolves are kept for the teacher filter only.
func buildView(grid scheduler.Grid, data models.SchoolData, schedule models.Schedule, query dto.ViewQuery) dto.TimetableView {
	idx := newViewIndex(data)
	view := dto.TimetableView{
		Title:     viewTitle(idx, query),
		CourseID:  query.CourseID,
		TeacherID: query.TeacherID,
		Days:      append([]string(nil), grid.Days...),
		Rows:      make([]dto.ViewRow, len(grid.Hours)),
	}

	cells := make(map[string]map[int][]dto.ViewEntry)
	for _, a := range schedule.Assignments {
		sub, known := idx.subjects[a.SubjectID]
		if query.CourseID != "" && (!known || sub.CourseID != query.CourseID) {
			continue
		}
		if query.TeacherID != "" && a.TeacherID != query.TeacherID {
			continue
		}
		entry := dto.ViewEntry{
			AssignmentID: a.ID,
			SubjectID:    a.SubjectID,
			SubjectName:  sub.Name,
			TeacherID:    a.TeacherID,
			TeacherName:  idx.teachers[a.TeacherID].Name,
			CourseID:     sub.CourseID,
			CourseName:   idx.courses[sub.CourseID].Name,
			Color:        sub.Color,
			Pinned:       a.Pinned,
		}
		if cells[a.Day] == nil {
			cells[a.Day] = make(map[int][]dto.ViewEntry)
		}
		cells[a.Day][a.HourIndex] = append(cells[a.Day][a.HourIndex], entry)
	}

	for hour := range grid.Hours {
		row := dto.ViewRow{
			HourIndex: hour,
			Label:     grid.HourLabel(hour),
			IsBreak:   grid.IsBreak(hour),
			Cells:     make([]dto.ViewCell, len(grid.Days)),
		}
		for d, day := range grid.Days {
			entries := cells[day][hour]
			if entries == nil {
				entries = []dto.ViewEntry{}
			}
			row.Cells[d] = dto.ViewCell{Day: day, Entries: entries}
		}
		view.Rows[hour] = row
	}
	return view
}

func viewTitle(idx viewIndex, query dto.ViewQuery) string {
	var parts []string
	if query.CourseID != "" {
		name := idx.courses[query.CourseID].Name
		if name == "" {
			name = query.CourseID
		}
		parts = append(parts, "Course "+name)
	}
	if query.TeacherID != "" {
		name := idx.teachers[query.TeacherID].Name
		if name == "" {
			name = query.TeacherID
		}
		parts = append(parts, "Teacher "+name)
	}
	if len(parts) == 0 {
		return "All courses"
	}
	return strings.Join(parts, " / ")
}

// viewDocument lays a view out as one row per hour block and one column per day.
func viewDocument(view dto.TimetableView, heading string, notes []string) export.Document {
	headers := append([]string{"Hour"}, view.Days...)
	rows := make([]map[string]string, 0, len(view.Rows))
	for _, row := range view.Rows {
		record := map[string]string{"Hour": row.Label}
		for _, cell := range row.Cells {
			if row.IsBreak {
				record[cell.Day] = breakCellLabel
				continue
			}
			labels := make([]string, 0, len(cell.Entries))
			for _, entry := range cell.Entries {
				labels = append(labels, entryLabel(entry, view))
			}
			record[cell.Day] = strings.Join(labels, " | ")
		}
		rows = append(rows, record)
	}
	return export.Document{
		Title:    heading,
		Subtitle: view.Title,
		Dataset:  export.Dataset{Headers: headers, Rows: rows},
		Notes:    notes,
	}
}

func entryLabel(entry dto.ViewEntry, view dto.TimetableView) string {
	subject := entry.SubjectName
	if subject == "" {
		subject = entry.SubjectID
	}
	switch {
	case view.CourseID != "" && view.TeacherID == "":
		return fmt.Sprintf("%s (%s)", subject, fallback(entry.TeacherName, entry.TeacherID))
	case view.TeacherID != "" && view.CourseID == "":
		return fmt.Sprintf("%s (%s)", subject, fallback(entry.CourseName, entry.CourseID))
	case view.CourseID != "":
		return subject
	default:
		return fmt.Sprintf("%s (%s, %s)", subject, fallback(entry.CourseName, entry.CourseID), fallback(entry.TeacherName, entry.TeacherID))
	}
}

func fallback(value, alt string) string {
	if value != "" {
		return value
	}
	if alt != "" {
		return alt
	}
	return "?"
}
