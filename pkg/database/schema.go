package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// The statements are kept to the subset shared by PostgreSQL and SQLite.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS levels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		level_id TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		specialty TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		hours_per_week INTEGER NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS timetables (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		version INTEGER NOT NULL,
		status TEXT NOT NULL,
		meta TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS timetable_assignments (
		id TEXT NOT NULL,
		timetable_id TEXT NOT NULL REFERENCES timetables(id) ON DELETE CASCADE,
		day TEXT NOT NULL,
		hour_index INTEGER NOT NULL,
		subject_id TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (timetable_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_assignments_subject ON timetable_assignments (subject_id)`,
}

// EnsureSchema creates the tables used by the repositories when missing.
func EnsureSchema(db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
