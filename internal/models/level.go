package models

// Level groups the courses of one educational stage (e.g. primary, secondary).
type Level struct {
	ID   string `db:"id" json:"id" yaml:"id"`
	Name string `db:"name" json:"name" yaml:"name"`
}

// Course is a single indivisible group of students attached to a level.
type Course struct {
	ID      string `db:"id" json:"id" yaml:"id"`
	Name    string `db:"name" json:"name" yaml:"name"`
	LevelID string `db:"level_id" json:"level_id" yaml:"level_id"`
}
