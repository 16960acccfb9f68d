package models

// Teacher represents an instructor that can be booked into timetable slots.
type Teacher struct {
	ID        string `db:"id" json:"id" yaml:"id"`
	Name      string `db:"name" json:"name" yaml:"name"`
	Specialty string `db:"specialty" json:"specialty" yaml:"specialty"`
}
