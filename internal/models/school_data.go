package models

// SchoolData is the full academic structure handed to the scheduling engine.
type SchoolData struct {
	Levels   []Level   `json:"levels" yaml:"levels"`
	Courses  []Course  `json:"courses" yaml:"courses"`
	Teachers []Teacher `json:"teachers" yaml:"teachers"`
	Subjects []Subject `json:"subjects" yaml:"subjects"`
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (d SchoolData) Clone() SchoolData {
	return SchoolData{
		Levels:   append([]Level(nil), d.Levels...),
		Courses:  append([]Course(nil), d.Courses...),
		Teachers: append([]Teacher(nil), d.Teachers...),
		Subjects: append([]Subject(nil), d.Subjects...),
	}
}

// IsEmpty reports whether no entity of any kind is defined.
func (d SchoolData) IsEmpty() bool {
	return len(d.Levels) == 0 && len(d.Courses) == 0 && len(d.Teachers) == 0 && len(d.Subjects) == 0
}
