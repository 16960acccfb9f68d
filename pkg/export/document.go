package export

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Document is a titled dataset with trailing notes.
type Document struct {
	Title    string
	Subtitle string
	Dataset  Dataset
	Notes    []string
}
