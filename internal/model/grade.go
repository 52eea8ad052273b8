package model

// Grade is a single graded entry of a subject. Date is Unix seconds of local
// midnight; Value is in 1..5.
type Grade struct {
	Date  int64  `json:"date"`
	Note  string `json:"note"`
	Value int    `json:"grade"`
}

// Note is a grade-table row without a grade.
type Note struct {
	Date int64  `json:"date"`
	Note string `json:"note"`
}

// SubjectData holds the per-subject fetch results. Grades and Average stay
// nil when their fetch failed; the matching *Error field holds the reason.
type SubjectData struct {
	Subject
	Grades       []Grade  `json:"grades"`
	Notes        []Note   `json:"notes,omitempty"`
	Average      *float64 `json:"average"`
	Finalized    bool     `json:"finalized"`
	GradesError  string   `json:"grades_error,omitempty"`
	AverageError string   `json:"average_error,omitempty"`
}
