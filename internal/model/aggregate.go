package model

import "time"

// ClassAggregate is the result of one aggregation run over a class.
type ClassAggregate struct {
	Class           Class            `json:"class"`
	Subjects        []SubjectData    `json:"subjects"`
	ClassAverage    *float64         `json:"class_average"`
	Exams           []Exam           `json:"tests"`
	AbsenceOverview *AbsenceOverview `json:"absence_overview"`
	Absences        []AbsenceDay     `json:"absences"`
	Errors          []string         `json:"errors,omitempty"`
	FetchedAt       time.Time        `json:"fetched_at"`
	Complete        bool             `json:"complete"`
	// Partial is set when some pages failed and their fields were left empty.
	Partial         bool             `json:"partial"`
}

// Subject returns the subject with the given id.
func (a *ClassAggregate) Subject(id int) (*SubjectData, bool) {
	if id < 0 || id >= len(a.Subjects) {
		return nil, false
	}
	return &a.Subjects[id], true
}
