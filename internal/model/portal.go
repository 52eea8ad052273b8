package model

// Class is one school year enrolment offered on the class selection page.
type Class struct {
	ID          int    `json:"id"`
	ExternalID  string `json:"-"`
	Label       string `json:"class"`
	Year        string `json:"year"`
	SchoolName  string `json:"school_name"`
	ClassMaster string `json:"classmaster"`
}

type Subject struct {
	ID         int      `json:"id"`
	Name       string   `json:"subject"`
	Professors []string `json:"professors"`
	Link       string   `json:"-"`
}

type Exam struct {
	Subject string `json:"subject"`
	Title   string `json:"test"`
	Date    int64  `json:"date"`
	Current bool   `json:"current"`
}

type AbsenceRecord struct {
	Period    int    `json:"period"`
	Subject   string `json:"subject"`
	Reason    string `json:"reason"`
	Justified bool   `json:"justified"`
}

// AbsenceDay groups the absences recorded under one date cell.
type AbsenceDay struct {
	Date     int64           `json:"date"`
	Absences []AbsenceRecord `json:"absences"`
}

type AbsenceOverview struct {
	Justified   int `json:"justified"`
	Unjustified int `json:"unjustified"`
	Awaiting    int `json:"awaiting"`
	Sum         int `json:"sum"`
	SumLeftover int `json:"sum_leftover"`
}
