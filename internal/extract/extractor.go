// Package extract turns portal pages into domain records.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

type Kind string

const (
	KindClasses         Kind = "classes"
	KindSubjects        Kind = "subjects"
	KindGrades          Kind = "grades"
	KindAverage         Kind = "average"
	KindExams           Kind = "exams"
	KindAbsenceOverview Kind = "absence_overview"
	KindAbsences        Kind = "absences"
)

// Record is the result of extracting one page.
type Record interface {
	Kind() Kind
}

// Extractor is the only component that knows the portal's markup.
type Extractor interface {
	Extract(html []byte, kind Kind) (Record, error)
}

type ClassList []model.Class

type SubjectList []model.Subject

type GradeList struct {
	Grades []model.Grade
	Notes  []model.Note
}

// AverageRecord holds the finalized grade when the portal shows one, and the
// mean of the grades otherwise. Value is nil for a subject without grades.
type AverageRecord struct {
	Value     *float64
	Finalized bool
}

type ExamList []model.Exam

type OverviewRecord struct {
	model.AbsenceOverview
}

type AbsenceList []model.AbsenceDay

func (ClassList) Kind() Kind      { return KindClasses }
func (SubjectList) Kind() Kind    { return KindSubjects }
func (GradeList) Kind() Kind      { return KindGrades }
func (AverageRecord) Kind() Kind  { return KindAverage }
func (ExamList) Kind() Kind       { return KindExams }
func (OverviewRecord) Kind() Kind { return KindAbsenceOverview }
func (AbsenceList) Kind() Kind    { return KindAbsences }

// HTML extracts records with goquery. Dates are interpreted in loc.
type HTML struct {
	loc *time.Location
}

func NewHTML(loc *time.Location) *HTML {
	if loc == nil {
		loc = time.Local
	}
	return &HTML{loc: loc}
}

func (x *HTML) Extract(html []byte, kind Kind) (Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, &errors.ParseError{Kind: string(kind), Field: "document", Snippet: snippet(string(html)), Err: err}
	}

	switch kind {
	case KindClasses:
		return x.classes(doc)
	case KindSubjects:
		return x.subjects(doc)
	case KindGrades:
		return x.grades(doc)
	case KindAverage:
		return x.average(doc)
	case KindExams:
		return x.exams(doc)
	case KindAbsenceOverview:
		return x.absenceOverview(doc)
	case KindAbsences:
		return x.absences(doc)
	}

	return nil, fmt.Errorf("unknown record kind %q", kind)
}

const snippetLimit = 240

func snippet(s string) string {
	return errors.Truncate(strings.TrimSpace(s), snippetLimit)
}

func selectionSnippet(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return snippet(sel.Text())
	}
	return snippet(html)
}

func parseErr(kind Kind, field string, sel *goquery.Selection, err error) error {
	pe := &errors.ParseError{Kind: string(kind), Field: field, Err: err}
	if sel != nil {
		pe.Snippet = selectionSnippet(sel)
	}
	return pe
}

// segments replaces <br> with a separator and splits the resulting text.
func segments(sel *goquery.Selection) []string {
	sel.Find("br").ReplaceWithHtml("|")
	return strings.Split(sel.Text(), "|")
}

// cellTexts collects the trimmed text of every cell in sel.
func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, td *goquery.Selection) {
		out = append(out, strings.TrimSpace(td.Text()))
	})
	return out
}
