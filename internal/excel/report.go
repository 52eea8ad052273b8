package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	SheetSubjects = "Subjects"
	SheetGrades   = "Grades"
	SheetTests    = "Tests"
	SheetAbsences = "Absences"
)

type ReportWriter struct {
	loc *time.Location
}

func NewReportWriter(loc *time.Location) *ReportWriter {
	if loc == nil {
		loc = time.Local
	}
	return &ReportWriter{loc: loc}
}

// Write renders one class aggregate as an xlsx workbook.
func (w *ReportWriter) Write(agg *model.ClassAggregate) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetSubjects); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetGrades, SheetTests, SheetAbsences} {
		if _, err := file.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := map[string][][]interface{}{
		SheetSubjects: w.subjectRows(agg),
		SheetGrades:   w.gradeRows(agg),
		SheetTests:    w.testRows(agg),
		SheetAbsences: w.absenceRows(agg),
	}
	for sheet, rows := range sheets {
		if err := writeRows(file, sheet, rows, bold); err != nil {
			return nil, err
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(file *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 {
		if err := file.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}
	return nil
}

func (w *ReportWriter) subjectRows(agg *model.ClassAggregate) [][]interface{} {
	rows := [][]interface{}{{"Subject", "Professors", "Average", "Finalized", "Grades"}}
	for _, s := range agg.Subjects {
		var avg interface{} = ""
		if s.Average != nil {
			avg = *s.Average
		}
		rows = append(rows, []interface{}{s.Name, strings.Join(s.Professors, ", "), avg, s.Finalized, len(s.Grades)})
	}
	if agg.ClassAverage != nil {
		rows = append(rows, []interface{}{"Overall", "", *agg.ClassAverage, "", ""})
	}
	return rows
}

func (w *ReportWriter) gradeRows(agg *model.ClassAggregate) [][]interface{} {
	rows := [][]interface{}{{"Subject", "Date", "Note", "Grade"}}
	for _, s := range agg.Subjects {
		for _, g := range s.Grades {
			rows = append(rows, []interface{}{s.Name, w.date(g.Date), g.Note, g.Value})
		}
	}
	return rows
}

func (w *ReportWriter) testRows(agg *model.ClassAggregate) [][]interface{} {
	rows := [][]interface{}{{"Subject", "Test", "Date", "Upcoming"}}
	for _, e := range agg.Exams {
		rows = append(rows, []interface{}{e.Subject, e.Title, w.date(e.Date), e.Current})
	}
	return rows
}

func (w *ReportWriter) absenceRows(agg *model.ClassAggregate) [][]interface{} {
	rows := [][]interface{}{{"Date", "Period", "Subject", "Reason", "Justified"}}
	for _, day := range agg.Absences {
		for _, a := range day.Absences {
			rows = append(rows, []interface{}{w.date(day.Date), a.Period, a.Subject, a.Reason, a.Justified})
		}
	}
	return rows
}

func (w *ReportWriter) date(ts int64) string {
	return time.Unix(ts, 0).In(w.loc).Format("02.01.2006.")
}
