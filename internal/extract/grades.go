package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bs3vcenk/Netrix-sub000/internal/dates"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/PuerkitoBio/goquery"
)

const noGradesPlaceholder = "Nema ostalih bilježaka"

var finalGradeRe = regexp.MustCompile(`\((.*)\)`)

func (x *HTML) grades(doc *goquery.Document) (GradeList, error) {
	cells := doc.Find("div.grades table#grade_notes td")
	texts := cellTexts(cells)

	out := GradeList{Grades: []model.Grade{}, Notes: []model.Note{}}
	if len(texts) == 0 || texts[0] == noGradesPlaceholder {
		return out, nil
	}
	if len(texts)%3 != 0 {
		return GradeList{}, parseErr(KindGrades, "row", cells.Parent(), fmt.Errorf("%d cells do not form date/note/grade rows", len(texts)))
	}

	for i := 0; i < len(texts); i += 3 {
		row := cells.Slice(i, i+3)

		date, err := dates.ParseIn(texts[i], x.loc)
		if err != nil {
			return GradeList{}, parseErr(KindGrades, "date", row, err)
		}

		note := texts[i+1]
		if texts[i+2] == "" {
			out.Notes = append(out.Notes, model.Note{Date: date, Note: note})
			continue
		}

		value, err := strconv.Atoi(texts[i+2])
		if err != nil {
			return GradeList{}, parseErr(KindGrades, "value", row, err)
		}
		if value < 1 || value > 5 {
			return GradeList{}, parseErr(KindGrades, "value", row, fmt.Errorf("grade %d out of range", value))
		}

		out.Grades = append(out.Grades, model.Grade{Date: date, Note: note, Value: value})
	}

	return out, nil
}

func (x *HTML) average(doc *goquery.Document) (AverageRecord, error) {
	final := doc.Find(`td[colspan="6"]`)
	if m := finalGradeRe.FindStringSubmatch(final.Text()); m != nil {
		value, err := strconv.Atoi(strings.TrimSpace(m[1]))
		if err != nil {
			return AverageRecord{}, parseErr(KindAverage, "final_grade", final, err)
		}
		avg := float64(value)
		return AverageRecord{Value: &avg, Finalized: true}, nil
	}

	list, err := x.grades(doc)
	if err != nil {
		return AverageRecord{}, err
	}

	avg, ok := Mean(list.Grades)
	if !ok {
		return AverageRecord{}, nil
	}
	return AverageRecord{Value: &avg}, nil
}

// Mean returns the arithmetic mean of the grade values rounded to two
// decimals, and false for an empty list.
func Mean(grades []model.Grade) (float64, bool) {
	if len(grades) == 0 {
		return 0, false
	}
	sum := 0
	for _, g := range grades {
		sum += g.Value
	}
	return Round2(float64(sum) / float64(len(grades))), true
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
