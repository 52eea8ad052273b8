package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bs3vcenk/Netrix-sub000/internal/dates"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/PuerkitoBio/goquery"
)

var overviewPrefixes = []string{
	"Opravdanih: ",
	"Neopravdanih: ",
	"Čeka odluku razrednika: ",
	"Ukupno: ",
	"Ukupno ostalo: ",
}

func (x *HTML) absenceOverview(doc *goquery.Document) (OverviewRecord, error) {
	legend := doc.Find("table.legend")
	cells := legend.Find("td").FilterFunction(func(_ int, td *goquery.Selection) bool {
		return td.Find("img").Length() == 0
	})
	texts := cellTexts(cells)

	if len(texts) < len(overviewPrefixes) {
		return OverviewRecord{}, parseErr(KindAbsenceOverview, "legend", legend, fmt.Errorf("expected %d cells, got %d", len(overviewPrefixes), len(texts)))
	}

	values := make([]int, len(overviewPrefixes))
	for i, prefix := range overviewPrefixes {
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(texts[i], prefix)))
		if err != nil {
			return OverviewRecord{}, parseErr(KindAbsenceOverview, strings.TrimSuffix(prefix, ": "), cells.Eq(i), err)
		}
		values[i] = n
	}

	return OverviewRecord{model.AbsenceOverview{
		Justified:   values[0],
		Unjustified: values[1],
		Awaiting:    values[2],
		Sum:         values[3],
		SumLeftover: values[4],
	}}, nil
}

// absences groups the rows of the hours table under their date cells. A date
// cell spans rowspan rows, itself included.
func (x *HTML) absences(doc *goquery.Document) (AbsenceList, error) {
	rows := doc.Find("div.hours table tr")
	if rows.Length() > 0 {
		rows = rows.Slice(1, rows.Length())
	}

	out := AbsenceList{}
	for i := 0; i < rows.Length(); {
		row := rows.Eq(i)
		header := row.Find("td.datum")
		if header.Length() == 0 {
			return nil, parseErr(KindAbsences, "date", row, fmt.Errorf("row %d is not covered by a date cell", i))
		}

		day, span, err := x.absenceDay(header)
		if err != nil {
			return nil, err
		}
		if i+span > rows.Length() {
			return nil, parseErr(KindAbsences, "rowspan", header, fmt.Errorf("group spans %d rows, %d left", span, rows.Length()-i))
		}

		for j := i; j < i+span; j++ {
			record, err := absenceRecord(rows.Eq(j))
			if err != nil {
				return nil, err
			}
			day.Absences = append(day.Absences, record)
		}

		out = append(out, day)
		i += span
	}

	return out, nil
}

func (x *HTML) absenceDay(header *goquery.Selection) (model.AbsenceDay, int, error) {
	span := 1
	if raw, ok := header.Attr("rowspan"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 {
			return model.AbsenceDay{}, 0, parseErr(KindAbsences, "rowspan", header, fmt.Errorf("invalid rowspan %q", raw))
		}
		span = n
	}

	parts := segments(header.Clone())
	if len(parts) < 2 {
		return model.AbsenceDay{}, 0, parseErr(KindAbsences, "date", header, fmt.Errorf("missing date line"))
	}

	date, err := dates.ParseIn(parts[1], x.loc)
	if err != nil {
		return model.AbsenceDay{}, 0, parseErr(KindAbsences, "date", header, err)
	}

	return model.AbsenceDay{Date: date, Absences: []model.AbsenceRecord{}}, span, nil
}

func absenceRecord(row *goquery.Selection) (model.AbsenceRecord, error) {
	period, err := strconv.Atoi(strings.TrimSpace(row.Find("td#sat, td.sat").Text()))
	if err != nil {
		return model.AbsenceRecord{}, parseErr(KindAbsences, "period", row, err)
	}

	alt, _ := row.Find("td#opravdano img, td.opravdano img").Attr("alt")

	return model.AbsenceRecord{
		Period:    period,
		Subject:   strings.TrimSpace(row.Find("td#predmet, td.predmet").Text()),
		Reason:    strings.TrimSpace(row.Find("td#razlog, td.razlog").Text()),
		Justified: alt == "Opravdano",
	}, nil
}
