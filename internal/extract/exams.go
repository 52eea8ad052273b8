package extract

import (
	"fmt"

	"github.com/bs3vcenk/Netrix-sub000/internal/dates"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/PuerkitoBio/goquery"
)

func (x *HTML) exams(doc *goquery.Document) (ExamList, error) {
	cells := doc.Find("table td")
	texts := cellTexts(cells)

	out := ExamList{}
	if len(texts)%3 != 0 {
		return nil, parseErr(KindExams, "row", cells.Parent(), fmt.Errorf("%d cells do not form subject/title/date rows", len(texts)))
	}

	for i := 0; i < len(texts); i += 3 {
		date, err := dates.ParseIn(texts[i+2], x.loc)
		if err != nil {
			return nil, parseErr(KindExams, "date", cells.Slice(i, i+3), err)
		}
		out = append(out, model.Exam{Subject: texts[i], Title: texts[i+1], Date: date})
	}

	return out, nil
}
