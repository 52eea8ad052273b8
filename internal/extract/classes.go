package extract

import (
	"fmt"
	"strings"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/PuerkitoBio/goquery"
)

const (
	classHrefPrefix   = "/pregled/predmeti/"
	schoolYearPrefix  = "Školska godina "
	classMasterPrefix = "Razrednik: "
)

func (x *HTML) classes(doc *goquery.Document) (ClassList, error) {
	out := ClassList{}
	var err error

	doc.Find("a.class-wrap").EachWithBreak(func(i int, a *goquery.Selection) bool {
		box := a.Find("div.class").First()
		href, ok := a.Attr("href")
		if box.Length() == 0 || !ok {
			err = parseErr(KindClasses, "class", a, fmt.Errorf("missing class box or link"))
			return false
		}

		span := box.Find("span").First()
		label := strings.TrimSpace(span.Text())
		span.Remove()

		parts := segments(box)
		if len(parts) < 3 {
			err = parseErr(KindClasses, "class", a, fmt.Errorf("expected 3 segments, got %d", len(parts)))
			return false
		}

		out = append(out, model.Class{
			ID:          i,
			ExternalID:  strings.TrimPrefix(strings.TrimSpace(href), classHrefPrefix),
			Label:       label,
			Year:        strings.TrimPrefix(strings.TrimSpace(parts[0]), schoolYearPrefix),
			SchoolName:  strings.TrimSpace(parts[1]),
			ClassMaster: strings.TrimPrefix(strings.TrimSpace(parts[2]), classMasterPrefix),
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
