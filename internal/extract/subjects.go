package extract

import (
	"fmt"
	"strings"

	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/PuerkitoBio/goquery"
)

func (x *HTML) subjects(doc *goquery.Document) (SubjectList, error) {
	out := SubjectList{}
	var err error

	doc.Find("div#courses a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			err = parseErr(KindSubjects, "link", a, fmt.Errorf("missing href"))
			return false
		}

		parts := segments(a)
		name := strings.TrimSpace(parts[0])
		if name == "" {
			err = parseErr(KindSubjects, "name", a, fmt.Errorf("empty subject name"))
			return false
		}

		var professors []string
		if len(parts) > 1 {
			professors = splitProfessors(strings.Join(parts[1:], ""))
		}

		out = append(out, model.Subject{
			ID:         i,
			Name:       name,
			Professors: professors,
			Link:       strings.TrimSpace(href),
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// splitProfessors drops the "/" placeholder the portal shows for subjects
// without a professor.
func splitProfessors(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ", ") {
		p = strings.TrimSpace(p)
		if p == "" || p == "/" {
			continue
		}
		out = append(out, p)
	}
	return out
}
