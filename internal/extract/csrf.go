package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CSRFToken returns the value of the login form's csrf_token input.
func CSRFToken(html []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", false
	}
	value, ok := doc.Find(`input[name="csrf_token"]`).First().Attr("value")
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}
