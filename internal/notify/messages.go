package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	msgTitle = "Upcoming test"
	msgBody  = "%s: %s on %s"
)

var supported = []language.Tag{language.English, language.Croatian}

func init() {
	_ = message.SetString(language.Croatian, msgTitle, "Nadolazeći ispit")
	_ = message.SetString(language.Croatian, msgBody, "%s: %s, %s")
}

// printer returns a printer for the closest supported language.
func printer(lang string) *message.Printer {
	matcher := language.NewMatcher(supported)
	tag, _ := language.MatchStrings(matcher, lang)
	base, _ := tag.Base()
	for _, t := range supported {
		if b, _ := t.Base(); b == base {
			return message.NewPrinter(t)
		}
	}
	return message.NewPrinter(language.English)
}
