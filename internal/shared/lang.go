package shared

import (
	"net/http"

	"golang.org/x/text/language"
)

var supportedLocales = []language.Tag{
	language.English, // default
	language.Indonesian,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// NegotiateLocale resolves the best supported locale from Accept-Language.
// Error payloads carry taxonomy keys rather than prose; the matched locale is
// echoed back in Content-Language so clients know which dictionary to apply.
func NegotiateLocale(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return supportedLocales[0]
	}
	tag, _, _ := localeMatcher.Match(tags...)
	return tag
}
