package trends

import (
	"regexp"
	"strings"
)

var (
	portugueseMarks = regexp.MustCompile(`[ãõáéíóúâêôç]`)
	englishWords    = regexp.MustCompile(`(?i)\b(my|husband|cheated|wife|storytime|cheating)\b`)
	spanishMarks    = regexp.MustCompile(`[áéíóúñü]`)
)

// DetectLanguage guesses a relevance language from the text of a query.
// Matching ignores case. Portuguese wins over Spanish for the accents both
// share. It returns "" when
// no hint applies.
func DetectLanguage(query string) string {
	q := strings.ToLower(query)
	switch {
	case portugueseMarks.MatchString(q):
		return "pt"
	case englishWords.MatchString(q):
		return "en"
	case spanishMarks.MatchString(q):
		return "es"
	default:
		return ""
	}
}
