package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxQueryLength = 200

// Template and operator fragments that never belong in a search keyword.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\{.*\}`),
	regexp.MustCompile(`\{\s*"\$[a-z]+"\s*:`),
	regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`),
}

// ValidateTrendQuery validates the options of a trend search.
func ValidateTrendQuery(q TrendQuery) error {
	text := strings.TrimSpace(q.Query)
	if text == "" {
		return NewValidationError("query", q.Query, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(text) > maxQueryLength {
		return NewValidationError("query", text, ErrQueryTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("query", text, ErrQueryInjection)
		}
	}
	if q.Region != "" && !ValidRegions[q.Region] {
		return NewValidationError("region", string(q.Region), ErrInvalidRegion)
	}
	return nil
}
