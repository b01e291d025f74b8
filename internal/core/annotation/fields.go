package annotation

import (
	"regexp"

	"github.com/kirillkom/docintel/internal/core/domain"
)

var fieldPatterns = []struct {
	kind     domain.FieldKind
	patterns []*regexp.Regexp
}{
	{
		kind: domain.FieldDates,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{2,4}\b`),
			regexp.MustCompile(`\b\d{4}[./-]\d{1,2}[./-]\d{1,2}\b`),
		},
	},
	{
		kind: domain.FieldAmounts,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{1,2})?`),
			regexp.MustCompile(`\b\d+(?:[.,]\d{1,2})?\s?(?:USD|EUR|GBP|PLN|zł)`),
		},
	},
	{
		kind: domain.FieldEmails,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		},
	},
	{
		kind: domain.FieldPhones,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:\+\d{1,3}[\s-]?)?\(?\d{3}\)?[\s-]?\d{3}[\s-]?\d{3,4}\b`),
		},
	},
}

// ExtractFields runs the structured-field patterns over raw text.
// A group is present only when it matched at least once.
func ExtractFields(text string) map[domain.FieldKind][]string {
	out := make(map[domain.FieldKind][]string)
	for _, group := range fieldPatterns {
		var matches []string
		for _, re := range group.patterns {
			matches = append(matches, re.FindAllString(text, -1)...)
		}
		if len(matches) > 0 {
			out[group.kind] = matches
		}
	}
	return out
}
