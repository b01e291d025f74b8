package usecase

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/docintel/internal/core/domain"
)

const (
	weightText       = 0.4
	weightSummary    = 0.3
	weightKeywords   = 0.2
	weightConfidence = 0.1

	minTokenLength = 3
	maxHighlights  = 3
)

// rankCandidates scores processed documents against the query, drops
// non-positive scores and orders by score, newest first, then id.
func rankCandidates(query string, candidates []domain.Document, limit int) []domain.SearchResult {
	queryTokens := splitAlphaNumLower(query)
	results := make([]domain.SearchResult, 0, len(candidates))

	for _, doc := range candidates {
		score := scoreDocument(queryTokens, doc)
		if score <= 0 {
			continue
		}
		results = append(results, domain.SearchResult{
			Document:   doc,
			Score:      score,
			Highlights: highlights(queryTokens, derefString(doc.ExtractedText)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		a, b := results[i].Document, results[j].Document
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func scoreDocument(queryTokens []string, doc domain.Document) float64 {
	score := weightText*tokenOverlap(queryTokens, toTokenSet(derefString(doc.ExtractedText))) +
		weightSummary*tokenOverlap(queryTokens, toTokenSet(derefString(doc.Summary))) +
		weightKeywords*tokenOverlap(queryTokens, keywordSet(doc.Keywords))
	if doc.Confidence != nil {
		score += weightConfidence * *doc.Confidence
	}
	return score
}

// tokenOverlap is the fraction of query tokens that are a substring of
// some field token or contain one. Repeated query tokens count each time.
func tokenOverlap(query []string, field map[string]struct{}) float64 {
	if len(query) == 0 || len(field) == 0 {
		return 0
	}
	matches := 0
	for _, q := range query {
		if _, ok := field[q]; ok {
			matches++
			continue
		}
		for f := range field {
			if strings.Contains(f, q) || strings.Contains(q, f) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(query))
}

// highlights returns up to three sentences mentioning a query token, in source order.
func highlights(queryTokens []string, text string) []string {
	out := []string{}
	if len(queryTokens) == 0 || text == "" {
		return out
	}
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, token := range queryTokens {
			if strings.Contains(lower, token) {
				out = append(out, sentence)
				break
			}
		}
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// keywordSet holds each keyword whole and lower-cased, whatever its length.
func keywordSet(keywords []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			out[keyword] = struct{}{}
		}
	}
	return out
}

// splitAlphaNumLower lower-cases and splits on anything that is not a
// letter or digit, keeping tokens of at least minTokenLength runes.
func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	runes := 0
	flush := func() {
		if runes >= minTokenLength {
			tokens = append(tokens, b.String())
		}
		b.Reset()
		runes = 0
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			runes++
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
