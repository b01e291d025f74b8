package annotation

import (
	"strconv"
	"strings"

	"github.com/kirillkom/docintel/internal/core/domain"
)

const defaultConfidence = 0.5

// parseClassification reads "category|confidence", splitting on the first '|'.
func parseClassification(raw string) (domain.Category, float64) {
	label, rawConfidence, _ := strings.Cut(strings.TrimSpace(raw), "|")
	category := domain.NormalizeCategory(label)

	confidence, err := strconv.ParseFloat(strings.TrimSpace(rawConfidence), 64)
	if err != nil {
		return category, defaultConfidence
	}
	return category, clamp(confidence, 0, 1)
}

func parseKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		keyword := strings.TrimSpace(part)
		if keyword == "" {
			continue
		}
		out = append(out, keyword)
	}
	return out
}

func parseSentiment(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return clamp(value, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v != v:
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
