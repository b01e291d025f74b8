package domain

// SearchFilter narrows the candidate set before ranking.
type SearchFilter struct {
	Category      *Category
	Language      string
	MinConfidence *float64
}

// SearchResult is ephemeral and never persisted.
type SearchResult struct {
	Document   Document `json:"document"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights"`
}
