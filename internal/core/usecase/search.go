package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/docintel/internal/core/domain"
	"github.com/kirillkom/docintel/internal/core/ports"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
	overFetchFactor    = 2
)

type SearchUseCase struct {
	repo         ports.DocumentRepository
	defaultLimit int
	maxLimit     int
}

func NewSearchUseCase(repo ports.DocumentRepository, defaultLimit, maxLimit int) *SearchUseCase {
	if maxLimit <= 0 {
		maxLimit = MaxSearchLimit
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultSearchLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &SearchUseCase{
		repo:         repo,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

func (uc *SearchUseCase) Search(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("unknown category %q", *filter.Category))
	}
	if filter.MinConfidence != nil && (*filter.MinConfidence < 0 || *filter.MinConfidence > 1) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("min_confidence must be within [0,1]"))
	}
	limit = uc.effectiveLimit(limit)

	candidates, err := uc.repo.ListProcessed(ctx, filter, limit*overFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("list processed documents: %w", err)
	}
	return rankCandidates(query, candidates, limit), nil
}

func (uc *SearchUseCase) effectiveLimit(limit int) int {
	if limit <= 0 {
		return uc.defaultLimit
	}
	if limit > uc.maxLimit {
		return uc.maxLimit
	}
	return limit
}
