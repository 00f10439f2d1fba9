package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// FallbackService provides rule-based SQL generation over the movie schema
// when no provider is reachable. Coverage is intentionally narrow; anything
// it cannot match becomes a generic title listing the validator can still
// score.
type FallbackService struct{}

// NewFallbackService creates a new fallback service
func NewFallbackService() *FallbackService {
	return &FallbackService{}
}

// Configure is a no-op for the fallback service
func (f *FallbackService) Configure(_ Config) error {
	return nil
}

var (
	limitNumberPattern = regexp.MustCompile(`\b(\d{1,3})\b`)
	yearPattern        = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// GenerateSQL maps common question shapes onto canned movie queries.
func (f *FallbackService) GenerateSQL(_ context.Context, req Request) (string, error) {
	q := strings.ToLower(req.Question)
	limit := extractLimit(q)

	switch {
	case containsAll(q, "average", "rating"):
		return "SELECT AVG(average_rating) AS avg_rating FROM title_ratings", nil

	case strings.Contains(q, "how many") || strings.Contains(q, "count"):
		return "SELECT COUNT(*) AS movie_count FROM title_basics WHERE title_type = 'movie'", nil

	case (strings.Contains(q, "top") || strings.Contains(q, "highest") || strings.Contains(q, "best")) &&
		(strings.Contains(q, "rated") || strings.Contains(q, "rating")):
		return fmt.Sprintf(
			"SELECT b.primary_title, r.average_rating, r.num_votes "+
				"FROM title_basics b JOIN title_ratings r ON b.tconst = r.tconst "+
				"WHERE b.title_type = 'movie' AND r.num_votes > 1000 "+
				"ORDER BY r.average_rating DESC LIMIT %d", limit), nil

	case strings.Contains(q, "longest") || strings.Contains(q, "runtime"):
		return fmt.Sprintf(
			"SELECT primary_title, runtime_minutes FROM title_basics "+
				"WHERE title_type = 'movie' AND runtime_minutes IS NOT NULL "+
				"ORDER BY runtime_minutes DESC LIMIT %d", limit), nil

	case strings.Contains(q, "actor") || strings.Contains(q, "actress") || strings.Contains(q, "director"):
		return fmt.Sprintf(
			"SELECT primary_name, birth_year, primary_profession FROM name_basics LIMIT %d", limit), nil
	}

	if year := yearPattern.FindString(q); year != "" {
		return fmt.Sprintf(
			"SELECT primary_title, start_year FROM title_basics "+
				"WHERE title_type = 'movie' AND start_year = %s LIMIT %d", year, limit), nil
	}

	return fmt.Sprintf(
		"SELECT primary_title, start_year, genres FROM title_basics "+
			"WHERE title_type = 'movie' LIMIT %d", limit), nil
}

func containsAll(text string, words ...string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}

	return true
}

// extractLimit pulls a small row count from the question, defaulting to 10.
// Years are stripped first so "movies from 1994" does not become a limit.
func extractLimit(q string) int {
	q = yearPattern.ReplaceAllString(q, "")

	if m := limitNumberPattern.FindString(q); m != "" {
		var n int
		if _, err := fmt.Sscanf(m, "%d", &n); err == nil && n > 0 {
			return n
		}
	}

	return 10
}
