package validate

import (
	"regexp"
	"strings"
)

// Intent alignment compares lexical cues in the question against SQL
// constructs. Natural language expresses these intents in ways a keyword
// scan cannot detect reliably, so mismatches are advisory feedback only
// and never reduce the score.

var (
	aggregationWords = []string{"average", "count", "total", "sum", "mean", "how many", "number of"}
	orderingWords    = []string{"top", "highest", "most", "best", "lowest", "worst", "largest"}
	filteringWords   = []string{"only", "specific", "particular"}

	aggregateFuncPattern = regexp.MustCompile(`(?i)\b(?:count|sum|avg|min|max)\s*\(`)
	orderByPattern       = regexp.MustCompile(`(?i)\border\s+by\b`)
	wherePattern         = regexp.MustCompile(`(?i)\bwhere\b`)
)

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}

	return false
}

// intentNotes returns advisory strings for question/SQL intent mismatches.
func intentNotes(question, sql string) []string {
	q := strings.ToLower(question)

	var notes []string

	if containsAny(q, aggregationWords) && !aggregateFuncPattern.MatchString(sql) {
		notes = append(notes, "Question suggests aggregation but query has no aggregate function")
	}

	if containsAny(q, orderingWords) && !orderByPattern.MatchString(sql) {
		notes = append(notes, "Question suggests ranking but query has no ORDER BY")
	}

	if containsAny(q, filteringWords) && !wherePattern.MatchString(sql) {
		notes = append(notes, "Question suggests filtering but query has no WHERE clause")
	}

	return notes
}
