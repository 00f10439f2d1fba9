package llm

import (
	"regexp"
	"strings"

	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
)

// Questions are rejected before any generation is attempted, so the
// validator never sees SQL produced for an implausible question.

const rejectedMessage = "I couldn't understand that question. " +
	"Please ask a clear question about movies, people, or ratings."

var wordPattern = regexp.MustCompile(`[a-zA-Z]+`)

// hasRepeatedRun reports three or more consecutive identical runes (aaa,
// ssss). Written as a scan because RE2 has no backreferences.
func hasRepeatedRun(word string) bool {
	run := 0

	var prev rune

	for _, r := range word {
		if r == prev {
			run++
			if run >= 3 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}

	return false
}

// isRepeatedGroup reports a word that is one short group repeated whole
// (abcabc, xyxyxy).
func isRepeatedGroup(word string) bool {
	n := len(word)

	for size := 2; size <= n/2; size++ {
		if n%size != 0 {
			continue
		}

		unit := word[:size]
		whole := true

		for i := size; i < n; i += size {
			if word[i:i+size] != unit {
				whole = false
				break
			}
		}

		if whole {
			return true
		}
	}

	return false
}

// commonWords are everyday English words whose presence marks a question
// as plausible even when it is short.
var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"of": true, "in": true, "on": true, "for": true, "with": true, "by": true,
	"show": true, "list": true, "find": true, "give": true, "get": true,
	"all": true, "top": true, "best": true, "most": true, "highest": true,
	"lowest": true, "average": true, "count": true, "total": true,
	"how": true, "what": true, "which": true, "who": true, "when": true,
	"where": true, "why": true, "many": true, "much": true,
}

// domainWords mark a question as on-topic for the movie dataset.
var domainWords = map[string]bool{
	"movie": true, "movies": true, "film": true, "films": true,
	"title": true, "titles": true, "actor": true, "actors": true,
	"actress": true, "director": true, "directors": true, "rating": true,
	"ratings": true, "rated": true, "genre": true, "genres": true,
	"year": true, "votes": true, "episode": true, "episodes": true,
	"series": true, "show": true, "shows": true, "cast": true,
	"runtime": true, "person": true, "people": true, "name": true,
}

const minQuestionLength = 15

// CheckQuestion rejects empty, repeated-character, and short unrecognizable
// questions with an input-rejected error carrying the user-facing message.
func CheckQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return apperrors.NewInputError(rejectedMessage)
	}

	words := wordPattern.FindAllString(strings.ToLower(trimmed), -1)
	recognized := 0

	for _, w := range words {
		if commonWords[w] || domainWords[w] {
			recognized++
		}
	}

	// Keyboard-mash tokens: aaa, asdasdasd.
	if recognized == 0 {
		for _, w := range words {
			if hasRepeatedRun(w) || isRepeatedGroup(w) {
				return apperrors.NewInputError(rejectedMessage)
			}
		}
	}

	if len(trimmed) < minQuestionLength && recognized == 0 {
		return apperrors.NewInputError(rejectedMessage)
	}

	// A single long spaceless token with no recognized words is noise.
	if !strings.ContainsRune(trimmed, ' ') && recognized == 0 {
		return apperrors.NewInputError(rejectedMessage)
	}

	return nil
}
