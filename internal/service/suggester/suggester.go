// Package suggester ranks a closed catalog of book titles against a
// free-text book request using a language model. The model's output is
// never trusted: it is decoded against a strict schema and any malformed
// payload degrades to "no suggestion".
package suggester

import (
	"context"
)

// Suggestion is one ranked title from the model.
type Suggestion struct {
	Title        string  `json:"title"`
	Hook         string  `json:"hook"`
	OverallScore float64 `json:"overall_score"`
}

// Outcome tags the decode result of a ranking call.
type Outcome int

const (
	// OutcomeOK means at least one usable suggestion was returned.
	OutcomeOK Outcome = iota
	// OutcomeEmpty means the model found nothing above the threshold.
	OutcomeEmpty
	// OutcomeParseError means the payload was malformed; treated as empty.
	OutcomeParseError
)

// Result is the decoded ranking for one request.
type Result struct {
	Outcome Outcome
	Intro   string
	Books   []Suggestion
}

// Ranker is the language-model collaborator. An error return means the call
// itself failed (transport, quota); a bad payload is reported through the
// Outcome, never as an error.
type Ranker interface {
	Rank(ctx context.Context, request string, titles []string) (Result, error)
}
