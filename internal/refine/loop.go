package refine

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
	"github.com/nlq2sql/nlq2sql/internal/llm"
	"github.com/nlq2sql/nlq2sql/internal/logging"
	"github.com/nlq2sql/nlq2sql/internal/validate"
)

// Generator proposes a SQL candidate for a question. Feedback from the
// previous attempt and the iteration index travel with the request so the
// generator can repair its earlier output.
type Generator interface {
	GenerateSQL(ctx context.Context, req llm.Request) (string, error)
}

// Checker scores a SQL candidate against the schema.
type Checker interface {
	Validate(ctx context.Context, sql, question string) validate.Result
}

// Attempt records one generate/validate round trip.
type Attempt struct {
	Iteration  int    `json:"iteration"`
	SQL        string `json:"sql"`
	Confidence int    `json:"confidence"`
	Feedback   string `json:"feedback"`
}

// Outcome is the terminal result of one refinement run.
type Outcome struct {
	SQL        string    `json:"final_sql"`
	Confidence int       `json:"confidence"`
	Feedback   string    `json:"feedback"`
	Accepted   bool      `json:"accepted"`
	Trajectory []Attempt `json:"trajectory"`
}

// Options bound the loop. Threshold is the confidence at which a candidate
// is accepted; MaxIterations caps the number of generate/validate rounds.
type Options struct {
	Threshold     int
	MaxIterations int
}

// DefaultOptions returns the stock loop bounds.
func DefaultOptions() Options {
	return Options{Threshold: 90, MaxIterations: 3}
}

// Loop drives the generate/validate cycle for one question at a time. A
// Loop is stateless between runs and safe to share across requests.
type Loop struct {
	generator Generator
	checker   Checker
	schemaCtx string
	opts      Options
}

// NewLoop creates a refinement loop. schemaCtx is the schema text passed to
// the generator on every call.
func NewLoop(generator Generator, checker Checker, schemaCtx string, opts Options) *Loop {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	return &Loop{generator: generator, checker: checker, schemaCtx: schemaCtx, opts: opts}
}

// Run executes the refinement loop for a question. It terminates after at
// most MaxIterations rounds. On acceptance the outcome carries the accepted
// attempt; otherwise it carries the best-scoring attempt seen, preferring
// the earliest on ties. An input-rejected error from the generator returns
// with an empty trajectory; transport and timeout failures propagate.
func (l *Loop) Run(ctx context.Context, question string) (*Outcome, error) {
	requestID := uuid.NewString()
	log := logging.WithField("request_id", requestID)

	feedback := ""
	trajectory := make([]Attempt, 0, l.opts.MaxIterations)

	for iteration := 0; iteration < l.opts.MaxIterations; iteration++ {
		sql, err := l.generator.GenerateSQL(ctx, llm.Request{
			Question:      question,
			SchemaContext: l.schemaCtx,
			Feedback:      feedback,
			Iteration:     iteration,
		})
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrTypeInput) {
				log.WithError(err).Debugf("question rejected before generation")
				return nil, err
			}

			return nil, apperrors.Wrapf(err, apperrors.GetType(err),
				"generation failed at iteration %d", iteration)
		}

		result := l.checker.Validate(ctx, sql, question)
		trajectory = append(trajectory, Attempt{
			Iteration:  iteration,
			SQL:        sql,
			Confidence: result.Confidence,
			Feedback:   result.Feedback,
		})

		log.WithFields(map[string]interface{}{
			"iteration":  iteration,
			"confidence": result.Confidence,
		}).Debugf("validated attempt")

		if result.Confidence >= l.opts.Threshold {
			return &Outcome{
				SQL:        sql,
				Confidence: result.Confidence,
				Feedback:   result.Feedback,
				Accepted:   true,
				Trajectory: trajectory,
			}, nil
		}

		feedback = result.Feedback
	}

	best := bestAttempt(trajectory)
	log.WithFields(map[string]interface{}{
		"iterations": len(trajectory),
		"confidence": best.Confidence,
	}).Infof("iteration cap reached, returning best attempt")

	return &Outcome{
		SQL:        best.SQL,
		Confidence: best.Confidence,
		Feedback:   best.Feedback,
		Accepted:   false,
		Trajectory: trajectory,
	}, nil
}

// bestAttempt picks the maximum-confidence attempt; the earliest wins ties
// so repeated runs are reproducible.
func bestAttempt(trajectory []Attempt) Attempt {
	best := trajectory[0]
	for _, a := range trajectory[1:] {
		if a.Confidence > best.Confidence {
			best = a
		}
	}

	return best
}
