package refine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
	"github.com/nlq2sql/nlq2sql/internal/llm"
	"github.com/nlq2sql/nlq2sql/internal/validate"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateSQL(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// scriptedChecker returns a fixed confidence per SQL string.
type scriptedChecker struct {
	scores map[string]int
}

func (c *scriptedChecker) Validate(_ context.Context, sql, _ string) validate.Result {
	confidence := c.scores[sql]

	feedback := "Query looks good"
	if confidence < 100 {
		feedback = "issues with " + sql
	}

	return validate.Result{
		Confidence:  confidence,
		Feedback:    feedback,
		IssuesFound: confidence < 100,
	}
}

func TestAcceptOnFirstAttempt(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateSQL", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Iteration == 0 && req.Feedback == ""
	})).Return("SELECT 1", nil).Once()

	loop := NewLoop(gen, &scriptedChecker{scores: map[string]int{"SELECT 1": 100}}, "", DefaultOptions())

	outcome, err := loop.Run(context.Background(), "What are the top 10 highest-rated movies?")
	require.NoError(t, err)

	assert.True(t, outcome.Accepted)
	assert.Equal(t, "SELECT 1", outcome.SQL)
	assert.GreaterOrEqual(t, outcome.Confidence, 90)
	assert.Len(t, outcome.Trajectory, 1)
	gen.AssertExpectations(t)
}

func TestFeedbackCarriesForward(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateSQL", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Iteration == 0
	})).Return("BAD", nil).Once()
	gen.On("GenerateSQL", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Iteration == 1 && req.Feedback == "issues with BAD"
	})).Return("GOOD", nil).Once()

	loop := NewLoop(gen, &scriptedChecker{scores: map[string]int{"BAD": 50, "GOOD": 95}}, "", DefaultOptions())

	outcome, err := loop.Run(context.Background(), "list movies")
	require.NoError(t, err)

	assert.True(t, outcome.Accepted)
	assert.Equal(t, "GOOD", outcome.SQL)
	assert.Len(t, outcome.Trajectory, 2)
	gen.AssertExpectations(t)
}

func TestIterationCapAndBestAttempt(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateSQL", mock.Anything, mock.Anything).Return("A", nil).Once()
	gen.On("GenerateSQL", mock.Anything, mock.Anything).Return("B", nil).Once()
	gen.On("GenerateSQL", mock.Anything, mock.Anything).Return("C", nil).Once()

	loop := NewLoop(gen, &scriptedChecker{scores: map[string]int{"A": 40, "B": 75, "C": 60}}, "", DefaultOptions())

	outcome, err := loop.Run(context.Background(), "something hard")
	require.NoError(t, err)

	assert.False(t, outcome.Accepted)
	assert.Equal(t, "B", outcome.SQL)
	assert.Equal(t, 75, outcome.Confidence)
	assert.Len(t, outcome.Trajectory, 3)
	gen.AssertNumberOfCalls(t, "GenerateSQL", 3)
}

func TestBestAttemptTieBreaksEarliest(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateSQL", mock.Anything, mock.Anything).Return("FIRST", nil).Once()
	gen.On("GenerateSQL", mock.Anything, mock.Anything).Return("SECOND", nil).Once()
	gen.On("GenerateSQL", mock.Anything, mock.Anything).Return("THIRD", nil).Once()

	loop := NewLoop(gen, &scriptedChecker{scores: map[string]int{"FIRST": 70, "SECOND": 70, "THIRD": 50}}, "", DefaultOptions())

	outcome, err := loop.Run(context.Background(), "something hard")
	require.NoError(t, err)

	assert.Equal(t, "FIRST", outcome.SQL)
}

func TestNonsensicalInputShortCircuits(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateSQL", mock.Anything, mock.Anything).
		Return("", apperrors.NewInputError("I couldn't understand that question")).Once()

	checker := &scriptedChecker{scores: map[string]int{}}
	loop := NewLoop(gen, checker, "", DefaultOptions())

	outcome, err := loop.Run(context.Background(), "asdkjf laksjdf")
	require.Error(t, err)

	assert.Nil(t, outcome)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInput))
	assert.Contains(t, err.Error(), "I couldn't understand that question")
	gen.AssertNumberOfCalls(t, "GenerateSQL", 1)
}

func TestGenerationFailurePropagates(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateSQL", mock.Anything, mock.Anything).
		Return("", apperrors.Wrap(errors.New("dial tcp: timeout"), apperrors.ErrTypeTimeout, "request timed out")).Once()

	loop := NewLoop(gen, &scriptedChecker{scores: map[string]int{}}, "", DefaultOptions())

	outcome, err := loop.Run(context.Background(), "list movies")
	require.Error(t, err)

	assert.Nil(t, outcome)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTimeout))
}

func TestCustomIterationCap(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateSQL", mock.Anything, mock.Anything).Return("X", nil)

	loop := NewLoop(gen, &scriptedChecker{scores: map[string]int{"X": 10}}, "",
		Options{Threshold: 90, MaxIterations: 5})

	outcome, err := loop.Run(context.Background(), "list movies")
	require.NoError(t, err)

	assert.Len(t, outcome.Trajectory, 5)
	gen.AssertNumberOfCalls(t, "GenerateSQL", 5)
}
