package domain

import "errors"

// Domain validation and invariant errors.
var (
	// ErrInvalidAnswerID indicates an answer id not of the form
	// "{questionId}-{author}".
	ErrInvalidAnswerID = errors.New("invalid answer id")

	// ErrMissingScore indicates a judge result without a score.
	ErrMissingScore = errors.New("missing score")

	// ErrMissingReason indicates a judge result without a reason.
	ErrMissingReason = errors.New("missing reason")

	// ErrVotesReasonsMismatch indicates a ledger whose votes and reasons
	// have diverged.
	ErrVotesReasonsMismatch = errors.New("votes and reasons out of sync")

	// ErrScoreOutOfRange indicates a ledger vote outside [0,10].
	ErrScoreOutOfRange = errors.New("score out of range")

	// ErrDuplicateGrade indicates a judge listed twice for one answer.
	ErrDuplicateGrade = errors.New("duplicate grade entry")
)
