package domain

import (
	"fmt"
	"math"
	"slices"
)

// Score bounds for judge votes.
const (
	MinScore = 0
	MaxScore = 10
)

// VoteLedger is the authoritative per-question record of scores, reasons,
// and grading history. One ledger exists per question and is mutated only by
// the task queue server's complete handler.
//
// Invariants:
//   - every scored answer has a reason (keys of ModelVotes == keys of ModelReasons)
//   - an answer id appears in GradedBy[j] iff judge j wrote its current vote
//   - all vote values are integers in [0,10]
type VoteLedger struct {
	ModelVotes   map[string]int      `json:"modelVotes"`
	ModelReasons map[string]string   `json:"modelReasons"`
	GradedBy     map[string][]string `json:"gradedBy"`
}

// NewVoteLedger creates an empty ledger ready for its first vote.
func NewVoteLedger() *VoteLedger {
	return &VoteLedger{
		ModelVotes:   map[string]int{},
		ModelReasons: map[string]string{},
		GradedBy:     map[string][]string{},
	}
}

// EnsureMaps backfills nil maps after JSON decoding of legacy ledgers.
func (l *VoteLedger) EnsureMaps() {
	if l.ModelVotes == nil {
		l.ModelVotes = map[string]int{}
	}
	if l.ModelReasons == nil {
		l.ModelReasons = map[string]string{}
	}
	if l.GradedBy == nil {
		l.GradedBy = map[string][]string{}
	}
}

// RepairScore coerces a raw judge score into a valid ledger value.
// Fractional scores are floored, NaN and infinities become zero, and the
// result is clamped to [MinScore, MaxScore]. Returns the repaired value and
// whether a repair was needed.
func RepairScore(raw float64) (int, bool) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, true
	}
	floored := int(math.Floor(raw))
	repaired := raw != math.Floor(raw)
	switch {
	case floored < MinScore:
		return MinScore, true
	case floored > MaxScore:
		return MaxScore, true
	}
	return floored, repaired
}

// RecordVote upserts the vote and reason for answerAuthor and marks the
// answer as graded by judgeName. Calling it twice with the same judge and
// answer is a no-op on the second call.
func (l *VoteLedger) RecordVote(questionID int, answerAuthor, judgeName string, score int, reason string) {
	l.EnsureMaps()
	l.ModelVotes[answerAuthor] = score
	l.ModelReasons[answerAuthor] = reason

	answerID := AnswerID(questionID, answerAuthor)
	graded := l.GradedBy[judgeName]
	if !slices.Contains(graded, answerID) {
		l.GradedBy[judgeName] = append(graded, answerID)
	}
}

// IsAlreadyGraded reports whether judgeName has already scored answerID.
func (l *VoteLedger) IsAlreadyGraded(judgeName, answerID string) bool {
	return slices.Contains(l.GradedBy[judgeName], answerID)
}

// IsGraded reports whether any judge has scored answerID. The queue server
// uses it to retire task rows whose grade landed since the row was created.
func (l *VoteLedger) IsGraded(answerID string) bool {
	for judgeName := range l.GradedBy {
		if l.IsAlreadyGraded(judgeName, answerID) {
			return true
		}
	}
	return false
}

// HasVote reports whether any judge has recorded a vote for answerAuthor.
func (l *VoteLedger) HasVote(answerAuthor string) bool {
	_, ok := l.ModelVotes[answerAuthor]
	return ok
}

// MissingGrades returns the authors present in ModelVotes that no judge has
// recorded in GradedBy. These are the reconciliation targets for gentasks.
func (l *VoteLedger) MissingGrades() []string {
	graded := make(map[string]struct{})
	for _, answerIDs := range l.GradedBy {
		for _, answerID := range answerIDs {
			if author := AuthorOf(answerID); author != "" {
				graded[author] = struct{}{}
			}
		}
	}

	var missing []string
	for author := range l.ModelVotes {
		if _, ok := graded[author]; !ok {
			missing = append(missing, author)
		}
	}
	slices.Sort(missing)
	return missing
}

// Verify checks the ledger's consistency invariants and returns one error
// per violation found. A healthy ledger returns an empty slice.
func (l *VoteLedger) Verify() []error {
	var issues []error

	if len(l.ModelVotes) != len(l.ModelReasons) {
		issues = append(issues, fmt.Errorf("%w: %d votes vs %d reasons",
			ErrVotesReasonsMismatch, len(l.ModelVotes), len(l.ModelReasons)))
	}
	for author := range l.ModelVotes {
		if _, ok := l.ModelReasons[author]; !ok {
			issues = append(issues, fmt.Errorf("%w: no reason for %q", ErrVotesReasonsMismatch, author))
		}
	}
	for author, score := range l.ModelVotes {
		if score < MinScore || score > MaxScore {
			issues = append(issues, fmt.Errorf("%w: %d for %q", ErrScoreOutOfRange, score, author))
		}
	}
	for judge, answerIDs := range l.GradedBy {
		seen := make(map[string]struct{}, len(answerIDs))
		for _, answerID := range answerIDs {
			if _, dup := seen[answerID]; dup {
				issues = append(issues, fmt.Errorf("%w: judge %q graded %q twice", ErrDuplicateGrade, judge, answerID))
			}
			seen[answerID] = struct{}{}
		}
	}

	return issues
}
