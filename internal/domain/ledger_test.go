package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordVoteIdempotent(t *testing.T) {
	l := NewVoteLedger()

	l.RecordVote(105372, "gpt-4", "claude-3-sonnet", 7, "solid answer")
	l.RecordVote(105372, "gpt-4", "claude-3-sonnet", 7, "solid answer")

	assert.Equal(t, 7, l.ModelVotes["gpt-4"])
	assert.Equal(t, "solid answer", l.ModelReasons["gpt-4"])
	require.Len(t, l.GradedBy["claude-3-sonnet"], 1)
	assert.Equal(t, "105372-gpt-4", l.GradedBy["claude-3-sonnet"][0])
	assert.Empty(t, l.Verify())
}

func TestRecordVoteOverwritesScore(t *testing.T) {
	l := NewVoteLedger()

	l.RecordVote(42, "mistral-7b", "gpt-4", 3, "weak")
	l.RecordVote(42, "mistral-7b", "gemini-pro", 8, "better on reread")

	assert.Equal(t, 8, l.ModelVotes["mistral-7b"])
	assert.Equal(t, "better on reread", l.ModelReasons["mistral-7b"])
	assert.True(t, l.IsAlreadyGraded("gpt-4", "42-mistral-7b"))
	assert.True(t, l.IsAlreadyGraded("gemini-pro", "42-mistral-7b"))
}

func TestIsGraded(t *testing.T) {
	l := NewVoteLedger()
	l.ModelVotes["gpt-4"] = 6
	l.ModelReasons["gpt-4"] = "orphaned vote"

	// A vote alone is not a grade record; only gradedBy makes it one.
	assert.True(t, l.HasVote("gpt-4"))
	assert.False(t, l.IsGraded("42-gpt-4"))

	l.RecordVote(42, "gpt-4", "claude-3-sonnet", 6, "regraded")
	assert.True(t, l.IsGraded("42-gpt-4"))
	assert.False(t, l.IsGraded("42-mistral-7b"))
}

func TestVerifyDetectsVoteReasonMismatch(t *testing.T) {
	l := NewVoteLedger()
	l.ModelVotes["gpt-4"] = 5

	issues := l.Verify()
	require.NotEmpty(t, issues)
	assert.ErrorIs(t, issues[0], ErrVotesReasonsMismatch)
}

func TestVerifyDetectsScoreOutOfRange(t *testing.T) {
	l := NewVoteLedger()
	l.ModelVotes["gpt-4"] = 11
	l.ModelReasons["gpt-4"] = "impossible"

	assert.True(t, hasIssue(l.Verify(), ErrScoreOutOfRange))
}

func TestVerifyDetectsDuplicateGrades(t *testing.T) {
	l := NewVoteLedger()
	l.GradedBy["gpt-4"] = []string{"42-mistral-7b", "42-mistral-7b"}

	assert.True(t, hasIssue(l.Verify(), ErrDuplicateGrade))
}

func hasIssue(issues []error, target error) bool {
	for _, err := range issues {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestMissingGrades(t *testing.T) {
	l := NewVoteLedger()
	l.ModelVotes = map[string]int{"gpt-4": 7, "mistral-7b": 4, "accepted": 9}
	l.ModelReasons = map[string]string{"gpt-4": "a", "mistral-7b": "b", "accepted": "c"}
	l.GradedBy = map[string][]string{
		"claude-3-sonnet": {"42-gpt-4"},
	}

	assert.Equal(t, []string{"accepted", "mistral-7b"}, l.MissingGrades())
}

func TestRepairScore(t *testing.T) {
	tests := []struct {
		name     string
		raw      float64
		want     int
		repaired bool
	}{
		{"integer passes through", 7, 7, false},
		{"fractional floored", 7.9, 7, true},
		{"nan zeroed", math.NaN(), 0, true},
		{"positive infinity zeroed", math.Inf(1), 0, true},
		{"negative clamped", -3, 0, true},
		{"above max clamped", 15, 10, true},
		{"zero valid", 0, 0, false},
		{"max valid", 10, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, repaired := RepairScore(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.repaired, repaired)
		})
	}
}
