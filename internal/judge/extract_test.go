package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedObject(t *testing.T) {
	raw := "The answer is mostly correct and well explained.\n\n" +
		"```json\n{\"reason\": \"Good.\", \"score\": 9}\n```\n"

	result, repaired, err := Extract(raw)
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, 9, result.Score)
	assert.Equal(t, "Good.", result.Reason)
}

func TestExtractBareObjectFractionalScore(t *testing.T) {
	result, repaired, err := Extract(`{"reason": "ok", "score": 7.9}`)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, 7, result.Score)
}

func TestExtractNoJSONFails(t *testing.T) {
	_, _, err := Extract("I think this answer deserves a nine out of ten.")
	require.ErrorIs(t, err, ErrNoStructuredResult)
}

func TestExtractPreservesEscapedQuotes(t *testing.T) {
	result, repaired, err := Extract(`{"reason": "a \"nested\" quote", "score": 5}`)
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, 5, result.Score)
	assert.Equal(t, `a "nested" quote`, result.Reason)
}

func TestExtractReasonPrefixReclosed(t *testing.T) {
	raw := "\"reason\": \"Fine answer.\",\n\"score\": 6\n}"

	result, repaired, err := Extract(raw)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, 6, result.Score)
	assert.Equal(t, "Fine answer.", result.Reason)
}

func TestExtractScoreAsString(t *testing.T) {
	result, _, err := Extract(`{"reason": "ok", "score": "7"}`)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Score)
}

func TestExtractTruncatesTrailingGarbage(t *testing.T) {
	raw := `{"reason": "solid", "score": 8} Let me know if you need anything else!`

	result, repaired, err := Extract(raw)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, 8, result.Score)
	assert.Equal(t, "solid", result.Reason)
}

func TestExtractCollapsesRunawayQuotes(t *testing.T) {
	raw := "{\n    \"reason\": \"he said \"use strict\" mode\",\n    \"score\": 3\n}"

	result, repaired, err := Extract(raw)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, 3, result.Score)
	assert.Contains(t, result.Reason, "'use strict'")
}

func TestExtractRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty response", ""},
		{"score only", `{"score": 5}`},
		{"reason only", `{"reason": "no score given"}`},
		{"empty reason", `{"reason": "   ", "score": 5}`},
		{"fenced without score", "```json\n{\"reason\": \"x\"}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract(tt.raw)
			assert.ErrorIs(t, err, ErrNoStructuredResult)
		})
	}
}

func TestExtractPrefersJSONFence(t *testing.T) {
	raw := "```\n{\"note\": \"not the result\"}\n```\n" +
		"```json\n{\"reason\": \"from the json fence\", \"score\": 4}\n```"

	result, _, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Score)
	assert.Equal(t, "from the json fence", result.Reason)
}

func TestExtractNestedBracesInReason(t *testing.T) {
	raw := "Critique first.\n```json\n" +
		`{"reason": "the snippet {x: 1} is wrong", "score": 2}` + "\n```"

	result, _, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, "the snippet {x: 1} is wrong", result.Reason)
}

func TestExtractObjectOutsideFence(t *testing.T) {
	raw := `Here is my verdict: {"reason": "adequate", "score": 6} as discussed.`

	result, _, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Score)
	assert.Equal(t, "adequate", result.Reason)
}

func TestScanObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"flat object", `{"a": 1}`, `{"a": 1}`, true},
		{"nested object", `{"a": {"b": 2}} tail`, `{"a": {"b": 2}}`, true},
		{"brace in string", `{"a": "}"} tail`, `{"a": "}"}`, true},
		{"escaped quote in string", `{"a": "\"}"} tail`, `{"a": "\"}"}`, true},
		{"unterminated", `{"a": 1`, "", false},
		{"not an object", `[1, 2]`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scanObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
