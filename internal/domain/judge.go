package domain

import "strings"

// JudgeResult is the structured outcome extracted from a judge's free-text
// response. Transient: it exists only between extraction and the complete
// call that folds it into the ledger.
type JudgeResult struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Validate checks that the result carries both required fields.
func (r JudgeResult) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return ErrMissingReason
	}
	if r.Score < MinScore || r.Score > MaxScore {
		return ErrScoreOutOfRange
	}
	return nil
}
