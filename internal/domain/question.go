// Package domain defines the core types of the answer-grading pipeline:
// questions, answers, rank tasks, judge results, and the per-question vote
// ledger with its consistency invariants.
package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Question is a programming question imported by the external ingestion
// collaborator. Immutable once imported.
type Question struct {
	ID    int      `json:"id"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// QuestionPaths resolves the on-disk locations derived from a question id.
// Ids are zero-padded to nine digits and split into three path segments,
// e.g. id 105372 -> questions/000/105/372.json.
type QuestionPaths struct {
	Dir1   string // first three digits
	Dir2   string // middle three digits
	FileID string // last three digits
}

// IDParts splits a question id into its directory and file segments.
func IDParts(questionID int) QuestionPaths {
	idStr := fmt.Sprintf("%09d", questionID)
	return QuestionPaths{
		Dir1:   idStr[0:3],
		Dir2:   idStr[3:6],
		FileID: idStr[6:9],
	}
}

// QuestionPath returns the question JSON path under questionsDir.
func (p QuestionPaths) QuestionPath(questionsDir string) string {
	return filepath.Join(questionsDir, p.Dir1, p.Dir2, p.FileID+".json")
}

// QuestionDir returns the directory holding the question and its answers.
func (p QuestionPaths) QuestionDir(questionsDir string) string {
	return filepath.Join(questionsDir, p.Dir1, p.Dir2)
}

// LedgerPath returns the vote ledger (v.json) path under metaDir.
func (p QuestionPaths) LedgerPath(metaDir string) string {
	return filepath.Join(metaDir, p.Dir1, p.Dir2, p.FileID+".v.json")
}

// MetaPath returns the question meta JSON path under metaDir.
func (p QuestionPaths) MetaPath(metaDir string) string {
	return filepath.Join(metaDir, p.Dir1, p.Dir2, p.FileID+".meta.json")
}

// AnswerPath returns the path of one answer file for the question. Human
// answers (accepted, most-voted) use the ".h." infix, model answers ".a.".
func (p QuestionPaths) AnswerPath(questionsDir, author string) string {
	kind := "a"
	if IsHumanAuthor(author) {
		kind = "h"
	}
	return filepath.Join(questionsDir, p.Dir1, p.Dir2, fmt.Sprintf("%s.%s.%s.json", p.FileID, kind, author))
}

// AnswerID composes the canonical answer identifier "{questionId}-{author}".
func AnswerID(questionID int, author string) string {
	return fmt.Sprintf("%d-%s", questionID, author)
}

// ParseAnswerID splits an answer id into question id and author name.
// The author is everything after the first '-' since model names may
// themselves contain dashes.
func ParseAnswerID(answerID string) (questionID int, author string, err error) {
	idx := strings.Index(answerID, "-")
	if idx <= 0 || idx == len(answerID)-1 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidAnswerID, answerID)
	}
	questionID, err = strconv.Atoi(answerID[:idx])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidAnswerID, answerID)
	}
	return questionID, answerID[idx+1:], nil
}

// AuthorOf returns the author segment of an answer id, or "" if malformed.
func AuthorOf(answerID string) string {
	_, author, err := ParseAnswerID(answerID)
	if err != nil {
		return ""
	}
	return author
}
