// Package queue implements the task queue server: a durable sqlite table of
// pending rank tasks behind a lease-and-complete HTTP protocol, plus the
// reconciliation pass that rebuilds the table from the ledger tree.
package queue

// RankTask is one pending grading task. Rows carry file paths rather than
// content so the table stays small and the server always serves the current
// question and answer text. Column names match the table written by earlier
// tooling so existing task databases keep working.
type RankTask struct {
	AnswerID     string `gorm:"column:Id;primaryKey"`
	PostID       int    `gorm:"column:PostId;not null;index"`
	VPath        string `gorm:"column:VPath;not null"`
	QuestionPath string `gorm:"column:QuestionPath;not null"`
	MetaPath     string `gorm:"column:MetaPath;not null"`
	AnswerPath   string `gorm:"column:AnswerPath;not null"`
}

// TableName pins the legacy table name.
func (RankTask) TableName() string { return "RankTask" }
