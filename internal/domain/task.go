package domain

// RankTaskDTO is the wire shape served to ranking workers by GET
// /api/RankAnswer. It carries everything a judge needs so workers never
// touch the file tree.
type RankTaskDTO struct {
	AnswerID   string   `json:"answerId"`
	PostID     int      `json:"postId"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Body       string   `json:"body"`
	AnswerBody string   `json:"answerBody"`
}

// CompleteRequest is the POST /api/RankAnswer body reporting a finished or
// abandoned rank task. With Fail set the task is retired without touching
// the ledger; otherwise Model, Score, and Reason are all required.
type CompleteRequest struct {
	AnswerID string  `json:"answerId" validate:"required"`
	Model    string  `json:"model"`
	Score    *int    `json:"score"`
	Reason   *string `json:"reason"`
	Fail     bool    `json:"fail"`
}
