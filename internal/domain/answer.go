package domain

import "encoding/json"

// AnswerOrigin distinguishes human-authored answers from model generations.
type AnswerOrigin string

const (
	// OriginHuman marks answers imported from the source site (accepted or
	// most-voted answers).
	OriginHuman AnswerOrigin = "human"

	// OriginModel marks answers generated by an LLM.
	OriginModel AnswerOrigin = "model"
)

// Human answer pseudo-authors used by the import collaborator.
const (
	AuthorAccepted  = "accepted"
	AuthorMostVoted = "most-voted"
)

// IsHumanAuthor reports whether the author name denotes an imported human
// answer rather than a model generation.
func IsHumanAuthor(author string) bool {
	return author == AuthorAccepted || author == AuthorMostVoted
}

// Answer is one answer to a question, keyed "{questionId}-{author}".
// Immutable once written.
type Answer struct {
	ID     string       `json:"id"`
	Author string       `json:"author"`
	Origin AnswerOrigin `json:"origin"`
	Body   string       `json:"body"`
}

// OriginOf returns the origin implied by an author name.
func OriginOf(author string) AnswerOrigin {
	if IsHumanAuthor(author) {
		return OriginHuman
	}
	return OriginModel
}

// ExtractAnswerBody pulls the answer text out of a raw answer file. Model
// answers are stored as the provider's chat-completion response, human
// answers as a plain object with a body field. Returns "" when no text can
// be found.
func ExtractAnswerBody(raw []byte) string {
	var modelShape struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &modelShape); err == nil && len(modelShape.Choices) > 0 {
		if content := modelShape.Choices[0].Message.Content; content != "" {
			return content
		}
	}

	var humanShape struct {
		Body    string `json:"body"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &humanShape); err != nil {
		return ""
	}
	if humanShape.Body != "" {
		return humanShape.Body
	}
	return humanShape.Content
}
