// Package judge builds the grading prompt for a question/answer pair and
// extracts a structured {score, reason} result from the free-form text a
// judge model returns.
package judge

import (
	"fmt"
	"strings"

	"github.com/coderated/gradepipe/internal/domain"
)

// Scoring call parameters. Low temperature keeps judges consistent across
// reruns of the same answer.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.1
)

// SystemPrompt frames the judge's role for every grading call.
const SystemPrompt = "You are an AI assistant that votes on the quality and " +
	"relevance of answers to a given question. Before giving votes, give a " +
	"critique of each answer based on quality and relevance."

// exampleSchema is rendered into the prompt so judges see the exact object
// shape expected back.
const exampleSchema = `{
    "reason": "Your reason goes here. Below score is only an example. Score should reflect the review of the answer.",
    "score": 1
}`

// BuildPrompt renders the deterministic grading prompt for one rank task.
// The rubric's four bands, the code-mistake penalty, and the fenced-JSON
// instruction are all part of the contract the extractor relies on.
func BuildPrompt(task domain.RankTaskDTO) string {
	var b strings.Builder

	b.WriteString("Below I have a user question and an answer to the user question. ")
	b.WriteString("I want you to give a score out of 10 based on the quality in relation to the original user question. \n\n")

	b.WriteString("## Original User Question\n\n")
	fmt.Fprintf(&b, "Title: %s\n", task.Title)
	fmt.Fprintf(&b, "Body:\n%s\n", task.Body)
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(task.Tags, ", "))
	b.WriteString("---\n\n")

	b.WriteString("Critique the below answer to justify your score, providing a brief explanation ")
	b.WriteString("before returning the simple JSON object showing your reasoning and score.\n\n")
	b.WriteString("Think about the answer given in relation to the original user question. ")
	b.WriteString("Use the tags to help you understand the context of the question.\n\n")

	b.WriteString("## Answer Attempt\n\n")
	b.WriteString(task.AnswerBody)
	b.WriteString("\n---\n\n")

	b.WriteString("Now review and score the answer above out of 10.\n\n")
	b.WriteString("Concisely articulate what a good answer needs to contain and how the answer ")
	b.WriteString("provided does or does not meet those criteria.\n\n")

	b.WriteString("- If the answer has mistakes or does not address all the question details, score it between 0-2. \n")
	b.WriteString("- If the answer is correct, but could be improved, score it between 3-6. \n")
	b.WriteString("- If the answer is correct and provides a good explanation, score it between 7-9.\n")
	b.WriteString("- If the answer is perfect and provides a clear and concise explanation, score it 10. \n\n")

	b.WriteString("Because these are coding questions, mistakes in the code are critical and should be ")
	b.WriteString("scored lower. Look closely at the syntax and logic of the code for any mistakes, ")
	b.WriteString("including code written in a different language than the question asks for. ")
	b.WriteString("Missing mistakes in reviews leads to a failed review, and many answers are not correct.\n\n")

	b.WriteString("You MUST provide a JSON object with the following schema:\n\n")
	b.WriteString("## Example JSON Response\n\n")
	b.WriteString("```json\n")
	b.WriteString(exampleSchema)
	b.WriteString("\n```\n\n")
	b.WriteString("Use code fences, aka triple backticks, to encapsulate your JSON object.\n")

	return b.String()
}
