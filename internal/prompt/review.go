// Package prompt renders the text sent to the assistant providers.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// ReviewSystemPrompt is the system message sent with every review question.
const ReviewSystemPrompt = "You are a helpful product assistant."

//go:embed templates/review_question.tmpl
var templateFS embed.FS

var reviewQuestion = template.Must(template.ParseFS(templateFS, "templates/review_question.tmpl"))

// ReviewQuestionData fills the review question template.
type ReviewQuestionData struct {
	Reviews  string
	Question string
}

// BuildReviewQuestion renders the user prompt for a question about the
// uploaded reviews.
func BuildReviewQuestion(data ReviewQuestionData) (string, error) {
	var sb strings.Builder
	if err := reviewQuestion.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render review question: %w", err)
	}
	return sb.String(), nil
}
