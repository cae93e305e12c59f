// Package quiz holds the answered quiz as it is persisted for review.
package quiz

import "encoding/json"

// Question is one quiz question with the shopper's answers.
type Question struct {
	ID                   int             `json:"id"`
	Answered             bool            `json:"answered"`
	Question             string          `json:"question"`
	CustomAnswer         string          `json:"customAnswer"`
	TotalAnswersSelected int             `json:"totalAnswersSelected"`
	Prompt               json.RawMessage `json:"prompt,omitempty"` // string or []string
	Answers              []Answer        `json:"answers"`
}

// Answer is one selectable answer of a Question.
type Answer struct {
	ID       string          `json:"id"`
	Value    json.RawMessage `json:"value"` // string or []string
	Selected bool            `json:"selected"`
	Meta     []string        `json:"meta,omitempty"`
}

// Selected returns only the questions the shopper answered.
func Selected(questions []Question) []Question {
	var out []Question
	for _, q := range questions {
		if q.Answered {
			out = append(out, q)
		}
	}
	return out
}
