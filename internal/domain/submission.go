package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Submission is a business listing request posted by a visitor.
// The payload is kept verbatim; Valid records whether it matched the
// listing schema.
type Submission struct {
	ID         string          `json:"id"`
	Host       string          `json:"host"`
	City       string          `json:"city"`
	Payload    json.RawMessage `json:"payload"`
	Valid      bool            `json:"valid"`
	Problems   []string        `json:"problems,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// SubmissionNotifier forwards a new submission to the people reviewing them.
type SubmissionNotifier interface {
	Notify(ctx context.Context, s Submission) error
}
