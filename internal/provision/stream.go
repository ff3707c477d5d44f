// Package provision runs the tenant onboarding workflow: account creation
// from a snapshot, initial user setup, asset folder creation and custom
// field sync, reporting progress over a live event stream.
package provision

import "github.com/onboardly/onboardly/internal/models"

// Stream receives progress events during a workflow run. Exactly one
// Success or Failure call terminates the stream.
type Stream interface {
	// Progress reports a completed milestone
	Progress(message string)
	// Success reports workflow completion with the new account id
	Success(message, accountID string)
	// Failure reports workflow abort with a human-readable reason
	Failure(reason string)
}

// CollectorStream records events in order. Used by tests and by callers
// that want the run's history without a live transport.
type CollectorStream struct {
	Events []models.StreamEvent
}

func (s *CollectorStream) Progress(message string) {
	s.Events = append(s.Events, models.StreamEvent{Type: models.EventProgress, Message: message})
}

func (s *CollectorStream) Success(message, accountID string) {
	s.Events = append(s.Events, models.StreamEvent{Type: models.EventSuccess, Message: message, AccountID: accountID})
}

func (s *CollectorStream) Failure(reason string) {
	s.Events = append(s.Events, models.StreamEvent{Type: models.EventFailure, Message: "provisioning failed", Reason: reason})
}
