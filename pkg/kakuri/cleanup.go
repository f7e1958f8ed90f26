package kakuri

import (
	log "github.com/sirupsen/logrus"
)

type cleanupAction struct {
	label string
	fn    func() error
}

// CleanupStack collects undo actions for resources as they are
// acquired. Run executes them in reverse registration order on every
// exit path; failures are logged and never replace the primary error.
type CleanupStack struct {
	actions []cleanupAction
}

// Push registers an undo action. Register immediately after the
// resource it covers has been acquired.
func (s *CleanupStack) Push(label string, fn func() error) {
	s.actions = append(s.actions, cleanupAction{label: label, fn: fn})
}

// Run executes all registered actions last-in first-out and clears the
// stack.
func (s *CleanupStack) Run() {
	for i := len(s.actions) - 1; i >= 0; i-- {
		action := s.actions[i]
		if err := action.fn(); err != nil {
			log.WithError(err).Warnf("cleanup: %s failed", action.label)
		}
	}
	s.actions = nil
}

// Len returns the number of pending actions.
func (s *CleanupStack) Len() int {
	return len(s.actions)
}
