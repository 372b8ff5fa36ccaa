package domain

import (
	"errors"
	"time"

	"github.com/aretw0/crackle/pkg/model"
)

// Fault records an iteration that ended in a failure worth keeping: the
// location of the failure and the mutations that preceded it.
type Fault struct {
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration"`
	State     string    `json:"state"`
	Action    string    `json:"action"`
	Category  Category  `json:"category"`
	Path      string    `json:"path,omitempty"`
	Offset    int       `json:"offset"`
	Message   string    `json:"message"`
	Mutations []string  `json:"mutations,omitempty"`
	Time      time.Time `json:"time"`
}

// NewFault builds a Fault from a classified iteration error.
func NewFault(runID string, iteration int, err error) Fault {
	f := Fault{
		RunID:     runID,
		Iteration: iteration,
		Category:  Classify(err),
		Message:   err.Error(),
		Time:      time.Now().UTC(),
	}
	f.Path, f.Offset = Location(err)
	var re *RecoverableError
	if errors.As(err, &re) {
		f.State, f.Action = re.State, re.Action
	}
	return f
}

// ActionRecord is the trace of one executed action.
type ActionRecord struct {
	Iteration int           `json:"iteration"`
	State     string        `json:"state"`
	Action    string        `json:"action"`
	Type      ActionType    `json:"type"`
	Outcome   string        `json:"outcome"`
	Sent      []byte        `json:"sent,omitempty"`
	Received  []byte        `json:"received,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// SlurpRecording is the value copied by a slurp during a recording
// iteration, kept so replay iterations can reproduce it.
type SlurpRecording struct {
	Source string      `json:"source"`
	Sinks  []string    `json:"sinks"`
	Value  model.Value `json:"value"`
}
