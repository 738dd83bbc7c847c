// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/miranda/internal/logging"
)

// State is a step of one generation request.
type State string

const (
	StateReceived         State = "received"
	StateContextAssembled State = "context_assembled"
	StateModelInvoked     State = "model_invoked"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// StageError records the state a generation request was in when it failed.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return "failed at " + string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the state err failed in, or "" when err carries none.
func StageOf(err error) State {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// run tracks the state transitions of one request and logs each one.
type run struct {
	log   *logging.Logger
	state State
	start time.Time
}

func newRun(log *logging.Logger, kind, projectID string) *run {
	r := &run{
		log:   log.With("request_id", uuid.NewString(), "kind", kind, "project_id", projectID),
		state: StateReceived,
		start: time.Now(),
	}
	r.log.Debug("generation state", "state", StateReceived)
	return r
}

func (r *run) advance(s State) {
	r.state = s
	r.log.Debug("generation state", "state", s)
}

// fail moves the run to failed and wraps err with the state it failed in.
func (r *run) fail(err error) error {
	failedIn := r.state
	r.state = StateFailed
	r.log.Warn("generation failed", "stage", failedIn, "error", err,
		"elapsed_ms", time.Since(r.start).Milliseconds())
	return &StageError{Stage: failedIn, Err: err}
}

func (r *run) complete(kv ...any) {
	r.state = StateCompleted
	r.log.Info("generation completed",
		append(kv, "elapsed_ms", time.Since(r.start).Milliseconds())...)
}
