package responder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshsymonds/autoreply/internal/gmail"
)

// Outcome describes what a pass did with one thread.
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeAlreadyReplied Outcome = "already-replied"
	OutcomeDryRun         Outcome = "dry-run"
	OutcomeEmpty          Outcome = "empty"
	OutcomeFailed         Outcome = "failed"
)

// Op names the step a thread failed in.
type Op string

const (
	OpGetThread     Op = "get-thread"
	OpResolveSender Op = "resolve-sender"
	OpSend          Op = "send"
	OpLabel         Op = "label"
)

// ThreadError is a failure while processing a single thread.
type ThreadError struct {
	ThreadID gmail.ThreadID
	Op       Op
	Err      error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread %s: %s: %v", e.ThreadID, e.Op, e.Err)
}

func (e *ThreadError) Unwrap() error { return e.Err }

// ThreadResult is the per-thread outcome of a pass. SentID is set whenever
// the reply went out, even if labelling failed afterwards.
type ThreadResult struct {
	ThreadID gmail.ThreadID  `json:"thread_id"`
	Outcome  Outcome         `json:"outcome"`
	To       string          `json:"to,omitempty"`
	SentID   gmail.MessageID `json:"sent_id,omitempty"`
	LabelID  gmail.LabelID   `json:"label_id,omitempty"`
	Err      *ThreadError    `json:"-"`
}

// Report summarizes one pass.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DryRun     bool           `json:"dry_run"`
	Listed     int            `json:"listed"`
	Results    []ThreadResult `json:"results"`
}

// Count returns the number of threads that ended with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the per-thread errors in list order.
func (r Report) Failures() []*ThreadError {
	var out []*ThreadError
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Err)
		}
	}
	return out
}

// Err joins all per-thread failures, or returns nil.
func (r Report) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Summary renders a one-line description of the pass.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d threads", r.RunID, r.Listed)
	for _, o := range []Outcome{OutcomeSent, OutcomeDryRun, OutcomeAlreadyReplied, OutcomeEmpty, OutcomeFailed} {
		if n := r.Count(o); n > 0 {
			fmt.Fprintf(&b, ", %d %s", n, o)
		}
	}
	return b.String()
}
