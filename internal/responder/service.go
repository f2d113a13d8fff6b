// Package responder runs one auto-reply pass over the most recent threads.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/joshsymonds/autoreply/internal/gmail"
	"github.com/joshsymonds/autoreply/internal/rate"
	"github.com/joshsymonds/autoreply/internal/reply"
)

const (
	defaultThreadFetchLimit = 5
	defaultSubject          = "new message"
	defaultBody             = "This is the email body."
)

// Options controls a single pass.
type Options struct {
	ThreadFetchLimit int
	LabelName        string
	Subject          string
	Body             string
	Query            string // optional Gmail search restricting the listed threads
	Concurrency      int    // threads processed in parallel; 1 keeps list order
	DryRun           bool
}

func (o Options) withDefaults() Options {
	if o.ThreadFetchLimit <= 0 {
		o.ThreadFetchLimit = defaultThreadFetchLimit
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Subject == "" {
		o.Subject = defaultSubject
	}
	if o.Body == "" {
		o.Body = defaultBody
	}
	return o
}

// Labeler attaches the responder's tag label to a thread.
type Labeler interface {
	EnsureAttached(ctx context.Context, thread gmail.ThreadID, name string) (gmail.LabelID, error)
}

// Service replies to threads the account owner has not answered yet.
type Service struct {
	Client   gmail.Client
	Labels   Labeler
	Limiter  rate.Limiter
	Logger   *slog.Logger
	Clock    func() time.Time
	NewRunID func() string
}

// NewService constructs a Service with sane defaults.
func NewService(client gmail.Client, labels Labeler, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:   client,
		Labels:   labels,
		Limiter:  limiter,
		Logger:   logger,
		Clock:    time.Now,
		NewRunID: uuid.NewString,
	}
}

// Run lists the most recent threads and processes each of them. Only a
// failure to list threads is returned as an error; per-thread failures are
// collected in the report and never stop the remaining threads.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	opts = opts.withDefaults()
	if opts.LabelName == "" && !opts.DryRun {
		return Report{}, fmt.Errorf("label name must not be empty")
	}

	runID := s.NewRunID()
	logger := s.Logger.With(slog.String("run_id", runID))
	rep := Report{RunID: runID, StartedAt: s.Clock(), DryRun: opts.DryRun}

	if err := rate.Wait(ctx, s.Limiter, "rate limit list threads"); err != nil {
		return rep, err
	}
	page, err := s.Client.ListThreads(ctx, gmail.ThreadQuery{Raw: opts.Query, MaxResults: opts.ThreadFetchLimit})
	if err != nil {
		return rep, fmt.Errorf("list threads: %w", err)
	}
	ids := page.IDs
	if len(ids) > opts.ThreadFetchLimit {
		ids = ids[:opts.ThreadFetchLimit]
	}
	rep.Listed = len(ids)
	logger.InfoContext(ctx, "processing threads", slog.Int("threads", len(ids)), slog.Bool("dry_run", opts.DryRun))

	results := make([]ThreadResult, len(ids))
	p := pool.New().WithMaxGoroutines(opts.Concurrency)
	for i, id := range ids {
		p.Go(func() {
			results[i] = s.processThread(ctx, logger, opts, id)
		})
	}
	p.Wait()

	rep.Results = results
	rep.FinishedAt = s.Clock()
	for _, f := range rep.Failures() {
		logger.ErrorContext(ctx, "thread failed",
			slog.String("thread_id", string(f.ThreadID)),
			slog.String("op", string(f.Op)),
			slog.Any("error", f.Err))
	}
	logger.InfoContext(ctx, "tick complete",
		slog.Int("sent", rep.Count(OutcomeSent)),
		slog.Int("already_replied", rep.Count(OutcomeAlreadyReplied)),
		slog.Int("failed", rep.Count(OutcomeFailed)),
		slog.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

func (s *Service) processThread(ctx context.Context, logger *slog.Logger, opts Options, id gmail.ThreadID) ThreadResult {
	res := ThreadResult{ThreadID: id}
	fail := func(op Op, err error) ThreadResult {
		res.Outcome = OutcomeFailed
		res.Err = &ThreadError{ThreadID: id, Op: op, Err: err}
		return res
	}
	logger = logger.With(slog.String("thread_id", string(id)))

	if err := rate.Wait(ctx, s.Limiter, "rate limit get thread"); err != nil {
		return fail(OpGetThread, err)
	}
	msgs, err := s.Client.GetThread(ctx, id)
	if err != nil {
		return fail(OpGetThread, err)
	}
	if len(msgs) == 0 {
		logger.DebugContext(ctx, "thread has no messages")
		res.Outcome = OutcomeEmpty
		return res
	}
	if reply.HasReplied(msgs) {
		logger.DebugContext(ctx, "thread already answered")
		res.Outcome = OutcomeAlreadyReplied
		return res
	}

	from, err := reply.ResolveSender(msgs[0])
	if err != nil {
		return fail(OpResolveSender, err)
	}
	res.To = reply.ReplyAddress(from)

	if opts.DryRun {
		logger.InfoContext(ctx, "dry-run: would reply", slog.String("to", res.To), slog.String("label", opts.LabelName))
		res.Outcome = OutcomeDryRun
		return res
	}

	if err := rate.Wait(ctx, s.Limiter, "rate limit send"); err != nil {
		return fail(OpSend, err)
	}
	sentID, err := s.Client.Send(ctx, gmail.OutgoingMessage{
		ThreadID: id,
		Raw:      reply.ComposeRaw(res.To, opts.Subject, opts.Body),
	})
	if err != nil {
		return fail(OpSend, err)
	}
	res.SentID = sentID
	logger.InfoContext(ctx, "sent reply", slog.String("to", res.To), slog.String("message_id", string(sentID)))

	labelID, err := s.Labels.EnsureAttached(ctx, id, opts.LabelName)
	if err != nil {
		return fail(OpLabel, err)
	}
	res.LabelID = labelID
	res.Outcome = OutcomeSent
	return res
}
