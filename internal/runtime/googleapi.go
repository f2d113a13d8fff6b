// Package runtime wires the Gmail REST API to the gmail.Client interface and
// holds process-level helpers shared by the command.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/joshsymonds/autoreply/internal/gmail"
)

const me = "me"

// BreakerSettings tunes the circuit breaker around Gmail calls.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker. Zero disables tripping.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

type googleClient struct {
	svc    *gmailapi.Service
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewGoogleAPIClient adapts svc. Server errors and transport failures count
// toward the breaker; 4xx answers such as a missing thread do not, and
// neither do calls abandoned by their caller.
func NewGoogleAPIClient(svc *gmailapi.Service, bs BreakerSettings, logger *slog.Logger) gmail.Client {
	if logger == nil {
		logger = DefaultLogger(slog.LevelInfo)
	}
	st := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return bs.ConsecutiveFailures > 0 && c.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		IsSuccessful: healthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &googleClient{svc: svc, cb: gobreaker.NewCircuitBreaker(st), logger: logger}
}

// healthy reports whether err leaves the breaker's view of Gmail unchanged.
func healthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500
}

// do runs fn through the breaker and maps API errors onto gmail sentinels.
func do[T any](g *googleClient, op string, fn func() (T, error)) (T, error) {
	out, err := g.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return out.(T), nil
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w wrapped) Error() string { return w.cause.Error() }

func (w wrapped) Unwrap() []error { return []error{w.sentinel, w.cause} }

func mapError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusNotFound:
		return wrapped{sentinel: gmail.ErrNotFound, cause: err}
	case http.StatusConflict:
		return wrapped{sentinel: gmail.ErrLabelExists, cause: err}
	}
	return err
}

func (g *googleClient) ListThreads(ctx context.Context, q gmail.ThreadQuery) (gmail.ThreadPage, error) {
	return do(g, "list threads", func() (gmail.ThreadPage, error) {
		call := g.svc.Users.Threads.List(me).Context(ctx)
		if q.MaxResults > 0 {
			call = call.MaxResults(int64(q.MaxResults))
		}
		if q.Raw != "" {
			call = call.Q(q.Raw)
		}
		res, err := call.Do()
		if err != nil {
			return gmail.ThreadPage{}, err
		}
		page := gmail.ThreadPage{NextPageToken: res.NextPageToken}
		for _, t := range res.Threads {
			page.IDs = append(page.IDs, gmail.ThreadID(t.Id))
		}
		return page, nil
	})
}

func (g *googleClient) GetThread(ctx context.Context, id gmail.ThreadID) ([]gmail.Message, error) {
	return do(g, "get thread "+string(id), func() ([]gmail.Message, error) {
		th, err := g.svc.Users.Threads.Get(me, string(id)).Format("metadata").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		msgs := make([]gmail.Message, 0, len(th.Messages))
		for _, m := range th.Messages {
			msgs = append(msgs, toMessage(m))
		}
		return msgs, nil
	})
}

func toMessage(m *gmailapi.Message) gmail.Message {
	out := gmail.Message{
		ID:       gmail.MessageID(m.Id),
		ThreadID: gmail.ThreadID(m.ThreadId),
		Snippet:  m.Snippet,
	}
	for _, l := range m.LabelIds {
		out.LabelIDs = append(out.LabelIDs, gmail.LabelID(l))
	}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			out.Headers = append(out.Headers, gmail.Header{Name: h.Name, Value: h.Value})
		}
	}
	return out
}

func (g *googleClient) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	return do(g, "list labels", func() ([]gmail.Label, error) {
		res, err := g.svc.Users.Labels.List(me).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		labels := make([]gmail.Label, 0, len(res.Labels))
		for _, l := range res.Labels {
			labels = append(labels, gmail.Label{ID: gmail.LabelID(l.Id), Name: l.Name})
		}
		return labels, nil
	})
}

func (g *googleClient) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	return do(g, fmt.Sprintf("create label %q", name), func() (gmail.Label, error) {
		l, err := g.svc.Users.Labels.Create(me, &gmailapi.Label{Name: name}).Context(ctx).Do()
		if err != nil {
			return gmail.Label{}, err
		}
		return gmail.Label{ID: gmail.LabelID(l.Id), Name: l.Name}, nil
	})
}

func (g *googleClient) ModifyThread(ctx context.Context, id gmail.ThreadID, add []gmail.LabelID) error {
	_, err := do(g, "modify thread "+string(id), func() (struct{}, error) {
		req := &gmailapi.ModifyThreadRequest{}
		for _, l := range add {
			req.AddLabelIds = append(req.AddLabelIds, string(l))
		}
		_, err := g.svc.Users.Threads.Modify(me, string(id), req).Context(ctx).Do()
		return struct{}{}, err
	})
	return err
}

func (g *googleClient) Send(ctx context.Context, msg gmail.OutgoingMessage) (gmail.MessageID, error) {
	return do(g, "send message", func() (gmail.MessageID, error) {
		sent, err := g.svc.Users.Messages.Send(me, &gmailapi.Message{
			Raw:      msg.Raw,
			ThreadId: string(msg.ThreadID),
		}).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		return gmail.MessageID(sent.Id), nil
	})
}
