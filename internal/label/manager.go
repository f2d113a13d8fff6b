// Package label makes sure the responder's tag label exists and attaches it to threads.
package label

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/joshsymonds/autoreply/internal/gmail"
	"github.com/joshsymonds/autoreply/internal/rate"
)

// Manager resolves label names to IDs, creating labels on first use.
//
// Concurrent Ensure calls for the same name share a single list/create round
// trip. Across processes the create call can still race; a create rejected
// because the name already exists is resolved by listing again.
type Manager struct {
	Client  gmail.Client
	Limiter rate.Limiter
	Logger  *slog.Logger

	flights singleflight.Group
}

// NewManager constructs a Manager.
func NewManager(client gmail.Client, limiter rate.Limiter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Manager{Client: client, Limiter: limiter, Logger: logger}
}

// Ensure returns the ID of the label called name, creating it when absent.
func (m *Manager) Ensure(ctx context.Context, name string) (gmail.LabelID, error) {
	if name == "" {
		return "", errors.New("label name must not be empty")
	}
	v, err, _ := m.flights.Do(name, func() (any, error) {
		return m.ensure(ctx, name)
	})
	if err != nil {
		return "", err
	}
	return v.(gmail.LabelID), nil
}

// EnsureAttached ensures the label exists and adds it to the thread. Existing
// thread labels are kept; adding a label the thread already has changes nothing.
func (m *Manager) EnsureAttached(ctx context.Context, thread gmail.ThreadID, name string) (gmail.LabelID, error) {
	id, err := m.Ensure(ctx, name)
	if err != nil {
		return "", err
	}
	if err := rate.Wait(ctx, m.Limiter, "rate limit modify thread"); err != nil {
		return "", err
	}
	if err := m.Client.ModifyThread(ctx, thread, []gmail.LabelID{id}); err != nil {
		return "", fmt.Errorf("attach label %q to thread %s: %w", name, thread, err)
	}
	return id, nil
}

func (m *Manager) ensure(ctx context.Context, name string) (gmail.LabelID, error) {
	if id, ok, err := m.lookup(ctx, name); err != nil || ok {
		return id, err
	}

	if err := rate.Wait(ctx, m.Limiter, "rate limit create label"); err != nil {
		return "", err
	}
	created, err := m.Client.CreateLabel(ctx, name)
	switch {
	case err == nil:
		m.Logger.InfoContext(ctx, "created label", slog.String("label", name), slog.String("label_id", string(created.ID)))
		return created.ID, nil
	case errors.Is(err, gmail.ErrLabelExists):
		m.Logger.DebugContext(ctx, "label created concurrently", slog.String("label", name))
		id, ok, lookupErr := m.lookup(ctx, name)
		if lookupErr != nil {
			return "", lookupErr
		}
		if !ok {
			return "", fmt.Errorf("label %q reported as existing but not listed: %w", name, err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
}

func (m *Manager) lookup(ctx context.Context, name string) (gmail.LabelID, bool, error) {
	if err := rate.Wait(ctx, m.Limiter, "rate limit list labels"); err != nil {
		return "", false, err
	}
	labels, err := m.Client.ListLabels(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list labels: %w", err)
	}
	for _, l := range labels {
		if l.Name == name {
			return l.ID, true, nil
		}
	}
	return "", false, nil
}
