package gmail

import (
	"context"
	"errors"
)

// ErrLabelExists is returned by CreateLabel when a label with the same name
// already exists in the account.
var ErrLabelExists = errors.New("label already exists")

// ErrNotFound is returned when the requested thread, message or label does not exist.
var ErrNotFound = errors.New("not found")

// Client is the narrow Gmail surface required by autoreply.
type Client interface {
	ListThreads(ctx context.Context, q ThreadQuery) (ThreadPage, error)
	GetThread(ctx context.Context, id ThreadID) ([]Message, error)
	ListLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) (Label, error)
	ModifyThread(ctx context.Context, id ThreadID, add []LabelID) error
	Send(ctx context.Context, msg OutgoingMessage) (MessageID, error)
}
