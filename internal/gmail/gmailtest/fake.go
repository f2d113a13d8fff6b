// Package gmailtest provides an in-memory gmail.Client for tests.
package gmailtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshsymonds/autoreply/internal/gmail"
)

// Fake is a concurrency-safe in-memory mailbox. Thread label sets behave like
// Gmail's: adding a label twice keeps one copy, and a sent reply joins its
// thread carrying the SENT label.
type Fake struct {
	mu sync.Mutex

	Threads      []gmail.ThreadID
	Messages     map[gmail.ThreadID][]gmail.Message
	Labels       []gmail.Label
	ThreadLabels map[gmail.ThreadID][]gmail.LabelID
	Sent         []gmail.OutgoingMessage

	ListErr   error
	GetErr    map[gmail.ThreadID]error
	SendErr   map[gmail.ThreadID]error
	CreateErr error
	ModifyErr error

	// BeforeCreate runs before a label is created; returning true makes
	// CreateLabel fail with gmail.ErrLabelExists, as if another client won.
	BeforeCreate func(f *Fake, name string) bool

	Calls       map[string]int
	LastQuery   gmail.ThreadQuery
	nextLabelID int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Messages:     map[gmail.ThreadID][]gmail.Message{},
		ThreadLabels: map[gmail.ThreadID][]gmail.LabelID{},
		GetErr:       map[gmail.ThreadID]error{},
		SendErr:      map[gmail.ThreadID]error{},
		Calls:        map[string]int{},
	}
}

// AddThread registers a thread and its messages in list order.
func (f *Fake) AddThread(id gmail.ThreadID, msgs ...gmail.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Threads = append(f.Threads, id)
	f.Messages[id] = msgs
}

// AddLabelLocked inserts a label without counting a call. Callers inside
// BeforeCreate already hold the lock.
// Generated IDs never collide with labels a test preloaded.
func (f *Fake) AddLabelLocked(name string) gmail.LabelID {
	for {
		f.nextLabelID++
		id := gmail.LabelID(fmt.Sprintf("Label_%d", f.nextLabelID))
		if f.hasLabelIDLocked(id) {
			continue
		}
		f.Labels = append(f.Labels, gmail.Label{ID: id, Name: name})
		return id
	}
}

func (f *Fake) hasLabelIDLocked(id gmail.LabelID) bool {
	for _, l := range f.Labels {
		if l.ID == id {
			return true
		}
	}
	return false
}

// LabelsNamed counts labels with the given name.
func (f *Fake) LabelsNamed(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.Labels {
		if l.Name == name {
			n++
		}
	}
	return n
}

// Count returns how often op was called.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

// LabelsOf returns a copy of the labels attached to a thread.
func (f *Fake) LabelsOf(id gmail.ThreadID) []gmail.LabelID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gmail.LabelID(nil), f.ThreadLabels[id]...)
}

// SentTo returns the outgoing messages addressed into a thread.
func (f *Fake) SentTo(id gmail.ThreadID) []gmail.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gmail.OutgoingMessage
	for _, m := range f.Sent {
		if m.ThreadID == id {
			out = append(out, m)
		}
	}
	return out
}

func (f *Fake) ListThreads(ctx context.Context, q gmail.ThreadQuery) (gmail.ThreadPage, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["ListThreads"]++
	f.LastQuery = q
	if f.ListErr != nil {
		return gmail.ThreadPage{}, f.ListErr
	}
	ids := append([]gmail.ThreadID(nil), f.Threads...)
	if q.MaxResults > 0 && len(ids) > q.MaxResults {
		ids = ids[:q.MaxResults]
	}
	return gmail.ThreadPage{IDs: ids}, nil
}

func (f *Fake) GetThread(ctx context.Context, id gmail.ThreadID) ([]gmail.Message, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["GetThread"]++
	if err := f.GetErr[id]; err != nil {
		return nil, err
	}
	msgs, ok := f.Messages[id]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", id, gmail.ErrNotFound)
	}
	return append([]gmail.Message(nil), msgs...), nil
}

func (f *Fake) ListLabels(ctx context.Context) ([]gmail.Label, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["ListLabels"]++
	return append([]gmail.Label(nil), f.Labels...), nil
}

func (f *Fake) CreateLabel(ctx context.Context, name string) (gmail.Label, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["CreateLabel"]++
	if f.CreateErr != nil {
		return gmail.Label{}, f.CreateErr
	}
	if f.BeforeCreate != nil && f.BeforeCreate(f, name) {
		return gmail.Label{}, fmt.Errorf("create %q: %w", name, gmail.ErrLabelExists)
	}
	for _, l := range f.Labels {
		if l.Name == name {
			return gmail.Label{}, fmt.Errorf("create %q: %w", name, gmail.ErrLabelExists)
		}
	}
	id := f.AddLabelLocked(name)
	return gmail.Label{ID: id, Name: name}, nil
}

func (f *Fake) ModifyThread(ctx context.Context, id gmail.ThreadID, add []gmail.LabelID) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["ModifyThread"]++
	if f.ModifyErr != nil {
		return f.ModifyErr
	}
	if _, ok := f.Messages[id]; !ok {
		return fmt.Errorf("thread %s: %w", id, gmail.ErrNotFound)
	}
	current := f.ThreadLabels[id]
	for _, lid := range add {
		if !containsLabel(current, lid) {
			current = append(current, lid)
		}
	}
	f.ThreadLabels[id] = current
	return nil
}

func (f *Fake) Send(ctx context.Context, msg gmail.OutgoingMessage) (gmail.MessageID, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["Send"]++
	if err := f.SendErr[msg.ThreadID]; err != nil {
		return "", err
	}
	f.Sent = append(f.Sent, msg)
	id := gmail.MessageID(fmt.Sprintf("sent-%d", len(f.Sent)))
	if msgs, ok := f.Messages[msg.ThreadID]; ok {
		f.Messages[msg.ThreadID] = append(msgs, gmail.Message{
			ID:       id,
			ThreadID: msg.ThreadID,
			LabelIDs: []gmail.LabelID{gmail.LabelSent},
		})
	}
	return id, nil
}

func containsLabel(ids []gmail.LabelID, id gmail.LabelID) bool {
	for _, l := range ids {
		if l == id {
			return true
		}
	}
	return false
}

var _ gmail.Client = (*Fake)(nil)
