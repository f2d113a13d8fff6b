// internal/gmail/types.go
package gmail

type ThreadID string
type MessageID string
type LabelID string

// LabelSent is the system label Gmail puts on messages sent by the account owner.
const LabelSent LabelID = "SENT"

type Header struct {
	Name  string
	Value string
}

// Message is a single message of a thread. Headers keep the order Gmail
// returned them in.
type Message struct {
	ID       MessageID
	ThreadID ThreadID
	LabelIDs []LabelID
	Headers  []Header
	Snippet  string
}

// Header returns the value of the first header whose name is exactly name.
func (m Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// HasLabel reports whether id is among the message labels.
func (m Message) HasLabel(id LabelID) bool {
	for _, l := range m.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}

type Label struct {
	ID   LabelID
	Name string
}

type ThreadQuery struct {
	Raw        string // Gmail search string, may be empty (e.g. `in:inbox -from:me`)
	MaxResults int
}

type ThreadPage struct {
	IDs           []ThreadID
	NextPageToken string
}

// OutgoingMessage is a base64url encoded RFC 822 message sent into ThreadID.
type OutgoingMessage struct {
	ThreadID ThreadID
	Raw      string
}
