package reply

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/joshsymonds/autoreply/internal/gmail"
)

func TestResolveSender(t *testing.T) {
	msg := gmail.Message{
		ID: "m1",
		Headers: []gmail.Header{
			{Name: "Subject", Value: "hello"},
			{Name: "From", Value: `"Alice" <alice@example.com>`},
			{Name: "From", Value: "second@example.com"},
		},
	}
	got, err := ResolveSender(msg)
	be.Err(t, err, nil)
	be.Equal(t, got, `"Alice" <alice@example.com>`)
}

func TestResolveSenderMissing(t *testing.T) {
	msg := gmail.Message{
		ID:      "m2",
		Headers: []gmail.Header{{Name: "Subject", Value: "no sender"}},
	}
	_, err := ResolveSender(msg)
	be.Err(t, err, ErrHeaderNotFound)
}

func TestResolveSenderCaseSensitive(t *testing.T) {
	msg := gmail.Message{
		ID:      "m3",
		Headers: []gmail.Header{{Name: "from", Value: "bob@example.com"}},
	}
	_, err := ResolveSender(msg)
	be.Err(t, err, ErrHeaderNotFound)
}

func TestResolveSenderBlank(t *testing.T) {
	msg := gmail.Message{
		ID:      "m4",
		Headers: []gmail.Header{{Name: "From", Value: "  "}},
	}
	_, err := ResolveSender(msg)
	be.Err(t, err, ErrHeaderNotFound)
}

func TestReplyAddress(t *testing.T) {
	be.Equal(t, ReplyAddress(`"Alice" <alice@example.com>`), "alice@example.com")
	be.Equal(t, ReplyAddress("bob@example.com"), "bob@example.com")
	be.Equal(t, ReplyAddress("Carol <carol@example.com>, dave@example.com"), "carol@example.com")
	be.Equal(t, ReplyAddress("  not an address  "), "not an address")
	be.Equal(t, ReplyAddress("=?UTF-8?Q?Ren=C3=A9?= <rene@example.com>"), "rene@example.com")
}
