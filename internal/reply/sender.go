package reply

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/joshsymonds/autoreply/internal/gmail"
)

const fromHeader = "From"

// ErrHeaderNotFound is returned when a message lacks a header the responder needs.
var ErrHeaderNotFound = errors.New("header not found")

// ResolveSender returns the raw From header of msg.
func ResolveSender(msg gmail.Message) (string, error) {
	from, ok := msg.Header(fromHeader)
	if !ok || strings.TrimSpace(from) == "" {
		return "", fmt.Errorf("message %s: %q: %w", msg.ID, fromHeader, ErrHeaderNotFound)
	}
	return from, nil
}

// ReplyAddress reduces a From header value to the bare address of its first
// mailbox. Values that do not parse are returned trimmed and unchanged.
func ReplyAddress(from string) string {
	from = strings.TrimSpace(from)
	addrs, err := mail.ParseAddressList(from)
	if err != nil {
		return from
	}
	for _, addr := range addrs {
		if addr.Address != "" {
			return addr.Address
		}
	}
	return from
}
