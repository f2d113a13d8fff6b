package reply

import (
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message"
	"github.com/nalgeon/be"
)

func TestComposeRawExactBytes(t *testing.T) {
	raw := ComposeRaw("alice@example.com", "new message", "This is the email body.")
	// "To: alice@example.com\r\nSubject: new message\r\n\r\nThis is the email body."
	want := "VG86IGFsaWNlQGV4YW1wbGUuY29tDQpTdWJqZWN0OiBuZXcgbWVzc2FnZQ0KDQpUaGlzIGlzIHRoZSBlbWFpbCBib2R5Lg=="
	be.Equal(t, raw, want)
}

func TestComposeRawURLAlphabet(t *testing.T) {
	// Standard base64 of this message ends in "+//+".
	raw := ComposeRaw("a@example.com", "s", "\xfb\xff\xfe")
	be.Equal(t, raw, "VG86IGFAZXhhbXBsZS5jb20NClN1YmplY3Q6IHMNCg0K-__-")

	d, err := DecodeRaw(raw)
	be.Err(t, err, nil)
	be.Equal(t, d.Body, "\xfb\xff\xfe")
}

func TestComposeRawDeterministic(t *testing.T) {
	a := ComposeRaw("x@example.com", "Re: hi", "body\r\nline two")
	b := ComposeRaw("x@example.com", "Re: hi", "body\r\nline two")
	be.Equal(t, a, b)
}

func TestComposeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		to      string
		subject string
		body    string
	}{
		{name: "plain", to: "alice@example.com", subject: "new message", body: "This is the email body."},
		{name: "display name", to: `"Alice" <alice@example.com>`, subject: "hello", body: "hi"},
		{name: "empty body", to: "b@example.com", subject: "nothing", body: ""},
		{name: "multiline body", to: "c@example.com", subject: "lines", body: "one\r\n\r\ntwo"},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			d, err := DecodeRaw(ComposeRaw(tc.to, tc.subject, tc.body))
			be.Err(t, err, nil)
			be.Equal(t, d, Draft{To: tc.to, Subject: tc.subject, Body: tc.body})
		})
	}
}

func TestComposeRawHeaderInjection(t *testing.T) {
	raw := ComposeRaw("evil@example.com\r\nBcc: victim@example.com", "s", "b")
	d, err := DecodeRaw(raw)
	be.Err(t, err, nil)
	be.True(t, !strings.Contains(d.To, "\r"))
	be.True(t, !strings.Contains(d.To, "\n"))
	be.Equal(t, d.Body, "b")
}

func TestComposeRawParsesAsMessage(t *testing.T) {
	raw := ComposeRaw("alice@example.com", "new message", "This is the email body.")
	d, err := DecodeRaw(raw)
	be.Err(t, err, nil)

	plain := "To: " + d.To + "\r\nSubject: " + d.Subject + "\r\n\r\n" + d.Body
	entity, err := message.Read(strings.NewReader(plain))
	be.Err(t, err, nil)
	be.Equal(t, entity.Header.Get("To"), "alice@example.com")
	be.Equal(t, entity.Header.Get("Subject"), "new message")

	body, err := io.ReadAll(entity.Body)
	be.Err(t, err, nil)
	be.Equal(t, string(body), "This is the email body.")
}
