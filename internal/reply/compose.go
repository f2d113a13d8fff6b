package reply

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const crlf = "\r\n"

// Draft is the decoded form of a composed reply.
type Draft struct {
	To      string
	Subject string
	Body    string
}

var headerSanitizer = strings.NewReplacer("\r", "", "\n", " ")

// ComposeRaw builds a minimal RFC 822 message
//
//	To: <to>\r\nSubject: <subject>\r\n\r\n<body>
//
// and encodes it with the URL-safe base64 alphabet Gmail expects in the raw
// field. Line breaks in header values are flattened so a crafted From header
// cannot add headers of its own.
func ComposeRaw(to, subject, body string) string {
	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(headerSanitizer.Replace(to))
	b.WriteString(crlf)
	b.WriteString("Subject: ")
	b.WriteString(headerSanitizer.Replace(subject))
	b.WriteString(crlf)
	b.WriteString(crlf)
	b.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// DecodeRaw reverses ComposeRaw.
func DecodeRaw(raw string) (Draft, error) {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return Draft{}, fmt.Errorf("decode raw message: %w", err)
	}
	head, body, ok := strings.Cut(string(data), crlf+crlf)
	if !ok {
		return Draft{}, fmt.Errorf("raw message has no header separator")
	}
	var d Draft
	for _, line := range strings.Split(head, crlf) {
		name, value, found := strings.Cut(line, ": ")
		if !found {
			return Draft{}, fmt.Errorf("malformed header line %q", line)
		}
		switch name {
		case "To":
			d.To = value
		case "Subject":
			d.Subject = value
		}
	}
	d.Body = body
	return d, nil
}
