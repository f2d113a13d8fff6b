// Package reply holds the pure decision and formatting steps of an auto-reply:
// whether a thread still needs one, who it goes to, and the raw message itself.
package reply

import "github.com/joshsymonds/autoreply/internal/gmail"

// HasReplied reports whether any message of a thread was sent by the account
// owner, i.e. carries the SENT label. An empty thread has not been replied to.
func HasReplied(messages []gmail.Message) bool {
	for _, m := range messages {
		if m.HasLabel(gmail.LabelSent) {
			return true
		}
	}
	return false
}
