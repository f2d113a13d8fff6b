package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/joshsymonds/autoreply/internal/gmail"
)

// Scopes lists the OAuth scopes the responder needs: reading threads,
// sending replies and applying labels.
func Scopes() []string {
	return []string{gmailapi.GmailModifyScope}
}

// NewGmailClient builds a Gmail client authorized by ts. Extra options are
// appended after the token source, which lets tests point at a fake server.
func NewGmailClient(ctx context.Context, ts oauth2.TokenSource, bs BreakerSettings, logger *slog.Logger, opts ...option.ClientOption) (gmail.Client, error) {
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := gmailapi.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc, bs, logger), nil
}

func DefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
