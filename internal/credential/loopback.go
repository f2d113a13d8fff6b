package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const defaultConsentTimeout = 5 * time.Minute

// LoopbackAuthorizer runs the installed-app flow: it serves the redirect on a
// local port, prints the consent URL and exchanges the returned code.
type LoopbackAuthorizer struct {
	ListenAddr string        // defaults to 127.0.0.1:0
	Timeout    time.Duration // defaults to five minutes
	Prompt     func(authURL string)
	Logger     *slog.Logger
}

func (a *LoopbackAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	addr := a.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultConsentTimeout
	}
	prompt := a.Prompt
	if prompt == nil {
		prompt = func(u string) {
			fmt.Fprintf(os.Stderr, "Open the following URL in a browser to authorize autoreply:\n\n%s\n\n", u)
		}
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth redirect: %w", err)
	}
	flow := *cfg
	flow.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	codes := make(chan string, 1)
	failures := make(chan error, 1)

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			reason, code := q.Get("error"), q.Get("code")
			if reason == "" && code == "" {
				http.NotFound(w, r)
				return
			}
			// Both outcomes must come from the consent screen we opened.
			if q.Get("state") != state {
				logger.WarnContext(ctx, "oauth redirect with unexpected state")
				http.Error(w, "State mismatch.", http.StatusBadRequest)
				return
			}
			if reason != "" {
				http.Error(w, "Authorization was denied.", http.StatusBadRequest)
				sendOnce(failures, fmt.Errorf("consent denied: %s", reason))
				return
			}
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
			sendOnce(codes, code)
		}),
	}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			sendOnce(failures, fmt.Errorf("serve oauth redirect: %w", serveErr))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	prompt(flow.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var code string
	select {
	case code = <-codes:
	case err := <-failures:
		return nil, err
	case <-timer.C:
		return nil, fmt.Errorf("authorization timed out after %s", timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization canceled: %w", ctx.Err())
	}

	tok, err := flow.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	logger.InfoContext(ctx, "authorization complete")
	return tok, nil
}

func sendOnce[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

var _ Authorizer = (*LoopbackAuthorizer)(nil)
