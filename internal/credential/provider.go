package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Authorizer runs an interactive consent flow for cfg and returns the
// resulting token, which should carry a refresh token.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// Provider hands out authenticated sessions.
type Provider struct {
	Store            Store
	ClientConfigPath string
	Scopes           []string
	Authorizer       Authorizer
	Logger           *slog.Logger
	// Endpoint used to refresh cached credentials. Defaults to google.Endpoint.
	Endpoint oauth2.Endpoint
}

// NewProvider constructs a Provider with sane defaults.
func NewProvider(store Store, clientConfigPath string, scopes []string, auth Authorizer, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Provider{
		Store:            store,
		ClientConfigPath: clientConfigPath,
		Scopes:           scopes,
		Authorizer:       auth,
		Logger:           logger,
		Endpoint:         google.Endpoint,
	}
}

// Session returns a token source for the account. The cached credential is
// used when it can still mint an access token; otherwise the interactive
// flow runs and its result is persisted. An authorization failure is returned
// to the caller.
func (p *Provider) Session(ctx context.Context) (oauth2.TokenSource, error) {
	cached, err := p.Store.Load(ctx)
	switch {
	case err == nil:
		ts := cached.TokenSource(ctx, p.Endpoint, p.Scopes)
		_, tokErr := ts.Token()
		if tokErr == nil {
			p.Logger.DebugContext(ctx, "using cached credential")
			return ts, nil
		}
		p.Logger.WarnContext(ctx, "cached credential rejected", slog.Any("error", tokErr))
	case errors.Is(err, ErrNoToken):
		p.Logger.InfoContext(ctx, "no cached credential")
	default:
		p.Logger.WarnContext(ctx, "cached credential unreadable", slog.Any("error", err))
	}

	if p.Authorizer == nil {
		return nil, errors.New("no cached credential and no interactive authorizer configured")
	}
	cfg, err := LoadClientConfig(p.ClientConfigPath, p.Scopes)
	if err != nil {
		return nil, err
	}
	tok, err := p.Authorizer.Authorize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}

	if tok.RefreshToken == "" {
		p.Logger.WarnContext(ctx, "authorization returned no refresh token; credential not cached")
	} else {
		u := AuthorizedUser{
			Type:         authorizedUserType,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RefreshToken: tok.RefreshToken,
		}
		if err := p.Store.Save(ctx, u); err != nil {
			p.Logger.ErrorContext(ctx, "could not cache credential", slog.Any("error", err))
		}
	}
	return cfg.TokenSource(ctx, tok), nil
}
