// Package credential obtains an authorized Gmail session for a single account.
//
// A cached "authorized_user" blob ({type, client_id, client_secret,
// refresh_token}) is tried first. When it is absent or rejected, the operator
// is sent through the installed-app consent flow and the new refresh token is
// written back to the store.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const authorizedUserType = "authorized_user"

// ErrNoToken is returned by a Store that holds no credential yet.
var ErrNoToken = errors.New("no cached credential")

// AuthorizedUser is the persisted credential.
type AuthorizedUser struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// Validate checks the blob can be turned into a token source.
func (u AuthorizedUser) Validate() error {
	if u.Type != authorizedUserType {
		return fmt.Errorf("credential type %q, want %q", u.Type, authorizedUserType)
	}
	if u.ClientID == "" || u.RefreshToken == "" {
		return errors.New("credential lacks client_id or refresh_token")
	}
	return nil
}

// TokenSource returns a refreshing token source for the cached credential.
func (u AuthorizedUser) TokenSource(ctx context.Context, endpoint oauth2.Endpoint, scopes []string) oauth2.TokenSource {
	cfg := &oauth2.Config{
		ClientID:     u.ClientID,
		ClientSecret: u.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: u.RefreshToken})
}

func decodeAuthorizedUser(data []byte) (AuthorizedUser, error) {
	var u AuthorizedUser
	if err := json.Unmarshal(data, &u); err != nil {
		return AuthorizedUser{}, fmt.Errorf("decode credential: %w", err)
	}
	if err := u.Validate(); err != nil {
		return AuthorizedUser{}, err
	}
	return u, nil
}

func encodeAuthorizedUser(u AuthorizedUser) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}
	return data, nil
}

// LoadClientConfig reads the operator's OAuth client file (an "installed" or
// "web" client as downloaded from the Google Cloud console).
func LoadClientConfig(path string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read client credentials %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials %s: %w", path, err)
	}
	return cfg, nil
}
