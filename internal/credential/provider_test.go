package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nalgeon/be"
	"golang.org/x/oauth2"
)

type tokenServer struct {
	*httptest.Server
	accept   atomic.Bool
	requests atomic.Int32
}

func newTokenServer(t *testing.T, accept bool) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.accept.Store(accept)
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.requests.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if !ts.accept.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"access_token":"at-%s","token_type":"Bearer","expires_in":3600,"refresh_token":"rt-new"}`, r.Form.Get("grant_type"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   ts.URL + "/auth",
		TokenURL:  ts.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func writeClientConfig(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	body := fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"csecret",`+
		`"redirect_uris":["http://localhost"],"auth_uri":"https://accounts.example/auth","token_uri":%q}}`, tokenURL)
	be.Err(t, os.WriteFile(path, []byte(body), 0o600), nil)
	return path
}

type memStore struct {
	user    *AuthorizedUser
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) (AuthorizedUser, error) {
	if m.user == nil {
		return AuthorizedUser{}, ErrNoToken
	}
	return *m.user, nil
}

func (m *memStore) Save(_ context.Context, u AuthorizedUser) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.user = &u
	return nil
}

type stubAuthorizer struct {
	token *oauth2.Token
	err   error
	calls int
}

func (s *stubAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	s.calls++
	return s.token, s.err
}

func newTestProvider(store Store, clientPath string, auth Authorizer, endpoint oauth2.Endpoint) *Provider {
	p := NewProvider(store, clientPath, []string{"scope-a"}, auth, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Endpoint = endpoint
	return p
}

func TestSessionUsesCachedCredential(t *testing.T) {
	srv := newTokenServer(t, true)
	cached := sampleUser
	store := &memStore{user: &cached}
	auth := &stubAuthorizer{err: errors.New("should not be called")}

	ts, err := newTestProvider(store, "unused.json", auth, srv.endpoint()).Session(context.Background())
	be.Err(t, err, nil)

	tok, err := ts.Token()
	be.Err(t, err, nil)
	be.Equal(t, tok.AccessToken, "at-refresh_token")
	be.Equal(t, auth.calls, 0)
	be.Equal(t, store.saves, 0)
}

func TestSessionReauthorizesWhenCacheRejected(t *testing.T) {
	srv := newTokenServer(t, false)
	cached := sampleUser
	store := &memStore{user: &cached}
	auth := &stubAuthorizer{token: &oauth2.Token{AccessToken: "fresh", RefreshToken: "rt-fresh", TokenType: "Bearer"}}

	clientPath := writeClientConfig(t, srv.URL+"/token")
	ts, err := newTestProvider(store, clientPath, auth, srv.endpoint()).Session(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, auth.calls, 1)

	tok, err := ts.Token()
	be.Err(t, err, nil)
	be.Equal(t, tok.AccessToken, "fresh")

	be.Equal(t, store.saves, 1)
	be.Equal(t, *store.user, AuthorizedUser{
		Type:         "authorized_user",
		ClientID:     "cid",
		ClientSecret: "csecret",
		RefreshToken: "rt-fresh",
	})
}

func TestSessionAuthorizesWithoutCache(t *testing.T) {
	srv := newTokenServer(t, true)
	store := &memStore{}
	auth := &stubAuthorizer{token: &oauth2.Token{AccessToken: "fresh", RefreshToken: "rt-first", TokenType: "Bearer"}}

	clientPath := writeClientConfig(t, srv.URL+"/token")
	_, err := newTestProvider(store, clientPath, auth, srv.endpoint()).Session(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, auth.calls, 1)
	be.Equal(t, store.user.RefreshToken, "rt-first")
	be.Equal(t, srv.requests.Load(), int32(0))
}

func TestSessionContinuesWhenSaveFails(t *testing.T) {
	srv := newTokenServer(t, true)
	store := &memStore{saveErr: errors.New("disk full")}
	auth := &stubAuthorizer{token: &oauth2.Token{AccessToken: "fresh", RefreshToken: "rt", TokenType: "Bearer"}}

	clientPath := writeClientConfig(t, srv.URL+"/token")
	ts, err := newTestProvider(store, clientPath, auth, srv.endpoint()).Session(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, store.saves, 1)
	tok, err := ts.Token()
	be.Err(t, err, nil)
	be.Equal(t, tok.AccessToken, "fresh")
}

func TestSessionAuthorizationFailure(t *testing.T) {
	srv := newTokenServer(t, true)
	denied := errors.New("user closed the browser")
	auth := &stubAuthorizer{err: denied}

	clientPath := writeClientConfig(t, srv.URL+"/token")
	_, err := newTestProvider(&memStore{}, clientPath, auth, srv.endpoint()).Session(context.Background())
	be.Err(t, err, denied)
}

func TestSessionMissingClientConfig(t *testing.T) {
	srv := newTokenServer(t, true)
	auth := &stubAuthorizer{}
	missing := filepath.Join(t.TempDir(), "credentials.json")

	_, err := newTestProvider(&memStore{}, missing, auth, srv.endpoint()).Session(context.Background())
	be.Err(t, err, "read client credentials")
	be.Equal(t, auth.calls, 0)
}

func TestSessionWithoutAuthorizer(t *testing.T) {
	srv := newTokenServer(t, true)
	_, err := newTestProvider(&memStore{}, "unused.json", nil, srv.endpoint()).Session(context.Background())
	be.Err(t, err, "no interactive authorizer")
}

func TestLoadClientConfig(t *testing.T) {
	path := writeClientConfig(t, "https://oauth.example/token")
	cfg, err := LoadClientConfig(path, []string{"scope-a"})
	be.Err(t, err, nil)
	be.Equal(t, cfg.ClientID, "cid")
	be.Equal(t, cfg.ClientSecret, "csecret")
	be.Equal(t, cfg.Endpoint.TokenURL, "https://oauth.example/token")
	be.Equal(t, cfg.Scopes, []string{"scope-a"})
}
