package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

// Store persists the authorized user credential.
type Store interface {
	Load(ctx context.Context) (AuthorizedUser, error)
	Save(ctx context.Context, u AuthorizedUser) error
}

// FileStore keeps the credential as a JSON file readable only by its owner.
type FileStore struct {
	Path string
}

func (s FileStore) Load(ctx context.Context) (AuthorizedUser, error) {
	_ = ctx
	data, err := os.ReadFile(s.Path) // #nosec G304 - path comes from operator config
	if errors.Is(err, fs.ErrNotExist) {
		return AuthorizedUser{}, ErrNoToken
	}
	if err != nil {
		return AuthorizedUser{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return decodeAuthorizedUser(data)
}

// Save writes the credential through a temporary file so a crash never
// leaves a truncated token behind.
func (s FileStore) Save(ctx context.Context, u AuthorizedUser) error {
	_ = ctx
	data, err := encodeAuthorizedUser(u)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace %s: %w", s.Path, err)
	}
	return nil
}

const (
	keyringService = "autoreply"
	keyringItemKey = "token"
)

// KeyringStore keeps the credential in the operating system keyring.
type KeyringStore struct {
	Ring keyring.Keyring
	Key  string
}

// OpenKeyringStore opens the platform keyring. The encrypted file backend is
// only offered when filePassword is set, so unattended runs never block on a
// password prompt.
func OpenKeyringStore(fileDir, filePassword string) (*KeyringStore, error) {
	backends := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
	}
	if filePassword != "" {
		backends = append(backends, keyring.FileBackend)
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              keyringService,
		AllowedBackends:          backends,
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(filePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringStore{Ring: ring, Key: keyringItemKey}, nil
}

func (s *KeyringStore) Load(ctx context.Context) (AuthorizedUser, error) {
	_ = ctx
	item, err := s.Ring.Get(s.Key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return AuthorizedUser{}, ErrNoToken
	}
	if err != nil {
		return AuthorizedUser{}, fmt.Errorf("getting credential %q: %w", s.Key, err)
	}
	return decodeAuthorizedUser(item.Data)
}

func (s *KeyringStore) Save(ctx context.Context, u AuthorizedUser) error {
	_ = ctx
	data, err := encodeAuthorizedUser(u)
	if err != nil {
		return err
	}
	err = s.Ring.Set(keyring.Item{
		Key:         s.Key,
		Data:        data,
		Label:       "autoreply Gmail credential",
		Description: "OAuth refresh token for the autoreply Gmail responder",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.Key, err)
	}
	return nil
}

var (
	_ Store = FileStore{}
	_ Store = (*KeyringStore)(nil)
)
