package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const secretService = "deskmate"

// ErrSecretNotFound is returned when a secret is not stored.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore keeps secrets in a 0600 JSON file next to the data directory,
// keyed by service and account.
type SecretStore struct {
	mu   sync.Mutex
	path string
}

// NewSecretStore returns the store at $XDG_DATA_HOME/deskmate/secrets.json.
func NewSecretStore() *SecretStore {
	return &SecretStore{path: secretsFilePath()}
}

// NewSecretStoreAt returns a store backed by the given file.
func NewSecretStoreAt(path string) *SecretStore {
	return &SecretStore{path: path}
}

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "deskmate", "secrets.json")
}

func (s *SecretStore) read() (map[string]map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	if secrets == nil {
		secrets = map[string]map[string]string{}
	}
	return secrets, nil
}

func (s *SecretStore) Get(service, account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	val, ok := secrets[service][account]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, service, account)
	}
	return val, nil
}

func (s *SecretStore) Set(service, account, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets, err := s.read()
	if err != nil {
		return err
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

// secretReadWriter is the subset of SecretStore used by GetAPIToken.
type secretReadWriter interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// GetAPIToken returns the bearer token protecting the HTTP API, generating
// and storing a new one on first use.
func GetAPIToken(s secretReadWriter) (string, error) {
	tok, err := s.Get(secretService, "api_token")
	if err == nil && tok != "" {
		return tok, nil
	}
	if err != nil && !errors.Is(err, ErrSecretNotFound) {
		return "", err
	}

	tok = uuid.New().String()
	if err := s.Set(secretService, "api_token", tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
