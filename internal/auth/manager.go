package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "drivemirror"

	// GitHubTokenSecret names the stored code host token.
	GitHubTokenSecret = "github-token"

	// GitHubTokenEnv overrides the stored token when set.
	GitHubTokenEnv = "GITHUB_TOKEN"
)

// ErrSecretNotFound is returned when no secret is stored under a name.
var ErrSecretNotFound = errors.New("secret not found")

// Manager resolves the credentials a run needs.
type Manager struct {
	configDir      string
	storage        StorageBackend
	storageWarning string
}

// ManagerOptions configures the auth manager
type ManagerOptions struct {
	// ForceEncryptedFile skips the keyring availability check.
	ForceEncryptedFile bool
}

// NewManager creates a new auth manager
func NewManager(configDir string) *Manager {
	return NewManagerWithOptions(configDir, ManagerOptions{})
}

// NewManagerWithOptions picks the system keyring when available and falls
// back to encrypted files under configDir.
func NewManagerWithOptions(configDir string, opts ManagerOptions) *Manager {
	mgr := &Manager{configDir: configDir}

	if !opts.ForceEncryptedFile && checkKeyringAvailable() {
		mgr.storage = NewKeyringStorage(serviceName)
		return mgr
	}

	storage, err := NewEncryptedFileStorage(configDir)
	if err != nil {
		mgr.storageWarning = fmt.Sprintf("WARNING: secret storage unavailable (%v); only %s will be used.", err, GitHubTokenEnv)
		return mgr
	}
	mgr.storage = storage
	if !opts.ForceEncryptedFile {
		mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
	}
	return mgr
}

// checkKeyringAvailable tests if system keyring is available
func checkKeyringAvailable() bool {
	testKey := "drivemirror-keyring-check"
	if err := keyring.Set(serviceName, testKey, "check"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// GitHubToken returns GITHUB_TOKEN when set, else the stored token.
func (m *Manager) GitHubToken() (string, error) {
	if token := strings.TrimSpace(os.Getenv(GitHubTokenEnv)); token != "" {
		return token, nil
	}
	if m.storage == nil {
		return "", ErrSecretNotFound
	}
	data, err := m.storage.Load(GitHubTokenSecret)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrSecretNotFound
	}
	return token, nil
}

// SetGitHubToken stores token for later runs.
func (m *Manager) SetGitHubToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	if m.storage == nil {
		return fmt.Errorf("no secret storage available")
	}
	return m.storage.Save(GitHubTokenSecret, []byte(token))
}

// DeleteGitHubToken removes the stored token. A missing token is not an error.
func (m *Manager) DeleteGitHubToken() error {
	if m.storage == nil {
		return nil
	}
	if err := m.storage.Delete(GitHubTokenSecret); err != nil && !errors.Is(err, ErrSecretNotFound) {
		return err
	}
	return nil
}

// ConfigDir returns the directory used for file-backed secrets.
func (m *Manager) ConfigDir() string {
	return m.configDir
}

// GetStorageBackend names the active secret store.
func (m *Manager) GetStorageBackend() string {
	if m.storage == nil {
		return "none"
	}
	return m.storage.Name()
}

// GetStorageWarning returns a notice about degraded secret storage, or "".
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}
