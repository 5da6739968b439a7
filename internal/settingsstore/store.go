// Package settingsstore keeps the last-used translation settings on disk so they
// are available without a backend round trip.
//
// Non-secret fields live in settings.json under the configured directory. The API
// token goes to the OS keyring; when no keyring is available it is kept in the
// same file with 0600 permissions.
package settingsstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/zalando/go-keyring"

	"audiotranslator/internal/domain"
)

const (
	fileName     = "settings.json"
	keyringUser  = "api_token"
	tokenKeyring = "keyring"
)

type fileSettings struct {
	APIEndpoint  string `json:"api_endpoint"`
	APIModel     string `json:"api_model"`
	SystemPrompt string `json:"system_prompt"`
	// TokenStore is "keyring" when the token lives in the OS keyring.
	TokenStore string `json:"token_store,omitempty"`
	APIToken   string `json:"api_token,omitempty"`
}

// Store implements ports.SettingsStore.
type Store struct {
	dir     string
	service string
	log     logger.Logger

	mu sync.Mutex
}

func New(dir string, keyringService string, log logger.Logger) *Store {
	if keyringService == "" {
		keyringService = "audiotranslator"
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Store{dir: dir, service: keyringService, log: log}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, fileName)
}

// Load returns the cached settings. ok is false when nothing has been saved yet.
func (s *Store) Load() (domain.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Settings{}, false, nil
		}
		return domain.Settings{}, false, fmt.Errorf("failed to read settings %q: %w", s.Path(), err)
	}

	var stored fileSettings
	if err := json.Unmarshal(contents, &stored); err != nil {
		return domain.Settings{}, false, fmt.Errorf("failed to parse settings %q: %w", s.Path(), err)
	}

	settings := domain.Settings{
		APIEndpoint:  stored.APIEndpoint,
		APIToken:     stored.APIToken,
		APIModel:     stored.APIModel,
		SystemPrompt: stored.SystemPrompt,
	}
	if stored.TokenStore == tokenKeyring {
		token, err := keyring.Get(s.service, keyringUser)
		switch {
		case err == nil:
			settings.APIToken = token
		case errors.Is(err, keyring.ErrNotFound):
			settings.APIToken = ""
		default:
			return settings, true, fmt.Errorf("failed to read API token from keyring: %w", err)
		}
	}
	return settings, true, nil
}

// Save overwrites the cached settings.
func (s *Store) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := fileSettings{
		APIEndpoint:  settings.APIEndpoint,
		APIModel:     settings.APIModel,
		SystemPrompt: settings.SystemPrompt,
	}

	if settings.APIToken == "" {
		if err := keyring.Delete(s.service, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			s.log.Debug(fmt.Sprintf("keyring delete failed: %v", err))
		}
	} else if err := keyring.Set(s.service, keyringUser, settings.APIToken); err != nil {
		s.log.Warning(fmt.Sprintf("keyring unavailable, storing API token in %s: %v", s.Path(), err))
		stored.APIToken = settings.APIToken
	} else {
		stored.TokenStore = tokenKeyring
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create settings dir %q: %w", s.dir, err)
	}
	encoded, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
