// Package auth provides Spotify OAuth2 authentication for the web app and the CLI.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/justestif/go-chart-quiz/internal/config"
)

// ErrNoToken is returned by Load when no token has been stored yet.
var ErrNoToken = errors.New("no stored token")

// TokenStore keeps the CLI's OAuth token in an owner-only JSON file.
type TokenStore struct {
	path string
}

// NewTokenStore opens the store at cfg.TokenCachePath, or at
// <user config dir>/chart-quiz/spotify-token.json when that is empty.
func NewTokenStore(cfg config.SpotifyConfig) (*TokenStore, error) {
	path := cfg.TokenCachePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locating user config dir: %w", err)
		}
		path = filepath.Join(dir, "chart-quiz", "spotify-token.json")
	}
	return &TokenStore{path: path}, nil
}

// Path is the token file location.
func (s *TokenStore) Path() string {
	return s.path
}

// Load returns the stored token, or ErrNoToken.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &token, nil
}

// Store replaces the stored token by writing a temp file beside it and renaming.
func (s *TokenStore) Store(token *oauth2.Token) error {
	if token == nil {
		return errors.New("storing nil token")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".spotify-token-*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(token); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", s.path, err)
	}
	return nil
}
