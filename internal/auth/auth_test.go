package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/config"
)

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"both missing", "", ""},
		{"id missing", "", "secret"},
		{"secret missing", "id", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(config.SpotifyConfig{ClientID: tt.id, ClientSecret: tt.secret}, nil)
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestNew_WithCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	auth, err := New(config.SpotifyConfig{
		ClientID:       "test-client-id",
		ClientSecret:   "test-client-secret",
		RedirectURI:    "http://127.0.0.1:8080/callback",
		TokenCachePath: path,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if auth.TokenPath() != path {
		t.Errorf("TokenPath() = %q, want %q", auth.TokenPath(), path)
	}
	if authURL := auth.auth.AuthURL("state"); !strings.Contains(authURL, "user-modify-playback-state") {
		t.Errorf("AuthURL() = %q, want playback scope", authURL)
	}
}

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		uri      string
		wantAddr string
		wantPath string
		wantErr  bool
	}{
		{uri: "http://127.0.0.1:8080/callback", wantAddr: "127.0.0.1:8080", wantPath: "/callback"},
		{uri: "http://localhost:9000", wantAddr: "localhost:9000", wantPath: "/"},
		{uri: "/callback", wantErr: true},
		{uri: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			addr, path, err := callbackAddr(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("callbackAddr() error = %v, wantErr %v", err, tt.wantErr)
			}
			if addr != tt.wantAddr || path != tt.wantPath {
				t.Errorf("callbackAddr() = (%q, %q), want (%q, %q)", addr, path, tt.wantAddr, tt.wantPath)
			}
		})
	}
}

func TestHandleCallback_Rejects(t *testing.T) {
	a, err := New(config.SpotifyConfig{
		ClientID:       "id",
		ClientSecret:   "secret",
		RedirectURI:    "http://127.0.0.1:8080/callback",
		TokenCachePath: filepath.Join(t.TempDir(), "token.json"),
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{name: "state mismatch", query: "state=other&code=x", wantErr: ErrStateMismatch},
		{name: "denied", query: "state=expected&error=access_denied", wantErr: apperr.ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenCh := make(chan *oauth2.Token, 1)
			errCh := make(chan error, 1)
			req := httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil)
			rec := httptest.NewRecorder()

			a.handleCallback(rec, req, "expected", tokenCh, errCh)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			select {
			case err := <-errCh:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			default:
				t.Error("no error reported")
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	state1, err := generateState()
	if err != nil {
		t.Fatalf("generateState() error = %v", err)
	}

	if len(state1) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("generateState() length = %d, want 32", len(state1))
	}

	// Verify randomness - generate another and compare
	state2, err := generateState()
	if err != nil {
		t.Fatalf("generateState() error = %v", err)
	}

	if state1 == state2 {
		t.Error("generateState() returned same value twice")
	}
}
