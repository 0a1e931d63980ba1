package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/config"
	"github.com/justestif/go-chart-quiz/internal/logging"
)

const callbackTimeout = 2 * time.Minute

var (
	// ErrMissingCredentials is returned when the client ID or secret is not configured.
	ErrMissingCredentials = errors.New("missing SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = fmt.Errorf("%w: timed out waiting for callback", apperr.ErrAuth)

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = fmt.Errorf("%w: OAuth state mismatch", apperr.ErrAuth)
)

// Scopes are the permissions the quiz needs: playback control and playlist editing.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// NewSpotifyAuthenticator builds the OAuth2 authenticator for the configured app.
// Returns ErrMissingCredentials if the client ID or secret is empty.
func NewSpotifyAuthenticator(cfg config.SpotifyConfig) (*spotifyauth.Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	return spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(Scopes...),
	), nil
}

// Authenticator runs the command-line OAuth flow with a cached token.
type Authenticator struct {
	auth        *spotifyauth.Authenticator
	tokens      *TokenStore
	redirectURI string
	out         io.Writer
	logger      *zap.Logger
}

// New creates an Authenticator for the CLI.
func New(cfg config.SpotifyConfig, logger *zap.Logger) (*Authenticator, error) {
	auth, err := NewSpotifyAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := NewTokenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}

	return &Authenticator{
		auth:        auth,
		tokens:      tokens,
		redirectURI: cfg.RedirectURI,
		out:         os.Stdout,
		logger:      logging.OrNop(logger),
	}, nil
}

// Authenticate returns a Spotify client, reusing the stored token while Spotify
// still accepts it and running the browser flow otherwise.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	token, err := a.tokens.Load()
	switch {
	case errors.Is(err, ErrNoToken):
		return a.runOAuthFlow(ctx)
	case err != nil:
		return nil, fmt.Errorf("loading stored token: %w", err)
	}

	client := spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))
	if _, err := client.CurrentUser(ctx); err != nil {
		a.logger.Info("stored token rejected, starting new authentication", zap.Error(err))
		return a.runOAuthFlow(ctx)
	}
	a.persistRefreshed(client, token)
	return client, nil
}

// persistRefreshed saves the client's token if oauth2 replaced the cached one.
func (a *Authenticator) persistRefreshed(client *spotify.Client, old *oauth2.Token) {
	current, err := client.Token()
	if err != nil || current.AccessToken == old.AccessToken {
		return
	}
	if err := a.tokens.Store(current); err != nil {
		a.logger.Warn("saving refreshed token", zap.Error(err))
	}
}

// callbackAddr derives the local listen address and path from the redirect URI.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("parsing redirect URI: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("redirect URI %q has no host", redirectURI)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return u.Host, path, nil
}

// runOAuthFlow performs the full OAuth authorization code flow.
func (a *Authenticator) runOAuthFlow(ctx context.Context) (*spotify.Client, error) {
	addr, path, err := callbackAddr(a.redirectURI)
	if err != nil {
		return nil, err
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	fmt.Fprintln(a.out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(a.out, a.auth.AuthURL(state))
	fmt.Fprintln(a.out, "\nWaiting for authentication...")

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		_ = server.Shutdown(ctx)
		return nil, err
	case <-time.After(callbackTimeout):
		_ = server.Shutdown(ctx)
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if err := a.tokens.Store(token); err != nil {
		// auth succeeded; only the stored copy is lost
		a.logger.Warn("storing token", zap.String("path", a.tokens.Path()), zap.Error(err))
	}

	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true)), nil
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		errCh <- ErrStateMismatch
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		errCh <- fmt.Errorf("%w: spotify auth error: %s", apperr.ErrAuth, errMsg)
		return
	}

	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		errCh <- fmt.Errorf("%w: exchanging code for token: %w", apperr.ErrAuth, err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body>
<h1>Authentication Successful!</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

	tokenCh <- token
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	return generateState()
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Logout removes the stored token.
func (a *Authenticator) Logout() error {
	return a.tokens.Clear()
}

// TokenPath returns where the CLI token is stored.
func (a *Authenticator) TokenPath() string {
	return a.tokens.Path()
}
