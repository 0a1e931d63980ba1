package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/oauth2"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/config"
	"github.com/justestif/go-chart-quiz/internal/db"
	"github.com/justestif/go-chart-quiz/internal/quiz"
	"github.com/justestif/go-chart-quiz/internal/spotify"
	"github.com/justestif/go-chart-quiz/internal/spotlight"
	webfs "github.com/justestif/go-chart-quiz/web"
)

type fakeCharts struct {
	entry db.ChartEntry
	err   error
	got   []db.ChartFilter
}

func (f *fakeCharts) Random(ctx context.Context, filter db.ChartFilter) (db.ChartEntry, error) {
	f.got = append(f.got, filter)
	return f.entry, f.err
}

type fakeCatalog struct {
	track      *spotify.ResolvedTrack
	resolveErr error
	artist     *spotify.Artist
	topTracks  []spotify.ResolvedTrack
}

func (f *fakeCatalog) Resolve(ctx context.Context, song, artist, market string) (*spotify.ResolvedTrack, error) {
	return f.track, f.resolveErr
}

func (f *fakeCatalog) FindDevice(ctx context.Context, name string) (*spotify.Device, error) {
	return nil, spotify.ErrDeviceNotFound
}

func (f *fakeCatalog) StartPlayback(ctx context.Context, deviceID string, track spotify.ResolvedTrack, offsetMs int) error {
	return nil
}

func (f *fakeCatalog) SearchArtist(ctx context.Context, name string) (*spotify.Artist, error) {
	if f.artist == nil {
		return nil, spotify.ErrArtistNotFound
	}
	return f.artist, nil
}

func (f *fakeCatalog) ArtistTopTracks(ctx context.Context, artistID, country string) ([]spotify.ResolvedTrack, error) {
	return f.topTracks, nil
}

type fakeAnswers struct {
	err  error
	rows [][2]string
}

func (f *fakeAnswers) Append(ctx context.Context, question, answer string) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, [2]string{question, answer})
	return nil
}

type fakeCounts map[string]int

func (f fakeCounts) PlayCount(ctx context.Context, artist, track string) (int, error) {
	n, ok := f[track]
	if !ok {
		return 0, fmt.Errorf("%q: %w", track, apperr.ErrNotFound)
	}
	return n, nil
}

type testEnv struct {
	server   *Server
	sessions *SessionStore
	cookie   *http.Cookie
}

func newTestEnv(t *testing.T, deps Deps, catalog Catalog) *testEnv {
	t.Helper()

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}

	if deps.Form == (config.QuizConfig{}) {
		deps.Form = config.Default().Quiz
	}
	if catalog != nil {
		deps.Catalog = func(*spotify.Client) Catalog { return catalog }
	}

	sessions := NewSessionStore()
	server, err := NewServer(ServerConfig{
		Addr: "127.0.0.1:0",
		Auth: spotifyauth.New(
			spotifyauth.WithClientID("client-id"),
			spotifyauth.WithClientSecret("client-secret"),
			spotifyauth.WithRedirectURL("http://127.0.0.1:8080/callback"),
		),
		Sessions:    sessions,
		TemplatesFS: templates,
		StaticFS:    static,
		Deps:        deps,
		Logger:      zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	session, err := sessions.Create(context.Background(), &oauth2.Token{AccessToken: "access", TokenType: "Bearer"}, "listener", "Listener")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	return &testEnv{
		server:   server,
		sessions: sessions,
		cookie:   &http.Cookie{Name: sessionCookieName, Value: session.ID},
	}
}

func (e *testEnv) do(method, target string, form url.Values, signedIn bool) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if signedIn {
		req.AddCookie(e.cookie)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHome(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	tests := []struct {
		name     string
		signedIn bool
		want     string
	}{
		{name: "signed out", want: "Log in to play"},
		{name: "signed in", signedIn: true, want: "Next song"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/", nil, tt.signedIn)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := rec.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
			if !strings.Contains(body, `name="start_year"`) || !strings.Contains(body, `<option value="1952" selected>`) {
				t.Error("body missing year selector with default")
			}
		})
	}
}

func TestPlayRound(t *testing.T) {
	hello := db.ChartEntry{Song: "Hello", Artist: "Adele", ChartPeak: 1, Year: 2015}
	track := &spotify.ResolvedTrack{ID: "t1", Song: "Hello", Artist: "Adele", DurationMs: 295000}

	tests := []struct {
		name       string
		charts     *fakeCharts
		catalog    *fakeCatalog
		form       url.Values
		signedOut  bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "plays a round",
			charts:     &fakeCharts{entry: hello},
			catalog:    &fakeCatalog{track: track},
			form:       url.Values{"start_year": {"2010"}, "end_year": {"2020"}, "intros": {"y"}},
			wantStatus: http.StatusOK,
			wantBody:   "#1 in 2015",
		},
		{
			name:       "requires a session",
			charts:     &fakeCharts{entry: hello},
			catalog:    &fakeCatalog{track: track},
			form:       url.Values{},
			signedOut:  true,
			wantStatus: http.StatusSeeOther,
		},
		{
			name:       "rejects non-numeric fields",
			charts:     &fakeCharts{entry: hello},
			catalog:    &fakeCatalog{track: track},
			form:       url.Values{"start_year": {"last year"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "start_year must be a number",
		},
		{
			name:       "empty chart range",
			charts:     &fakeCharts{err: db.ErrNotFound},
			catalog:    &fakeCatalog{track: track},
			form:       url.Values{},
			wantStatus: http.StatusNotFound,
			wantBody:   "Nothing matched",
		},
		{
			name:       "catalog never matches",
			charts:     &fakeCharts{entry: hello},
			catalog:    &fakeCatalog{resolveErr: spotify.ErrTrackNotFound},
			form:       url.Values{},
			wantStatus: http.StatusNotFound,
			wantBody:   "No playable song",
		},
		{
			name:       "catalog rejects token",
			charts:     &fakeCharts{entry: hello},
			catalog:    &fakeCatalog{resolveErr: fmt.Errorf("%w: token expired", apperr.ErrAuth)},
			form:       url.Values{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "catalog unavailable",
			charts:     &fakeCharts{entry: hello},
			catalog:    &fakeCatalog{resolveErr: fmt.Errorf("%w: 503", apperr.ErrTransient)},
			form:       url.Values{},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orchestrator := quiz.New(tt.charts, quiz.WithMaxAttempts(2), quiz.WithLogger(zaptest.NewLogger(t)))
			env := newTestEnv(t, Deps{Quiz: orchestrator}, tt.catalog)

			rec := env.do(http.MethodPost, "/", tt.form, !tt.signedOut)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

func TestPlayRound_OrdersReversedRanges(t *testing.T) {
	charts := &fakeCharts{entry: db.ChartEntry{Song: "Hello", Artist: "Adele", ChartPeak: 3, Year: 2015}}
	catalog := &fakeCatalog{track: &spotify.ResolvedTrack{ID: "t1", DurationMs: 1000}}
	env := newTestEnv(t, Deps{Quiz: quiz.New(charts)}, catalog)

	form := url.Values{
		"start_year":   {"2020"},
		"end_year":     {"2000"},
		"min_position": {"40"},
		"max_position": {"10"},
	}
	if rec := env.do(http.MethodPost, "/", form, true); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	want := db.ChartFilter{MinPeak: 10, MaxPeak: 40, StartYear: 2000, EndYear: 2020}
	if len(charts.got) != 1 || charts.got[0] != want {
		t.Errorf("filters = %+v, want [%+v]", charts.got, want)
	}
}

func TestSubmitAnswer(t *testing.T) {
	tests := []struct {
		name       string
		answers    *fakeAnswers
		form       url.Values
		wantStatus int
		wantRows   int
	}{
		{
			name:       "appends row",
			answers:    &fakeAnswers{},
			form:       url.Values{"question": {"Who sang Hello?"}, "answer": {"Adele"}},
			wantStatus: http.StatusNoContent,
			wantRows:   1,
		},
		{
			name:       "empty content is stored",
			answers:    &fakeAnswers{},
			form:       url.Values{},
			wantStatus: http.StatusNoContent,
			wantRows:   1,
		},
		{
			name:       "sheet credentials rejected",
			answers:    &fakeAnswers{err: fmt.Errorf("%w: 403", apperr.ErrAuth)},
			form:       url.Values{"question": {"q"}, "answer": {"a"}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "sheet unavailable",
			answers:    &fakeAnswers{err: fmt.Errorf("%w: 500", apperr.ErrTransient)},
			form:       url.Values{"question": {"q"}, "answer": {"a"}},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Deps{Answers: tt.answers}, nil)

			rec := env.do(http.MethodPost, "/submit_question_answer", tt.form, false)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if len(tt.answers.rows) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(tt.answers.rows), tt.wantRows)
			}
		})
	}
}

func TestSubmitAnswer_NotConfigured(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(http.MethodPost, "/submit_question_answer", url.Values{"question": {"q"}}, false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSpotlightTable(t *testing.T) {
	catalog := &fakeCatalog{
		artist: &spotify.Artist{ID: "a1", Name: "Oasis"},
		topTracks: []spotify.ResolvedTrack{
			{ID: "1", Song: "Whatever", DurationMs: 200000},
			{ID: "2", Song: "Wonderwall", DurationMs: 258000},
			{ID: "3", Song: "Rarity", DurationMs: 100000},
		},
	}
	counts := fakeCounts{"Whatever": 1234, "Wonderwall": 15304732}

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "ranks tracks",
			form:       url.Values{"artist": {"Oasis"}, "country": {"gb"}},
			wantStatus: http.StatusOK,
			wantBody:   []string{"15,304,732", "1,234", "4:18", "Not found on Last.fm", "Rarity"},
		},
		{
			name:       "unsupported country",
			form:       url.Values{"artist": {"Oasis"}, "country": {"FR"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"unsupported country"},
		},
		{
			name:       "missing artist",
			form:       url.Values{"country": {"US"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := spotlight.New(counts, "", zaptest.NewLogger(t))
			env := newTestEnv(t, Deps{Spotlight: service}, catalog)

			rec := env.do(http.MethodPost, "/spotify_table", tt.form, true)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := rec.Body.String()
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestSpotlight_Form(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(http.MethodGet, "/spotify_table", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	for _, c := range spotlight.Countries {
		if !strings.Contains(rec.Body.String(), `<option value="`+c+`"`) {
			t.Errorf("body missing country %s", c)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(http.MethodGet, "/auth/login", nil, false)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	if loc.Host != "accounts.spotify.com" {
		t.Errorf("redirect host = %q, want accounts.spotify.com", loc.Host)
	}

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c
		}
	}
	if state == nil || state.Value == "" {
		t.Fatal("state cookie not set")
	}
	if got := loc.Query().Get("state"); got != state.Value {
		t.Errorf("redirect state = %q, cookie = %q", got, state.Value)
	}
}

func TestCallback_Rejects(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	tests := []struct {
		name   string
		cookie string
		query  string
	}{
		{name: "missing cookie", query: "?state=abc&code=x"},
		{name: "state mismatch", cookie: "abc", query: "?state=xyz&code=x"},
		{name: "provider error", cookie: "abc", query: "?state=abc&error=access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(http.MethodPost, "/auth/logout", nil, true)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if env.sessions.Get(context.Background(), env.cookie.Value) != nil {
		t.Error("session still present after logout")
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie not cleared")
	}
}

func TestStatic(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(http.MethodGet, "/static/style.css", nil, false)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestNewServer_NilLogger(t *testing.T) {
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}

	server, err := NewServer(ServerConfig{
		Addr:        "127.0.0.1:0",
		Auth:        spotifyauth.New(spotifyauth.WithClientID("client-id")),
		TemplatesFS: templates,
		StaticFS:    static,
		Deps:        Deps{Form: config.Default().Quiz},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", rec.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/kettle", nil))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d request entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v, want 418", fields["status"])
	}
	if fields["path"] != "/kettle" {
		t.Errorf("path field = %v, want /kettle", fields["path"])
	}
	if fields["bytes"] != int64(len("short and stout")) {
		t.Errorf("bytes field = %v", fields["bytes"])
	}
}

func TestParseQuizForm(t *testing.T) {
	cfg := config.Default().Quiz

	tests := []struct {
		name    string
		form    url.Values
		want    QuizForm
		wantErr error
	}{
		{
			name: "defaults",
			form: url.Values{},
			want: QuizForm{StartYear: 1952, EndYear: 2020, MinPosition: 1, MaxPosition: 100},
		},
		{
			name: "flags and ranges",
			form: url.Values{"start_year": {"1990"}, "end_year": {"1999"}, "min_position": {"1"}, "max_position": {"10"}, "intros": {"y"}, "display_info_by_default": {"y"}},
			want: QuizForm{StartYear: 1990, EndYear: 1999, MinPosition: 1, MaxPosition: 10, Intro: true, ShowInfo: true},
		},
		{
			name: "reversed ranges",
			form: url.Values{"start_year": {"1999"}, "end_year": {"1990"}, "min_position": {"10"}, "max_position": {"1"}},
			want: QuizForm{StartYear: 1990, EndYear: 1999, MinPosition: 1, MaxPosition: 10},
		},
		{
			name:    "not a number",
			form:    url.Values{"max_position": {"ten"}},
			wantErr: apperr.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			got, err := parseQuizForm(req, cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("parseQuizForm() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.want {
				t.Errorf("parseQuizForm() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatters(t *testing.T) {
	counts := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{15304732, "15,304,732"},
		{-1234, "-1,234"},
	}
	for _, tt := range counts {
		if got := formatCount(tt.in); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}

	durations := []struct {
		in   int
		want string
	}{
		{0, "0:00"},
		{59999, "0:59"},
		{258000, "4:18"},
		{-5, "0:00"},
	}
	for _, tt := range durations {
		if got := formatMs(tt.in); got != tt.want {
			t.Errorf("formatMs(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store := NewSessionStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	session, err := store.Create(context.Background(), &oauth2.Token{AccessToken: "a"}, "u", "User")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if store.Get(context.Background(), session.ID) == nil {
		t.Fatal("fresh session not found")
	}

	store.UpdateToken(context.Background(), session.ID, &oauth2.Token{AccessToken: "b"})
	if got := store.Get(context.Background(), session.ID).Token.AccessToken; got != "b" {
		t.Errorf("token after update = %q, want b", got)
	}

	now = now.Add(sessionTTL + time.Minute)
	if store.Get(context.Background(), session.ID) != nil {
		t.Error("expired session still returned")
	}
}
