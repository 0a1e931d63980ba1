package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/auth"
	"github.com/justestif/go-chart-quiz/internal/config"
	"github.com/justestif/go-chart-quiz/internal/db"
	"github.com/justestif/go-chart-quiz/internal/logging"
	"github.com/justestif/go-chart-quiz/internal/quiz"
	"github.com/justestif/go-chart-quiz/internal/spotify"
	"github.com/justestif/go-chart-quiz/internal/spotlight"
)

const stateCookieName = "oauth_state"

// Catalog is everything the pages ask of the listener's Spotify account.
type Catalog interface {
	quiz.Catalog
	spotlight.Catalog
}

// CatalogFactory decorates the per-request Spotify client, for example with a cache.
type CatalogFactory func(*spotify.Client) Catalog

// AnswerLogger appends a question and answer row to the answer sheet.
type AnswerLogger interface {
	Append(ctx context.Context, question, answer string) error
}

// Deps are the services behind the pages. Nil services answer 503.
type Deps struct {
	Quiz      *quiz.Orchestrator
	Answers   AnswerLogger
	Spotlight *spotlight.Service
	Catalog   CatalogFactory
	Market    string
	Form      config.QuizConfig
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	auth      *spotifyauth.Authenticator
	sessions  SessionManager
	templates *Templates
	deps      Deps
	logger    *zap.Logger
}

// NewHandlers creates the handlers.
func NewHandlers(authenticator *spotifyauth.Authenticator, sessions SessionManager, templates *Templates, deps Deps, logger *zap.Logger) *Handlers {
	return &Handlers{
		auth:      authenticator,
		sessions:  sessions,
		templates: templates,
		deps:      deps,
		logger:    logging.OrNop(logger),
	}
}

// Home shows the quiz form (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	h.render(w, http.StatusOK, "home", h.homeData(r, session, defaultForm(h.deps.Form)))
}

// PlayRound draws, resolves and plays one song (POST /).
func (h *Handlers) PlayRound(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	form, err := parseQuizForm(r, h.deps.Form)
	data := h.homeData(r, session, form)
	if err != nil {
		data.Flash = errorFlash(err)
		h.render(w, http.StatusBadRequest, "home", data)
		return
	}
	if h.deps.Quiz == nil {
		http.Error(w, "Quiz is not configured", http.StatusServiceUnavailable)
		return
	}

	catalog, done := h.catalog(r, session)
	defer done()

	round, err := h.deps.Quiz.NextRound(r.Context(), catalog, quiz.Constraints{
		Filter: form.filter(),
		Intro:  form.Intro,
		Market: h.deps.Market,
	})
	if err != nil {
		h.logger.Warn("quiz round failed", zap.Error(err))
		data.Flash = errorFlash(err)
		h.render(w, apperr.HTTPStatus(err), "home", data)
		return
	}

	data.Round = newRoundData(round)
	if !round.Played {
		data.Flash = &FlashMessage{Type: "warning", Message: "Playback did not start. Is your Spotify player open?"}
	}
	h.render(w, http.StatusOK, "home", data)
}

// SubmitAnswer appends a question and answer to the answer sheet
// (POST /submit_question_answer). Content is stored as given.
func (h *Handlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if h.deps.Answers == nil {
		http.Error(w, "Answer logging is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form", http.StatusBadRequest)
		return
	}

	question := r.PostForm.Get("question")
	answer := r.PostForm.Get("answer")

	if err := h.deps.Answers.Append(r.Context(), question, answer); err != nil {
		h.logger.Error("appending answer", zap.Error(err))
		http.Error(w, userMessage(err), apperr.HTTPStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Spotlight shows the artist form (GET /spotify_table).
func (h *Handlers) Spotlight(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	h.render(w, http.StatusOK, "spotlight", h.spotlightData(r, session, "", spotlight.Countries[0]))
}

// SpotlightTable ranks an artist's top tracks by play count (POST /spotify_table).
func (h *Handlers) SpotlightTable(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form", http.StatusBadRequest)
		return
	}

	artist := strings.TrimSpace(r.PostForm.Get("artist"))
	country := r.PostForm.Get("country")
	if country == "" {
		country = spotlight.Countries[0]
	}
	data := h.spotlightData(r, session, artist, country)

	if h.deps.Spotlight == nil {
		http.Error(w, "Artist spotlight is not configured", http.StatusServiceUnavailable)
		return
	}

	catalog, done := h.catalog(r, session)
	defer done()

	result, err := h.deps.Spotlight.TopTracks(r.Context(), catalog, artist, country)
	if err != nil {
		h.logger.Warn("artist spotlight failed", zap.String("artist", artist), zap.Error(err))
		data.Flash = errorFlash(err)
		h.render(w, apperr.HTTPStatus(err), "spotlight", data)
		return
	}

	data.Result = newSpotlightData(result)
	h.render(w, http.StatusOK, "spotlight", data)
}

// Login starts the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow and opens a session (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, fmt.Sprintf("Spotify auth error: %s", errMsg), http.StatusBadRequest)
		return
	}

	token, err := h.auth.Token(r.Context(), state, r)
	if err != nil {
		h.logger.Warn("exchanging authorization code", zap.Error(err))
		http.Error(w, "Failed to get token", http.StatusUnauthorized)
		return
	}

	user, err := spotifyapi.New(h.auth.Client(r.Context(), token)).CurrentUser(r.Context())
	if err != nil {
		h.logger.Warn("fetching current user", zap.Error(err))
		http.Error(w, "Failed to get user info", http.StatusBadGateway)
		return
	}

	session, err := h.sessions.Create(r.Context(), token, string(user.ID), user.DisplayName)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	h.logger.Info("listener signed in", zap.String("user", string(user.ID)))
	h.sessions.SetCookie(w, session)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Logout ends the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// catalog builds the listener's Spotify client for this request. The returned
// func stores a refreshed token back on the session.
func (h *Handlers) catalog(r *http.Request, session *Session) (Catalog, func()) {
	api := spotifyapi.New(h.auth.Client(r.Context(), session.Token), spotifyapi.WithRetry(true))
	client := spotify.New(api)

	var catalog Catalog = client
	if h.deps.Catalog != nil {
		catalog = h.deps.Catalog(client)
	}

	return catalog, func() {
		token, err := api.Token()
		if err != nil {
			h.logger.Debug("reading refreshed token", zap.Error(err))
			return
		}
		if token.AccessToken != session.Token.AccessToken {
			h.sessions.UpdateToken(r.Context(), session.ID, token)
		}
	}
}

func (h *Handlers) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, page, data); err != nil {
		h.logger.Error("rendering template", zap.String("page", page), zap.Error(err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handlers) pageData(r *http.Request, session *Session, title string) PageData {
	data := PageData{Title: title, CurrentPath: r.URL.Path}
	if session != nil {
		data.User = &UserData{ID: session.UserID, Name: session.UserName}
	}
	return data
}

func (h *Handlers) homeData(r *http.Request, session *Session, form QuizForm) HomePageData {
	return HomePageData{
		PageData:      h.pageData(r, session, "Chart Quiz"),
		Authenticated: session != nil,
		Form:          form,
		Years:         intRange(h.deps.Form.MinYear, h.deps.Form.MaxYear),
		Positions:     intRange(1, h.deps.Form.MaxPosition),
	}
}

func (h *Handlers) spotlightData(r *http.Request, session *Session, artist, country string) SpotlightPageData {
	return SpotlightPageData{
		PageData:      h.pageData(r, session, "Artist spotlight"),
		Authenticated: session != nil,
		Artist:        artist,
		Country:       strings.ToUpper(country),
		Countries:     spotlight.Countries,
	}
}

func defaultForm(cfg config.QuizConfig) QuizForm {
	return QuizForm{
		StartYear:   cfg.MinYear,
		EndYear:     cfg.MaxYear,
		MinPosition: 1,
		MaxPosition: cfg.MaxPosition,
	}
}

// parseQuizForm reads the constraint form. Missing fields keep their defaults;
// reversed ranges are put in order.
func parseQuizForm(r *http.Request, cfg config.QuizConfig) (QuizForm, error) {
	form := defaultForm(cfg)
	if err := r.ParseForm(); err != nil {
		return form, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}

	fields := []struct {
		name string
		dst  *int
	}{
		{"start_year", &form.StartYear},
		{"end_year", &form.EndYear},
		{"min_position", &form.MinPosition},
		{"max_position", &form.MaxPosition},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(r.PostForm.Get(f.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return form, fmt.Errorf("%w: %s must be a number, got %q", apperr.ErrInvalidInput, f.name, raw)
		}
		*f.dst = n
	}

	form.Intro = r.PostForm.Get("intros") != ""
	form.ShowInfo = r.PostForm.Get("display_info_by_default") != ""

	ordered := form.filter()
	form.MinPosition, form.MaxPosition = ordered.MinPeak, ordered.MaxPeak
	form.StartYear, form.EndYear = ordered.StartYear, ordered.EndYear

	return form, nil
}

func (f QuizForm) filter() db.ChartFilter {
	return db.ChartFilter{
		MinPeak:   f.MinPosition,
		MaxPeak:   f.MaxPosition,
		StartYear: f.StartYear,
		EndYear:   f.EndYear,
	}.Ordered()
}

func errorFlash(err error) *FlashMessage {
	return &FlashMessage{Type: "error", Message: userMessage(err)}
}

// userMessage turns an error into text fit for the listener.
func userMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, quiz.ErrGaveUp):
		return "No playable song turned up after several tries. Try a wider range."
	case errors.Is(err, apperr.ErrNotFound):
		return "Nothing matched. Try different settings."
	case errors.Is(err, apperr.ErrAuth):
		return "A music service rejected our credentials. Try logging in again."
	default:
		return "A music service is unavailable right now. Try again."
	}
}
