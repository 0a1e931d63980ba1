package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/justestif/go-chart-quiz/internal/quiz"
	"github.com/justestif/go-chart-quiz/internal/spotlight"
)

// Templates renders the page templates. Each page is parsed together with every
// layout and partial and executed through the "base" layout.
type Templates struct {
	pages map[string]*template.Template
}

// NewTemplates parses layouts/*.html, partials/*.html and pages/*.html from templatesFS.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding layouts: %w", err)
	}
	partials, err := fs.Glob(templatesFS, "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding partials: %w", err)
	}
	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}

	common := append(layouts, partials...)
	t := &Templates{pages: make(map[string]*template.Template, len(pages))}

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		files := append([]string{page}, common...)

		tmpl, err := template.New(name).Funcs(templateFuncs()).ParseFS(templatesFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}

	return t, nil
}

// Render executes a page through the base layout.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"formatMs":    formatMs,
		"formatCount": formatCount,
	}
}

// formatMs renders milliseconds as m:ss.
func formatMs(ms int) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// PageData is shared by every page.
type PageData struct {
	Title       string
	User        *UserData
	Flash       *FlashMessage
	CurrentPath string
}

// UserData identifies the signed-in listener.
type UserData struct {
	ID   string
	Name string
}

// FlashMessage is a one-off notice shown above the page content.
type FlashMessage struct {
	Type    string // "success", "error", "warning", "info"
	Message string
}

// QuizForm is the constraint form on the quiz page.
type QuizForm struct {
	StartYear   int
	EndYear     int
	MinPosition int
	MaxPosition int
	Intro       bool
	ShowInfo    bool
}

// HomePageData backs the quiz page.
type HomePageData struct {
	PageData
	Authenticated bool
	Form          QuizForm
	Years         []int
	Positions     []int
	Round         *RoundData
}

// RoundData is one quiz round as shown to the listener.
type RoundData struct {
	Song          string
	Artist        string
	ChartPeak     int
	Year          int
	TrackName     string
	TrackArtist   string
	DurationMs    int
	StartOffsetMs int
	FactURL       string
	Played        bool
}

func newRoundData(r *quiz.Round) *RoundData {
	return &RoundData{
		Song:          r.Entry.Song,
		Artist:        r.Entry.Artist,
		ChartPeak:     r.Entry.ChartPeak,
		Year:          r.Entry.Year,
		TrackName:     r.Resolved.Song,
		TrackArtist:   r.Resolved.Artist,
		DurationMs:    r.Resolved.DurationMs,
		StartOffsetMs: r.StartOffsetMs,
		FactURL:       r.FactURL,
		Played:        r.Played,
	}
}

// SpotlightPageData backs the artist top-tracks page.
type SpotlightPageData struct {
	PageData
	Authenticated bool
	Artist        string
	Country       string
	Countries     []string
	Result        *SpotlightData
}

// SpotlightData is a ranked artist spotlight.
type SpotlightData struct {
	Artist    string
	Country   string
	Tracks    []SpotlightTrack
	Unmatched []SpotlightTrack
}

// SpotlightTrack is one row of the spotlight table.
type SpotlightTrack struct {
	Song       string
	DurationMs int
	PlayCount  int
}

func newSpotlightData(r *spotlight.Result) *SpotlightData {
	data := &SpotlightData{Artist: r.Artist.Name, Country: r.Country}
	for _, t := range r.Tracks {
		data.Tracks = append(data.Tracks, SpotlightTrack{Song: t.Song, DurationMs: t.DurationMs, PlayCount: t.PlayCount})
	}
	for _, t := range r.Unmatched {
		data.Unmatched = append(data.Unmatched, SpotlightTrack{Song: t.Song, DurationMs: t.DurationMs})
	}
	return data
}

func intRange(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}
