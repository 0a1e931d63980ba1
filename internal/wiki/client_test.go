package wiki

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justestif/go-chart-quiz/internal/apperr"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "top hit",
			status: http.StatusOK,
			body: `{"batchcomplete":true,"query":{"pages":[
				{"pageid":1,"title":"Hello (Adele song)","fullurl":"https://en.wikipedia.org/wiki/Hello_(Adele_song)"}
			]}}`,
			want: "https://en.wikipedia.org/wiki/Hello_(Adele_song)",
		},
		{
			name:    "no results",
			status:  http.StatusOK,
			body:    `{"batchcomplete":true}`,
			wantErr: ErrNoPage,
		},
		{
			name:    "api error",
			status:  http.StatusOK,
			body:    `{"error":{"code":"maxlag","info":"Waiting for a database server"}}`,
			wantErr: apperr.ErrTransient,
		},
		{
			name:    "server error",
			status:  http.StatusServiceUnavailable,
			body:    ``,
			wantErr: apperr.ErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				got = map[string]string{
					"generator": q.Get("generator"),
					"gsrsearch": q.Get("gsrsearch"),
					"gsrlimit":  q.Get("gsrlimit"),
					"prop":      q.Get("prop"),
					"inprop":    q.Get("inprop"),
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := &Client{endpoint: server.URL, httpClient: server.Client()}
			url, err := client.PageURL(context.Background(), "Hello by Adele")

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PageURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if url != tt.want {
				t.Errorf("PageURL() = %q, want %q", url, tt.want)
			}

			want := map[string]string{
				"generator": "search",
				"gsrsearch": "Hello by Adele",
				"gsrlimit":  "1",
				"prop":      "info",
				"inprop":    "url",
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("param %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	if c := NewClient(""); c.endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", c.endpoint, DefaultEndpoint)
	}
}
