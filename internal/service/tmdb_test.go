package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/user/moodflix/internal/config"
)

func newTestTMDB(t *testing.T, handler http.HandlerFunc) *TMDBService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTMDBService(config.TMDBConfig{
		APIKey:       "k",
		BaseURL:      srv.URL,
		ImageBaseURL: "https://image.tmdb.org/t/p",
	})
}

func TestTMDBSearchCachesResults(t *testing.T) {
	var calls int32
	svc := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		if r.URL.Path != "/search/movie" || q.Get("query") != "Up" || q.Get("include_adult") != "false" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if q.Get("api_key") != "k" || q.Get("language") != "en-US" {
			t.Errorf("missing auth params: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"page":1,"total_pages":1,"total_results":1,"results":[{"id":14160,"title":"Up"}]}`))
	})

	for i := 0; i < 2; i++ {
		page, err := svc.Search(context.Background(), "Up", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Results) != 1 || page.Results[0].ID != 14160 {
			t.Fatalf("unexpected page %+v", page)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}

func TestTMDBByMoodQuery(t *testing.T) {
	svc := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/discover/movie" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q.Get("with_genres") != "35|10751|16" || q.Get("vote_average.gte") != "6" || q.Get("sort_by") != "popularity.desc" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"page":2,"results":[]}`))
	})

	page, err := svc.ByMood(context.Background(), "Happy", 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Page != 2 {
		t.Errorf("Page = %d", page.Page)
	}
}

func TestTMDBUpstreamError(t *testing.T) {
	svc := newTestTMDB(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_message":"Invalid id"}`, http.StatusNotFound)
	})

	if _, err := svc.Details(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestTMDBNotConfigured(t *testing.T) {
	svc := NewTMDBService(config.TMDBConfig{BaseURL: "http://unused"})
	if svc.Configured() {
		t.Error("expected not configured")
	}
	if _, err := svc.Popular(context.Background(), 1); !errors.Is(err, ErrTMDBNotConfigured) {
		t.Errorf("expected ErrTMDBNotConfigured, got %v", err)
	}
}

func TestMoodGenreQuery(t *testing.T) {
	cases := map[string]string{
		"sad":       "18|10749",
		"INSPIRED":  "18|99|36",
		"nostalgic": "18|36|10402",
		"bored":     "35",
	}
	for mood, want := range cases {
		if got := MoodGenreQuery(mood); got != want {
			t.Errorf("MoodGenreQuery(%q) = %q, want %q", mood, got, want)
		}
	}
}

func TestTransform(t *testing.T) {
	svc := NewTMDBService(config.TMDBConfig{ImageBaseURL: "https://image.tmdb.org/t/p/"})

	v := svc.Transform(TMDBMovie{
		ID:          550,
		Title:       "Fight Club",
		PosterPath:  "/poster.jpg",
		ReleaseDate: "1999-10-15",
		Runtime:     139,
		GenreIDs:    []int{18, 53},
		VoteAverage: 8.4,
	})

	if v.Poster != "https://image.tmdb.org/t/p/w500/poster.jpg" {
		t.Errorf("Poster = %q", v.Poster)
	}
	if v.Backdrop != PlaceholderImage {
		t.Errorf("Backdrop = %q", v.Backdrop)
	}
	if v.Year == nil || *v.Year != 1999 {
		t.Errorf("Year = %v", v.Year)
	}
	if v.Duration == nil || *v.Duration != "139 min" {
		t.Errorf("Duration = %v", v.Duration)
	}
	if v.Genre == nil || *v.Genre != "18, 53" {
		t.Errorf("Genre = %v", v.Genre)
	}

	empty := svc.Transform(TMDBMovie{ID: 1})
	if empty.Year != nil || empty.Duration != nil || empty.Genre != nil {
		t.Errorf("missing fields should be null: %+v", empty)
	}
}

func TestImageURLPassThrough(t *testing.T) {
	svc := NewTMDBService(config.TMDBConfig{ImageBaseURL: "https://image.tmdb.org/t/p"})
	if got := svc.PosterURL(PlaceholderImage, ""); got != PlaceholderImage {
		t.Errorf("placeholder rewritten to %q", got)
	}
	if got := svc.BackdropURL("/b.jpg", "w1280"); got != "https://image.tmdb.org/t/p/w1280/b.jpg" {
		t.Errorf("BackdropURL = %q", got)
	}
}
