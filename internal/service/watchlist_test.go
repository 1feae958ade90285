package service

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/user/moodflix/internal/model"
)

func TestMapGenres(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{"Drama"}},
		{[]string{"Science Fiction", "Action"}, []string{"Sci-Fi", "Action"}},
		{[]string{"Music", "History"}, []string{"Drama"}},
		{[]string{"Action", "Adventure", "Music", "Comedy", "Crime"}, []string{"Action", "Adventure", "Comedy"}},
	}
	for _, tt := range tests {
		if got := MapGenres(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("MapGenres(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewMovieFromDataDefaults(t *testing.T) {
	m := NewMovieFromData(42, &MovieData{})

	if m.TMDBID != 42 || m.Title != "Unknown Title" || m.Overview != "No overview available" {
		t.Errorf("unexpected defaults %+v", m)
	}
	if m.PosterPath != PlaceholderImage || m.BackdropPath != PlaceholderImage {
		t.Errorf("images should default to placeholder")
	}
	if m.Runtime != 90 || m.ContentRating != "PG-13" || m.Status != "Released" {
		t.Errorf("unexpected defaults %+v", m)
	}
	if !reflect.DeepEqual([]string(m.Genres), []string{"Drama"}) {
		t.Errorf("Genres = %v", m.Genres)
	}
	if m.ReleaseDate != time.Now().Format("2006-01-02") {
		t.Errorf("ReleaseDate = %q", m.ReleaseDate)
	}
}

func TestNewMovieFromDataKeepsValues(t *testing.T) {
	m := NewMovieFromData(603, &MovieData{
		Title:       "The Matrix",
		PosterPath:  "/m.jpg",
		ReleaseDate: "1999-03-31",
		Runtime:     136,
		Genres:      model.GenreList{"Action", "Science Fiction"},
		VoteAverage: 8.2,
	})
	if m.Title != "The Matrix" || m.PosterPath != "/m.jpg" || m.Runtime != 136 || m.VoteAverage != 8.2 {
		t.Errorf("values not kept: %+v", m)
	}
	if !reflect.DeepEqual([]string(m.Genres), []string{"Action", "Sci-Fi"}) {
		t.Errorf("Genres = %v", m.Genres)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestWatchlistUpdateColumns(t *testing.T) {
	upd := WatchlistUpdate{
		Status:        strPtr(model.StatusCompleted),
		UserRating:    intPtr(9),
		Notes:         strPtr("great"),
		WatchProgress: intPtr(100),
		Tags:          &[]string{"classic"},
	}

	cols, err := upd.toColumns(&model.WatchlistItem{})
	if err != nil {
		t.Fatal(err)
	}
	if cols["status"] != model.StatusCompleted || cols["user_rating"] != 9 || cols["notes"] != "great" || cols["watch_progress"] != 100 {
		t.Errorf("unexpected columns %v", cols)
	}
	if _, ok := cols["completed_at"].(time.Time); !ok {
		t.Error("first completion should stamp completed_at")
	}
	if !reflect.DeepEqual(cols["tags"], pq.StringArray{"classic"}) {
		t.Errorf("tags = %#v", cols["tags"])
	}
	if _, ok := cols["priority"]; ok {
		t.Error("unset fields must not be written")
	}
}

func TestWatchlistUpdateKeepsCompletedAt(t *testing.T) {
	done := time.Now().Add(-time.Hour)
	upd := WatchlistUpdate{Status: strPtr(model.StatusCompleted)}

	cols, err := upd.toColumns(&model.WatchlistItem{CompletedAt: &done})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cols["completed_at"]; ok {
		t.Error("completed_at must not be overwritten")
	}
}

func TestWatchlistUpdateReminder(t *testing.T) {
	cols, err := WatchlistUpdate{Reminder: strPtr("2026-01-02T15:04:05Z")}.toColumns(&model.WatchlistItem{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cols["reminder"].(time.Time); !ok {
		t.Errorf("reminder = %#v", cols["reminder"])
	}

	cols, _ = WatchlistUpdate{Reminder: strPtr("")}.toColumns(&model.WatchlistItem{})
	if v, ok := cols["reminder"]; !ok || v != nil {
		t.Errorf("empty reminder should clear, got %#v", v)
	}

	if _, err := (WatchlistUpdate{Reminder: strPtr("tomorrow")}).toColumns(&model.WatchlistItem{}); !errors.Is(err, ErrInvalidUpdate) {
		t.Errorf("expected ErrInvalidUpdate, got %v", err)
	}
}
