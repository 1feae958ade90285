package service

import (
	"reflect"
	"testing"
	"time"

	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{5 * time.Minute, "5 minutes ago"},
		{3 * time.Hour, "3 hours ago"},
		{25 * time.Hour, "1 day ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{8 * 24 * time.Hour, "1 week ago"},
		{15 * 24 * time.Hour, "2 weeks ago"},
		{31 * 24 * time.Hour, "1 month ago"},
		{95 * 24 * time.Hour, "3 months ago"},
	}
	for _, tt := range tests {
		if got := TimeAgo(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("TimeAgo(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestBuildProfileNumbers(t *testing.T) {
	got := BuildProfileNumbers(&model.WatchlistStats{Total: 12, Completed: 5}, 4, 600)
	want := ProfileNumbers{
		MoviesWatched:    5,
		WatchlistCount:   12,
		MoodsTracked:     4,
		TotalWatchTime:   600,
		MonthlyWatchTime: 180,
		WeeklyWatchTime:  45,
		DailyAverage:     6,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	zero := BuildProfileNumbers(&model.WatchlistStats{}, 0, 0)
	if zero != (ProfileNumbers{}) {
		t.Errorf("empty profile should be all zeros, got %+v", zero)
	}
}

func TestGenreShares(t *testing.T) {
	got := GenreShares([]repository.GenreCount{{Genre: "Drama", Count: 2}, {Genre: "Comedy", Count: 1}}, 3)
	want := []GenreShare{{"Drama", 67}, {"Comedy", 33}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if got := GenreShares([]repository.GenreCount{{Genre: "Drama", Count: 1}}, 0); got[0].Percentage != 0 {
		t.Errorf("zero total should give 0%%, got %v", got)
	}
}
