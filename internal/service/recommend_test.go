package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/user/moodflix/internal/utils"
)

type fakeChat struct {
	reply      string
	err        error
	configured bool
	last       utils.ChatRequest
}

func (f *fakeChat) Chat(_ context.Context, req utils.ChatRequest) (string, error) {
	f.last = req
	return f.reply, f.err
}

func (f *fakeChat) Configured() bool { return f.configured }

type fakeLookup struct {
	search  map[string][]TMDBMovie
	details map[int]*TMDBMovie
	failFor string
}

func (f *fakeLookup) Search(_ context.Context, q string, _ int) (*TMDBPage, error) {
	if q == f.failFor {
		return nil, errors.New("boom")
	}
	return &TMDBPage{Page: 1, Results: f.search[q]}, nil
}

func (f *fakeLookup) Details(_ context.Context, id int) (*TMDBMovie, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, errors.New("no details")
	}
	return d, nil
}

const aiReply = "```json\n" + `{
  "recommendations": [
    {"title": "Paddington 2", "reason": "warm", "genre": "Comedy", "mood_match": "uplifting", "time_suitable": "short"},
    {"title": "Made Up Film", "reason": "r", "genre": "Drama", "mood_match": "m", "time_suitable": "t"},
    {"title": "Broken Lookup", "reason": "r", "genre": "Horror", "mood_match": "m", "time_suitable": "t"}
  ],
  "overall_analysis": "Feel-good picks"
}` + "\n```"

func TestRecommend(t *testing.T) {
	chat := &fakeChat{reply: aiReply, configured: true}
	lookup := &fakeLookup{
		search: map[string][]TMDBMovie{
			"Paddington 2": {{ID: 346648, Title: "Paddington 2", PosterPath: "/p.jpg", VoteAverage: 7.6}},
		},
		details: map[int]*TMDBMovie{
			346648: {ID: 346648, Runtime: 103, Genres: []TMDBGenre{{ID: 35, Name: "Comedy"}, {ID: 10751, Name: "Family"}}},
		},
		failFor: "Broken Lookup",
	}

	svc := NewRecommendService(chat, lookup, "deepseek/deepseek-chat")
	res, err := svc.Recommend(context.Background(), RecommendRequest{Mood: "happy", Time: "120", Situation: "family"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if chat.last.Temperature != 0.7 || chat.last.MaxTokens != 1000 || chat.last.TopP != 0.9 {
		t.Errorf("unexpected sampling params %+v", chat.last)
	}
	if res.TotalResults != 3 || len(res.Recommendations) != 3 {
		t.Fatalf("TotalResults = %d", res.TotalResults)
	}
	if res.OverallAnalysis != "Feel-good picks" || res.AISource != AISource || !res.TMDBIntegration {
		t.Errorf("unexpected envelope %+v", res)
	}

	hit := res.Recommendations[0]
	if hit.TMDBID == nil || *hit.TMDBID != 346648 || *hit.Runtime != 103 {
		t.Errorf("hit not enriched: %+v", hit)
	}
	if hit.SearchConfidence != 1 || len(hit.Genres) != 2 || hit.AIRecommendation.Reason != "warm" {
		t.Errorf("hit fields wrong: %+v", hit)
	}

	miss := res.Recommendations[1]
	if miss.TMDBID != nil || miss.SearchConfidence != 0 || miss.Error != "" {
		t.Errorf("miss should be a placeholder without error: %+v", miss)
	}
	if len(miss.Genres) != 1 || miss.Genres[0] != "Drama" {
		t.Errorf("placeholder genres = %v", miss.Genres)
	}

	failed := res.Recommendations[2]
	if failed.TMDBID != nil || failed.Error != "Failed to fetch TMDb data" {
		t.Errorf("failed lookup should carry an error: %+v", failed)
	}
}

func TestRecommendErrors(t *testing.T) {
	tests := []struct {
		name   string
		chat   *fakeChat
		status int
		title  string
	}{
		{"not configured", &fakeChat{}, http.StatusInternalServerError, "API key not configured"},
		{"bad json", &fakeChat{configured: true, reply: "sorry, I can't"}, http.StatusInternalServerError, "Invalid AI response"},
		{"no array", &fakeChat{configured: true, reply: `{"recommendations": "none"}`}, http.StatusInternalServerError, "Invalid response structure"},
		{"rate limited", &fakeChat{configured: true, err: &utils.LLMError{StatusCode: 429, Message: "rate limit exceeded"}}, http.StatusTooManyRequests, "Rate limit exceeded"},
		{"credits", &fakeChat{configured: true, err: errors.New("insufficient credits")}, http.StatusPaymentRequired, "Insufficient credits"},
		{"auth", &fakeChat{configured: true, err: errors.New("invalid API key")}, http.StatusUnauthorized, "Authentication failed"},
		{"empty", &fakeChat{configured: true, err: utils.ErrEmptyCompletion}, http.StatusInternalServerError, "Empty AI response"},
		{"other", &fakeChat{configured: true, err: errors.New("connection reset")}, http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRecommendService(tt.chat, &fakeLookup{}, "m")
			_, err := svc.Recommend(context.Background(), RecommendRequest{Mood: "sad", Time: "60", Situation: "alone"})

			var re *RecommendError
			if !errors.As(err, &re) {
				t.Fatalf("expected RecommendError, got %v", err)
			}
			if re.Status != tt.status || re.Title != tt.title {
				t.Errorf("got %d %q, want %d %q", re.Status, re.Title, tt.status, tt.title)
			}
		})
	}
}

func TestBuildMoviePrompt(t *testing.T) {
	p := BuildMoviePrompt("bored", "60", "friends")

	for _, want := range []string{
		"suggest 5 specific movie titles",
		"- Mood: bored",
		"- Time Available: 60",
		"- Situation: friends",
		"emotional state (bored)",
		"time constraint (60)",
		"situation (friends)",
		`"overall_analysis"`,
		"Return only the JSON response",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestParseAIResponse(t *testing.T) {
	plain := `{"recommendations":[{"title":"Up"}],"overall_analysis":"x"}`
	r, err := ParseAIResponse(plain)
	if err != nil || len(r.Recommendations) != 1 || r.Recommendations[0].Title != "Up" {
		t.Fatalf("plain: %+v %v", r, err)
	}

	if _, err := ParseAIResponse("```\n" + plain + "\n```"); err != nil {
		t.Errorf("bare fence: %v", err)
	}
	if _, err := ParseAIResponse("not json"); !errors.Is(err, ErrInvalidAIResponse) {
		t.Errorf("expected ErrInvalidAIResponse, got %v", err)
	}
	if _, err := ParseAIResponse(`{"overall_analysis":"x"}`); !errors.Is(err, ErrInvalidStructure) {
		t.Errorf("expected ErrInvalidStructure, got %v", err)
	}
}

func TestSearchConfidence(t *testing.T) {
	tests := []struct {
		ai, tmdb string
		want     float64
	}{
		{"", "Up", 0},
		{"Up", "", 0},
		{"Inception", "inception", 1},
		{"The Matrix", "Matrix", 0.9},
		{"Spirited", "Spirited Away", 0.9},
		{"The Grand Budapest Hotel", "Budapest Hotel Grand", 0.75},
		{"a b c d e f", "f e d c b a z", 0.8},
		{"Star Wars Episode", "Wars of Stars", 0.3333333333333333},
		{"Amelie", "Le Fabuleux Destin", 0.3},
	}

	for _, tt := range tests {
		if got := SearchConfidence(tt.ai, tt.tmdb); got != tt.want {
			t.Errorf("SearchConfidence(%q, %q) = %v, want %v", tt.ai, tt.tmdb, got, tt.want)
		}
	}
}
