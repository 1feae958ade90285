package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestGlobalCacheUninitialized(t *testing.T) {
	saved := Cache
	Cache = nil
	defer func() { Cache = saved }()

	CacheSet("k", 1, time.Minute)
	if _, ok := CacheGet("k"); ok {
		t.Error("nil cache should always miss")
	}
}

func TestHTTPClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`nope`))
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second)
	err := c.GetJSON(context.Background(), srv.URL, nil, &struct{}{})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTeapot || se.Body != "nope" {
		t.Errorf("unexpected StatusError %+v", se)
	}
}

func TestHTTPClientPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Test") != "1" {
			t.Errorf("custom header missing")
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := NewHTTPClient(time.Second).PostJSON(context.Background(), srv.URL, map[string]string{"X-Test": "1"}, map[string]string{"name": "moodflix"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out["echo"] != "moodflix" {
		t.Errorf("echo = %q", out["echo"])
	}
}

func TestOpenRouterChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("X-Title") != "MoodFlix" || r.Header.Get("HTTP-Referer") != "http://site" {
			t.Errorf("attribution headers missing")
		}
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "deepseek/deepseek-chat" || req.MaxTokens != 1000 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient("key", srv.URL+"/", "http://site", "MoodFlix")
	got, err := c.Chat(context.Background(), ChatRequest{
		Model:     "deepseek/deepseek-chat",
		Messages:  []ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("Chat() = %q", got)
	}
}

func TestOpenRouterErrors(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, "API key"},
		{http.StatusPaymentRequired, "insufficient credits"},
		{http.StatusTooManyRequests, "rate limit"},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"upstream says no"}}`))
		}))

		_, err := NewOpenRouterClient("key", srv.URL, "", "").Chat(context.Background(), ChatRequest{})
		srv.Close()

		var le *LLMError
		if !errors.As(err, &le) {
			t.Fatalf("status %d: expected LLMError, got %v", tt.status, err)
		}
		if le.StatusCode != tt.status || !strings.Contains(le.Message, tt.want) || !strings.Contains(le.Message, "upstream says no") {
			t.Errorf("status %d: unexpected error %+v", tt.status, le)
		}
	}
}

func TestOpenRouterMissingKey(t *testing.T) {
	c := NewOpenRouterClient("", "http://unused", "", "")
	if c.Configured() {
		t.Error("client without key should not be configured")
	}
	if _, err := c.Chat(context.Background(), ChatRequest{}); err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestErrorResponseCarriesErrorField(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Conflict(c, "Movie already in watchlist", gin.H{"id": 1})

	if w.Code != http.StatusConflict {
		t.Fatalf("code = %d", w.Code)
	}
	var resp Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Success || resp.Error != "Movie already in watchlist" || resp.Data == nil {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}
