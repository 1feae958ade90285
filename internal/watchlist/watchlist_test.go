package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/user/moodflix/internal/model"
)

// fakeServer 内存版服务端片单接口
type fakeServer struct {
	mu      sync.Mutex
	items   map[int]*model.WatchlistItem
	order   []int
	failFor map[int]int
	posts   []addRequest
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{items: map[int]*model.WatchlistItem{}, failFor: map[int]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			writeEnv(w, http.StatusOK, "success", map[string]interface{}{"user": model.PublicUser{ID: 1, Email: "a@b.c"}})
			return
		}
		writeEnv(w, http.StatusOK, "success", map[string]interface{}{"user": nil})
	})
	mux.HandleFunc("GET /api/watchlist", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		list := make([]*model.WatchlistItem, 0, len(fs.order))
		for _, id := range fs.order {
			list = append(list, fs.items[id])
		}
		writeEnv(w, http.StatusOK, "success", map[string]interface{}{"watchlist": list})
	})
	mux.HandleFunc("POST /api/watchlist", func(w http.ResponseWriter, r *http.Request) {
		var req addRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TMDBID == 0 {
			writeEnv(w, http.StatusBadRequest, "TMDb ID is required", nil)
			return
		}

		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.posts = append(fs.posts, req)

		if code, ok := fs.failFor[req.TMDBID]; ok {
			writeEnv(w, code, "Failed to add to watchlist", nil)
			return
		}
		if existing, ok := fs.items[req.TMDBID]; ok {
			writeEnv(w, http.StatusConflict, "Movie already in watchlist", map[string]interface{}{"item": existing})
			return
		}

		title, _ := req.MovieData["title"].(string)
		source, _ := req.MovieData["source"].(string)
		item := &model.WatchlistItem{
			ID:      len(fs.order) + 1,
			Status:  model.StatusPending,
			Source:  source,
			AddedAt: time.Now(),
			Movie:   &model.Movie{TMDBID: req.TMDBID, Title: title},
		}
		fs.items[req.TMDBID] = item
		fs.order = append(fs.order, req.TMDBID)
		writeEnv(w, http.StatusCreated, "Added to watchlist", map[string]interface{}{"item": item})
	})
	mux.HandleFunc("DELETE /api/watchlist", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		n := len(fs.items)
		fs.items = map[int]*model.WatchlistItem{}
		fs.order = nil
		writeEnv(w, http.StatusOK, "Watchlist cleared", map[string]interface{}{"deletedCount": n})
	})
	mux.HandleFunc("GET /api/watchlist/stats", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		st := model.WatchlistStats{Total: len(fs.items)}
		for _, it := range fs.items {
			if it.Status == model.StatusCompleted {
				st.Completed++
			} else {
				st.Pending++
			}
		}
		writeEnv(w, http.StatusOK, "success", st)
	})
	mux.HandleFunc("/api/watchlist/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		fs.mu.Lock()
		defer fs.mu.Unlock()

		item, ok := fs.items[id]
		if !ok {
			writeEnv(w, http.StatusNotFound, "Watchlist item not found", nil)
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeEnv(w, http.StatusOK, "success", map[string]interface{}{"item": item})
		case http.MethodPatch:
			var upd struct {
				Status string `json:"status"`
			}
			json.NewDecoder(r.Body).Decode(&upd)
			item.Status = upd.Status
			if upd.Status == model.StatusCompleted && item.CompletedAt == nil {
				now := time.Now()
				item.CompletedAt = &now
			}
			writeEnv(w, http.StatusOK, "Watchlist item updated", map[string]interface{}{"item": item})
		case http.MethodDelete:
			delete(fs.items, id)
			for i, v := range fs.order {
				if v == id {
					fs.order = append(fs.order[:i], fs.order[i+1:]...)
					break
				}
			}
			writeEnv(w, http.StatusOK, "Removed from watchlist", nil)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func writeEnv(w http.ResponseWriter, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]interface{}{
		"code":    code,
		"message": msg,
		"data":    data,
		"success": code < 400,
	}
	if code >= 400 {
		body["error"] = msg
	}
	json.NewEncoder(w).Encode(body)
}

func movie(id int, title string) Item {
	return Item{TMDBID: id, Title: title, Genres: model.GenreList{"Drama"}, Runtime: 100}
}

func TestLocalAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(NewMemoryStorage())

	first, err := s.Add(ctx, movie(550, "Fight Club"))
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != model.StatusPending || first.AddedAt.IsZero() {
		t.Errorf("new item defaults wrong: %+v", first)
	}
	if _, err := s.ToggleWatched(ctx, 550); err != nil {
		t.Fatal(err)
	}

	updated, err := s.Add(ctx, movie(550, "Fight Club (Director's Cut)"))
	if err != nil {
		t.Fatal(err)
	}

	items, _ := s.List(ctx)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if updated.Title != "Fight Club (Director's Cut)" || !updated.Watched || !updated.AddedAt.Equal(first.AddedAt) {
		t.Errorf("merge should keep state and update metadata: %+v", updated)
	}
}

func TestLocalToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(NewMemoryStorage())
	s.Add(ctx, movie(1, "A"))

	done, err := s.ToggleWatched(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != model.StatusCompleted || !done.Watched || done.WatchedAt == nil {
		t.Errorf("first toggle: %+v", done)
	}

	back, _ := s.ToggleWatched(ctx, 1)
	if back.Status != model.StatusPending || back.Watched || back.WatchedAt != nil {
		t.Errorf("second toggle: %+v", back)
	}

	if _, err := s.ToggleWatched(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestToggledStatus(t *testing.T) {
	cases := []struct{ from, once, twice string }{
		{model.StatusPending, model.StatusCompleted, model.StatusPending},
		{model.StatusCompleted, model.StatusPending, model.StatusCompleted},
		{model.StatusWatching, model.StatusCompleted, model.StatusPending},
		{model.StatusAbandoned, model.StatusCompleted, model.StatusPending},
	}
	for _, tc := range cases {
		once := toggledStatus(tc.from)
		twice := toggledStatus(once)
		if once != tc.once || twice != tc.twice {
			t.Errorf("%s: toggled to %s then %s, want %s then %s", tc.from, once, twice, tc.once, tc.twice)
		}
	}
}

func TestLocalContainsFollowsAddRemove(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(NewMemoryStorage())

	if ok, _ := s.Contains(ctx, 7); ok {
		t.Fatal("empty store contains 7")
	}
	s.Add(ctx, movie(7, "Seven"))
	if ok, _ := s.Contains(ctx, 7); !ok {
		t.Fatal("Contains false after Add")
	}
	if err := s.Remove(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Contains(ctx, 7); ok {
		t.Fatal("Contains true after Remove")
	}
	if err := s.Remove(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStatsAndExport(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(NewMemoryStorage())
	for i := 1; i <= 3; i++ {
		s.Add(ctx, movie(i, "m"))
	}
	s.ToggleWatched(ctx, 2)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Total: 3, Completed: 1, Pending: 2, CompletedPercentage: 33}
	if st != want {
		t.Errorf("got %+v, want %+v", st, want)
	}

	exp, _ := s.Export(ctx)
	if exp.Version != LocalExportVersion || exp.Total != 3 || len(exp.Items) != 3 {
		t.Errorf("export = %+v", exp)
	}
	if exp.Stats != want {
		t.Errorf("export stats = %+v, want %+v", exp.Stats, want)
	}
}

func TestLocalReadsObjectGenresAndCorruptData(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	storage.Set(WatchlistKey, `[{"tmdb_id":5,"title":"X","genres":[{"id":18,"name":"Drama"},"Comedy"],"watched":true}]`)

	items, err := NewLocalStore(storage).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || len(items[0].Genres) != 2 || items[0].Genres[0] != "Drama" {
		t.Errorf("items = %+v", items)
	}

	storage.Set(WatchlistKey, `{not json`)
	items, err = NewLocalStore(storage).List(ctx)
	if err != nil || len(items) != 0 {
		t.Errorf("corrupt data should read as empty, got %v %v", items, err)
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	fs, err := NewFileStorage(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := fs.Get(WatchlistKey); ok || err != nil {
		t.Fatalf("empty storage: %v %v", ok, err)
	}
	if err := fs.Set(TokenKey, "abc"); err != nil {
		t.Fatal(err)
	}

	reopened, _ := NewFileStorage(path)
	if v, ok, _ := reopened.Get(TokenKey); !ok || v != "abc" {
		t.Errorf("value not persisted: %q %v", v, ok)
	}
	if err := reopened.Remove(TokenKey); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fs.Get(TokenKey); ok {
		t.Error("value not removed")
	}
}

func TestMigratePartialFailure(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	fs.failFor[2] = http.StatusInternalServerError

	storage := NewMemoryStorage()
	local := NewLocalStore(storage)
	local.Add(ctx, movie(1, "One"))
	local.Add(ctx, movie(2, "Two"))

	res := NewMigrator(local, NewClient(srv.URL).WithToken("good")).Migrate(ctx)

	want := MigrationResult{Success: true, Migrated: 1, Errors: 1, Total: 2, Message: "Successfully migrated 1 items to database"}
	if res != want {
		t.Errorf("got %+v, want %+v", res, want)
	}
	if _, ok, _ := storage.Get(WatchlistKey); ok {
		t.Error("local storage should be cleared after a partial migration")
	}
	if len(fs.posts) != 2 || fs.posts[0].MovieData["source"] != MigrationSource {
		t.Errorf("posts = %+v", fs.posts)
	}
}

func TestMigrateAllFailedKeepsLocal(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	fs.failFor[1] = http.StatusInternalServerError

	storage := NewMemoryStorage()
	local := NewLocalStore(storage)
	local.Add(ctx, movie(1, "One"))

	res := NewMigrator(local, NewClient(srv.URL).WithToken("good")).Migrate(ctx)
	if !res.Success || res.Migrated != 0 || res.Errors != 1 || res.Total != 1 {
		t.Errorf("got %+v", res)
	}
	if n, _ := local.Len(); n != 1 {
		t.Error("local items must be kept when nothing migrated")
	}
}

func TestMigrateConflictCountsAsError(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	for _, id := range []int{1, 2} {
		fs.items[id] = &model.WatchlistItem{ID: id, Status: model.StatusCompleted, Movie: &model.Movie{TMDBID: id}}
		fs.order = append(fs.order, id)
	}

	local := NewLocalStore(NewMemoryStorage())
	local.Add(ctx, movie(1, "One"))
	local.Add(ctx, movie(2, "Two"))

	res := NewMigrator(local, NewClient(srv.URL).WithToken("good")).Migrate(ctx)
	want := MigrationResult{Success: true, Migrated: 0, Errors: 2, Total: 2, Message: "Successfully migrated 0 items to database"}
	if res != want {
		t.Errorf("got %+v, want %+v", res, want)
	}
	if n, _ := local.Len(); n != 2 {
		t.Errorf("local items must be kept when every add conflicts, have %d", n)
	}
}

func TestAddWithoutTitleOmitsMovieData(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	s := NewRemoteStore(NewClient(srv.URL).WithToken("good"))

	if _, err := s.Add(ctx, Item{TMDBID: 550}); err != nil {
		t.Fatal(err)
	}
	if len(fs.posts) != 1 || fs.posts[0].MovieData != nil {
		t.Errorf("untitled add should not send movieData: %+v", fs.posts)
	}

	if _, err := s.Add(ctx, Item{TMDBID: 13, Title: "  ", Source: "cli"}); err != nil {
		t.Fatal(err)
	}
	data := fs.posts[1].MovieData
	if len(data) != 1 || data["source"] != "cli" {
		t.Errorf("untitled add should only keep the source: %+v", data)
	}

	s.Add(ctx, movie(10, "Ten"))
	if title := fs.posts[2].MovieData["title"]; title != "Ten" {
		t.Errorf("titled add should send movieData, got title %v", title)
	}
}

func TestMigrateNothing(t *testing.T) {
	_, srv := newFakeServer(t)
	res := NewMigrator(NewLocalStore(NewMemoryStorage()), NewClient(srv.URL)).Migrate(context.Background())
	want := MigrationResult{Success: true, Message: "No local watchlist items to migrate"}
	if res != want {
		t.Errorf("got %+v", res)
	}
}

func TestMigrateNetworkFailure(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(NewMemoryStorage())
	local.Add(ctx, movie(1, "One"))

	res := NewMigrator(local, NewClient("http://127.0.0.1:1")).Migrate(ctx)
	if !res.Success || res.Migrated != 0 || res.Errors != 1 {
		t.Errorf("got %+v", res)
	}
	if n, _ := local.Len(); n != 1 {
		t.Error("local items must be kept")
	}
}

func TestRemoteStore(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	s := NewRemoteStore(NewClient(srv.URL).WithToken("good"))

	if _, err := s.Add(ctx, movie(10, "Ten")); err != nil {
		t.Fatal(err)
	}
	again, err := s.Add(ctx, movie(10, "Ten"))
	if err != nil {
		t.Fatalf("duplicate add should succeed: %v", err)
	}
	if again.TMDBID != 10 || len(fs.items) != 1 {
		t.Errorf("duplicate created: %+v, %d items", again, len(fs.items))
	}

	if ok, _ := s.Contains(ctx, 10); !ok {
		t.Error("Contains false after Add")
	}
	if ok, _ := s.Contains(ctx, 11); ok {
		t.Error("Contains true for missing item")
	}

	done, err := s.ToggleWatched(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != model.StatusCompleted || !done.Watched || done.WatchedAt == nil {
		t.Errorf("toggle: %+v", done)
	}
	back, _ := s.ToggleWatched(ctx, 10)
	if back.Status != model.StatusPending {
		t.Errorf("toggle back: %+v", back)
	}

	items, _ := s.List(ctx)
	if len(items) != 1 || items[0].Title != "Ten" {
		t.Errorf("list = %+v", items)
	}

	st, _ := s.Stats(ctx)
	if st.Total != 1 || st.Pending != 1 {
		t.Errorf("stats = %+v", st)
	}

	exp, err := s.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Version != RemoteExportVersion || exp.Total != 1 || exp.Stats.Total != 1 || exp.Stats.Pending != 1 {
		t.Errorf("export = %+v", exp)
	}

	if err := s.Remove(ctx, 10); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ToggleWatched(ctx, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenSelectsStore(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeServer(t)
	client := NewClient(srv.URL)

	storage := NewMemoryStorage()
	sess, err := Open(ctx, storage, client)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Remote {
		t.Error("no token should select local store")
	}

	SaveToken(storage, "expired")
	sess, _ = Open(ctx, storage, client)
	if sess.Remote {
		t.Error("invalid token should select local store")
	}
	if _, ok, _ := storage.Get(TokenKey); ok {
		t.Error("invalid token should be removed")
	}

	SaveToken(storage, "good")
	sess, _ = Open(ctx, storage, client)
	if !sess.Remote {
		t.Fatal("valid token should select remote store")
	}
	if _, ok := sess.Store.(*RemoteStore); !ok {
		t.Errorf("store = %T", sess.Store)
	}
}

func TestSessionMigratesOnOpen(t *testing.T) {
	ctx := context.Background()
	fs, srv := newFakeServer(t)
	storage := NewMemoryStorage()
	NewLocalStore(storage).Add(ctx, movie(3, "Three"))
	SaveToken(storage, "good")

	sess, err := Open(ctx, storage, NewClient(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	res, err := sess.MigrateIfNeeded(ctx)
	if err != nil || res == nil || res.Migrated != 1 {
		t.Fatalf("migration: %+v %v", res, err)
	}
	if _, ok := fs.items[3]; !ok {
		t.Error("item not on server")
	}

	res, _ = sess.MigrateIfNeeded(ctx)
	if res != nil {
		t.Errorf("second call should be a no-op, got %+v", res)
	}
}
