// Package servicetest 提供内存版仓库，行为与 internal/repository 一致：
// 查不到返回 nil, nil，(user, movie) 重复时返回 repository.ErrAlreadyInWatchlist。
package servicetest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
)

// Movies 内存电影缓存
type Movies struct {
	mu      sync.Mutex
	nextID  int
	byTMDB  map[int]*model.Movie
	Upserts int
}

func NewMovies() *Movies {
	return &Movies{byTMDB: map[int]*model.Movie{}}
}

// Put 直接写入一条记录，返回库中 ID
func (m *Movies) Put(movie model.Movie) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	movie.ID = m.nextID
	m.byTMDB[movie.TMDBID] = &movie
	return movie.ID
}

func (m *Movies) FindByTMDBID(tmdbID int) (*model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if movie, ok := m.byTMDB[tmdbID]; ok {
		cp := *movie
		return &cp, nil
	}
	return nil, nil
}

func (m *Movies) byID(id int) *model.Movie {
	for _, movie := range m.byTMDB {
		if movie.ID == id {
			cp := *movie
			return &cp
		}
	}
	return nil
}

func (m *Movies) CreateIfAbsent(movie *model.Movie) (*model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byTMDB[movie.TMDBID]; ok {
		cp := *existing
		return &cp, nil
	}
	m.nextID++
	movie.ID = m.nextID
	movie.CreatedAt = time.Now()
	cp := *movie
	m.byTMDB[movie.TMDBID] = &cp
	return movie, nil
}

func (m *Movies) Upsert(movie *model.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts++
	if existing, ok := m.byTMDB[movie.TMDBID]; ok {
		movie.ID = existing.ID
		movie.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		movie.ID = m.nextID
	}
	movie.UpdatedAt = time.Now()
	cp := *movie
	m.byTMDB[movie.TMDBID] = &cp
	return nil
}

// Watchlist 内存片单
type Watchlist struct {
	mu     sync.Mutex
	nextID int
	items  []*model.WatchlistItem
	movies *Movies
}

func NewWatchlist(movies *Movies) *Watchlist {
	return &Watchlist{movies: movies}
}

// withMovie 返回带电影信息的副本，对应 Preload("Movie")
func (w *Watchlist) withMovie(it *model.WatchlistItem) *model.WatchlistItem {
	cp := *it
	w.movies.mu.Lock()
	cp.Movie = w.movies.byID(it.MovieID)
	w.movies.mu.Unlock()
	return &cp
}

func (w *Watchlist) ListByUser(userID int, status string) ([]*model.WatchlistItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*model.WatchlistItem
	for _, it := range w.items {
		if it.UserID == userID && (status == "" || it.Status == status) {
			out = append(out, w.withMovie(it))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

func (w *Watchlist) FindByTMDBID(userID, tmdbID int) (*model.WatchlistItem, error) {
	movie, _ := w.movies.FindByTMDBID(tmdbID)
	if movie == nil {
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range w.items {
		if it.UserID == userID && it.MovieID == movie.ID {
			return w.withMovie(it), nil
		}
	}
	return nil, nil
}

func (w *Watchlist) Create(item *model.WatchlistItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range w.items {
		if it.UserID == item.UserID && it.MovieID == item.MovieID {
			return repository.ErrAlreadyInWatchlist
		}
	}
	w.nextID++
	item.ID = w.nextID
	cp := *item
	cp.Movie = nil
	w.items = append(w.items, &cp)
	return nil
}

func (w *Watchlist) Update(item *model.WatchlistItem, updates map[string]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range w.items {
		if it.ID != item.ID {
			continue
		}
		for col, v := range updates {
			if err := apply(it, col, v); err != nil {
				return err
			}
		}
		it.UpdatedAt = time.Now()
		return nil
	}
	return nil
}

func apply(it *model.WatchlistItem, col string, v interface{}) error {
	switch col {
	case "status":
		it.Status = v.(string)
	case "completed_at":
		t := v.(time.Time)
		it.CompletedAt = &t
	case "user_rating":
		n := v.(int)
		it.UserRating = &n
	case "notes":
		it.Notes = v.(string)
	case "watch_progress":
		it.WatchProgress = v.(int)
	case "priority":
		it.Priority = v.(string)
	case "tags":
		it.Tags = v.(pq.StringArray)
	case "reminder":
		if v == nil {
			it.Reminder = nil
		} else {
			t := v.(time.Time)
			it.Reminder = &t
		}
	case "mood_when_added":
		it.MoodWhenAdded = v.(string)
	case "situation_when_added":
		it.SituationWhenAdded = v.(string)
	case "time_available":
		it.TimeAvailable = v.(string)
	default:
		return fmt.Errorf("unknown column %q", col)
	}
	return nil
}

func (w *Watchlist) Delete(userID, id int) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, it := range w.items {
		if it.UserID == userID && it.ID == id {
			w.items = append(w.items[:i], w.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (w *Watchlist) DeleteAll(userID int) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.items[:0]
	var n int64
	for _, it := range w.items {
		if it.UserID == userID {
			n++
			continue
		}
		kept = append(kept, it)
	}
	w.items = kept
	return n, nil
}

func (w *Watchlist) Stats(userID int) (*model.WatchlistStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := &model.WatchlistStats{}
	for _, it := range w.items {
		if it.UserID != userID {
			continue
		}
		st.Total++
		switch it.Status {
		case model.StatusPending:
			st.Pending++
		case model.StatusWatching:
			st.Watching++
		case model.StatusCompleted:
			st.Completed++
		case model.StatusAbandoned:
			st.Abandoned++
		}
	}
	st.CompletedPercentage = repository.CompletedPercentage(st.Completed, st.Total)
	return st, nil
}

// Activities 内存活动日志
type Activities struct {
	mu    sync.Mutex
	Items []*model.Activity
}

func (a *Activities) Create(act *model.Activity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Items = append(a.Items, act)
	return nil
}

// Len 已记录条数
func (a *Activities) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Items)
}
