package watchlist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/user/moodflix/internal/model"
)

// LocalStore 未登录时使用的设备本地片单
type LocalStore struct {
	mu      sync.Mutex
	storage Storage
	now     func() time.Time
}

func NewLocalStore(storage Storage) *LocalStore {
	return &LocalStore{storage: storage, now: time.Now}
}

// load 读取本地片单；内容损坏时当作空片单
func (s *LocalStore) load() ([]Item, error) {
	raw, ok, err := s.storage.Get(WatchlistKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []Item{}, nil
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("[Watchlist] 本地片单解析失败，按空片单处理: %v", err)
		return []Item{}, nil
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func (s *LocalStore) save(items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.storage.Set(WatchlistKey, string(raw))
}

func (s *LocalStore) List(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Len 本地条目数
func (s *LocalStore) Len() (int, error) {
	items, err := s.List(context.Background())
	return len(items), err
}

func (s *LocalStore) Add(ctx context.Context, item Item) (Item, error) {
	if item.TMDBID <= 0 {
		return Item{}, fmt.Errorf("invalid tmdb id %d", item.TMDBID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return Item{}, err
	}

	for i := range items {
		if items[i].TMDBID == item.TMDBID {
			// 只更新电影信息，保留加入时间和观看状态
			merged := items[i]
			merged.Title = item.Title
			merged.Overview = item.Overview
			merged.PosterPath = item.PosterPath
			merged.BackdropPath = item.BackdropPath
			merged.ReleaseDate = item.ReleaseDate
			merged.Runtime = item.Runtime
			merged.Genres = item.Genres
			merged.VoteAverage = item.VoteAverage
			merged.VoteCount = item.VoteCount
			merged.Popularity = item.Popularity
			if item.Source != "" {
				merged.Source = item.Source
			}
			items[i] = merged
			return merged, s.save(items)
		}
	}

	item.AddedAt = s.now()
	item.Watched = false
	item.WatchedAt = nil
	item.Status = model.StatusPending
	items = append(items, item)
	return item, s.save(items)
}

func (s *LocalStore) Remove(ctx context.Context, tmdbID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	kept := items[:0]
	found := false
	for _, it := range items {
		if it.TMDBID == tmdbID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return ErrNotFound
	}
	return s.save(kept)
}

func (s *LocalStore) ToggleWatched(ctx context.Context, tmdbID int) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return Item{}, err
	}
	for i := range items {
		if items[i].TMDBID != tmdbID {
			continue
		}
		current := items[i].Status
		if current == "" && items[i].Watched {
			current = model.StatusCompleted
		}
		items[i].Status = toggledStatus(current)
		items[i].Watched = items[i].Status == model.StatusCompleted
		if items[i].Watched {
			t := s.now()
			items[i].WatchedAt = &t
		} else {
			items[i].WatchedAt = nil
		}
		return items[i], s.save(items)
	}
	return Item{}, ErrNotFound
}

func (s *LocalStore) Contains(ctx context.Context, tmdbID int) (bool, error) {
	items, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.TMDBID == tmdbID {
			return true, nil
		}
	}
	return false, nil
}

// Stats 本地只区分已看和未看
func (s *LocalStore) Stats(ctx context.Context) (Stats, error) {
	items, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(items), nil
}

// statsOf 本地条目只区分已看与未看
func statsOf(items []Item) Stats {
	st := Stats{Total: len(items)}
	for _, it := range items {
		if it.Watched {
			st.Completed++
		}
	}
	st.Pending = st.Total - st.Completed
	if st.Total > 0 {
		st.CompletedPercentage = int(math.Round(float64(st.Completed) / float64(st.Total) * 100))
	}
	return st
}

func (s *LocalStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.Remove(WatchlistKey)
}

func (s *LocalStore) Export(ctx context.Context) (*Export, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return &Export{
		Version:    LocalExportVersion,
		ExportedAt: s.now(),
		Total:      len(items),
		Stats:      statsOf(items),
		Items:      items,
	}, nil
}
