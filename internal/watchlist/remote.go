package watchlist

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/user/moodflix/internal/model"
)

// RemoteStore 登录后直接读写服务端片单
type RemoteStore struct {
	client *Client
	now    func() time.Time
}

func NewRemoteStore(client *Client) *RemoteStore {
	return &RemoteStore{client: client, now: time.Now}
}

func (s *RemoteStore) List(ctx context.Context) ([]Item, error) {
	var out struct {
		Watchlist []*model.WatchlistItem `json:"watchlist"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/api/watchlist", nil, &out); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(out.Watchlist))
	for _, w := range out.Watchlist {
		items = append(items, fromServer(w))
	}
	return items, nil
}

// Add 已存在时服务端返回 409 和原条目，视为成功
func (s *RemoteStore) Add(ctx context.Context, item Item) (Item, error) {
	w, err := s.client.addItem(ctx, item, "")
	if err != nil && !IsStatus(err, http.StatusConflict) {
		return Item{}, err
	}
	if w == nil {
		return item, nil
	}
	return fromServer(w), nil
}

func (s *RemoteStore) Remove(ctx context.Context, tmdbID int) error {
	err := s.client.do(ctx, http.MethodDelete, itemPath(tmdbID), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return ErrNotFound
	}
	return err
}

// ToggleWatched 先读取当前状态再 PATCH
func (s *RemoteStore) ToggleWatched(ctx context.Context, tmdbID int) (Item, error) {
	current, err := s.client.getItem(ctx, tmdbID)
	if IsStatus(err, http.StatusNotFound) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}

	var out struct {
		Item *model.WatchlistItem `json:"item"`
	}
	err = s.client.do(ctx, http.MethodPatch, itemPath(tmdbID), map[string]string{
		"status": toggledStatus(current.Status),
	}, &out)
	if IsStatus(err, http.StatusNotFound) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	if out.Item == nil {
		return Item{}, ErrNotFound
	}
	return fromServer(out.Item), nil
}

func (s *RemoteStore) Contains(ctx context.Context, tmdbID int) (bool, error) {
	_, err := s.client.getItem(ctx, tmdbID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) || IsStatus(err, http.StatusNotFound) {
		return false, nil
	}
	return false, err
}

func (s *RemoteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.client.do(ctx, http.MethodGet, "/api/watchlist/stats", nil, &st)
	return st, err
}

func (s *RemoteStore) Clear(ctx context.Context) error {
	return s.client.do(ctx, http.MethodDelete, "/api/watchlist", nil, nil)
}

func (s *RemoteStore) Export(ctx context.Context) (*Export, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Export{
		Version:    RemoteExportVersion,
		ExportedAt: s.now(),
		Total:      len(items),
		Stats:      st,
		Items:      items,
	}, nil
}
