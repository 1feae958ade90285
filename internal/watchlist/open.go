package watchlist

import (
	"context"
	"log"
)

// Session 一次会话选定的片单存储
type Session struct {
	Store   Store
	Local   *LocalStore
	Client  *Client
	Remote  bool
	Storage Storage
}

// Open 根据本地保存的 Token 选择存储，整个会话只选一次。
// Token 无效时删除 Token 并使用本地片单；服务端不可达时同样退回本地。
func Open(ctx context.Context, storage Storage, client *Client) (*Session, error) {
	local := NewLocalStore(storage)
	sess := &Session{Store: local, Local: local, Client: client, Storage: storage}

	token, ok, err := storage.Get(TokenKey)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" || client == nil {
		return sess, nil
	}

	authed := client.WithToken(token)
	user, err := authed.Session(ctx)
	if err != nil {
		log.Printf("[Watchlist] 无法验证登录状态，使用本地片单: %v", err)
		return sess, nil
	}
	if user == nil {
		if err := storage.Remove(TokenKey); err != nil {
			return nil, err
		}
		return sess, nil
	}

	sess.Client = authed
	sess.Store = NewRemoteStore(authed)
	sess.Remote = true
	return sess, nil
}

// MigrateIfNeeded 已登录且本地仍有条目时执行迁移
func (s *Session) MigrateIfNeeded(ctx context.Context) (*MigrationResult, error) {
	if !s.Remote {
		return nil, nil
	}
	n, err := s.Local.Len()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	res := NewMigrator(s.Local, s.Client).Migrate(ctx)
	return &res, nil
}

// SaveToken 登录成功后保存 Token
func SaveToken(storage Storage, token string) error {
	return storage.Set(TokenKey, token)
}

// ClearToken 退出登录
func ClearToken(storage Storage) error {
	return storage.Remove(TokenKey)
}
