package service

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// searchKey 规范化后的查询词和页码，大小写和首尾空白不同视为同一次搜索
type searchKey struct {
	query string
	page  int
}

func newSearchKey(query string, page int) searchKey {
	return searchKey{
		query: strings.ToLower(strings.TrimSpace(query)),
		page:  pageOrFirst(page),
	}
}

// searchCache TMDB 搜索结果缓存，容量满时淘汰最久未用的结果
type searchCache struct {
	entries *expirable.LRU[searchKey, *TMDBPage]
}

func newSearchCache(size int, ttl time.Duration) *searchCache {
	return &searchCache{entries: expirable.NewLRU[searchKey, *TMDBPage](size, nil, ttl)}
}

func (c *searchCache) get(query string, page int) (*TMDBPage, bool) {
	return c.entries.Get(newSearchKey(query, page))
}

func (c *searchCache) put(query string, page int, result *TMDBPage) {
	c.entries.Add(newSearchKey(query, page), result)
}
