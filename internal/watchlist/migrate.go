package watchlist

import (
	"context"
	"fmt"
	"log"
)

// MigrationSource 迁移条目在服务端的来源标记
const MigrationSource = "migration"

// MigrationResult 迁移结果
type MigrationResult struct {
	Success  bool   `json:"success"`
	Migrated int    `json:"migrated"`
	Errors   int    `json:"errors"`
	Total    int    `json:"total"`
	Message  string `json:"message"`
}

// Migrator 把本地片单迁移到登录账号
type Migrator struct {
	local  *LocalStore
	client *Client
}

func NewMigrator(local *LocalStore, client *Client) *Migrator {
	return &Migrator{local: local, client: client}
}

// Migrate 逐条提交本地条目；单条失败只计数，不重试。
// 只有 2xx 计为成功，服务端已有的条目 (409) 也计入失败。
// 至少迁移成功一条时清空本地片单。
func (m *Migrator) Migrate(ctx context.Context) MigrationResult {
	items, err := m.local.List(ctx)
	if err != nil {
		log.Printf("[Migrate] 读取本地片单失败: %v", err)
		return MigrationResult{Success: false, Errors: 1, Message: "Failed to migrate watchlist"}
	}
	if len(items) == 0 {
		return MigrationResult{Success: true, Message: "No local watchlist items to migrate"}
	}

	res := MigrationResult{Success: true, Total: len(items)}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			// 取消后剩余条目计为失败
			res.Errors += len(items) - res.Migrated - res.Errors
			break
		}

		_, err := m.client.addItem(ctx, it, MigrationSource)
		if err == nil {
			res.Migrated++
			continue
		}
		log.Printf("[Migrate] 迁移 %d (%s) 失败: %v", it.TMDBID, it.Title, err)
		res.Errors++
	}

	if res.Migrated > 0 {
		if err := m.local.Clear(ctx); err != nil {
			log.Printf("[Migrate] 清空本地片单失败: %v", err)
		}
	}

	res.Message = fmt.Sprintf("Successfully migrated %d items to database", res.Migrated)
	log.Printf("[Migrate] 完成: %d 成功, %d 失败, 共 %d", res.Migrated, res.Errors, res.Total)
	return res
}
