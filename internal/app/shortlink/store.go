package shortlink

import (
	"context"
	"time"
)

// Store 是权威存储（durable link store）需要满足的契约。
//
// 约定：
// - 查询不到时返回 ErrNotFound
// - code / alias 唯一约束冲突时返回 ErrConstraintViolation
// - RecordVisit 必须是单条原子语句（visit_count = visit_count + 1），并发调用不能丢计数
//
// 实现见 repo 包（Postgres / SQLite）。
type Store interface {
	Insert(ctx context.Context, l NewLink) (Link, error)
	FindByCode(ctx context.Context, code string) (Link, error)
	FindByAlias(ctx context.Context, alias string) (Link, error)
	FindByURL(ctx context.Context, url string) (Link, error)
	Exists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, code string, u LinkUpdate) (Link, error)
	Delete(ctx context.Context, code string) error
	FindUnusedSince(ctx context.Context, cutoff time.Time) ([]Link, error)
	RecordVisit(ctx context.Context, code string, at time.Time) (Link, error)
	ListByOwner(ctx context.Context, ownerID int64, urlContains string) ([]Link, error)
}

// Cache 是 code -> original_url 的键值缓存。
//
// 只缓存 URL，不缓存统计：统计必须落在权威存储上，否则会丢计数。
// 缓存自身不做过期判断；TTL/淘汰属于部署参数，未命中总是回源到 Store。
type Cache interface {
	Get(ctx context.Context, code string) (url string, ok bool, err error)
	Set(ctx context.Context, code, url string) error
	Invalidate(ctx context.Context, code string) error
}

// CodeSet 记录“已经用过的短码”，供生成器在查库前快速跳过候选。
// MightExist 返回 false 表示一定不存在。
type CodeSet interface {
	Add(code string)
	MightExist(code string) bool
}
