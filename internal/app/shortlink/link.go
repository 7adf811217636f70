package shortlink

import "time"

// Link 是一条短码映射的领域对象。
//
// 说明：
// - ID：存储层分配的自增主键；对外只暴露 sqids 编码后的字符串（见 EncodeID）
// - Code：短码，全局唯一；系统生成或用户自定义别名，创建后不可变
// - ExpiresAt：可空；只在解析时检查，写入时不检查
// - LastVisited：可空；作为清理任务的保留期时钟
// - OwnerID：可空，匿名创建时为 nil
//
// 领域层不携带 HTTP/DB 细节（状态码、SQL 字段、JSON tag）。
type Link struct {
	ID          int64
	Code        string
	OriginalURL string
	CustomAlias bool
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	VisitCount  int64
	LastVisited *time.Time
	OwnerID     *int64
}

// Expired 报告 now 时刻该链接是否已过期。ExpiresAt 为空表示永不过期。
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// OwnedBy 报告 ownerID 是否为该链接的所有者；无主链接对任何人都返回 false。
func (l Link) OwnedBy(ownerID int64) bool {
	return l.OwnerID != nil && *l.OwnerID == ownerID
}

// NewLink 是插入存储层时使用的字段集合，ID/CreatedAt/访问统计由存储层填充。
type NewLink struct {
	Code        string
	OriginalURL string
	CustomAlias bool
	ExpiresAt   *time.Time
	OwnerID     *int64
}

// LinkUpdate 是部分更新：nil 字段保持不变，不会被置空。
type LinkUpdate struct {
	OriginalURL *string
	ExpiresAt   *time.Time
}

// Empty 报告更新是否没有任何字段。
func (u LinkUpdate) Empty() bool {
	return u.OriginalURL == nil && u.ExpiresAt == nil
}

// ShortenInput 是创建短链的入参。
type ShortenInput struct {
	URL       string
	Alias     string
	ExpiresAt *time.Time
	OwnerID   *int64
}

// Stats 是链接所有者可见的访问统计。
type Stats struct {
	Code        string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	VisitCount  int64
	LastVisited *time.Time
}

func statsOf(l Link) Stats {
	return Stats{
		Code:        l.Code,
		OriginalURL: l.OriginalURL,
		CreatedAt:   l.CreatedAt,
		ExpiresAt:   l.ExpiresAt,
		VisitCount:  l.VisitCount,
		LastVisited: l.LastVisited,
	}
}
