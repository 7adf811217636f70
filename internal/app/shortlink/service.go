package shortlink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"shortlink.local/internal/platform/metrics"
)

// Creator 表示“创建短链”的用例能力。
type Creator interface {
	Shorten(ctx context.Context, in ShortenInput) (Link, error)
}

// Resolver 表示“解析短码并返回目标 URL”的用例能力，是高 QPS 热点路径。
type Resolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

// Manager 是所有者范围内的管理用例（更新 / 删除 / 统计 / 列表 / 搜索）。
type Manager interface {
	UpdateLink(ctx context.Context, code string, ownerID *int64, u LinkUpdate) (Link, error)
	DeleteLink(ctx context.Context, code string, ownerID *int64) error
	GetStats(ctx context.Context, code string, ownerID *int64) (Stats, error)
	ListForOwner(ctx context.Context, ownerID *int64) ([]Link, error)
	SearchByURLForOwner(ctx context.Context, ownerID *int64, query string) ([]Link, error)
}

// 生成短码与插入之间存在竞争窗口；系统短码撞车时重新生成的次数。
const maxInsertAttempts = 3

type Options struct {
	// ReuseAnonymous 为 true 时，匿名、无别名、无过期时间的创建请求
	// 会复用同一 URL 已有的匿名永久短链，而不是再插入一行。
	ReuseAnonymous bool
	// Now 仅用于测试注入时钟，默认 time.Now。
	Now func() time.Time
}

// Service 编排 Cache 与 Store：读穿透缓存、访问计数、写入时失效缓存。
//
// 缓存只是优化：任何缓存错误都只记日志，然后走存储路径；存储错误对调用方是致命的。
type Service struct {
	store Store
	cache Cache
	codes *CodeGenerator
	opts  Options
}

var (
	_ Creator  = (*Service)(nil)
	_ Resolver = (*Service)(nil)
	_ Manager  = (*Service)(nil)
)

var tracer = otel.Tracer("shortlink.local/internal/app/shortlink")

// NewService 组装用例层。cache 为 nil 时退化为每次都查库。
func NewService(store Store, cache Cache, codes *CodeGenerator, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, cache: cache, codes: codes, opts: opts}
}

// Shorten 创建短链。
//
// 创建时不写缓存：缓存在第一次解析时懒加载，避免缓存从未被访问的链接。
func (s *Service) Shorten(ctx context.Context, in ShortenInput) (Link, error) {
	if err := ValidateURL(in.URL); err != nil {
		return Link{}, err
	}
	if in.Alias != "" && in.OwnerID == nil {
		return Link{}, ErrAnonymousAliasForbidden
	}

	if s.opts.ReuseAnonymous && in.OwnerID == nil && in.Alias == "" && in.ExpiresAt == nil {
		existing, err := s.store.FindByURL(ctx, in.URL)
		switch {
		case err == nil && existing.OwnerID == nil && existing.ExpiresAt == nil:
			return existing, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return Link{}, storeErr(err)
		}
	}

	for attempt := 1; ; attempt++ {
		code, err := s.codes.ResolveAliasOrGenerate(ctx, in.Alias)
		if err != nil {
			return Link{}, err
		}
		link, err := s.store.Insert(ctx, NewLink{
			Code:        code,
			OriginalURL: in.URL,
			CustomAlias: in.Alias != "",
			ExpiresAt:   in.ExpiresAt,
			OwnerID:     in.OwnerID,
		})
		if err == nil {
			s.codes.Remember(code)
			return link, nil
		}
		if !errors.Is(err, ErrConstraintViolation) {
			return Link{}, storeErr(err)
		}
		s.codes.Remember(code)
		// 自定义别名撞车直接失败；系统短码可以重新生成。
		if in.Alias != "" || attempt >= maxInsertAttempts {
			slog.Warn("shortlink: code collision on insert", "code", code, "attempt", attempt)
			return Link{}, ErrCodeCollision
		}
	}
}

// Resolve 解析短码，返回原始 URL，并记录一次访问。
//
// 两阶段查找：
//  1. 缓存命中：不再检查过期（缓存只会由未过期的读取填充，并在更新/删除时失效），
//     直接原子地记录访问并返回缓存中的 URL。这是有意的延迟/正确性取舍：
//     链接在缓存期间自然过期时，命中仍然会成功，直到该条目被失效或淘汰。
//  2. 缓存未命中：查库，不存在返回 ErrNotFound，已过期返回 ErrExpired（不缓存、不计数），
//     否则写缓存、记录访问、返回 URL。
func (s *Service) Resolve(ctx context.Context, code string) (url string, err error) {
	ctx, span := tracer.Start(ctx, "shortlink.Resolve")
	span.SetAttributes(attribute.String("shortlink.code", code))
	defer func() {
		outcome := resolveOutcome(err)
		metrics.ResolveTotal.WithLabelValues(outcome).Inc()
		span.SetAttributes(attribute.String("shortlink.outcome", outcome))
		if err != nil && outcome == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if cached, ok := s.cacheGet(ctx, code); ok {
		span.SetAttributes(attribute.Bool("shortlink.cache_hit", true))
		if _, err := s.store.RecordVisit(ctx, code, s.opts.Now()); err != nil {
			if errors.Is(err, ErrNotFound) {
				// 库里已经没有了（绕过本服务删除）：清掉脏缓存。
				s.cacheInvalidate(ctx, code)
			}
			return "", storeErr(err)
		}
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("shortlink.cache_hit", false))

	link, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return "", storeErr(err)
	}
	if link.Expired(s.opts.Now()) {
		return "", ErrExpired
	}

	s.cacheSet(ctx, code, link.OriginalURL)

	visited, err := s.store.RecordVisit(ctx, code, s.opts.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cacheInvalidate(ctx, code)
		}
		return "", storeErr(err)
	}
	// 查库与写缓存之间可能有并发更新：以 RecordVisit 返回的最新行为准，不一致就失效。
	if visited.OriginalURL != link.OriginalURL {
		s.cacheInvalidate(ctx, code)
	}
	return link.OriginalURL, nil
}

// UpdateLink 部分更新链接，随后无条件失效缓存（即使 URL 没变），不回填缓存。
func (s *Service) UpdateLink(ctx context.Context, code string, ownerID *int64, u LinkUpdate) (Link, error) {
	if _, err := s.authorize(ctx, code, ownerID); err != nil {
		return Link{}, err
	}
	if u.OriginalURL != nil {
		if err := ValidateURL(*u.OriginalURL); err != nil {
			return Link{}, err
		}
	}
	updated, err := s.store.Update(ctx, code, u)
	if err != nil {
		return Link{}, storeErr(err)
	}
	s.cacheInvalidate(ctx, code)
	return updated, nil
}

// DeleteLink 先删库再失效缓存。
func (s *Service) DeleteLink(ctx context.Context, code string, ownerID *int64) error {
	if _, err := s.authorize(ctx, code, ownerID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, code); err != nil {
		return storeErr(err)
	}
	s.cacheInvalidate(ctx, code)
	return nil
}

func (s *Service) GetStats(ctx context.Context, code string, ownerID *int64) (Stats, error) {
	link, err := s.authorize(ctx, code, ownerID)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(link), nil
}

func (s *Service) ListForOwner(ctx context.Context, ownerID *int64) ([]Link, error) {
	if ownerID == nil {
		return nil, ErrUnauthenticated
	}
	links, err := s.store.ListByOwner(ctx, *ownerID, "")
	if err != nil {
		return nil, storeErr(err)
	}
	return links, nil
}

// SearchByURLForOwner 在所有者自己的链接里按原始 URL 子串搜索；query 为空等同于列表。
func (s *Service) SearchByURLForOwner(ctx context.Context, ownerID *int64, query string) ([]Link, error) {
	if ownerID == nil {
		return nil, ErrUnauthenticated
	}
	links, err := s.store.ListByOwner(ctx, *ownerID, query)
	if err != nil {
		return nil, storeErr(err)
	}
	return links, nil
}

// authorize 实现所有者规则：无身份 -> Unauthenticated，不存在 -> NotFound，
// 无主或他人的链接 -> PermissionDenied。
func (s *Service) authorize(ctx context.Context, code string, ownerID *int64) (Link, error) {
	if ownerID == nil {
		return Link{}, ErrUnauthenticated
	}
	link, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return Link{}, storeErr(err)
	}
	if !link.OwnedBy(*ownerID) {
		return Link{}, ErrPermissionDenied
	}
	return link, nil
}

func (s *Service) cacheGet(ctx context.Context, code string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	url, ok, err := s.cache.Get(ctx, code)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		slog.Warn("shortlink: cache get failed, falling back to store", "code", code, "err", err)
		return "", false
	}
	return url, ok && url != ""
}

func (s *Service) cacheSet(ctx context.Context, code, url string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, code, url); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		slog.Warn("shortlink: cache set failed", "code", code, "err", err)
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, code); err != nil {
		metrics.CacheErrors.WithLabelValues("invalidate").Inc()
		slog.Error("shortlink: cache invalidate failed", "code", code, "err", err)
	}
}

func resolveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "error"
	}
}
