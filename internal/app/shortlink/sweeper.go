package shortlink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortlink.local/internal/platform/metrics"
)

const (
	DefaultSweepInterval   = time.Hour
	DefaultRetentionWindow = 14 * 24 * time.Hour
)

// Sweeper 定期删除长时间未被访问的链接。
//
// 判定时钟：last_visited；从未访问过的链接用 created_at 代替（由 Store.FindUnusedSince 实现），
// 否则它们永远不会被清理。
type Sweeper struct {
	store     Store
	cache     Cache
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewSweeper(store Store, cache Cache, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retention <= 0 {
		retention = DefaultRetentionWindow
	}
	return &Sweeper{
		store:     store,
		cache:     cache,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// SweepOnce 执行一轮清理，返回删除条数。
//
// 单条删除失败只记日志，不中断整批；只有拉取候选失败才返回错误。
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.retention)
	links, err := w.store.FindUnusedSince(ctx, cutoff)
	if err != nil {
		slog.Error("sweeper: list unused links failed", "cutoff", cutoff, "err", err)
		return 0, storeErr(err)
	}

	deleted := 0
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		err := w.store.Delete(ctx, l.Code)
		if err != nil && !errors.Is(err, ErrNotFound) {
			metrics.SweepFailures.Inc()
			slog.Error("sweeper: delete failed", "code", l.Code, "err", err)
			continue
		}
		if w.cache != nil {
			if err := w.cache.Invalidate(ctx, l.Code); err != nil {
				metrics.CacheErrors.WithLabelValues("invalidate").Inc()
				slog.Warn("sweeper: cache invalidate failed", "code", l.Code, "err", err)
			}
		}
		// 已被别处删掉的不计数
		if err == nil {
			deleted++
			slog.Debug("sweeper: link deleted", "code", l.Code, "url", l.OriginalURL)
		}
	}

	metrics.SweepDeleted.Add(float64(deleted))
	slog.Info("sweeper: run finished", "cutoff", cutoff, "candidates", len(links), "deleted", deleted)
	return deleted, nil
}

// Run 阻塞执行：每隔 interval 调用一次 SweepOnce，直到 ctx 结束。
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.SweepOnce(ctx)
		}
	}
}
