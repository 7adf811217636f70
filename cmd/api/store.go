package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shortlink.local/internal/app/shortlink"
	"shortlink.local/internal/app/shortlink/httpapi"
	"shortlink.local/internal/app/shortlink/repo"
	"shortlink.local/internal/platform/config"
	"shortlink.local/internal/platform/db"
	"shortlink.local/internal/platform/migrate"
)

// linkStore 是 Store 加上启动预热布隆过滤器所需的全量短码遍历。
type linkStore interface {
	shortlink.Store
	Codes(ctx context.Context, fn func(code string)) error
}

type storage struct {
	links linkStore
	users httpapi.UserStore
	ping  func(ctx context.Context) error
	close func()
}

// openStorage 按 STORE_DRIVER 选择 Postgres（建表走迁移）或内嵌 SQLite。
func openStorage(cfg config.Config) (*storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		res, err := migrate.Up(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("数据库连接成功", "driver", "postgres", "applied", res.AppliedFiles, "skipped", len(res.SkippedFiles))
		return &storage{
			links: repo.NewLinksRepo(pool),
			users: repo.NewUsersRepo(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil
	case "sqlite":
		sqlDB, err := repo.OpenSQLite(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		slog.Info("数据库连接成功", "driver", "sqlite", "dsn", cfg.SQLiteDSN)
		return &storage{
			links: repo.NewSQLiteLinksRepo(sqlDB),
			users: repo.NewSQLiteUsersRepo(sqlDB),
			ping:  sqlDB.PingContext,
			close: func() {
				if err := sqlDB.Close(); err != nil {
					slog.Error("sqlite close failed", "err", err)
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
