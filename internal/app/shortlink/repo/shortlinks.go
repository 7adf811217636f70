package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shortlink.local/internal/app/shortlink"
)

const linkColumns = "id, code, custom_alias, original_url, created_at, expires_at, visit_count, last_visited, owner_id"

// LinksRepo 是基于 Postgres 的 shortlink.Store 实现。
type LinksRepo struct {
	db *pgxpool.Pool
}

var _ shortlink.Store = (*LinksRepo)(nil)

func NewLinksRepo(db *pgxpool.Pool) *LinksRepo {
	return &LinksRepo{db: db}
}

func scanLink(row pgx.Row) (shortlink.Link, error) {
	var l shortlink.Link
	var alias *string
	if err := row.Scan(&l.ID, &l.Code, &alias, &l.OriginalURL, &l.CreatedAt, &l.ExpiresAt, &l.VisitCount, &l.LastVisited, &l.OwnerID); err != nil {
		return shortlink.Link{}, err
	}
	l.CustomAlias = alias != nil
	return l, nil
}

// notFound 把 pgx.ErrNoRows 翻译成领域错误，其它错误记日志后原样返回。
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shortlink.ErrNotFound
	}
	slog.Error(err.Error())
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

/*
插入一条新链接。code 与 custom_alias 都有唯一约束，冲突时返回 ErrConstraintViolation，
由上层决定重试（系统短码）还是失败（自定义别名）。
*/
func (r *LinksRepo) Insert(ctx context.Context, nl shortlink.NewLink) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var alias *string
	if nl.CustomAlias {
		alias = &nl.Code
	}
	row := r.db.QueryRow(dbctx,
		"INSERT INTO links (code, custom_alias, original_url, expires_at, owner_id) VALUES ($1,$2,$3,$4,$5) RETURNING "+linkColumns,
		nl.Code, alias, nl.OriginalURL, nl.ExpiresAt, nl.OwnerID)
	l, err := scanLink(row)
	if err != nil {
		if isUniqueViolation(err) {
			return shortlink.Link{}, shortlink.ErrConstraintViolation
		}
		slog.Error(err.Error())
		return shortlink.Link{}, err
	}
	return l, nil
}

func (r *LinksRepo) FindByCode(ctx context.Context, code string) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	l, err := scanLink(r.db.QueryRow(dbctx, "SELECT "+linkColumns+" FROM links WHERE code=$1", code))
	if err != nil {
		return shortlink.Link{}, notFound(err)
	}
	return l, nil
}

func (r *LinksRepo) FindByAlias(ctx context.Context, alias string) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	l, err := scanLink(r.db.QueryRow(dbctx, "SELECT "+linkColumns+" FROM links WHERE custom_alias=$1", alias))
	if err != nil {
		return shortlink.Link{}, notFound(err)
	}
	return l, nil
}

// FindByURL 返回该 URL 最早创建的一条链接。
func (r *LinksRepo) FindByURL(ctx context.Context, url string) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	l, err := scanLink(r.db.QueryRow(dbctx, "SELECT "+linkColumns+" FROM links WHERE original_url=$1 ORDER BY id LIMIT 1", url))
	if err != nil {
		return shortlink.Link{}, notFound(err)
	}
	return l, nil
}

func (r *LinksRepo) Exists(ctx context.Context, code string) (bool, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	var exists bool
	if err := r.db.QueryRow(dbctx, "SELECT EXISTS(SELECT 1 FROM links WHERE code=$1)", code).Scan(&exists); err != nil {
		slog.Error(err.Error())
		return false, err
	}
	return exists, nil
}

// Update 部分更新：NULL 参数通过 COALESCE 保留原值。
func (r *LinksRepo) Update(ctx context.Context, code string, u shortlink.LinkUpdate) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := r.db.QueryRow(dbctx,
		"UPDATE links SET original_url=COALESCE($2, original_url), expires_at=COALESCE($3, expires_at) WHERE code=$1 RETURNING "+linkColumns,
		code, u.OriginalURL, u.ExpiresAt)
	l, err := scanLink(row)
	if err != nil {
		return shortlink.Link{}, notFound(err)
	}
	return l, nil
}

func (r *LinksRepo) Delete(ctx context.Context, code string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(dbctx, "DELETE FROM links WHERE code=$1", code)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if tag.RowsAffected() == 0 {
		return shortlink.ErrNotFound
	}
	return nil
}

// FindUnusedSince 返回 COALESCE(last_visited, created_at) < cutoff 的链接：
// 从未被访问过的链接以创建时间作为保留期时钟。
func (r *LinksRepo) FindUnusedSince(ctx context.Context, cutoff time.Time) ([]shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.queryLinks(dbctx, "SELECT "+linkColumns+" FROM links WHERE COALESCE(last_visited, created_at) < $1 ORDER BY id", cutoff)
}

// RecordVisit 单条语句原子地 +1 并更新 last_visited，并发访问同一短码不会丢计数。
func (r *LinksRepo) RecordVisit(ctx context.Context, code string, at time.Time) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	row := r.db.QueryRow(dbctx,
		"UPDATE links SET visit_count=visit_count+1, last_visited=$2 WHERE code=$1 RETURNING "+linkColumns,
		code, at)
	l, err := scanLink(row)
	if err != nil {
		return shortlink.Link{}, notFound(err)
	}
	return l, nil
}

func (r *LinksRepo) ListByOwner(ctx context.Context, ownerID int64, urlContains string) ([]shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.queryLinks(dbctx,
		"SELECT "+linkColumns+" FROM links WHERE owner_id=$1 AND ($2='' OR strpos(original_url, $2) > 0) ORDER BY created_at DESC, id DESC",
		ownerID, urlContains)
}

func (r *LinksRepo) queryLinks(ctx context.Context, sql string, args ...any) ([]shortlink.Link, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	var result []shortlink.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return result, nil
}

// Codes 流式遍历全部短码，用于启动时预热布隆过滤器。
func (r *LinksRepo) Codes(ctx context.Context, fn func(code string)) error {
	rows, err := r.db.Query(ctx, "SELECT code FROM links")
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return err
		}
		fn(code)
	}
	return rows.Err()
}
