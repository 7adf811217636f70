package repo

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shortlink.local/internal/app/shortlink"
)

// SQLite 把时间存成 Unix 微秒整数：字符串格式的时间在 SQL 里无法可靠比较大小。
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE,
	custom_alias TEXT UNIQUE,
	original_url TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER,
	visit_count INTEGER NOT NULL DEFAULT 0 CHECK (visit_count >= 0),
	last_visited INTEGER,
	owner_id INTEGER REFERENCES users(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_links_owner ON links(owner_id);
CREATE INDEX IF NOT EXISTS idx_links_original_url ON links(original_url);
`

// OpenSQLite 打开（必要时创建）嵌入式数据库并建表。
//
// SQLite 只允许单写者，连接池限制为 1，避免并发写入时出现 SQLITE_BUSY。
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SQLiteLinksRepo 是基于 SQLite（modernc，纯 Go）的 shortlink.Store 实现，
// 用于单机部署和测试。
type SQLiteLinksRepo struct {
	db *sql.DB
}

var _ shortlink.Store = (*SQLiteLinksRepo)(nil)

func NewSQLiteLinksRepo(db *sql.DB) *SQLiteLinksRepo {
	return &SQLiteLinksRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toMicros(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixMicro()
	return &v
}

func fromMicros(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.UnixMicro(*v).UTC()
	return &t
}

func scanSQLiteLink(row rowScanner) (shortlink.Link, error) {
	var l shortlink.Link
	var alias *string
	var created int64
	var expires, visited *int64
	if err := row.Scan(&l.ID, &l.Code, &alias, &l.OriginalURL, &created, &expires, &l.VisitCount, &visited, &l.OwnerID); err != nil {
		return shortlink.Link{}, err
	}
	l.CustomAlias = alias != nil
	l.CreatedAt = time.UnixMicro(created).UTC()
	l.ExpiresAt = fromMicros(expires)
	l.LastVisited = fromMicros(visited)
	return l, nil
}

func sqliteNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return shortlink.ErrNotFound
	}
	slog.Error(err.Error())
	return err
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *SQLiteLinksRepo) Insert(ctx context.Context, nl shortlink.NewLink) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var alias *string
	if nl.CustomAlias {
		alias = &nl.Code
	}
	row := r.db.QueryRowContext(dbctx,
		"INSERT INTO links (code, custom_alias, original_url, created_at, expires_at, owner_id) VALUES (?,?,?,?,?,?) RETURNING "+linkColumns,
		nl.Code, alias, nl.OriginalURL, time.Now().UnixMicro(), toMicros(nl.ExpiresAt), nl.OwnerID)
	l, err := scanSQLiteLink(row)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return shortlink.Link{}, shortlink.ErrConstraintViolation
		}
		slog.Error(err.Error())
		return shortlink.Link{}, err
	}
	return l, nil
}

func (r *SQLiteLinksRepo) findOne(ctx context.Context, where string, arg any) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	l, err := scanSQLiteLink(r.db.QueryRowContext(dbctx, "SELECT "+linkColumns+" FROM links WHERE "+where, arg))
	if err != nil {
		return shortlink.Link{}, sqliteNotFound(err)
	}
	return l, nil
}

func (r *SQLiteLinksRepo) FindByCode(ctx context.Context, code string) (shortlink.Link, error) {
	return r.findOne(ctx, "code=?", code)
}

func (r *SQLiteLinksRepo) FindByAlias(ctx context.Context, alias string) (shortlink.Link, error) {
	return r.findOne(ctx, "custom_alias=?", alias)
}

func (r *SQLiteLinksRepo) FindByURL(ctx context.Context, url string) (shortlink.Link, error) {
	return r.findOne(ctx, "original_url=? ORDER BY id LIMIT 1", url)
}

func (r *SQLiteLinksRepo) Exists(ctx context.Context, code string) (bool, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	var exists bool
	if err := r.db.QueryRowContext(dbctx, "SELECT EXISTS(SELECT 1 FROM links WHERE code=?)", code).Scan(&exists); err != nil {
		slog.Error(err.Error())
		return false, err
	}
	return exists, nil
}

func (r *SQLiteLinksRepo) Update(ctx context.Context, code string, u shortlink.LinkUpdate) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(dbctx,
		"UPDATE links SET original_url=COALESCE(?, original_url), expires_at=COALESCE(?, expires_at) WHERE code=? RETURNING "+linkColumns,
		u.OriginalURL, toMicros(u.ExpiresAt), code)
	l, err := scanSQLiteLink(row)
	if err != nil {
		return shortlink.Link{}, sqliteNotFound(err)
	}
	return l, nil
}

func (r *SQLiteLinksRepo) Delete(ctx context.Context, code string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(dbctx, "DELETE FROM links WHERE code=?", code)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return shortlink.ErrNotFound
	}
	return nil
}

func (r *SQLiteLinksRepo) FindUnusedSince(ctx context.Context, cutoff time.Time) ([]shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.queryLinks(dbctx, "SELECT "+linkColumns+" FROM links WHERE COALESCE(last_visited, created_at) < ? ORDER BY id", cutoff.UnixMicro())
}

func (r *SQLiteLinksRepo) RecordVisit(ctx context.Context, code string, at time.Time) (shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(dbctx,
		"UPDATE links SET visit_count=visit_count+1, last_visited=? WHERE code=? RETURNING "+linkColumns,
		at.UnixMicro(), code)
	l, err := scanSQLiteLink(row)
	if err != nil {
		return shortlink.Link{}, sqliteNotFound(err)
	}
	return l, nil
}

func (r *SQLiteLinksRepo) ListByOwner(ctx context.Context, ownerID int64, urlContains string) ([]shortlink.Link, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.queryLinks(dbctx,
		"SELECT "+linkColumns+" FROM links WHERE owner_id=? AND (?='' OR instr(original_url, ?) > 0) ORDER BY created_at DESC, id DESC",
		ownerID, urlContains, urlContains)
}

func (r *SQLiteLinksRepo) queryLinks(ctx context.Context, query string, args ...any) ([]shortlink.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	var result []shortlink.Link
	for rows.Next() {
		l, err := scanSQLiteLink(rows)
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

func (r *SQLiteLinksRepo) Codes(ctx context.Context, fn func(code string)) error {
	rows, err := r.db.QueryContext(ctx, "SELECT code FROM links")
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
