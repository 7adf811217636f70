package repo

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserAlreadyExists = errors.New("username already exists")
var ErrInvalidUsername = errors.New("username is not allowed")
var ErrInvalidPassword = errors.New("password is not allowed")

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
}

// CheckPassword 校验明文密码是否与存储的 bcrypt 哈希匹配。
func (u User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// 用户名 3~32 字符；密码 8~72 字节（bcrypt 上限 72）。
func hashCredentials(name, password string) (string, string, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 32 {
		return "", "", ErrInvalidUsername
	}
	if len(password) < 8 || len(password) > 72 {
		return "", "", ErrInvalidPassword
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error(err.Error())
		return "", "", err
	}
	return name, string(passwordHash), nil
}

type UsersRepo struct {
	db *pgxpool.Pool
}

func NewUsersRepo(db *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{db: db}
}

func (u *UsersRepo) FindByUsername(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := u.db.QueryRow(dbctx, "SELECT id, username, password_hash, role FROM users WHERE username=$1 LIMIT 1", username)
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		slog.Error(err.Error())
		return User{}, err
	}
	return user, nil
}

func (u *UsersRepo) Register(ctx context.Context, name string, password string) (int64, error) {
	name, passwordHash, err := hashCredentials(name, password)
	if err != nil {
		return -1, err
	}
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	if err := u.db.
		QueryRow(dbctx, "INSERT INTO users (username, password_hash, role) VALUES ($1,$2,'user') ON CONFLICT (username) DO NOTHING RETURNING id", name, passwordHash).
		Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return -1, ErrUserAlreadyExists
		}
		slog.Error(err.Error())
		return -1, err
	}
	return id, nil
}

// SQLiteUsersRepo 与 UsersRepo 行为一致，表结构见 sqliteSchema。
type SQLiteUsersRepo struct {
	db *sql.DB
}

func NewSQLiteUsersRepo(db *sql.DB) *SQLiteUsersRepo {
	return &SQLiteUsersRepo{db: db}
}

func (u *SQLiteUsersRepo) FindByUsername(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := u.db.QueryRowContext(dbctx, "SELECT id, username, password_hash, role FROM users WHERE username=? LIMIT 1", username)
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		slog.Error(err.Error())
		return User{}, err
	}
	return user, nil
}

func (u *SQLiteUsersRepo) Register(ctx context.Context, name string, password string) (int64, error) {
	name, passwordHash, err := hashCredentials(name, password)
	if err != nil {
		return -1, err
	}
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	if err := u.db.
		QueryRowContext(dbctx, "INSERT INTO users (username, password_hash, role, created_at) VALUES (?,?,'user',?) ON CONFLICT (username) DO NOTHING RETURNING id", name, passwordHash, time.Now().UnixMicro()).
		Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return -1, ErrUserAlreadyExists
		}
		slog.Error(err.Error())
		return -1, err
	}
	return id, nil
}
