package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"shortlink.local/internal/app/shortlink/repo"
	"shortlink.local/internal/platform/config"
	"shortlink.local/internal/platform/db"
	"shortlink.local/internal/platform/migrate"
)

// adduser 直接往配置的存储里创建账号（密码 bcrypt 存储），用于初始化或运维。
//
//	go run ./cmd/tools/adduser -username alice
//
// 未给 -password 时从标准输入读一行。
func main() {
	username := flag.String("username", "", "login name (3-32 chars)")
	password := flag.String("password", "", "password (8-72 bytes); read from stdin when empty")
	flag.Parse()

	if *username == "" {
		log.Fatal("usage: go run ./cmd/tools/adduser -username <name> [-password <pw>]")
	}
	if *password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatal(err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var register func(ctx context.Context, name, pw string) (int64, error)
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		if _, err := migrate.Up(ctx, pool); err != nil {
			log.Fatal(err)
		}
		register = repo.NewUsersRepo(pool).Register
	case "sqlite":
		sqlDB, err := repo.OpenSQLite(ctx, cfg.SQLiteDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer sqlDB.Close()
		register = repo.NewSQLiteUsersRepo(sqlDB).Register
	default:
		log.Fatalf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	id, err := register(ctx, *username, *password)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(id)
}
