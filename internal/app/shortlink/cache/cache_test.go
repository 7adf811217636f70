package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"shortlink.local/internal/app/shortlink"
)

func newLocal(t *testing.T, ttl time.Duration) *LocalCache {
	t.Helper()
	l, err := NewLocalCache(1000, 1000, ttl)
	if err != nil {
		t.Fatalf("NewLocalCache: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestLocalCache_SetGetDel(t *testing.T) {
	l := newLocal(t, 0)

	l.Set("abc123", "https://example.com")
	l.Wait()
	if url, ok := l.Get("abc123"); !ok || url != "https://example.com" {
		t.Fatalf("Get after Set: got %q %v", url, ok)
	}

	l.Del("abc123")
	if _, ok := l.Get("abc123"); ok {
		t.Fatal("expected miss after Del")
	}
}

func TestShortlinkCache_LocalOnly(t *testing.T) {
	l := newLocal(t, 0)
	c := NewShortlinkCache(nil, l, 0)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "nope"); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "k1", "https://a.example"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	l.Wait()
	url, ok, err := c.Get(ctx, "k1")
	if err != nil || !ok || url != "https://a.example" {
		t.Fatalf("Get: %q %v %v", url, ok, err)
	}
	if err := c.Invalidate(ctx, "k1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k1"); ok {
		t.Fatal("expected miss after Invalidate")
	}
	// 不存在的条目失效也算成功
	if err := c.Invalidate(ctx, "never-set"); err != nil {
		t.Fatalf("Invalidate absent: %v", err)
	}
}

func TestShortlinkCache_RedisDownIsCacheUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewShortlinkCache(client, nil, time.Minute)
	ctx := context.Background()

	if _, _, err := c.Get(ctx, "abc"); !errors.Is(err, shortlink.ErrCacheUnavailable) {
		t.Fatalf("Get: expected ErrCacheUnavailable, got %v", err)
	}
	if err := c.Set(ctx, "abc", "https://x.example"); !errors.Is(err, shortlink.ErrCacheUnavailable) {
		t.Fatalf("Set: expected ErrCacheUnavailable, got %v", err)
	}
	if err := c.Invalidate(ctx, "abc"); !errors.Is(err, shortlink.ErrCacheUnavailable) {
		t.Fatalf("Invalidate: expected ErrCacheUnavailable, got %v", err)
	}
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (r *recordingBroadcaster) Publish(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return r.err
}

func (r *recordingBroadcaster) Close() error { return nil }

func TestShortlinkCache_InvalidateBroadcasts(t *testing.T) {
	b := &recordingBroadcaster{}
	c := NewShortlinkCache(nil, newLocal(t, 0), 0).WithBroadcaster(b)

	if err := c.Invalidate(context.Background(), "promo"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(b.codes) != 1 || b.codes[0] != "promo" {
		t.Fatalf("published: %v", b.codes)
	}

	b.err = errors.New("broker down")
	if err := c.Invalidate(context.Background(), "promo"); !errors.Is(err, shortlink.ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable on publish failure, got %v", err)
	}
}

func TestInvalidationListener_DropsForeignEntries(t *testing.T) {
	l := newLocal(t, 0)
	l.Set("a1", "https://a.example")
	l.Set("b2", "https://b.example")
	l.Wait()

	lis := &InvalidationListener{local: l, origin: "node-1"}
	lis.handle([]byte(`{"code":"a1","origin":"node-2"}`))
	lis.handle([]byte(`{"code":"b2","origin":"node-1"}`))
	lis.handle([]byte(`not json`))

	if _, ok := l.Get("a1"); ok {
		t.Fatal("a1 should be dropped by foreign invalidation")
	}
	if _, ok := l.Get("b2"); !ok {
		t.Fatal("b2 should survive own-origin message")
	}
}

type staticCodes []string

func (s staticCodes) Codes(_ context.Context, fn func(string)) error {
	for _, c := range s {
		fn(c)
	}
	return nil
}

func TestBloomFilter_Load(t *testing.T) {
	b := NewBloomFilter(1000, 0.01)
	n, err := b.Load(context.Background(), staticCodes{"aaa111", "bbb222", "ccc333"})
	if err != nil || n != 3 {
		t.Fatalf("Load: n=%d err=%v", n, err)
	}
	for _, c := range []string{"aaa111", "bbb222", "ccc333"} {
		if !b.MightExist(c) {
			t.Fatalf("%s must be reported as possibly present", c)
		}
	}
	if b.Count() == 0 {
		t.Fatal("Count should be > 0")
	}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skip: cannot connect to redis at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestShortlinkCache_RedisRoundTrip(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	code := "it" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(context.Background(), keyPrefix+code) })

	l := newLocal(t, 0)
	c := NewShortlinkCache(client, l, time.Minute)

	if err := c.Set(ctx, code, "https://redis.example"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// 清掉 L1，强制走 L2，并验证回填
	l.Del(code)
	url, ok, err := c.Get(ctx, code)
	if err != nil || !ok || url != "https://redis.example" {
		t.Fatalf("L2 Get: %q %v %v", url, ok, err)
	}
	l.Wait()
	if _, ok := l.Get(code); !ok {
		t.Fatal("L2 hit should backfill L1")
	}

	if err := c.Invalidate(ctx, code); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, code); ok {
		t.Fatal("expected miss after Invalidate")
	}
}
