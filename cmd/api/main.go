package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shortlink.local/gee"
	"shortlink.local/gee/middleware"
	"shortlink.local/internal/app/shortlink"
	slcache "shortlink.local/internal/app/shortlink/cache"
	shortlinkhttpapi "shortlink.local/internal/app/shortlink/httpapi"
	"shortlink.local/internal/platform/auth"
	platformcache "shortlink.local/internal/platform/cache"
	"shortlink.local/internal/platform/config"
	"shortlink.local/internal/platform/httpmiddleware"
	"shortlink.local/internal/platform/httpserver"
	"shortlink.local/internal/platform/metrics"
	"shortlink.local/internal/platform/trace"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	slog.SetDefault(slog.New(h))

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 存储
	store, err := openStorage(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.close()

	// 布隆过滤器：预期 100 万短码，1% 误判率，启动时用库里已有的短码预热
	bloomFilter := slcache.NewBloomFilter(1_000_000, 0.01)
	loadCtx, cancelLoad := context.WithTimeout(stopCtx, 30*time.Second)
	n, err := bloomFilter.Load(loadCtx, store.links)
	cancelLoad()
	if err != nil {
		// 预热失败不影响正确性，只是生成器会多查几次库
		slog.Warn("bloom filter warm-up failed", "loaded", n, "err", err)
	} else {
		slog.Info("bloom filter warmed up", "codes", n)
	}

	// 缓存
	linkCache, closeCache := buildCache(stopCtx, cfg)
	defer closeCache()

	// JWT
	ts, err := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		log.Fatal(err)
	}

	svc := shortlink.NewService(store.links, linkCache,
		shortlink.NewCodeGenerator(store.links, cfg.CodeLength, bloomFilter),
		shortlink.Options{ReuseAnonymous: cfg.ReuseAnonymous})

	if cfg.SweepEnabled {
		sweeper := shortlink.NewSweeper(store.links, linkCache, cfg.SweepInterval, cfg.RetentionWindow)
		go sweeper.Run(stopCtx)
		slog.Info("sweeper started", "interval", cfg.SweepInterval, "retention", cfg.RetentionWindow)
	} else {
		slog.Warn("Sweeper disabled by config", "SWEEP_ENABLED", false)
	}

	metrics.Init()

	if cfg.TracingEnabled {
		shutdown := trace.Init(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName, version)
		if shutdown == nil {
			slog.Error("Trace init failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	// 对外业务
	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID(), middleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName())

	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})
	shortlinkhttpapi.RegisterAPIRoutes(r.Group("/api/v1"), svc, store.users, ts, cfg.BaseURL)
	shortlinkhttpapi.RegisterPublicRoutes(r, svc)

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)

	// 仅本机/内网
	adminSrv := httpserver.NewAdmin(cfg, adminMux(cfg, store))

	errch := make(chan error, 2)
	go func() {
		errch <- httpserver.Run(stopCtx, publicSrv, cfg.ShutdownTimeout)
	}()
	go func() {
		errch <- httpserver.Run(stopCtx, adminSrv, cfg.ShutdownTimeout)
	}()
	slog.Info("shortlink started", "addr", cfg.Addr, "admin_addr", cfg.AdminAddr, "store", cfg.StoreDriver)

	if err := <-errch; err != nil {
		stop()
		select {
		case <-errch:
		case <-time.After(cfg.ShutdownTimeout + time.Second):
		}
		log.Fatal(err)
	}
	stop()
	<-errch
}

// buildCache 按配置组装 L1（ristretto）/ L2（Redis）/ Kafka 失效广播。
// 两级都关闭时返回 nil 接口，Service 退化为每次查库。
func buildCache(ctx context.Context, cfg config.Config) (shortlink.Cache, func()) {
	var redisClient *redis.Client
	if cfg.CacheEnabled {
		c, err := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// Redis 只是优化，连不上就只用 L1
			slog.Error("redis unavailable, continuing without L2", "addr", cfg.RedisAddr, "err", err)
		} else {
			redisClient = c
		}
	} else {
		slog.Warn("Redis cache disabled by config", "CACHE_ENABLED", false)
	}

	var local *slcache.LocalCache
	if cfg.LocalCacheEnabled {
		l, err := slcache.NewLocalCache(100000, 100000, cfg.LocalCacheTTL) // 10 万条目
		if err != nil {
			log.Fatal(err)
		}
		local = l
	}

	if redisClient == nil && local == nil {
		return nil, func() {}
	}

	c := slcache.NewShortlinkCache(redisClient, local, cfg.CacheTTL)
	var listener *slcache.InvalidationListener
	if cfg.KafkaEnabled && local != nil {
		origin := instanceID()
		slog.Info("使用 Kafka 广播 L1 失效", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaInvalidationTopic, "origin", origin)
		c.WithBroadcaster(slcache.NewKafkaBroadcaster(cfg.KafkaBrokers, cfg.KafkaInvalidationTopic, origin))
		listener = slcache.NewInvalidationListener(cfg.KafkaBrokers, cfg.KafkaInvalidationTopic, origin, local)
		go listener.Run(ctx)
	}

	return c, func() {
		if listener != nil {
			if err := listener.Close(); err != nil {
				slog.Error("kafka listener close failed", "err", err)
			}
		}
		c.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func adminMux(cfg config.Config, store *storage) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	// 存储连接状态检测
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := store.ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("DB Ping Err"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("DB ready"))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": cfg.ServiceName,
			"version":      version,
			"commit":       commit,
			"build_time":   buildTime,
			"go_version":   runtime.Version(),
		})
	})

	if cfg.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}
