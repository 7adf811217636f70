package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shortlink.local/internal/platform/config"
)

// New 创建对外业务服务器。
func New(cfg config.Config, handler http.Handler) *http.Server {
	return newServer(cfg.Addr, cfg, handler)
}

// NewAdmin 创建管理端服务器（/metrics、/readyz、pprof），建议只监听本机或内网地址。
func NewAdmin(cfg config.Config, handler http.Handler) *http.Server {
	return newServer(cfg.AdminAddr, cfg, handler)
}

func newServer(addr string, cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Run 启动服务器，stopCtx 结束时在 shutdownTimeout 内优雅关闭。
// 正常关闭返回 nil；监听失败等错误原样返回。
func Run(stopCtx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stopCtx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}
