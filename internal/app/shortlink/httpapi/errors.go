package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"shortlink.local/gee"
	"shortlink.local/internal/app/shortlink"
)

// errorStatus 按顺序匹配领域错误，未列出的一律 500。
var errorStatus = []struct {
	err    error
	status int
}{
	{shortlink.ErrInvalidURL, http.StatusBadRequest},
	{shortlink.ErrInvalidCode, http.StatusBadRequest},
	{shortlink.ErrAliasInUse, http.StatusConflict},
	{shortlink.ErrCodeCollision, http.StatusConflict},
	{shortlink.ErrAnonymousAliasForbidden, http.StatusForbidden},
	{shortlink.ErrUnauthenticated, http.StatusUnauthorized},
	{shortlink.ErrPermissionDenied, http.StatusForbidden},
	{shortlink.ErrNotFound, http.StatusNotFound},
	{shortlink.ErrExpired, http.StatusGone},
	{shortlink.ErrStoreUnavailable, http.StatusServiceUnavailable},
}

func statusOf(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeError 把领域错误翻译成 JSON 错误响应。5xx 不把内部细节回给客户端。
func writeError(ctx *gee.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		slog.Error("store unavailable", "route", ctx.RoutePattern, "err", err)
		msg = shortlink.ErrStoreUnavailable.Error()
	case http.StatusInternalServerError:
		slog.Error("internal error", "route", ctx.RoutePattern, "err", err)
		msg = "internal error"
	}
	ctx.AbortWithError(status, msg)
}
