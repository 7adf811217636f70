package httpmiddleware

import (
	"net/http"
	"strings"

	"shortlink.local/gee"
	"shortlink.local/internal/platform/auth"
)

// parseBearer 解析 Authorization header 中的 Bearer token，格式不对返回空串。
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

func identify(ctx *gee.Context, ts auth.TokenService) (auth.Identity, string) {
	header := ctx.Req.Header.Get("Authorization")
	if header == "" {
		return auth.Identity{}, "missing authorization header"
	}
	token := parseBearer(header)
	if token == "" {
		return auth.Identity{}, "invalid authorization format"
	}
	id, err := ts.Verify(token)
	if err != nil {
		return auth.Identity{}, "invalid token"
	}
	return id, ""
}

// AuthRequired 要求请求必须携带有效的 JWT token
func AuthRequired(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, problem := identify(ctx, ts)
		if problem != "" {
			ctx.AbortWithError(http.StatusUnauthorized, problem)
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		ctx.Next()
	}
}

// AuthOptional 可选认证：有合法 token 则注入身份，否则按匿名处理。
// 所有者相关的接口挂这个中间件，由用例层统一返回 Unauthenticated。
func AuthOptional(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if id, problem := identify(ctx, ts); problem == "" {
			ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		}
		ctx.Next()
	}
}
