package httpapi

import (
	"strings"

	"shortlink.local/gee"
	"shortlink.local/internal/app/shortlink"
	"shortlink.local/internal/platform/auth"
	"shortlink.local/internal/platform/httpmiddleware"
)

// RegisterAPIRoutes 在给定分组（例如 /api/v1）下挂载链接管理和账号接口。
//
// 本包只做传输层的翻译：HTTP <-> 领域，权限判断全部在 shortlink.Service。
// 所有者接口也只挂 AuthOptional：匿名调用由用例层返回 Unauthenticated（401）。
func RegisterAPIRoutes(api *gee.RouterGroup, svc *shortlink.Service, users UserStore, ts auth.TokenService, baseURL string) {
	h := &linkHandlers{svc: svc, baseURL: strings.TrimRight(baseURL, "/")}

	links := api.Group("/links")
	links.Use(httpmiddleware.AuthOptional(ts))
	links.POST("/shorten", h.shorten)
	links.GET("/my", h.mine)
	links.GET("/search", h.search)
	links.GET("/:code/stats", h.stats)
	links.PUT("/:code", h.update)
	links.DELETE("/:code", h.remove)

	accounts := api.Group("/auth")
	accounts.POST("/register", NewRegisterHandler(users))
	accounts.POST("/login", NewLoginHandler(users, ts))
	accounts.GET("/me", httpmiddleware.AuthRequired(ts), NewMeHandler())
}

// RegisterPublicRoutes 在根路由上挂载跳转入口 GET /:code。
//
// 跳转不放在 /api/v1 下，用户在浏览器里直接访问短链。
func RegisterPublicRoutes(engine *gee.Engine, svc *shortlink.Service) {
	h := &linkHandlers{svc: svc}
	engine.GET("/:code", h.redirect)
}
