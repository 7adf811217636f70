package gee

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(e *Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNotFoundIsJSON(t *testing.T) {
	engine := New()
	engine.GET("/exists", func(ctx *Context) {
		ctx.String(200, "ok")
	})

	w := serve(engine, "GET", "/not/exists")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json error body, got Content-Type %q", ct)
	}
}

func TestCustomNoRoute(t *testing.T) {
	engine := New()
	engine.NoRoute(func(ctx *Context) {
		ctx.JSON(http.StatusNotFound, H{"error": "page not found"})
	})

	w := serve(engine, "GET", "/not-exists/x")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if !strings.Contains(w.Body.String(), "page not found") {
		t.Errorf("expected custom error message, got: %s", w.Body.String())
	}
}

func TestMethodNotAllowedWithAllowHeader(t *testing.T) {
	engine := New()
	engine.PUT("/api/v1/links/:code", func(ctx *Context) {})
	engine.DELETE("/api/v1/links/:code", func(ctx *Context) {})

	w := serve(engine, "POST", "/api/v1/links/abc123")

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "DELETE,PUT" {
		t.Errorf("expected Allow header DELETE,PUT, got: %q", allow)
	}
}

func TestStaticSegmentWinsOverParam(t *testing.T) {
	engine := New()
	engine.GET("/healthz", func(ctx *Context) { ctx.String(200, "health") })
	engine.GET("/:code", func(ctx *Context) { ctx.String(200, "code=%s", ctx.Param("code")) })

	if body := serve(engine, "GET", "/healthz").Body.String(); body != "health" {
		t.Fatalf("/healthz: got %q", body)
	}
	if body := serve(engine, "GET", "/aB3xY9").Body.String(); body != "code=aB3xY9" {
		t.Fatalf("/aB3xY9: got %q", body)
	}
}

func TestNestedParamRoutes(t *testing.T) {
	engine := New()
	api := engine.Group("/api/v1")
	api.GET("/links/search", func(ctx *Context) { ctx.String(200, "search:%s", ctx.Query("original_url")) })
	api.GET("/links/:code/stats", func(ctx *Context) { ctx.String(200, "stats:%s", ctx.Param("code")) })

	w := serve(engine, "GET", "/api/v1/links/promo/stats")
	if w.Body.String() != "stats:promo" {
		t.Fatalf("stats route: got %q", w.Body.String())
	}
	w = serve(engine, "GET", "/api/v1/links/search?original_url=example")
	if w.Body.String() != "search:example" {
		t.Fatalf("search route: got %q", w.Body.String())
	}
}

func TestRoutePatternIsSet(t *testing.T) {
	engine := New()
	var pattern string
	engine.GET("/:code", func(ctx *Context) { pattern = ctx.RoutePattern })

	serve(engine, "GET", "/xyz")

	if pattern != "/:code" {
		t.Fatalf("RoutePattern: got %q, want /:code", pattern)
	}
}

func TestHeadFallsBackToGet(t *testing.T) {
	engine := New()
	engine.GET("/:code", func(ctx *Context) { ctx.Redirect(http.StatusFound, "https://example.com") })

	w := serve(engine, "HEAD", "/abc")

	if w.Code != http.StatusFound {
		t.Fatalf("expected %d, got %d", http.StatusFound, w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com" {
		t.Fatalf("Location: got %q", loc)
	}
}

func TestConflictingWildcardPanics(t *testing.T) {
	engine := New()
	engine.GET("/links/:code", func(ctx *Context) {})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for conflicting wildcard names")
		}
	}()
	engine.GET("/links/:id/stats", func(ctx *Context) {})
}

func TestNotFoundGoThroughMiddleware(t *testing.T) {
	middlewareExecuted := false

	engine := New()
	engine.Use(func(ctx *Context) {
		middlewareExecuted = true
		ctx.Next()
	})

	serve(engine, "GET", "/not-exists/x")

	if !middlewareExecuted {
		t.Error("middleware should be executed for 404")
	}
}

func TestGroupMiddlewareScopedToPrefix(t *testing.T) {
	var hits []string
	engine := New()
	api := engine.Group("/api")
	api.Use(func(ctx *Context) {
		hits = append(hits, ctx.Path)
		ctx.Next()
	})
	api.GET("/ping", func(ctx *Context) {})
	engine.GET("/:code", func(ctx *Context) {})

	serve(engine, "GET", "/api/ping")
	serve(engine, "GET", "/abc")

	if len(hits) != 1 || hits[0] != "/api/ping" {
		t.Fatalf("group middleware hits: %v", hits)
	}
}
