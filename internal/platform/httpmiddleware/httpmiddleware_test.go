package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"shortlink.local/gee"
	"shortlink.local/internal/platform/auth"
	"shortlink.local/internal/platform/metrics"
)

func newTokenService(t *testing.T) auth.TokenService {
	t.Helper()
	ts, err := auth.NewHS256Service("secret", "shortlink", time.Hour)
	if err != nil {
		t.Fatalf("NewHS256Service: %v", err)
	}
	return ts
}

func ownerEcho(ctx *gee.Context) {
	if id := auth.OwnerID(ctx.Req.Context()); id != nil {
		ctx.String(http.StatusOK, "%s", strconv.FormatInt(*id, 10))
		return
	}
	ctx.String(http.StatusOK, "anonymous")
}

func TestAuthRequired(t *testing.T) {
	ts := newTokenService(t)
	token, _ := ts.Sign(9, "user")

	r := gee.New()
	r.GET("/me", AuthRequired(ts), ownerEcho)

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"bad scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
		{"ok", "Bearer " + token, http.StatusOK, "9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("status: got %d, want %d", w.Code, tc.code)
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Fatalf("body: got %q, want %q", w.Body.String(), tc.body)
			}
		})
	}
}

func TestAuthOptionalFallsBackToAnonymous(t *testing.T) {
	ts := newTokenService(t)
	r := gee.New()
	r.GET("/who", AuthOptional(ts), ownerEcho)

	req := httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestMetricsCountsByRoutePattern(t *testing.T) {
	r := gee.New()
	r.Use(Metrics())
	r.GET("/:code", func(ctx *gee.Context) { ctx.Status(http.StatusFound) })

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/:code", "302"))
	for _, p := range []string{"/a1", "/b2", "/c3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/:code", "302"))

	if after-before != 3 {
		t.Fatalf("expected 3 requests counted under /:code, got %v", after-before)
	}
}
