package gee

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAbort(t *testing.T) {
	c := &Context{index: -1}
	if c.IsAborted() {
		t.Error("new context should not be aborted")
	}

	c.Abort()
	if !c.IsAborted() {
		t.Error("context should be aborted after Abort()")
	}
}

func TestAbortWithErrorStopsHandlerChain(t *testing.T) {
	executed := make([]int, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	c := newContext(w, req)
	c.handlers = []HandlerFunc{
		func(c *Context) {
			executed = append(executed, 1)
			c.Next()
		},
		func(c *Context) {
			executed = append(executed, 2)
			c.AbortWithError(http.StatusUnauthorized, "missing token")
			c.Next()
		},
		func(c *Context) {
			executed = append(executed, 3)
		},
	}

	c.Next()

	if len(executed) != 2 {
		t.Fatalf("expected 2 handlers executed, got %v", executed)
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != 401 || body.Message != "missing token" || body.RequestID != "rid-1" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestAbortWithStatusJSONAfterWriteKeepsFirstStatus(t *testing.T) {
	w := httptest.NewRecorder()
	c := newContext(w, httptest.NewRequest("GET", "/", nil))

	c.String(http.StatusCreated, "done")
	c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "late"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, w.Code)
	}
	if strings.Contains(w.Body.String(), "late") {
		t.Fatalf("late error must not be appended: %q", w.Body.String())
	}
}

func TestMiddlewareExecutionOrder(t *testing.T) {
	order := make([]string, 0)

	w := httptest.NewRecorder()
	c := newContext(w, httptest.NewRequest("GET", "/", nil))
	c.handlers = []HandlerFunc{
		func(c *Context) {
			order = append(order, "m1-before")
			c.Next()
			order = append(order, "m1-after")
		},
		func(c *Context) {
			order = append(order, "m2-before")
			c.Next()
			order = append(order, "m2-after")
		},
		func(c *Context) {
			order = append(order, "handler")
		},
	}

	c.Next()

	expected := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected %v, got %v", expected, order)
	}
}

func TestRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	c := newContext(w, httptest.NewRequest("GET", "/abc", nil))

	c.Redirect(http.StatusFound, "https://example.com/page")

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com/page" {
		t.Fatalf("Location: got %q", loc)
	}
}

func TestBindJSON(t *testing.T) {
	type payload struct {
		URL string `json:"url"`
	}
	cases := []struct {
		name     string
		body     string
		wantErr  bool
		wantCode int
	}{
		{"ok", `{"url":"https://example.com"}`, false, 200},
		{"empty", ``, true, 400},
		{"unknown field", `{"url":"x","extra":1}`, true, 400},
		{"two values", `{"url":"x"}{"url":"y"}`, true, 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c := newContext(w, httptest.NewRequest("POST", "/", strings.NewReader(tc.body)))
			var p payload
			err := c.BindJSON(&p)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
		})
	}
}

func TestResponseWriterTracksStatusAndSize(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	if rw.Status() != 200 || rw.Written() {
		t.Fatalf("fresh writer: status %d written %v", rw.Status(), rw.Written())
	}
	rw.WriteHeader(201)
	rw.WriteHeader(500) // 第二次调用应被忽略
	rw.Write([]byte("hello"))
	rw.Write([]byte(" world"))

	if rw.Status() != 201 || w.Code != 201 {
		t.Fatalf("expected status 201, got %d / %d", rw.Status(), w.Code)
	}
	if rw.Size() != 11 {
		t.Fatalf("expected size 11, got %d", rw.Size())
	}
}
