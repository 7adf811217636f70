package httpmiddleware

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shortlink.local/gee"
)

// TraceName 用路由模板重命名 otelhttp 创建的 span，避免用真实 path（基数无限）。
func TraceName() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		span := trace.SpanFromContext(ctx.Req.Context())
		if ctx.RoutePattern != "" {
			span.SetName(ctx.Method + " " + ctx.RoutePattern)
			span.SetAttributes(attribute.String("http.route", ctx.RoutePattern))
		}
		ctx.Next()
		span.SetAttributes(attribute.Int("http.response.status_code", ctx.Writer.Status()))
	}
}
