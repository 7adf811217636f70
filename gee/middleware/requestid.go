package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"shortlink.local/gee"
)

const requestIDHeader = "X-Request-ID"

// ReqID 透传上游的 X-Request-ID，没有就生成一个，并写回响应头。
func ReqID() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id := ctx.Req.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
			ctx.Req.Header.Set(requestIDHeader, id)
		}
		ctx.SetHeader(requestIDHeader, id)

		ctx.Next()
	}
}

func newRequestID() string {
	src := make([]byte, 16)
	if _, err := rand.Read(src); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(src) // 32 个十六进制字符
}
