package gee

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// 请求体上限，短链接口的 JSON 都很小。
const maxBodyBytes = 1 << 20

// ShouldBindJSON 只解析 JSON：拒绝未知字段和多个 JSON 值。
func (c *Context) ShouldBindJSON(dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Req.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON value")
	}
	return nil
}

// BindJSON 解析失败时直接写 400 并中断。
func (c *Context) BindJSON(dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithError(http.StatusBadRequest, "invalid json: "+err.Error())
		return err
	}
	return nil
}
