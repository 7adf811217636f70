package shortlink

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL / ErrInvalidCode 是输入校验的统一错误，上层稳定地映射成 400。
var ErrInvalidURL = errors.New("invalid url")
var ErrInvalidCode = errors.New("invalid code")

// ValidateURL 校验原始链接：
// - scheme 必须是 http/https
// - host 不能为空
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if strings.TrimSpace(u.Host) == "" {
		return ErrInvalidURL
	}
	return nil
}

var codeRe = regexp.MustCompile(`^[A-Za-z0-9]{3,32}$`)

// 与站点已有路由冲突的前缀，不能作为别名。
var reservedCodes = map[string]struct{}{
	"api":     {},
	"healthz": {},
	"links":   {},
	"auth":    {},
	"favicon": {},
}

// ValidateCode 校验用户自定义别名：仅字母/数字，长度 3~32，且不能是保留字。
func ValidateCode(code string) error {
	if !codeRe.MatchString(code) {
		return ErrInvalidCode
	}
	if _, ok := reservedCodes[strings.ToLower(code)]; ok {
		return ErrInvalidCode
	}
	return nil
}
