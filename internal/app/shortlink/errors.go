package shortlink

import (
	"errors"
	"fmt"
)

// 领域错误：上层（HTTP）用 errors.Is 映射成具体的传输层响应。
var (
	ErrAnonymousAliasForbidden = errors.New("custom alias requires an owner")
	ErrAliasInUse              = errors.New("alias already in use")
	ErrCodeCollision           = errors.New("short code collision")
	ErrNotFound                = errors.New("link not found")
	ErrExpired                 = errors.New("link expired")
	ErrUnauthenticated         = errors.New("authentication required")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrStoreUnavailable        = errors.New("link store unavailable")
	ErrCacheUnavailable        = errors.New("link cache unavailable")
)

// ErrConstraintViolation 由存储层在唯一约束冲突（code / alias）时返回。
var ErrConstraintViolation = errors.New("constraint violation")

// storeErr 把存储层的非领域错误包装成 ErrStoreUnavailable，领域错误原样返回。
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConstraintViolation) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
