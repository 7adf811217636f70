package auth

import "context"

// Identity 是通过认证的调用方；UserID 即链接的 owner_id。
type Identity struct {
	UserID int64
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// OwnerID 返回当前调用方的用户 ID；匿名请求返回 nil。
func OwnerID(ctx context.Context) *int64 {
	id, ok := GetIdentity(ctx)
	if !ok {
		return nil
	}
	uid := id.UserID
	return &uid
}
