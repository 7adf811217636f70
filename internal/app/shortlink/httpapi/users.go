package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"shortlink.local/gee"
	"shortlink.local/internal/app/shortlink/repo"
	"shortlink.local/internal/platform/auth"
)

// UserStore 是凭据表需要提供的能力，Postgres 和 SQLite 两个实现都满足。
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (repo.User, error)
	Register(ctx context.Context, username, password string) (int64, error)
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func NewRegisterHandler(users UserStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req CredentialsRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		id, err := users.Register(ctx.Req.Context(), req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, repo.ErrUserAlreadyExists):
				ctx.AbortWithError(http.StatusConflict, err.Error())
			case errors.Is(err, repo.ErrInvalidUsername), errors.Is(err, repo.ErrInvalidPassword):
				ctx.AbortWithError(http.StatusBadRequest, err.Error())
			default:
				slog.Error("register user failed", "err", err)
				ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			}
			return
		}
		ctx.JSON(http.StatusCreated, RegisterResponse{ID: id, Username: req.Username})
	}
}

func NewLoginHandler(users UserStore, ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req CredentialsRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		user, err := users.FindByUsername(ctx.Req.Context(), req.Username)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				ctx.AbortWithError(http.StatusUnauthorized, "invalid credentials")
				return
			}
			slog.Error("find user failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "internal error")
			return
		}
		if !user.CheckPassword(req.Password) {
			ctx.AbortWithError(http.StatusUnauthorized, "invalid credentials")
			return
		}
		token, err := ts.Sign(user.ID, user.Role)
		if err != nil {
			slog.Error("sign token failed", "user_id", user.ID, "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "sign failed")
			return
		}
		ctx.JSON(http.StatusOK, LoginResponse{Token: token})
	}
}

type MeResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// NewMeHandler 返回当前 token 对应的身份，挂在 AuthRequired 之后。
func NewMeHandler() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := auth.GetIdentity(ctx.Req.Context())
		if !ok {
			ctx.AbortWithError(http.StatusInternalServerError, "missing identity")
			return
		}
		ctx.JSON(http.StatusOK, MeResponse{UserID: id.UserID, Role: id.Role})
	}
}
