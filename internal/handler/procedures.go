package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nufounders/nufounders/internal/cookie"
	"github.com/nufounders/nufounders/internal/model"
	"github.com/nufounders/nufounders/internal/repository"
	"github.com/nufounders/nufounders/internal/rpc"
)

// UserServiceInterface はユーザー管理プロシージャが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	SetRole(ctx context.Context, actor *model.User, openID, role string) (*model.User, error)
}

// setRoleInput はusers.setRoleの入力。
type setRoleInput struct {
	OpenID string `json:"openId"`
	Role   string `json:"role"`
}

// healthResult はsystem.healthの出力。
type healthResult struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// RegisterProcedures はRPCプロシージャを登録する。
func RegisterProcedures(rt *rpc.Router, users UserServiceInterface, health repository.HealthChecker) {
	rt.Register(rpc.Procedure{
		Name:    "auth.me",
		Kind:    rpc.Query,
		Access:  rpc.Public,
		Handler: me,
	})
	rt.Register(rpc.Procedure{
		Name:    "auth.logout",
		Kind:    rpc.Mutation,
		Access:  rpc.Public,
		Handler: logout,
	})
	rt.Register(rpc.Procedure{
		Name:   "system.health",
		Kind:   rpc.Query,
		Access: rpc.Public,
		Handler: func(ctx context.Context, _ *rpc.Context, _ json.RawMessage) (any, error) {
			status := "ok"
			if err := pingDatabase(ctx, health); err != nil {
				slog.Warn("database health check failed", slog.String("error", err.Error()))
				status = "unavailable"
			}
			return healthResult{OK: status == "ok", Database: status}, nil
		},
	})
	rt.Register(rpc.Procedure{
		Name:   "users.list",
		Kind:   rpc.Query,
		Access: rpc.Admin,
		Handler: func(ctx context.Context, _ *rpc.Context, _ json.RawMessage) (any, error) {
			return users.List(ctx)
		},
	})
	rt.Register(rpc.Procedure{
		Name:   "users.setRole",
		Kind:   rpc.Mutation,
		Access: rpc.Admin,
		Handler: func(ctx context.Context, c *rpc.Context, input json.RawMessage) (any, error) {
			var in setRoleInput
			if err := rpc.DecodeInput(input, &in); err != nil {
				return nil, err
			}
			return users.SetRole(ctx, c.User, in.OpenID, in.Role)
		},
	})
}

// me は現在のユーザーを返す。未認証ならnull。
func me(_ context.Context, c *rpc.Context, _ json.RawMessage) (any, error) {
	return c.User, nil
}

// logout はセッションCookieを同じ属性で失効させる。サーバー側で失効させるセッションはない。
func logout(_ context.Context, c *rpc.Context, _ json.RawMessage) (any, error) {
	c.Res.ClearCookie(cookie.SessionName, c.Req.CookieOptions(-1))
	return map[string]bool{"success": true}, nil
}

// pingDatabase はタイムアウト付きでDBへの疎通を確認する。
func pingDatabase(ctx context.Context, health repository.HealthChecker) error {
	if health == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return health.PingContext(ctx)
}
