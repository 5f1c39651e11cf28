// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nufounders/nufounders/internal/model"
	"github.com/nufounders/nufounders/internal/repository"
)

// Service はユーザー管理のサービス層。
// 管理者向けのユーザー一覧とロール変更を提供する。
type Service struct {
	userRepo    repository.UserRepository
	ownerOpenID string
}

// NewService はServiceの新しいインスタンスを生成する。
// ownerOpenIDのユーザーは常に管理者として扱い、ロールを変更させない。
func NewService(userRepo repository.UserRepository, ownerOpenID string) *Service {
	return &Service{
		userRepo:    userRepo,
		ownerOpenID: ownerOpenID,
	}
}

// List は全ユーザーを作成日時順に返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// SetRole はユーザーのロールを変更する。
// 未定義のロールはINVALID_ROLE、存在しないユーザーはUSER_NOT_FOUNDを返す。
func (s *Service) SetRole(ctx context.Context, actor *model.User, openID, role string) (*model.User, error) {
	r := model.Role(role)
	if !r.Valid() {
		return nil, model.NewInvalidRoleError(role)
	}
	if openID == "" {
		return nil, model.NewBadRequestError("openId is required")
	}
	if s.ownerOpenID != "" && openID == s.ownerOpenID && r != model.RoleAdmin {
		return nil, model.NewForbiddenError("the owner account must stay admin")
	}

	updated, err := s.userRepo.UpdateRole(ctx, openID, r)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError(openID)
	}

	attrs := []any{
		slog.String("open_id", openID),
		slog.String("role", role),
	}
	if actor != nil {
		attrs = append(attrs, slog.String("actor_open_id", actor.OpenID))
	}
	slog.Info("user role changed", attrs...)

	return updated, nil
}
