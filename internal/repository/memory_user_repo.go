package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nufounders/nufounders/internal/model"
)

// MemoryUserRepo はプロセス内メモリを使用したユーザーリポジトリ。
// DATABASE_URL未設定時の開発用、およびテスト用。
// 返却値はコピーであり、呼び出し側の変更はストアに影響しない。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
	now   func() time.Time
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users: make(map[string]*model.User),
		now:   time.Now,
	}
}

// FindByOpenID は指定openIDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByOpenID(_ context.Context, openID string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[openID]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

// Upsert はユーザーを作成、または既存ユーザーを上書きする。
func (r *MemoryUserRepo) Upsert(_ context.Context, in *model.UpsertUser) (*model.User, error) {
	at := in.LastSignedIn
	if at.IsZero() {
		at = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[in.OpenID]
	if !ok {
		role := in.Role
		if role == "" {
			role = model.RoleUser
		}
		u = &model.User{
			OpenID:    in.OpenID,
			Role:      role,
			CreatedAt: at,
		}
		r.users[in.OpenID] = u
	} else if in.Role != "" {
		u.Role = in.Role
	}

	u.Name = in.Name
	u.Email = copyString(in.Email)
	u.LoginMethod = in.LoginMethod
	u.UpdatedAt = at
	u.LastSignedIn = at

	return copyUser(u), nil
}

// TouchLastSignedIn はlastSignedInのみを更新する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) TouchLastSignedIn(_ context.Context, openID string, at time.Time) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[openID]
	if !ok {
		return nil, nil
	}
	u.LastSignedIn = at
	u.UpdatedAt = at
	return copyUser(u), nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (r *MemoryUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].OpenID < users[j].OpenID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// UpdateRole はユーザーのロールを変更する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) UpdateRole(_ context.Context, openID string, role model.Role) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[openID]
	if !ok {
		return nil, nil
	}
	u.Role = role
	u.UpdatedAt = r.now()
	return copyUser(u), nil
}

// PingContext は常に成功する。HealthCheckerを満たすため。
func (r *MemoryUserRepo) PingContext(_ context.Context) error {
	return nil
}

func copyUser(u *model.User) *model.User {
	cp := *u
	cp.Email = copyString(u.Email)
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
var _ HealthChecker = (*MemoryUserRepo)(nil)
