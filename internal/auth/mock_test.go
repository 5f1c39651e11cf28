package auth

import (
	"context"
	"time"

	"github.com/nufounders/nufounders/internal/model"
	"github.com/nufounders/nufounders/internal/repository"
	"github.com/nufounders/nufounders/internal/session"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByOpenIDFn      func(ctx context.Context, openID string) (*model.User, error)
	upsertFn            func(ctx context.Context, in *model.UpsertUser) (*model.User, error)
	touchLastSignedInFn func(ctx context.Context, openID string, at time.Time) (*model.User, error)
}

func (m *mockUserRepo) FindByOpenID(ctx context.Context, openID string) (*model.User, error) {
	if m.findByOpenIDFn != nil {
		return m.findByOpenIDFn(ctx, openID)
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, in *model.UpsertUser) (*model.User, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, in)
	}
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	return &model.User{
		OpenID:       in.OpenID,
		Name:         in.Name,
		Email:        in.Email,
		LoginMethod:  in.LoginMethod,
		Role:         role,
		LastSignedIn: in.LastSignedIn,
	}, nil
}

func (m *mockUserRepo) TouchLastSignedIn(ctx context.Context, openID string, at time.Time) (*model.User, error) {
	if m.touchLastSignedInFn != nil {
		return m.touchLastSignedInFn(ctx, openID, at)
	}
	return nil, nil
}

func (m *mockUserRepo) List(_ context.Context) ([]*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, _ string, _ model.Role) (*model.User, error) {
	return nil, nil
}

type mockAdapter struct {
	name            string
	exchangeCodeFn  func(ctx context.Context, code, redirectURI string) (string, error)
	fetchIdentityFn func(ctx context.Context, accessToken string) (*Identity, error)
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) AuthCodeURL(state, redirectURI string) string {
	return "https://provider.example/authorize?state=" + state + "&redirect_uri=" + redirectURI
}

func (m *mockAdapter) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code, redirectURI)
	}
	return "access-token", nil
}

func (m *mockAdapter) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	if m.fetchIdentityFn != nil {
		return m.fetchIdentityFn(ctx, accessToken)
	}
	return nil, nil
}

type mockMinter struct {
	mintFn func(openID, name string, ttl time.Duration) (string, error)
}

func (m *mockMinter) Mint(openID, name string, ttl time.Duration) (string, error) {
	if m.mintFn != nil {
		return m.mintFn(openID, name, ttl)
	}
	return "token-for-" + openID, nil
}

type mockVerifier struct {
	verifyFn func(token string) *session.Claims
}

func (m *mockVerifier) Verify(token string) *session.Claims {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ ProviderAdapter = (*mockAdapter)(nil)
var _ TokenMinter = (*mockMinter)(nil)
var _ TokenVerifier = (*mockVerifier)(nil)
var _ TokenMinter = (*session.Codec)(nil)
var _ TokenVerifier = (*session.Codec)(nil)
