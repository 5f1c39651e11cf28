package handler

import (
	"context"
	"sync"
	"time"

	"github.com/nufounders/nufounders/internal/auth"
	"github.com/nufounders/nufounders/internal/model"
)

// --- モック ---

type mockSignInService struct {
	loginURLFn func(provider, redirectURI string) (string, error)
	signInFn   func(ctx context.Context, provider, code, redirectURI string) (*auth.SignInResult, error)

	mu          sync.Mutex
	signInCalls int
}

func (m *mockSignInService) LoginURL(provider, redirectURI string) (string, error) {
	if m.loginURLFn != nil {
		return m.loginURLFn(provider, redirectURI)
	}
	return "https://provider.example/authorize", nil
}

func (m *mockSignInService) SignIn(ctx context.Context, provider, code, redirectURI string) (*auth.SignInResult, error) {
	m.mu.Lock()
	m.signInCalls++
	m.mu.Unlock()
	if m.signInFn != nil {
		return m.signInFn(ctx, provider, code, redirectURI)
	}
	return &auth.SignInResult{User: &model.User{OpenID: provider + "_1"}, Token: "session-token"}, nil
}

func (m *mockSignInService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signInCalls
}

type mockUserService struct {
	listFn    func(ctx context.Context) ([]*model.User, error)
	setRoleFn func(ctx context.Context, actor *model.User, openID, role string) (*model.User, error)
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.User{}, nil
}

func (m *mockUserService) SetRole(ctx context.Context, actor *model.User, openID, role string) (*model.User, error) {
	if m.setRoleFn != nil {
		return m.setRoleFn(ctx, actor, openID, role)
	}
	return &model.User{OpenID: openID, Role: model.Role(role)}, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

type mockAuthenticator struct {
	user *model.User
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, req auth.SessionRequest) (*model.User, error) {
	if m.user == nil {
		return nil, model.NewInvalidSessionError()
	}
	return m.user, nil
}

// recordingMetrics はOAuthコールバックの結果を記録する。
type recordingMetrics struct {
	mu        sync.Mutex
	callbacks []string
}

func (m *recordingMetrics) RecordOAuthCallback(provider, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, provider+":"+outcome)
}

func (m *recordingMetrics) RecordSessionVerification(bool)                             {}
func (m *recordingMetrics) RecordProviderRequest(string, string, time.Duration, error) {}
func (m *recordingMetrics) RecordRPCCall(string, string)                               {}
func (m *recordingMetrics) RecordHTTPStatus(int)                                       {}

func (m *recordingMetrics) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.callbacks) == 0 {
		return ""
	}
	return m.callbacks[len(m.callbacks)-1]
}

var (
	_ SignInService        = (*mockSignInService)(nil)
	_ SignInService        = (*auth.Service)(nil)
	_ UserServiceInterface = (*mockUserService)(nil)
)
