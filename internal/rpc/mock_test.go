package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/nufounders/nufounders/internal/auth"
	"github.com/nufounders/nufounders/internal/model"
)

// mockAuthenticator はAuthenticatorのテスト用モック。
type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, req auth.SessionRequest) (*model.User, error)

	mu    sync.Mutex
	calls int
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, req auth.SessionRequest) (*model.User, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, model.NewInvalidSessionError()
}

func (m *mockAuthenticator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// authenticatedAs は常に指定ユーザーを返すAuthenticatorを生成する。
func authenticatedAs(user *model.User) *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(ctx context.Context, req auth.SessionRequest) (*model.User, error) {
			return user, nil
		},
	}
}

// mockRPCMetrics はRecordRPCCallの呼び出しを記録する。
type mockRPCMetrics struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockRPCMetrics) RecordOAuthCallback(string, string) {}
func (m *mockRPCMetrics) RecordSessionVerification(bool)     {}
func (m *mockRPCMetrics) RecordHTTPStatus(int)               {}

func (m *mockRPCMetrics) RecordRPCCall(procedure, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, procedure+":"+code)
}

func (m *mockRPCMetrics) RecordProviderRequest(string, string, time.Duration, error) {}

var _ Authenticator = (*mockAuthenticator)(nil)
var _ Authenticator = (*auth.Authenticator)(nil)
