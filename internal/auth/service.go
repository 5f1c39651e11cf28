package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nufounders/nufounders/internal/metrics"
	"github.com/nufounders/nufounders/internal/model"
	"github.com/nufounders/nufounders/internal/repository"
	"github.com/nufounders/nufounders/internal/security"
)

// TokenMinter はセッショントークンを発行する。
type TokenMinter interface {
	Mint(openID, name string, ttl time.Duration) (string, error)
}

// ServiceConfig はサインインサービスの設定。
type ServiceConfig struct {
	// OwnerOpenID に一致するユーザーは管理者として保存する。
	OwnerOpenID string
	// SessionTTL は発行するセッションの有効期間。0以下なら1年。
	SessionTTL time.Duration
}

// SignInResult はサインイン成功時の結果。
type SignInResult struct {
	User  *model.User
	Token string
}

// Service はOAuthコールバックの「交換→識別→保存→発行」を担う。
type Service struct {
	registry  *Registry
	users     repository.UserRepository
	minter    TokenMinter
	sanitizer security.NameSanitizer
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	registry *Registry,
	users repository.UserRepository,
	minter TokenMinter,
	sanitizer security.NameSanitizer,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		registry:  registry,
		users:     users,
		minter:    minter,
		sanitizer: sanitizer,
		metrics:   mc,
		config:    config,
		now:       time.Now,
	}
}

// LoginURL はプロバイダーの認可画面URLを返す。
// stateにはコールバックURLとプロバイダー名を載せる。
func (s *Service) LoginURL(provider, redirectURI string) (string, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return "", err
	}
	state := EncodeState(State{RedirectURI: redirectURI, Provider: provider})
	return adapter.AuthCodeURL(state, redirectURI), nil
}

// SignIn は認可コードを交換して識別情報を取得し、ユーザーを1回だけUPSERTしてトークンを発行する。
// いずれの段階も再試行しない。
func (s *Service) SignIn(ctx context.Context, provider, code, redirectURI string) (*SignInResult, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	accessToken, err := adapter.ExchangeCode(ctx, code, redirectURI)
	s.metrics.RecordProviderRequest(provider, "token", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	start = time.Now()
	identity, err := adapter.FetchIdentity(ctx, accessToken)
	s.metrics.RecordProviderRequest(provider, "identity", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}

	name := identity.Name
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	if name == "" {
		name = fallbackName
	}

	in := &model.UpsertUser{
		OpenID:       identity.OpenID,
		Name:         name,
		Email:        identity.Email,
		LoginMethod:  identity.LoginMethod,
		LastSignedIn: s.now(),
	}
	if s.config.OwnerOpenID != "" && identity.OpenID == s.config.OwnerOpenID {
		in.Role = model.RoleAdmin
	}

	user, err := s.users.Upsert(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	token, err := s.minter.Mint(user.OpenID, user.Name, s.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to mint session: %w", err)
	}

	slog.Info("user signed in",
		slog.String("open_id", user.OpenID),
		slog.String("provider", provider),
		slog.String("role", string(user.Role)),
	)

	return &SignInResult{User: user, Token: token}, nil
}
