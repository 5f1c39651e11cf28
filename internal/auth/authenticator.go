package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nufounders/nufounders/internal/cookie"
	"github.com/nufounders/nufounders/internal/metrics"
	"github.com/nufounders/nufounders/internal/model"
	"github.com/nufounders/nufounders/internal/repository"
	"github.com/nufounders/nufounders/internal/session"
)

// TokenVerifier はセッショントークンを検証する。無効な場合はnilを返す。
type TokenVerifier interface {
	Verify(token string) *session.Claims
}

// SessionRequest は認証に必要なリクエストの一部。
// Cookiesは事前にパース済みのCookie（RPCブリッジ経由）で、空の場合はHeaderのCookieを解析する。
type SessionRequest struct {
	Header  http.Header
	Cookies map[string]string
}

// Authenticator はリクエストのセッションCookieからユーザーを解決する。
// リクエストごとのキャッシュは持たない。
type Authenticator struct {
	verifier TokenVerifier
	users    repository.UserRepository
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewAuthenticator はAuthenticatorを生成する。mcがnilの場合はメトリクスを記録しない。
func NewAuthenticator(verifier TokenVerifier, users repository.UserRepository, mc metrics.MetricsCollector) *Authenticator {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Authenticator{
		verifier: verifier,
		users:    users,
		metrics:  mc,
		now:      time.Now,
	}
}

// WithClock は時刻取得関数を差し替えたAuthenticatorを返す。テスト用。
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	cp := *a
	cp.now = now
	return &cp
}

// Authenticate はセッションを検証し、ユーザーのlastSignedInを更新して返す。
// セッションが無いか無効な場合は"Invalid or missing session"のFORBIDDENエラーを返す。
// 未登録のopenIDはトークンのクレームから作成する。
func (a *Authenticator) Authenticate(ctx context.Context, req SessionRequest) (*model.User, error) {
	token := sessionToken(req)
	claims := a.verifier.Verify(token)
	a.metrics.RecordSessionVerification(claims != nil)
	if claims == nil {
		return nil, model.NewInvalidSessionError()
	}

	now := a.now()

	existing, err := a.users.FindByOpenID(ctx, claims.OpenID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if existing != nil {
		user, err := a.users.TouchLastSignedIn(ctx, claims.OpenID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to update last signed in: %w", err)
		}
		if user != nil {
			return user, nil
		}
		// 取得後に削除された場合はクレームから作り直す
	}

	user, err := a.users.Upsert(ctx, &model.UpsertUser{
		OpenID:       claims.OpenID,
		Name:         claims.Name,
		LoginMethod:  LoginMethodFromOpenID(claims.OpenID),
		LastSignedIn: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user from session: %w", err)
	}
	slog.Info("user created from session", slog.String("open_id", user.OpenID))
	return user, nil
}

// LoginMethodFromOpenID はopenIDの接頭辞（"google_123"なら"google"）を返す。
func LoginMethodFromOpenID(openID string) string {
	prefix, _, ok := strings.Cut(openID, "_")
	if !ok {
		return ""
	}
	return prefix
}

// sessionToken はパース済みCookie、次にCookieヘッダーの順でセッショントークンを探す。
func sessionToken(req SessionRequest) string {
	if v, ok := req.Cookies[cookie.SessionName]; ok && v != "" {
		return v
	}
	if req.Header == nil {
		return ""
	}
	for _, line := range req.Header.Values("Cookie") {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			// 不正なペアを含む行は1ペアずつ拾い直す
			cookies = parseCookieLenient(line)
		}
		for _, c := range cookies {
			if c.Name == cookie.SessionName && c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}

func parseCookieLenient(line string) []*http.Cookie {
	var out []*http.Cookie
	for _, part := range strings.Split(line, ";") {
		cs, err := http.ParseCookie(strings.TrimSpace(part))
		if err == nil {
			out = append(out, cs...)
		}
	}
	return out
}
