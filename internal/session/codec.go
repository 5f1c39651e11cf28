// Package session はステートレスなセッショントークン（HS256署名のJWT）の発行と検証を提供する。
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL はセッショントークンのデフォルト有効期間（1年）。
const DefaultTTL = 365 * 24 * time.Hour

// Claims はセッショントークンが運ぶ識別情報。
type Claims struct {
	OpenID string `json:"openId"`
	AppID  string `json:"appId"`
	Name   string `json:"name"`
}

// tokenClaims はJWTペイロードの構造。expは登録済みクレームで表す。
type tokenClaims struct {
	OpenID string `json:"openId"`
	AppID  string `json:"appId"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Codec はセッショントークンの署名と検証を行う。
// 同一の共有鍵で署名・検証するため、外部状態を持たない。
type Codec struct {
	secret []byte
	appID  string
	now    func() time.Time
}

// NewCodec はCodecを生成する。
func NewCodec(secret, appID string) *Codec {
	return &Codec{
		secret: []byte(secret),
		appID:  appID,
		now:    time.Now,
	}
}

// WithClock は時刻取得関数を差し替えたCodecを返す。テスト用。
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// AppID は発行するトークンに埋め込むアプリケーションIDを返す。
func (c *Codec) AppID() string {
	return c.appID
}

// Mint はopenID, nameと設定済みのappIDを含むトークンを発行する。
// ttlが0以下の場合はDefaultTTLを使用する。
func (c *Codec) Mint(openID, name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	claims := tokenClaims{
		OpenID: openID,
		AppID:  c.appID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 形式不正・期限切れ・署名不一致・必須クレーム欠落のいずれの場合もnilを返す。
// 呼び出し側は「セッションなし」と「不正なセッション」を区別しない。
func (c *Codec) Verify(token string) *Claims {
	if token == "" {
		slog.Warn("session verification failed", slog.String("reason", "missing token"))
		return nil
	}

	parsed, err := jwt.ParseWithClaims(
		token,
		&tokenClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token expired"
		}
		slog.Warn("session verification failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return nil
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		slog.Warn("session verification failed", slog.String("reason", "invalid claims"))
		return nil
	}

	if tc.OpenID == "" || tc.AppID == "" || tc.Name == "" {
		slog.Warn("session verification failed", slog.String("reason", "missing session claims"))
		return nil
	}

	if tc.AppID != c.appID {
		slog.Warn("session verification failed",
			slog.String("reason", "app id mismatch"),
			slog.String("app_id", tc.AppID),
		)
		return nil
	}

	return &Claims{
		OpenID: tc.OpenID,
		AppID:  tc.AppID,
		Name:   tc.Name,
	}
}
