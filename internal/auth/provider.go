// Package auth はOAuthプロバイダー連携、サインイン、リクエスト認証を提供する。
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

// Identity はプロバイダーから取得し正規化したユーザー識別情報。
// 永続化されず、直ちにUserレコードへ取り込まれる。
type Identity struct {
	OpenID      string
	Name        string
	Email       *string
	LoginMethod string
}

// ProviderAdapter はOAuthプロバイダーごとのコード交換とプロフィール取得を抽象化する。
type ProviderAdapter interface {
	// Name はプロバイダー名（"google", "github"）を返す。loginMethodにも使う。
	Name() string
	// AuthCodeURL はプロバイダーの認可画面URLを返す。
	AuthCodeURL(state, redirectURI string) string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
	// FetchIdentity はアクセストークンでプロフィールを取得し、正規化した識別情報を返す。
	FetchIdentity(ctx context.Context, accessToken string) (*Identity, error)
}

// ProviderConfigError はクライアントID/シークレットが未設定の場合のエラー。
type ProviderConfigError struct {
	Provider string
	Missing  []string
}

func (e *ProviderConfigError) Error() string {
	return fmt.Sprintf("%s provider is not configured: missing %s", e.Provider, strings.Join(e.Missing, ", "))
}

// TokenExchangeError はトークンエンドポイントへのコード交換失敗を表す。
// StatusCodeは応答が得られなかった場合0。
type TokenExchangeError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TokenExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s token exchange failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s token exchange failed: %v", e.Provider, e.Err)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// UserInfoError はプロフィール取得の失敗を表す。
type UserInfoError struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UserInfoError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s request failed with status %d", e.Provider, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s %s request failed: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *UserInfoError) Unwrap() error { return e.Err }

// UnknownProviderError は未登録のプロバイダー名が指定された場合のエラー。
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	if e.Provider == "" {
		return "provider is not specified"
	}
	return fmt.Sprintf("unknown provider: %q", e.Provider)
}

// Registry はプロバイダー名からアダプターを引く。
// 起動時に構築し、以降は読み取り専用として扱う。
type Registry struct {
	adapters map[string]ProviderAdapter
}

// NewRegistry は渡されたアダプターを登録したRegistryを生成する。
func NewRegistry(adapters ...ProviderAdapter) *Registry {
	r := &Registry{adapters: make(map[string]ProviderAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get はプロバイダー名に対応するアダプターを返す。
func (r *Registry) Get(name string) (ProviderAdapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, &UnknownProviderError{Provider: name}
	}
	return a, nil
}

// Names は登録済みのプロバイダー名を昇順で返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// oauthClient はoauth2パッケージとプロフィール取得で共有する設定。
type oauthClient struct {
	provider     string
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	scopes       []string
	httpClient   *http.Client
}

func (c *oauthClient) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     c.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       c.scopes,
	}
}

func (c *oauthClient) authCodeURL(state, redirectURI string) string {
	return c.config(redirectURI).AuthCodeURL(state)
}

// exchange はクライアント認証情報をフォームに含めてコードを交換する。
func (c *oauthClient) exchange(ctx context.Context, code, redirectURI string) (string, error) {
	var missing []string
	if c.clientID == "" {
		missing = append(missing, "client id")
	}
	if c.clientSecret == "" {
		missing = append(missing, "client secret")
	}
	if len(missing) > 0 {
		return "", &ProviderConfigError{Provider: c.provider, Missing: missing}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		exErr := &TokenExchangeError{Provider: c.provider, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			exErr.StatusCode = retrieveErr.Response.StatusCode
		}
		return "", exErr
	}

	return token.AccessToken, nil
}

// getJSON はBearerトークン付きでGETし、2xxの応答をdstにデコードする。
func (c *oauthClient) getJSON(ctx context.Context, endpoint, url, accessToken string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &UserInfoError{Provider: c.provider, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UserInfoError{Provider: c.provider, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &UserInfoError{Provider: c.provider, Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		return &UserInfoError{Provider: c.provider, Endpoint: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func orDefaultClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func strPtr(s string) *string { return &s }
