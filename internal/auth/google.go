package auth

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// GoogleProvider はGoogleのプロバイダー名。
	GoogleProvider = "google"

	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleConfig はGoogleアダプターの設定。URLが空の場合は本番エンドポイントを使う。
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	HTTPClient   *http.Client
}

// GoogleAdapter はGoogle OAuth 2.0のProviderAdapter実装。
type GoogleAdapter struct {
	client      *oauthClient
	userInfoURL string
}

// NewGoogleAdapter はGoogleAdapterを生成する。
func NewGoogleAdapter(cfg GoogleConfig) *GoogleAdapter {
	endpoint := google.Endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}

	return &GoogleAdapter{
		client: &oauthClient{
			provider:     GoogleProvider,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			endpoint:     endpoint,
			scopes:       []string{"openid", "email", "profile"},
			httpClient:   orDefaultClient(cfg.HTTPClient),
		},
		userInfoURL: userInfoURL,
	}
}

// googleUserInfo はuserinfo v3エンドポイントの応答。
type googleUserInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a *GoogleAdapter) Name() string { return GoogleProvider }

func (a *GoogleAdapter) AuthCodeURL(state, redirectURI string) string {
	return a.client.authCodeURL(state, redirectURI)
}

func (a *GoogleAdapter) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return a.client.exchange(ctx, code, redirectURI)
}

// FetchIdentity はuserinfoを取得する。名前が無い場合はメールのローカル部、それも無ければ"User"。
func (a *GoogleAdapter) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var info googleUserInfo
	if err := a.client.getJSON(ctx, "userinfo", a.userInfoURL, accessToken, &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, &UserInfoError{Provider: GoogleProvider, Endpoint: "userinfo", Err: errMissingSubject}
	}

	id := &Identity{
		OpenID:      GoogleProvider + "_" + info.Sub,
		Name:        info.Name,
		LoginMethod: GoogleProvider,
	}
	if info.Email != "" {
		id.Email = strPtr(info.Email)
	}
	if id.Name == "" {
		if local, _, ok := strings.Cut(info.Email, "@"); ok && local != "" {
			id.Name = local
		} else {
			id.Name = fallbackName
		}
	}
	return id, nil
}

// compile-time interface check
var _ ProviderAdapter = (*GoogleAdapter)(nil)
