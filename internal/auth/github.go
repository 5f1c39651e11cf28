package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	// GitHubProvider はGitHubのプロバイダー名。
	GitHubProvider = "github"

	defaultGitHubAPIURL = "https://api.github.com"

	// fallbackName はプロバイダーから名前を得られなかった場合の表示名。
	fallbackName = "User"
)

var errMissingSubject = errors.New("response has no user identifier")

// GitHubConfig はGitHubアダプターの設定。URLが空の場合は本番エンドポイントを使う。
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	APIURL       string
	HTTPClient   *http.Client
}

// GitHubAdapter はGitHub OAuthのProviderAdapter実装。
type GitHubAdapter struct {
	client *oauthClient
	apiURL string
}

// NewGitHubAdapter はGitHubAdapterを生成する。
func NewGitHubAdapter(cfg GitHubConfig) *GitHubAdapter {
	endpoint := github.Endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultGitHubAPIURL
	}

	return &GitHubAdapter{
		client: &oauthClient{
			provider:     GitHubProvider,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			endpoint:     endpoint,
			scopes:       []string{"read:user", "user:email"},
			httpClient:   orDefaultClient(cfg.HTTPClient),
		},
		apiURL: apiURL,
	}
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (a *GitHubAdapter) Name() string { return GitHubProvider }

func (a *GitHubAdapter) AuthCodeURL(state, redirectURI string) string {
	return a.client.authCodeURL(state, redirectURI)
}

func (a *GitHubAdapter) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return a.client.exchange(ctx, code, redirectURI)
}

// FetchIdentity は/userを取得する。公開メールが無い場合のみ/user/emailsを1回だけ取得する。
func (a *GitHubAdapter) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var user githubUser
	if err := a.client.getJSON(ctx, "user", a.apiURL+"/user", accessToken, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, &UserInfoError{Provider: GitHubProvider, Endpoint: "user", Err: errMissingSubject}
	}

	id := &Identity{
		OpenID:      GitHubProvider + "_" + strconv.FormatInt(user.ID, 10),
		Name:        user.Name,
		LoginMethod: GitHubProvider,
	}
	switch {
	case id.Name != "":
	case user.Login != "":
		id.Name = user.Login
	default:
		id.Name = fallbackName
	}

	if user.Email != "" {
		id.Email = strPtr(user.Email)
		return id, nil
	}

	var emails []githubEmail
	if err := a.client.getJSON(ctx, "emails", a.apiURL+"/user/emails", accessToken, &emails); err != nil {
		return nil, err
	}
	id.Email = selectGitHubEmail(emails)
	return id, nil
}

// selectGitHubEmail はprimaryのエントリ、無ければ先頭、空ならnilを返す。
func selectGitHubEmail(emails []githubEmail) *string {
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return strPtr(e.Email)
		}
	}
	if len(emails) > 0 && emails[0].Email != "" {
		return strPtr(emails[0].Email)
	}
	return nil
}

// compile-time interface check
var _ ProviderAdapter = (*GitHubAdapter)(nil)
