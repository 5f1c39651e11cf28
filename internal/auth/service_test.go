package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nufounders/nufounders/internal/model"
	"github.com/nufounders/nufounders/internal/repository"
	"github.com/nufounders/nufounders/internal/security"
	"github.com/nufounders/nufounders/internal/session"
)

func janeAdapter() *mockAdapter {
	return &mockAdapter{
		name: GoogleProvider,
		fetchIdentityFn: func(ctx context.Context, accessToken string) (*Identity, error) {
			return &Identity{OpenID: "google_123", Name: "Jane", Email: strPtr("jane@x.com"), LoginMethod: "google"}, nil
		},
	}
}

func TestSignIn_UpsertsOnceAndMintsToken(t *testing.T) {
	var upserts []*model.UpsertUser
	repo := &mockUserRepo{}
	repo.upsertFn = func(ctx context.Context, in *model.UpsertUser) (*model.User, error) {
		upserts = append(upserts, in)
		return &model.User{OpenID: in.OpenID, Name: in.Name, Email: in.Email, LoginMethod: in.LoginMethod, Role: model.RoleUser}, nil
	}

	var exchangedCode, exchangedRedirect, fetchedToken string
	adapter := janeAdapter()
	adapter.exchangeCodeFn = func(ctx context.Context, code, redirectURI string) (string, error) {
		exchangedCode, exchangedRedirect = code, redirectURI
		return "access-123", nil
	}
	inner := adapter.fetchIdentityFn
	adapter.fetchIdentityFn = func(ctx context.Context, accessToken string) (*Identity, error) {
		fetchedToken = accessToken
		return inner(ctx, accessToken)
	}

	codec := session.NewCodec("secret", "app-1")
	svc := NewService(NewRegistry(adapter), repo, codec, security.NewNameSanitizer(), nil, ServiceConfig{})

	result, err := svc.SignIn(context.Background(), GoogleProvider, "the-code", "https://app.example/api/oauth/callback")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if exchangedCode != "the-code" || exchangedRedirect != "https://app.example/api/oauth/callback" {
		t.Errorf("ExchangeCode called with (%q, %q)", exchangedCode, exchangedRedirect)
	}
	if fetchedToken != "access-123" {
		t.Errorf("FetchIdentity called with %q", fetchedToken)
	}
	if len(upserts) != 1 {
		t.Fatalf("Upsert called %d times, want 1", len(upserts))
	}
	if upserts[0].OpenID != "google_123" || upserts[0].Role != "" {
		t.Errorf("Upsert input = %+v", upserts[0])
	}
	if upserts[0].LastSignedIn.IsZero() {
		t.Error("LastSignedIn should be set")
	}

	claims := codec.Verify(result.Token)
	if claims == nil {
		t.Fatal("minted token does not verify")
	}
	if claims.OpenID != "google_123" || claims.Name != "Jane" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestSignIn_OwnerIsStoredAsAdmin(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	svc := NewService(NewRegistry(janeAdapter()), repo, &mockMinter{}, nil, nil, ServiceConfig{OwnerOpenID: "google_123"})

	result, err := svc.SignIn(context.Background(), GoogleProvider, "code", "https://app.example/cb")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if result.User.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", result.User.Role, model.RoleAdmin)
	}
}

func TestSignIn_SanitizesDisplayName(t *testing.T) {
	adapter := &mockAdapter{
		name: GitHubProvider,
		fetchIdentityFn: func(ctx context.Context, accessToken string) (*Identity, error) {
			return &Identity{OpenID: "github_1", Name: "<script>x</script>", LoginMethod: "github"}, nil
		},
	}
	var minted string
	minter := &mockMinter{mintFn: func(openID, name string, ttl time.Duration) (string, error) {
		minted = name
		return "tok", nil
	}}
	svc := NewService(NewRegistry(adapter), repository.NewMemoryUserRepo(), minter, security.NewNameSanitizer(), nil, ServiceConfig{})

	result, err := svc.SignIn(context.Background(), GitHubProvider, "code", "https://app.example/cb")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if result.User.Name != "User" || minted != "User" {
		t.Errorf("stored name = %q, minted name = %q, want %q", result.User.Name, minted, "User")
	}
}

func TestSignIn_Failures(t *testing.T) {
	exchangeErr := &TokenExchangeError{Provider: "google", StatusCode: 400, Err: errors.New("invalid_grant")}
	dbErr := errors.New("connection refused")

	tests := []struct {
		name     string
		provider string
		adapter  *mockAdapter
		repo     *mockUserRepo
		minter   *mockMinter
		wantErr  func(error) bool
	}{
		{
			name:     "unknown provider",
			provider: "twitter",
			adapter:  janeAdapter(),
			wantErr: func(err error) bool {
				var u *UnknownProviderError
				return errors.As(err, &u)
			},
		},
		{
			name:     "token exchange",
			provider: GoogleProvider,
			adapter: &mockAdapter{name: GoogleProvider, exchangeCodeFn: func(ctx context.Context, code, redirectURI string) (string, error) {
				return "", exchangeErr
			}},
			wantErr: func(err error) bool { return errors.Is(err, exchangeErr) },
		},
		{
			name:     "userinfo",
			provider: GoogleProvider,
			adapter: &mockAdapter{name: GoogleProvider, fetchIdentityFn: func(ctx context.Context, accessToken string) (*Identity, error) {
				return nil, &UserInfoError{Provider: "google", Endpoint: "userinfo", StatusCode: 500}
			}},
			wantErr: func(err error) bool {
				var u *UserInfoError
				return errors.As(err, &u)
			},
		},
		{
			name:     "upsert",
			provider: GoogleProvider,
			adapter:  janeAdapter(),
			repo: &mockUserRepo{upsertFn: func(ctx context.Context, in *model.UpsertUser) (*model.User, error) {
				return nil, dbErr
			}},
			wantErr: func(err error) bool { return errors.Is(err, dbErr) },
		},
		{
			name:     "mint",
			provider: GoogleProvider,
			adapter:  janeAdapter(),
			minter: &mockMinter{mintFn: func(openID, name string, ttl time.Duration) (string, error) {
				return "", errors.New("signing failed")
			}},
			wantErr: func(err error) bool { return strings.Contains(err.Error(), "failed to mint session") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.repo
			if repo == nil {
				repo = &mockUserRepo{}
			}
			minter := tt.minter
			if minter == nil {
				minter = &mockMinter{}
			}
			svc := NewService(NewRegistry(tt.adapter), repo, minter, nil, nil, ServiceConfig{})

			result, err := svc.SignIn(context.Background(), tt.provider, "code", "https://app.example/cb")
			if err == nil {
				t.Fatalf("SignIn() = %+v, want error", result)
			}
			if !tt.wantErr(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoginURL_EncodesStateWithProviderAndRedirect(t *testing.T) {
	svc := NewService(NewRegistry(janeAdapter()), &mockUserRepo{}, &mockMinter{}, nil, nil, ServiceConfig{})

	raw, err := svc.LoginURL(GoogleProvider, "https://app.example/api/oauth/callback")
	if err != nil {
		t.Fatalf("LoginURL() error = %v", err)
	}
	// mockAdapterはstateをそのまま埋め込む
	encoded := strings.TrimPrefix(strings.Split(raw, "&")[0], "https://provider.example/authorize?state=")
	state, err := DecodeState(encoded)
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}
	if state.Provider != GoogleProvider || state.RedirectURI != "https://app.example/api/oauth/callback" {
		t.Errorf("state = %+v", state)
	}

	if _, err := svc.LoginURL("twitter", "https://app.example/cb"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
