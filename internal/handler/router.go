package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nufounders/nufounders/internal/auth"
	"github.com/nufounders/nufounders/internal/metrics"
	"github.com/nufounders/nufounders/internal/middleware"
	"github.com/nufounders/nufounders/internal/model"
	"github.com/nufounders/nufounders/internal/repository"
	"github.com/nufounders/nufounders/internal/rpc"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFProtection    bool

	// 認証
	SignInService   SignInService
	Authenticator   rpc.Authenticator
	CallbackURL     string
	SuccessRedirect string

	// ユーザー
	UserService UserServiceInterface

	// 運用
	HealthChecker  repository.HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestContext → Logging → Recovery → SecurityHeaders → CORS
//
// OAuthルートにはOAuth用、RPCルートにはRPC用のレート制限を適用する。
// CSRFProtectionが有効な場合はRPCのMutationにダブルサブミット検証を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	oauthLimit, rpcLimit := passthrough, passthrough
	if deps.RateLimiter != nil {
		oauthLimit = deps.RateLimiter.OAuthMiddleware()
		rpcLimit = deps.RateLimiter.RPCMiddleware()
	}
	successRedirect := deps.SuccessRedirect
	if successRedirect == "" {
		successRedirect = "/"
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestContextMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, mc))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- OAuth ---
	oauthHandler := NewOAuthHandler(deps.SignInService, mc, deps.CallbackURL)
	callback := func(provider string) http.HandlerFunc {
		return oauthHandler.Callback(CallbackConfig{
			Provider:           provider,
			SuccessRedirect:    successRedirect,
			DefaultRedirectURI: deps.CallbackURL,
		})
	}

	r.Route("/api/oauth", func(r chi.Router) {
		r.Use(oauthLimit)

		r.Get("/callback", callback(""))
		r.Get("/google/callback", callback(auth.GoogleProvider))
		r.Get("/github/callback", callback(auth.GitHubProvider))
		r.Get("/{provider}/login", oauthHandler.Login)
	})

	// --- RPC ---
	rpcRouter := rpc.NewRouter(deps.Authenticator, mc)
	RegisterProcedures(rpcRouter, deps.UserService, deps.HealthChecker)

	csrfConfig := middleware.CSRFConfig{}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	r.Route("/api/trpc", func(r chi.Router) {
		r.Use(rpcLimit)
		if deps.CSRFProtection {
			r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		}
		r.Handle("/{procedure}", rpcRouter)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError(r.URL.Path))
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
