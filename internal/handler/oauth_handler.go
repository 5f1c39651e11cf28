// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nufounders/nufounders/internal/auth"
	"github.com/nufounders/nufounders/internal/cookie"
	"github.com/nufounders/nufounders/internal/metrics"
	"github.com/nufounders/nufounders/internal/middleware"
	"github.com/nufounders/nufounders/internal/model"
)

// OAuth失敗時のリダイレクト先。詳細はログにのみ残す。
const (
	deniedRedirect = "/?error=oauth_denied"
	failedRedirect = "/?error=oauth_failed"
)

// SignInService はOAuthハンドラーが必要とするサービスインターフェース。
type SignInService interface {
	LoginURL(provider, redirectURI string) (string, error)
	SignIn(ctx context.Context, provider, code, redirectURI string) (*auth.SignInResult, error)
}

// CallbackConfig はコールバックルート1つ分の設定。
type CallbackConfig struct {
	// Provider が空の場合はstateに載ったプロバイダーを使う（汎用ルート）。
	Provider string
	// SuccessRedirect はサインイン成功後の遷移先。
	SuccessRedirect string
	// DefaultRedirectURI はstateを復号できなかった場合にコード交換で使うredirect_uri。
	DefaultRedirectURI string
}

// OAuthHandler はOAuthのログイン開始とコールバックを処理する。
type OAuthHandler struct {
	service     SignInService
	metrics     metrics.MetricsCollector
	callbackURL string
}

// NewOAuthHandler はOAuthHandlerを生成する。
// callbackURLはログイン開始時にstateとredirect_uriへ載せるコールバックURL。
func NewOAuthHandler(service SignInService, mc metrics.MetricsCollector, callbackURL string) *OAuthHandler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &OAuthHandler{
		service:     service,
		metrics:     mc,
		callbackURL: callbackURL,
	}
}

// Login はプロバイダーの認可画面へリダイレクトする。
// GET /api/oauth/{provider}/login
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	url, err := h.service.LoginURL(provider, h.callbackURL)
	if err != nil {
		var unknown *auth.UnknownProviderError
		if errors.As(err, &unknown) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError("provider "+provider))
			return
		}
		slog.Error("failed to build login url",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback はOAuthコールバックを処理するハンドラーを返す。
//
//	error パラメータあり → /?error=oauth_denied（外部呼び出しなし）
//	code なし           → 400 MISSING_CODE（Cookieなし）
//	サインイン成功      → セッションCookieを設定してSuccessRedirectへ
//	それ以外の失敗      → /?error=oauth_failed
func (h *OAuthHandler) Callback(cfg CallbackConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Cache-Control", "no-store")

		if q.Has("error") {
			slog.Info("oauth authorization denied",
				slog.String("provider", cfg.Provider),
				slog.String("error", q.Get("error")),
			)
			h.metrics.RecordOAuthCallback(cfg.Provider, metrics.OutcomeDenied)
			http.Redirect(w, r, deniedRedirect, http.StatusFound)
			return
		}

		code := q.Get("code")
		if code == "" {
			h.metrics.RecordOAuthCallback(cfg.Provider, metrics.OutcomeInvalid)
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingCodeError())
			return
		}

		redirectURI := cfg.DefaultRedirectURI
		stateProvider := ""
		if st, err := auth.DecodeState(q.Get("state")); err != nil {
			slog.Debug("oauth state could not be decoded", slog.String("error", err.Error()))
		} else {
			if st.RedirectURI != "" {
				redirectURI = st.RedirectURI
			}
			stateProvider = st.Provider
		}

		provider := cfg.Provider
		if provider == "" {
			provider = stateProvider
		} else if stateProvider != "" && stateProvider != provider {
			slog.Warn("oauth state provider does not match callback route",
				slog.String("route_provider", provider),
				slog.String("state_provider", stateProvider),
			)
		}

		result, err := h.signIn(r.Context(), provider, code, redirectURI)
		if err != nil {
			slog.Error("oauth callback failed",
				slog.String("provider", provider),
				slog.String("error", err.Error()),
			)
			h.metrics.RecordOAuthCallback(provider, metrics.OutcomeFailed)
			http.Redirect(w, r, failedRedirect, http.StatusFound)
			return
		}

		http.SetCookie(w, cookie.SessionCookie(r, result.Token, cookie.OneYearSeconds))
		h.metrics.RecordOAuthCallback(provider, metrics.OutcomeSuccess)
		http.Redirect(w, r, cfg.SuccessRedirect, http.StatusFound)
	}
}

func (h *OAuthHandler) signIn(ctx context.Context, provider, code, redirectURI string) (*auth.SignInResult, error) {
	if provider == "" {
		return nil, &auth.UnknownProviderError{Provider: provider}
	}
	return h.service.SignIn(ctx, provider, code, redirectURI)
}
