package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダー名。
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength は上流から受け取るリクエストIDの最大長。
const maxRequestIDLength = 128

type contextKey string

const requestInfoContextKey contextKey = "request_info"

// requestInfo はリクエスト単位の可変情報。
// 下流のハンドラーが認証済みopenIdを書き込み、ロギングミドルウェアが読み取る。
type requestInfo struct {
	mu        sync.Mutex
	requestID string
	openID    string
}

// NewRequestContextMiddleware はリクエストIDを採番し、コンテキストに格納するミドルウェアを返す。
// 上流からX-Request-IDが渡された場合はそれを引き継ぐ。
func NewRequestContextMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestInfoContextKey, &requestInfo{requestID: id})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext はコンテキストからリクエストIDを取得する。
func RequestIDFromContext(ctx context.Context) string {
	info, ok := ctx.Value(requestInfoContextKey).(*requestInfo)
	if !ok {
		return ""
	}
	return info.requestID
}

// SetOpenID は認証済みユーザーのopenIdをリクエストコンテキストに記録する。
// NewRequestContextMiddlewareを経由していない場合は何もしない。
func SetOpenID(ctx context.Context, openID string) {
	info, ok := ctx.Value(requestInfoContextKey).(*requestInfo)
	if !ok {
		return
	}
	info.mu.Lock()
	info.openID = openID
	info.mu.Unlock()
}

// OpenIDFromContext はSetOpenIDで記録されたopenIdを返す。未認証の場合は空文字列。
func OpenIDFromContext(ctx context.Context) string {
	info, ok := ctx.Value(requestInfoContextKey).(*requestInfo)
	if !ok {
		return ""
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.openID
}
