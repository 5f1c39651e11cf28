// Package rpc はHTTPリクエストをRPCプロシージャ呼び出しへ橋渡しする。
// リクエストごとにセッションを検証し、ユーザー（未認証ならnil）をContextに載せる。
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nufounders/nufounders/internal/auth"
	"github.com/nufounders/nufounders/internal/cookie"
	"github.com/nufounders/nufounders/internal/middleware"
	"github.com/nufounders/nufounders/internal/model"
)

// Authenticator はリクエストのセッションからユーザーを解決する。
type Authenticator interface {
	Authenticate(ctx context.Context, req auth.SessionRequest) (*model.User, error)
}

// Request はプロシージャから参照できるリクエスト情報。
type Request struct {
	Header  http.Header
	Cookies map[string]string

	raw *http.Request
}

// newRequest はHTTPリクエストからRequestを組み立てる。
// 同名のCookieが複数ある場合は先に現れたものを採用する。
func newRequest(r *http.Request) *Request {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, exists := cookies[c.Name]; !exists {
			cookies[c.Name] = c.Value
		}
	}
	return &Request{
		Header:  r.Header,
		Cookies: cookies,
		raw:     r,
	}
}

// CookieOptions はリクエストの伝送経路に応じたセッションCookie属性を返す。
func (r *Request) CookieOptions(maxAge int) CookieOptions {
	return CookieOptions{Attributes: cookie.AttributesFor(r.raw), MaxAge: maxAge}
}

// CookieOptions はResponse.Cookieに渡すCookie属性。
type CookieOptions struct {
	cookie.Attributes
	MaxAge int
}

// Response はプロシージャからレスポンスヘッダーを操作するためのハンドル。
type Response struct {
	w http.ResponseWriter
}

// SetHeader はレスポンスヘッダーを設定する。
func (r *Response) SetHeader(name, value string) {
	r.w.Header().Set(name, value)
}

// Cookie はSet-Cookieヘッダーを1つ追加する。
func (r *Response) Cookie(name, value string, opts CookieOptions) {
	c := opts.Attributes.New(name, value, opts.MaxAge)
	line := c.String()
	if line == "" {
		slog.Warn("rpc: dropping invalid cookie", slog.String("name", name))
		return
	}
	r.w.Header().Add("Set-Cookie", line)
}

// ClearCookie は同じ属性で値を空にし、即時失効させるSet-Cookieヘッダーを追加する。
func (r *Response) ClearCookie(name string, opts CookieOptions) {
	opts.MaxAge = -1
	r.Cookie(name, "", opts)
}

// Context はプロシージャ呼び出し1回分のコンテキスト。
// Userは認証済みの場合のみ非nil。
type Context struct {
	Req  *Request
	Res  *Response
	User *model.User
}

// NewContext はHTTPリクエストからContextを生成する。
// 認証の失敗はエラーとして伝播させず、Userをnilにしてログに残す。
func NewContext(r *http.Request, w http.ResponseWriter, a Authenticator) *Context {
	c := &Context{
		Req: newRequest(r),
		Res: &Response{w: w},
	}
	if a == nil {
		return c
	}

	user, err := a.Authenticate(r.Context(), auth.SessionRequest{
		Header:  c.Req.Header,
		Cookies: c.Req.Cookies,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			slog.Debug("rpc: request is unauthenticated", slog.String("reason", apiErr.Message))
		} else {
			slog.Warn("rpc: authentication failed", slog.String("error", err.Error()))
		}
		return c
	}

	c.User = user
	if user != nil {
		middleware.SetOpenID(r.Context(), user.OpenID)
	}
	return c
}
