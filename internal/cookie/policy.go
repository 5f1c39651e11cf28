// Package cookie はセッションCookieの属性決定を提供する。
package cookie

import (
	"net/http"
	"strings"
)

// SessionName はセッションCookieの名前。RPC層とOAuthコールバックで共有する。
const SessionName = "app_session_id"

// OneYearSeconds はセッションCookieのMax-Age（1年、秒）。
const OneYearSeconds = 365 * 24 * 60 * 60

// Attributes はリクエストの伝送経路から決まるCookie属性。
type Attributes struct {
	HTTPOnly bool
	Path     string
	SameSite http.SameSite
	Secure   bool
}

// AttributesFor はリクエストに応じたCookie属性を返す。
// TLSで直接受けた場合、またはX-Forwarded-Protoのいずれかの値がhttpsの場合にSecureとする。
// OAuthのリダイレクトとフレーム埋め込みでオリジンをまたぐため、SameSiteは常にNone。
func AttributesFor(r *http.Request) Attributes {
	return Attributes{
		HTTPOnly: true,
		Path:     "/",
		SameSite: http.SameSiteNoneMode,
		Secure:   IsSecureRequest(r),
	}
}

// IsSecureRequest はリクエストがTLS経由で届いたかを判定する。
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}

	forwarded := r.Header.Values("X-Forwarded-Proto")
	for _, v := range forwarded {
		for _, proto := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(proto), "https") {
				return true
			}
		}
	}
	return false
}

// New は属性を適用したCookieを生成する。
func (a Attributes) New(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     a.Path,
		MaxAge:   maxAge,
		HttpOnly: a.HTTPOnly,
		Secure:   a.Secure,
		SameSite: a.SameSite,
	}
}

// SessionCookie はセッショントークンを保持するCookieを生成する。
func SessionCookie(r *http.Request, token string, maxAge int) *http.Cookie {
	return AttributesFor(r).New(SessionName, token, maxAge)
}

// ClearSessionCookie はセッションCookieを削除するためのCookieを生成する。
func ClearSessionCookie(r *http.Request) *http.Cookie {
	return AttributesFor(r).New(SessionName, "", -1)
}
