// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OAuthコールバックの結果ラベル
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、ハンドラー、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordOAuthCallback(provider, outcome string)
	RecordSessionVerification(valid bool)
	RecordProviderRequest(provider, step string, duration time.Duration, err error)
	RecordRPCCall(procedure, code string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	oauthCallbacks   *prometheus.CounterVec
	sessionVerify    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	providerFailures *prometheus.CounterVec
	rpcCalls         *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		oauthCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nufounders_oauth_callbacks_total",
			Help: "プロバイダー・結果別のOAuthコールバック数",
		}, []string{"provider", "outcome"}),
		sessionVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nufounders_session_verifications_total",
			Help: "セッショントークン検証の結果別件数",
		}, []string{"result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nufounders_provider_request_duration_seconds",
			Help:    "OAuthプロバイダーへのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "step"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nufounders_provider_request_failures_total",
			Help: "OAuthプロバイダーへのリクエスト失敗数",
		}, []string{"provider", "step"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nufounders_rpc_calls_total",
			Help: "手続き・結果コード別のRPC呼び出し数",
		}, []string{"procedure", "code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nufounders_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.oauthCallbacks,
		c.sessionVerify,
		c.providerLatency,
		c.providerFailures,
		c.rpcCalls,
		c.httpStatus,
	)

	return c
}

// RecordOAuthCallback はOAuthコールバックの結果を記録する。
func (c *Collector) RecordOAuthCallback(provider, outcome string) {
	if provider == "" {
		provider = "unknown"
	}
	c.oauthCallbacks.WithLabelValues(provider, outcome).Inc()
}

// RecordSessionVerification はセッション検証の結果を記録する。
func (c *Collector) RecordSessionVerification(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	c.sessionVerify.WithLabelValues(result).Inc()
}

// RecordProviderRequest はプロバイダーへのリクエストのレイテンシと失敗を記録する。
// stepは"token", "userinfo", "emails"のいずれか。
func (c *Collector) RecordProviderRequest(provider, step string, duration time.Duration, err error) {
	c.providerLatency.WithLabelValues(provider, step).Observe(duration.Seconds())
	if err != nil {
		c.providerFailures.WithLabelValues(provider, step).Inc()
	}
}

// RecordRPCCall はRPC呼び出しを記録する。成功時のcodeは"OK"。
func (c *Collector) RecordRPCCall(procedure, code string) {
	c.rpcCalls.WithLabelValues(procedure, code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordOAuthCallback(string, string)                         {}
func (Nop) RecordSessionVerification(bool)                             {}
func (Nop) RecordProviderRequest(string, string, time.Duration, error) {}
func (Nop) RecordRPCCall(string, string)                               {}
func (Nop) RecordHTTPStatus(int)                                       {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
