// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordContractCreated()
	RecordContractSent(recipientCount int)
	RecordContractCompleted()
	RecordContractExpired(count int)
	RecordSignature(method string)
	RecordAuditEntry(action string)
	RecordHTTPStatus(statusCode int)
	RecordSigningLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	contractsCreated   prometheus.Counter
	contractsSent      prometheus.Counter
	recipientsInvited  prometheus.Counter
	contractsCompleted prometheus.Counter
	contractsExpired   prometheus.Counter
	signatures         *prometheus.CounterVec
	auditEntries       *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	signingLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		contractsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactman_contracts_created_total",
			Help: "作成された契約書の合計数",
		}),
		contractsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactman_contracts_sent_total",
			Help: "送信された契約書の合計数",
		}),
		recipientsInvited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactman_recipients_invited_total",
			Help: "招待された受信者の合計数",
		}),
		contractsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactman_contracts_completed_total",
			Help: "全員署名により完了した契約書の合計数",
		}),
		contractsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pactman_contracts_expired_total",
			Help: "期限切れになった契約書の合計数",
		}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactman_signatures_recorded_total",
			Help: "記録された署名の方式別合計数",
		}, []string{"method"}),
		auditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactman_audit_entries_total",
			Help: "追記された監査エントリのアクション別合計数",
		}, []string{"action"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		signingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pactman_signing_latency_seconds",
			Help:    "署名送信処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.contractsCreated,
		c.contractsSent,
		c.recipientsInvited,
		c.contractsCompleted,
		c.contractsExpired,
		c.signatures,
		c.auditEntries,
		c.httpStatus,
		c.signingLatency,
	)

	return c
}

// RecordContractCreated は契約書作成を記録する。
func (c *Collector) RecordContractCreated() {
	c.contractsCreated.Inc()
}

// RecordContractSent は契約書送信を記録する。
func (c *Collector) RecordContractSent(recipientCount int) {
	c.contractsSent.Inc()
	c.recipientsInvited.Add(float64(recipientCount))
}

// RecordContractCompleted は契約書完了を記録する。
func (c *Collector) RecordContractCompleted() {
	c.contractsCompleted.Inc()
}

// RecordContractExpired は期限切れ遷移した契約書数を記録する。
func (c *Collector) RecordContractExpired(count int) {
	c.contractsExpired.Add(float64(count))
}

// RecordSignature は署名の記録を方式別に記録する。
func (c *Collector) RecordSignature(method string) {
	c.signatures.WithLabelValues(method).Inc()
}

// RecordAuditEntry は監査エントリの追記をアクション別に記録する。
func (c *Collector) RecordAuditEntry(action string) {
	c.auditEntries.WithLabelValues(action).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSigningLatency は署名送信処理のレイテンシを記録する。
func (c *Collector) RecordSigningLatency(duration time.Duration) {
	c.signingLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
