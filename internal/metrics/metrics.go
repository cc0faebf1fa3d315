// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector はPrometheusメトリクスを収集する実装。
// 各サービスはCollectorの部分集合インターフェースに依存する。
type Collector struct {
	classifierRedirects   *prometheus.CounterVec
	billingEvents         *prometheus.CounterVec
	verificationIssued    prometheus.Counter
	verificationConfirmed prometheus.Counter
	verificationFailed    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		classifierRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unipress_classifier_redirects_total",
			Help: "アクセス分類によるリダイレクトのルール別合計数",
		}, []string{"rule"}),
		billingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unipress_billing_events_total",
			Help: "課金Webhookイベントの種別・結果別合計数",
		}, []string{"event_type", "result"}),
		verificationIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unipress_verification_issued_total",
			Help: "発行された認証トークンの合計数",
		}),
		verificationConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unipress_verification_confirmed_total",
			Help: "使用された認証トークンの合計数",
		}),
		verificationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unipress_verification_failed_total",
			Help: "認証失敗の理由別合計数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.classifierRedirects,
		c.billingEvents,
		c.verificationIssued,
		c.verificationConfirmed,
		c.verificationFailed,
	)

	return c
}

// RecordClassifierRedirect はアクセス分類によるリダイレクトを記録する。
func (c *Collector) RecordClassifierRedirect(rule string) {
	c.classifierRedirects.WithLabelValues(rule).Inc()
}

// RecordBillingEvent は課金イベントの処理結果を記録する。
func (c *Collector) RecordBillingEvent(eventType, result string) {
	c.billingEvents.WithLabelValues(eventType, result).Inc()
}

// RecordVerificationIssued は認証トークンの発行を記録する。
func (c *Collector) RecordVerificationIssued() {
	c.verificationIssued.Inc()
}

// RecordVerificationConfirmed は認証トークンの使用を記録する。
func (c *Collector) RecordVerificationConfirmed() {
	c.verificationConfirmed.Inc()
}

// RecordVerificationFailed は認証失敗を理由付きで記録する。
func (c *Collector) RecordVerificationFailed(reason string) {
	c.verificationFailed.WithLabelValues(reason).Inc()
}
