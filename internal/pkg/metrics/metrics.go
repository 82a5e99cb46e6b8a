package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 新規発行したクライアントトークン数
	ClientTokensIssued prometheus.Counter

	// 現在保存されているコンサート数
	ConcertsStored prometheus.Gauge

	// コンサートキャッシュの参照結果（result: hit, miss, error）
	ConcertCacheLookups *prometheus.CounterVec

	// 画像ダウンロード数（status: success, failed）
	ImageDownloadsTotal *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ClientTokensIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "client_tokens_issued_total",
				Help: "Total number of client identity cookies issued to first-time visitors",
			},
		),
		ConcertsStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "concerts_stored",
				Help: "Approximate number of concerts currently stored",
			},
		),
		ConcertCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concert_cache_lookups_total",
				Help: "Concert cache lookups by result",
			},
			[]string{"result"},
		),
		ImageDownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_downloads_total",
				Help: "Total number of image downloads from object storage",
			},
			[]string{"status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ClientTokensIssued,
		m.ConcertsStored,
		m.ConcertCacheLookups,
		m.ImageDownloadsTotal,
	)

	return m
}

// NewNop はどのレジストリにも登録しないMetricsを返す（テスト・CLI用）
func NewNop() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
