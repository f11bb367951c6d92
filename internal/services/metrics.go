package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	questionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docuchat_questions_total",
		Help: "处理的提问总数",
	}, []string{"status"})

	documentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuchat_documents_ingested_total",
		Help: "入库的文档总数",
	})

	chunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuchat_chunks_indexed_total",
		Help: "写入索引的切片总数",
	})

	askDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docuchat_ask_duration_seconds",
		Help:    "单次问答耗时",
		Buckets: prometheus.DefBuckets,
	})
)

// MetricsService 指标服务
type MetricsService struct{}

// NewMetricsService 创建指标服务
func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.Handler().ServeHTTP(w, r)
}
