package errors

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 包级指标只注册一次，避免重复注册panic
var errorCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docuchat_errors_total",
		Help: "Total number of errors by code and operation",
	},
	[]string{"code", "operation"},
)

// RecordError 记录错误指标，operation为管道操作名（ask/ingest）
func RecordError(err error, operation string) {
	if err == nil {
		return
	}
	appErr := GetAppError(err)
	errorCounter.WithLabelValues(string(appErr.Code), operation).Inc()
}
