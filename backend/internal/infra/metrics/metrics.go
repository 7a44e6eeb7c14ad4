package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registerOnce         sync.Once
	httpRequests         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	updatesChecks        *prometheus.CounterVec
	releaseNotesRequests *prometheus.CounterVec
	releaseWrites        *prometheus.CounterVec
)

const namespaceMetrics = "iqupdate"

// MustRegister 初始化 Prometheus 指标并注册 Go 运行时采样器，需在应用启动阶段调用一次。
func MustRegister() {
	registerOnce.Do(func() {
		httpRequests = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "http",
					Name:      "requests_total",
					Help:      "HTTP 请求次数，按方法、路由模板与状态码统计。",
				},
				[]string{"method", "route", "status"},
			),
		)
		httpRequestDuration = registerHistogramVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespaceMetrics,
					Subsystem: "http",
					Name:      "request_duration_seconds",
					Help:      "HTTP 请求耗时，按方法与路由模板区分。",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		)
		updatesChecks = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Name:      "updates_checks_total",
					Help:      "客户端查询更新的次数，mode 为 has_updates/list，result 为是否有新版本。",
				},
				[]string{"mode", "result"},
			),
		)
		releaseNotesRequests = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Name:      "release_notes_requests_total",
					Help:      "读取更新说明的次数，按解析后的语言以及是否命中内容统计。",
				},
				[]string{"language", "found"},
			),
		)
		releaseWrites = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Name:      "release_writes_total",
					Help:      "后台对补丁包的写操作，按操作类型与结果统计。",
				},
				[]string{"operation", "result"},
			),
		)

		registerRuntimeCollectors()
	})
}

// ObserveHTTP 记录一次 HTTP 请求。route 使用 gin 的路由模板，避免版本号等路径参数撑爆标签基数。
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if httpRequests == nil || httpRequestDuration == nil {
		return
	}
	routeLabel := normalizeLabel(route, "unmatched")
	httpRequests.WithLabelValues(method, routeLabel, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, routeLabel).Observe(duration.Seconds())
}

// RecordUpdatesCheck 记录一次更新查询。
func RecordUpdatesCheck(mode string, hasUpdates bool) {
	if updatesChecks == nil {
		return
	}
	updatesChecks.WithLabelValues(normalizeLabel(mode, "unknown"), strconv.FormatBool(hasUpdates)).Inc()
}

// RecordReleaseNotes 记录一次更新说明读取。
func RecordReleaseNotes(language string, found bool) {
	if releaseNotesRequests == nil {
		return
	}
	releaseNotesRequests.WithLabelValues(normalizeLabel(language, "unknown"), strconv.FormatBool(found)).Inc()
}

// RecordReleaseWrite 记录补丁包写操作结果。
func RecordReleaseWrite(operation, result string) {
	if releaseWrites == nil {
		return
	}
	releaseWrites.WithLabelValues(normalizeLabel(operation, "unknown"), normalizeLabel(result, "unknown")).Inc()
}

func normalizeLabel(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func registerCounterVec(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		if existing := alreadyRegisteredCounterVec(err); existing != nil {
			return existing
		}
		panic(err)
	}
	return vec
}

func registerHistogramVec(vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(vec); err != nil {
		if existing := alreadyRegisteredHistogramVec(err); existing != nil {
			return existing
		}
		panic(err)
	}
	return vec
}

func registerRuntimeCollectors() {
	for _, collector := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := prometheus.Register(collector); err != nil && !isAlreadyRegistered(err) {
			panic(err)
		}
	}
}

func alreadyRegisteredCounterVec(err error) *prometheus.CounterVec {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing
		}
	}
	return nil
}

func alreadyRegisteredHistogramVec(err error) *prometheus.HistogramVec {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
			return existing
		}
	}
	return nil
}

func isAlreadyRegistered(err error) bool {
	_, ok := err.(prometheus.AlreadyRegisteredError)
	return ok
}
