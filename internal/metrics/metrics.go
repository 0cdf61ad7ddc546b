package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TracksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gpxregions_tracks_total",
		Help: "Total number of tracks resolved (cache hits excluded)",
	})
	TrackDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpxregions_track_duration_ms",
		Help:    "Track resolution duration in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	})
	PointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gpxregions_points_total",
		Help: "Resolved points by lookup tier (cache, neighbour, fallback, none)",
	}, []string{"tier"})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gpxregions_uploads_total",
		Help: "Track requests by route and HTTP status",
	}, []string{"route", "status"})
	ResultCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gpxregions_result_cache_total",
		Help: "Track result cache lookups by layer (lru, redis, db) and outcome (hit, miss)",
	}, []string{"layer", "outcome"})
	NeighbourPairsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gpxregions_neighbour_pairs_total",
		Help: "Region pairs evaluated by the adjacency builder by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(TracksTotal)
	prometheus.MustRegister(TrackDurationMs)
	prometheus.MustRegister(PointsTotal)
	prometheus.MustRegister(UploadsTotal)
	prometheus.MustRegister(ResultCacheTotal)
	prometheus.MustRegister(NeighbourPairsTotal)
}

// ObserveTrack：记录一次完整轨迹解析
// 背景：revgeo 不依赖指标包，分层统计由调用方在拿到结果后统一上报。
func ObserveTrack(ms float64, cache, neighbour, fallback, miss int) {
	TracksTotal.Inc()
	TrackDurationMs.Observe(ms)
	PointsTotal.WithLabelValues("cache").Add(float64(cache))
	PointsTotal.WithLabelValues("neighbour").Add(float64(neighbour))
	PointsTotal.WithLabelValues("fallback").Add(float64(fallback))
	PointsTotal.WithLabelValues("none").Add(float64(miss))
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }

// ObserveBuild：记录一次邻接构建的区域对结果分布
func ObserveBuild(pairs, touching, near, skippedEmpty, faults int) {
	apart := pairs - touching - near - skippedEmpty - faults
	if apart < 0 {
		apart = 0
	}
	NeighbourPairsTotal.WithLabelValues("touching").Add(float64(touching))
	NeighbourPairsTotal.WithLabelValues("near").Add(float64(near))
	NeighbourPairsTotal.WithLabelValues("apart").Add(float64(apart))
	NeighbourPairsTotal.WithLabelValues("skipped_empty").Add(float64(skippedEmpty))
	NeighbourPairsTotal.WithLabelValues("fault").Add(float64(faults))
}
