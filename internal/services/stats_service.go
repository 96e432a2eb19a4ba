// internal/services/stats_service.go
package services

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Corphon/PersonaMarket/internal/utils"
)

// ArtisanCounter 统计数据中的工匠数量来源，可为空
type ArtisanCounter interface {
	CountArtisans(ctx context.Context) (int, error)
}

// ProvenanceStats 生成与翻译的来源统计
type ProvenanceStats struct {
	Generative   int64   `json:"generative"`
	Fallback     int64   `json:"template_fallback"`
	FallbackRate float64 `json:"fallback_rate"`
}

// UsageStats /api/stats 返回的统计
type UsageStats struct {
	Generation   ProvenanceStats             `json:"generation"`
	Translation  ProvenanceStats             `json:"translation"`
	APIRequests  int64                       `json:"api_requests"`
	Latency      map[string]map[string]int64 `json:"latency_ms"`
	Artisans     int                         `json:"artisans"`
	Uptime       string                      `json:"uptime"`
	StartedAt    time.Time                   `json:"started_at"`
	StartedHuman string                      `json:"started"`
	Counters     map[string]int64            `json:"counters,omitempty"`
}

// StatsService 从指标收集器汇总统计，不持有可变状态
type StatsService struct {
	metrics   *utils.MetricsCollector
	artisans  ArtisanCounter
	startedAt time.Time
	now       func() time.Time
}

// NewStatsService 创建统计服务；metrics 为 nil 时使用进程级收集器
func NewStatsService(metrics *utils.MetricsCollector, artisans ArtisanCounter) *StatsService {
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	return &StatsService{
		metrics:   metrics,
		artisans:  artisans,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// GetStats 汇总当前统计；verbose 时附带全部计数器
func (s *StatsService) GetStats(ctx context.Context, verbose bool) UsageStats {
	snap := s.metrics.GetMetrics()
	counters := snap.Counters

	stats := UsageStats{
		Generation:   provenance(counters[utils.MetricGenerationGenerative], counters[utils.MetricGenerationFallback]),
		Translation:  provenance(counters[utils.MetricTranslationOK], counters[utils.MetricTranslationFallback]),
		APIRequests:  counters[utils.MetricAPIRequests],
		Latency:      map[string]map[string]int64{},
		StartedAt:    s.startedAt,
		StartedHuman: humanize.RelTime(s.startedAt, s.now(), "ago", "from now"),
		Uptime:       s.now().Sub(s.startedAt).Truncate(time.Second).String(),
	}
	for _, name := range []string{utils.MetricLLMLatency, utils.MetricAPILatency} {
		if h, ok := snap.Histograms[name]; ok {
			stats.Latency[name] = h
		}
	}

	if s.artisans != nil {
		if n, err := s.artisans.CountArtisans(ctx); err == nil {
			stats.Artisans = n
		}
	}
	if verbose {
		stats.Counters = counters
	}
	return stats
}

func provenance(ok, fallback int64) ProvenanceStats {
	ps := ProvenanceStats{Generative: ok, Fallback: fallback}
	if total := ok + fallback; total > 0 {
		ps.FallbackRate = float64(fallback) / float64(total)
	}
	return ps
}
