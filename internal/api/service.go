package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gpx-regions/internal/gpx"
	"gpx-regions/internal/logger"
	"gpx-regions/internal/metrics"
	"gpx-regions/internal/revgeo"
	"gpx-regions/internal/store"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotGPX     = errors.New("only .gpx files are supported")
	ErrInvalidGPX = errors.New("invalid gpx document")
)

// TrackRecorder：轨迹结果持久化（store.Store 实现）；为空时跳过
type TrackRecorder interface {
	SaveTrackResult(ctx context.Context, digest string, r revgeo.TrackResult) error
}

// TrackLoader：可选能力，Recorder 同时实现时作为 Redis 之后的第三层缓存
type TrackLoader interface {
	LoadTrackResult(ctx context.Context, digest string) (revgeo.TrackResult, error)
}

// Options：服务可选依赖
type Options struct {
	Redis    *redis.Client
	LRU      *revgeo.LRU
	Recorder TrackRecorder
	// Redis 结果缓存 TTL，<=0 时取 1 小时
	CacheTTL time.Duration
}

// 文档注释：轨迹解析服务
// 背景：HTTP 与命令行共用；同一文件内容只解析一次，结果依次缓存在进程 LRU 与 Redis。
// 约束：缓存键为 GPX 原始字节的 SHA-256，与文件名无关；缓存失败不影响主流程。
type Service struct {
	orch *revgeo.Orchestrator
	rc   *redis.Client
	lru  *revgeo.LRU
	rec  TrackRecorder
	ttl  time.Duration
}

func NewService(o *revgeo.Orchestrator, opts Options) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{orch: o, rc: opts.Redis, lru: opts.LRU, rec: opts.Recorder, ttl: ttl}
}

func (s *Service) Orchestrator() *revgeo.Orchestrator { return s.orch }

// Digest：缓存与持久化共用的内容摘要
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func cacheKey(digest string) string { return "track:" + digest }

// ResolveFile：按路径解析；先判断文件存在再判断扩展名
// 约束：只有“不存在”与目录算 ErrNotFound，其余 stat 错误原样上抛（HTTP 层映射为 500）。
func (s *Service) ResolveFile(ctx context.Context, path string) (revgeo.TrackResult, bool, error) {
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return revgeo.TrackResult{}, false, fmt.Errorf("%w: %s", gpx.ErrNotFound, path)
	case err != nil:
		return revgeo.TrackResult{}, false, fmt.Errorf("stat %s: %w", path, err)
	case fi.IsDir():
		return revgeo.TrackResult{}, false, fmt.Errorf("%w: %s is a directory", gpx.ErrNotFound, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".gpx") {
		return revgeo.TrackResult{}, false, ErrNotGPX
	}
	b, err := gpx.ReadFile(path)
	if err != nil {
		return revgeo.TrackResult{}, false, err
	}
	return s.ResolveBytes(ctx, b)
}

// 文档注释：解析 GPX 字节
// 返回：结果、是否命中缓存、错误（GPX 解析失败为 ErrInvalidGPX）。
func (s *Service) ResolveBytes(ctx context.Context, b []byte) (revgeo.TrackResult, bool, error) {
	digest := Digest(b)
	if res, ok := s.cached(ctx, digest); ok {
		return res, true, nil
	}
	points, err := gpx.ParseBytes(b)
	if err != nil {
		return revgeo.TrackResult{}, false, fmt.Errorf("%w: %v", ErrInvalidGPX, err)
	}
	res := s.orch.ResolveTrack(points)
	metrics.ObserveTrack(float64(res.Elapsed.Milliseconds()), res.Stats.Cache, res.Stats.Neighbour, res.Stats.Fallback, res.Stats.Miss)
	logger.L().Info("processed",
		"digest", digest[:12],
		"points", res.Points,
		"regions", len(res.Regions),
		"unresolved", res.Unresolved,
		"duration_ms", res.Elapsed.Milliseconds(),
	)
	s.remember(ctx, digest, res)
	return res, false, nil
}

func (s *Service) cached(ctx context.Context, digest string) (revgeo.TrackResult, bool) {
	if res, ok := s.lru.Get(digest); ok {
		metrics.ResultCacheTotal.WithLabelValues("lru", "hit").Inc()
		return res, true
	}
	metrics.ResultCacheTotal.WithLabelValues("lru", "miss").Inc()
	if res, ok := s.cachedRedis(ctx, digest); ok {
		s.lru.Set(digest, res)
		return res, true
	}
	return s.cachedDB(ctx, digest)
}

func (s *Service) cachedRedis(ctx context.Context, digest string) (revgeo.TrackResult, bool) {
	if s.rc == nil {
		return revgeo.TrackResult{}, false
	}
	v, err := s.rc.Get(ctx, cacheKey(digest)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("redis_get_error", "err", err)
		}
		metrics.ResultCacheTotal.WithLabelValues("redis", "miss").Inc()
		return revgeo.TrackResult{}, false
	}
	var res revgeo.TrackResult
	if err := json.Unmarshal([]byte(v), &res); err != nil {
		logger.L().Warn("redis_decode_error", "err", err)
		return revgeo.TrackResult{}, false
	}
	if res.Regions == nil {
		res.Regions = []string{}
	}
	metrics.ResultCacheTotal.WithLabelValues("redis", "hit").Inc()
	return res, true
}

// cachedDB：库中结果回填 LRU 与 Redis；分层统计未入库，命中时为零值
func (s *Service) cachedDB(ctx context.Context, digest string) (revgeo.TrackResult, bool) {
	ld, ok := s.rec.(TrackLoader)
	if !ok {
		return revgeo.TrackResult{}, false
	}
	res, err := ld.LoadTrackResult(ctx, digest)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.L().Warn("db_track_load_error", "err", err)
		}
		metrics.ResultCacheTotal.WithLabelValues("db", "miss").Inc()
		return revgeo.TrackResult{}, false
	}
	metrics.ResultCacheTotal.WithLabelValues("db", "hit").Inc()
	s.lru.Set(digest, res)
	s.setRedis(ctx, digest, res)
	return res, true
}

func (s *Service) setRedis(ctx context.Context, digest string, res revgeo.TrackResult) {
	if s.rc == nil {
		return
	}
	if b, err := json.Marshal(res); err == nil {
		if err := s.rc.Set(ctx, cacheKey(digest), b, s.ttl).Err(); err != nil {
			logger.L().Warn("redis_set_error", "err", err)
		}
	}
}

func (s *Service) remember(ctx context.Context, digest string, res revgeo.TrackResult) {
	s.lru.Set(digest, res)
	s.setRedis(ctx, digest, res)
	if s.rec != nil {
		if err := s.rec.SaveTrackResult(ctx, digest, res); err != nil {
			logger.L().Warn("db_track_save_error", "err", err)
		}
	}
}
