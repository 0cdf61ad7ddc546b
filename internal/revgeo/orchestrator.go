package revgeo

import (
	"sort"
	"time"
)

// 文档注释：轨迹解析编排器（上一区域 → 邻居 → 省/市镇兜底）
// 背景：CLI 与 HTTP 前端共用的入口；快照只读，多条轨迹可并发解析，每条轨迹独占一个 Resolver。
// 约束：点序列必须保持原始顺序。
type Orchestrator struct {
	snap *Snapshot
	geo  Geometry
}

func NewOrchestrator(snap *Snapshot, g Geometry) *Orchestrator {
	if g == nil {
		g = NewOrbGeometry()
	}
	return &Orchestrator{snap: snap, geo: g}
}

func (o *Orchestrator) Snapshot() *Snapshot { return o.snap }

func (o *Orchestrator) NewResolver() *Resolver {
	return &Resolver{snap: o.snap, geo: o.geo}
}

// TrackResult：一条轨迹经过的去重市镇集合（字典序）及统计
type TrackResult struct {
	Regions    []string      `json:"regions"`
	Points     int           `json:"points"`
	Unresolved int           `json:"unresolved"`
	Stats      TierStats     `json:"stats"`
	Elapsed    time.Duration `json:"-"`
}

// ResolveTrack 依次解析全部点；未命中点只计数，不视为错误
func (o *Orchestrator) ResolveTrack(points []Point) TrackResult {
	start := time.Now()
	res := o.NewResolver()
	seen := make(map[string]struct{})
	out := TrackResult{Regions: []string{}}
	for _, pt := range points {
		name := res.Resolve(pt)
		out.Points++
		if name == "" {
			out.Unresolved++
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out.Regions = append(out.Regions, name)
		}
	}
	sort.Strings(out.Regions)
	out.Stats = res.Stats()
	out.Elapsed = time.Since(start)
	return out
}
