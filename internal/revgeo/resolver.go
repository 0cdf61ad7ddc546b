package revgeo

// Tier 标记一次解析命中的层级
type Tier int

const (
	TierNone Tier = iota
	TierCache
	TierNeighbour
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierCache:
		return "cache"
	case TierNeighbour:
		return "neighbour"
	case TierFallback:
		return "fallback"
	}
	return "none"
}

// TierStats 按层级统计命中次数
type TierStats struct {
	Cache     int `json:"cache"`
	Neighbour int `json:"neighbour"`
	Fallback  int `json:"fallback"`
	Miss      int `json:"miss"`
}

func (s *TierStats) add(t Tier) {
	switch t {
	case TierCache:
		s.Cache++
	case TierNeighbour:
		s.Neighbour++
	case TierFallback:
		s.Fallback++
	default:
		s.Miss++
	}
}

// 文档注释：逐点解析器（单条轨迹独占）
// 背景：相邻轨迹点极少跨越边界，依次尝试上一区域、其邻居、省/市镇兜底扫描。
// 约束：必须按轨迹顺序调用；唯一可变状态为 current；不做任何 I/O。
type Resolver struct {
	snap    *Snapshot
	geo     Geometry
	current string
	last    Tier
	stats   TierStats
}

// Resolve 返回点所在市镇名，未命中返回空串且保持 current 不变
func (r *Resolver) Resolve(pt Point) string {
	name, tier := r.lookup(pt)
	r.last = tier
	r.stats.add(tier)
	if name != "" {
		r.current = name
	}
	return name
}

func (r *Resolver) lookup(pt Point) (string, Tier) {
	if r.current != "" {
		if reg, ok := r.snap.Regions[r.current]; ok && r.geo.Contains(reg, pt) {
			return r.current, TierCache
		}
		for _, n := range r.snap.Adjacency.Neighbours(r.current) {
			if reg, ok := r.snap.Regions[n]; ok && r.geo.Contains(reg, pt) {
				return n, TierNeighbour
			}
		}
	}
	if name := r.fallback(pt); name != "" {
		return name, TierFallback
	}
	return "", TierNone
}

// 兜底：只进入第一个命中的省
func (r *Resolver) fallback(pt Point) string {
	idx := r.snap.Index
	if idx == nil {
		return ""
	}
	for _, p := range AllProvinces() {
		prov, ok := idx.Province(p)
		if !ok || !r.geo.Contains(prov, pt) {
			continue
		}
		for _, m := range idx.RegionsIn(p) {
			if r.geo.Contains(m, pt) {
				return m.Name
			}
		}
		return ""
	}
	return ""
}

func (r *Resolver) Current() string { return r.current }

// LastTier 返回最近一次 Resolve 的命中层级
func (r *Resolver) LastTier() Tier { return r.last }

func (r *Resolver) Stats() TierStats { return r.stats }
