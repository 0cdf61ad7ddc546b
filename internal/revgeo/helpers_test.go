package revgeo

import (
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// square 以 (lon, lat) 角点构造闭合矩形区域
func square(name string, x0, y0, x1, y1 float64) *Region {
	return NewRegion(name, orb.Polygon{orb.Ring{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}})
}

// countingGeometry 包装真实实现并统计 Contains 与 NearestDistanceM 调用
type countingGeometry struct {
	Geometry
	mu        sync.Mutex
	calls     []string
	distances atomic.Int64
}

func (c *countingGeometry) Contains(r *Region, pt Point) bool {
	c.mu.Lock()
	c.calls = append(c.calls, r.Name)
	c.mu.Unlock()
	return c.Geometry.Contains(r, pt)
}

func (c *countingGeometry) NearestDistanceM(a, b *Region) (float64, error) {
	c.distances.Add(1)
	return c.Geometry.NearestDistanceM(a, b)
}

func (c *countingGeometry) reset() {
	c.mu.Lock()
	c.calls = nil
	c.mu.Unlock()
}

// scriptedGeometry 按名称对返回预设结果，用于故障路径
type scriptedGeometry struct {
	OrbGeometry
	adjErr  map[[2]string]error
	distErr map[[2]string]error
	panicOn map[[2]string]bool
}

func pairKey(a, b *Region) [2]string { return [2]string{a.Name, b.Name} }

func (s *scriptedGeometry) Adjacent(a, b *Region) (bool, error) {
	if s.panicOn[pairKey(a, b)] {
		panic("corrupt ring")
	}
	if err := s.adjErr[pairKey(a, b)]; err != nil {
		return false, err
	}
	return s.OrbGeometry.Adjacent(a, b)
}

func (s *scriptedGeometry) NearestDistanceM(a, b *Region) (float64, error) {
	if err := s.distErr[pairKey(a, b)]; err != nil {
		return 0, err
	}
	return s.OrbGeometry.NearestDistanceM(a, b)
}
