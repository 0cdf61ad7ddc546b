package revgeo

import (
	"fmt"
	"math"

	"gpx-regions/internal/logger"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/tidwall/geodesic"
)

// 文档注释：几何能力接口
// 背景：构建器与解析器只通过该接口访问几何判定，测试中可替换为按名称返回结果的替身。
// 约束：Contains 永不返回错误，内部故障按未命中处理；其余判定的故障以 ErrGeometryFault 返回，由调用方决定吞掉。
// BoundDistanceM 必须不大于 NearestDistanceM，构建器据此跳过远距离区域对的精确计算。
type Geometry interface {
	Contains(r *Region, pt Point) bool
	Adjacent(a, b *Region) (bool, error)
	NearestDistanceM(a, b *Region) (float64, error)
	BoundDistanceM(a, b *Region) float64
	Empty(r *Region) bool
}

// OrbGeometry：拓扑判定交给 simplefeatures，距离在 WGS84 椭球上计算
type OrbGeometry struct{}

func NewOrbGeometry() *OrbGeometry { return &OrbGeometry{} }

func (g *OrbGeometry) Empty(r *Region) bool {
	if r == nil {
		return true
	}
	for _, poly := range r.Shape {
		if len(poly) > 0 && len(poly[0]) >= 3 {
			return false
		}
	}
	return true
}

// 文档注释：点是否落在区域内（含边界）
// 约束：共享边界上的点同时属于两侧区域；几何无法转换时退回 orb 的射线法，此时边界点不保证命中。
func (g *OrbGeometry) Contains(r *Region, pt Point) (ok bool) {
	if g.Empty(r) {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.L().Warn("geometry_contains_fault", "region", r.Name, "err", rec)
			ok = false
		}
	}()
	p := pt.orb()
	if !r.Bound.Contains(p) {
		return false
	}
	s, err := r.solid()
	if err != nil {
		return planar.MultiPolygonContains(r.Shape, p)
	}
	return geom.Intersects(s, geom.XY{X: p[0], Y: p[1]}.AsPoint().AsGeometry())
}

// 文档注释：邻接判定
// 背景：接触或相交都算邻接，但纯包含（飞地）不算；相同几何互相包含，因此也不算。
// 约束：Within 按 DE-9IM 语义求值，缺口、凹口与共线边界都由 simplefeatures 处理。
func (g *OrbGeometry) Adjacent(a, b *Region) (ok bool, err error) {
	if g.Empty(a) || g.Empty(b) {
		return false, nil
	}
	defer recoverFault(&err, "adjacent", a, b)
	if !a.Bound.Intersects(b.Bound) {
		return false, nil
	}
	sa, sb, err := solids(a, b)
	if err != nil {
		return false, err
	}
	if !geom.Intersects(sa, sb) {
		return false, nil
	}
	in, err := geom.Within(sa, sb)
	if err != nil {
		return false, fault("within", a, b, err)
	}
	if in {
		return false, nil
	}
	in, err = geom.Within(sb, sa)
	if err != nil {
		return false, fault("within", b, a, err)
	}
	return !in, nil
}

// 文档注释：最近边界点间的椭球测地距离（米）
// 背景：最近点对在经纬度平面上求取，再用测地线反算距离，避免高纬度下的平面畸变。
// 约束：相交（含包含）时距离为 0；空几何返回 ErrEmptyGeometry。
func (g *OrbGeometry) NearestDistanceM(a, b *Region) (d float64, err error) {
	if g.Empty(a) || g.Empty(b) {
		return 0, ErrEmptyGeometry
	}
	defer recoverFault(&err, "distance", a, b)
	if a.Bound.Intersects(b.Bound) {
		sa, sb, err := solids(a, b)
		if err != nil {
			return 0, err
		}
		if geom.Intersects(sa, sb) {
			return 0, nil
		}
	}
	p1, p2 := nearestPoints(a.Shape, b.Shape)
	var s12 float64
	geodesic.WGS84.Inverse(p1[1], p1[0], p2[1], p2[0], &s12, nil, nil)
	return s12, nil
}

// BoundDistanceM：两外包框之间测地距离的下界（米），框相交或任一方为空时为 0
func (g *OrbGeometry) BoundDistanceM(a, b *Region) float64 {
	if g.Empty(a) || g.Empty(b) {
		return 0
	}
	return boundGapM(a.Bound, b.Bound)
}

// 文档注释：外包框间距
// 背景：纬度方向取两纬线之间的经线弧长，经度方向取两框中离赤道最远的纬线上的测地距离，两者的较大值不超过任意两点间距。
func boundGapM(a, b orb.Bound) float64 {
	var ns, ew float64
	if lat1, lat2, ok := gap(a.Min[1], a.Max[1], b.Min[1], b.Max[1]); ok {
		geodesic.WGS84.Inverse(lat1, 0, lat2, 0, &ns, nil, nil)
	}
	if lon1, lon2, ok := gap(a.Min[0], a.Max[0], b.Min[0], b.Max[0]); ok {
		lat := math.Max(
			math.Max(math.Abs(a.Min[1]), math.Abs(a.Max[1])),
			math.Max(math.Abs(b.Min[1]), math.Abs(b.Max[1])),
		)
		geodesic.WGS84.Inverse(lat, lon1, lat, lon2, &ew, nil, nil)
	}
	return math.Max(ns, ew)
}

func gap(aMin, aMax, bMin, bMax float64) (float64, float64, bool) {
	switch {
	case aMax < bMin:
		return aMax, bMin, true
	case bMax < aMin:
		return bMax, aMin, true
	}
	return 0, 0, false
}

func solids(a, b *Region) (geom.Geometry, geom.Geometry, error) {
	sa, err := a.solid()
	if err != nil {
		return geom.Geometry{}, geom.Geometry{}, err
	}
	sb, err := b.solid()
	if err != nil {
		return geom.Geometry{}, geom.Geometry{}, err
	}
	return sa, sb, nil
}

func fault(op string, a, b *Region, err error) error {
	return fmt.Errorf("%w: %s %s/%s: %v", ErrGeometryFault, op, a.Name, b.Name, err)
}

func recoverFault(err *error, op string, a, b *Region) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%w: %s %s/%s: %v", ErrGeometryFault, op, a.Name, b.Name, rec)
	}
}
