package revgeo

import "github.com/paulmach/orb"

// nearestPoints：双向“顶点到边”扫描，返回 a 上与 b 上的最近点对
func nearestPoints(a, b orb.MultiPolygon) (orb.Point, orb.Point) {
	var pa, pb orb.Point
	best := -1.0
	forEachVertex(a, func(v orb.Point) {
		forEachEdge(b, func(q1, q2 orb.Point) {
			c := closestOnSegment(q1, q2, v)
			if d := sqDist(v, c); best < 0 || d < best {
				best, pa, pb = d, v, c
			}
		})
	})
	forEachVertex(b, func(v orb.Point) {
		forEachEdge(a, func(q1, q2 orb.Point) {
			c := closestOnSegment(q1, q2, v)
			if d := sqDist(v, c); best < 0 || d < best {
				best, pa, pb = d, c, v
			}
		})
	})
	return pa, pb
}

// forEachEdge 遍历所有环的所有边，未闭合的环补上首尾边
func forEachEdge(mp orb.MultiPolygon, fn func(a, b orb.Point)) {
	for _, poly := range mp {
		for _, ring := range poly {
			n := len(ring)
			if n < 2 {
				continue
			}
			for i := 0; i < n-1; i++ {
				fn(ring[i], ring[i+1])
			}
			if ring[0] != ring[n-1] {
				fn(ring[n-1], ring[0])
			}
		}
	}
}

func forEachVertex(mp orb.MultiPolygon, fn func(p orb.Point)) {
	for _, poly := range mp {
		for _, ring := range poly {
			for _, p := range ring {
				fn(p)
			}
		}
	}
}

// closestOnSegment：平面投影并截断到线段端点
func closestOnSegment(a, b, p orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

func sqDist(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}
