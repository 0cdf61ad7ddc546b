package revgeo

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gpx-regions/internal/logger"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/peterstace/simplefeatures/geom"
)

// 错误分类：数据完整性错误必须上抛；几何故障在本地吞掉并记日志
var (
	ErrDataIntegrity = errors.New("data integrity")
	ErrGeometryFault = errors.New("geometry fault")
	ErrEmptyGeometry = errors.New("empty geometry")
)

// 文档注释：行政区（省或市镇）
// 背景：省层与市镇层共用同一结构；名称已由加载方完成大写与 NFC 规范化。
// 约束：构造后只读；Shape 统一为 MultiPolygon，空几何以长度为 0 表示。
type Region struct {
	Name  string
	Shape orb.MultiPolygon
	Bound orb.Bound

	once     sync.Once
	shape    geom.Geometry
	shapeErr error
}

// NewRegion：Polygon 提升为 MultiPolygon，nil 视为空几何
func NewRegion(name string, g orb.Geometry) *Region {
	var mp orb.MultiPolygon
	switch x := g.(type) {
	case orb.Polygon:
		if len(x) > 0 {
			mp = orb.MultiPolygon{x}
		}
	case orb.MultiPolygon:
		mp = x
	}
	r := &Region{Name: name, Shape: mp}
	if len(mp) > 0 {
		r.Bound = mp.Bound()
	}
	return r
}

// 文档注释：拓扑判定用的 simplefeatures 几何
// 背景：经 WKB 从 orb 转换，首次使用时才付出转换与校验的代价，之后并发只读。
// 约束：转换失败（自交、未闭合等）只记一次日志，之后每次返回同一个 ErrGeometryFault。
func (r *Region) solid() (geom.Geometry, error) {
	r.once.Do(func() {
		b, err := wkb.Marshal(r.Shape)
		if err == nil {
			r.shape, err = geom.UnmarshalWKB(b)
		}
		if err != nil {
			r.shapeErr = fmt.Errorf("%w: convert %s: %v", ErrGeometryFault, r.Name, err)
			logger.L().Warn("geometry_convert_fault", "region", r.Name, "err", err)
		}
	})
	return r.shape, r.shapeErr
}

// 点坐标（WGS84，度）
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) orb() orb.Point { return orb.Point{p.Lon, p.Lat} }

// 加载结果快照：只读引用，供查询期在多条轨迹间共享
type Snapshot struct {
	Municipalities []*Region
	Regions        map[string]*Region
	Adjacency      *AdjacencyMap
	Index          *Index
	BuiltAt        time.Time
}

// NewSnapshot：校验邻接表只引用已知市镇
func NewSnapshot(municipalities []*Region, adj *AdjacencyMap, idx *Index) (*Snapshot, error) {
	regions := make(map[string]*Region, len(municipalities))
	for _, r := range municipalities {
		regions[r.Name] = r
	}
	if adj == nil {
		adj = NewAdjacencyMap(nil)
	}
	for _, name := range adj.Names() {
		if _, ok := regions[name]; !ok {
			return nil, dataError("adjacency key %q has no municipality geometry", name)
		}
	}
	return &Snapshot{
		Municipalities: municipalities,
		Regions:        regions,
		Adjacency:      adj,
		Index:          idx,
		BuiltAt:        time.Now(),
	}, nil
}
