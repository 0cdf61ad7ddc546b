package revgeo

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gpx-regions/internal/logger"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/unicode/norm"
)

// 数据文件属性名
const (
	MunicipalityNameProp = "Communes"
	ProvinceLabelProp    = "NE_Name"
)

// Paths：查询期所需的四个输入文件
type Paths struct {
	Neighbours     string
	ProvinceMap    string
	Provinces      string
	Municipalities string
}

// DefaultPaths 使用约定文件名拼接数据目录
func DefaultPaths(dir string) Paths {
	return Paths{
		Neighbours:     filepath.Join(dir, "neighbours_map_5.0.json"),
		ProvinceMap:    filepath.Join(dir, "province_map.json"),
		Provinces:      filepath.Join(dir, "BELGIUM_-_Provinces.geojson"),
		Municipalities: filepath.Join(dir, "BELGIUM_-_Municipalities.geojson"),
	}
}

// 文档注释：加载查询期快照
// 背景：邻接表、省份映射、省界与市镇边界一次性载入内存，之后只读共享。
// 约束：任何文件缺失、格式错误或交叉引用不一致都作为数据完整性错误返回，不做静默降级。
func LoadSnapshot(p Paths) (*Snapshot, error) {
	adj, err := ReadAdjacencyFile(p.Neighbours)
	if err != nil {
		return nil, err
	}
	return LoadSnapshotWith(p, adj)
}

// LoadSnapshotWith 使用外部提供的邻接表（例如从数据库读取）
func LoadSnapshotWith(p Paths, adj *AdjacencyMap) (*Snapshot, error) {
	membership, err := ReadProvinceMap(p.ProvinceMap)
	if err != nil {
		return nil, err
	}
	municipalities, err := LoadRegions(p.Municipalities, MunicipalityNameProp)
	if err != nil {
		return nil, err
	}
	provinces, err := LoadProvinces(p.Provinces)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndex(membership, provinces, municipalities)
	if err != nil {
		return nil, err
	}
	snap, err := NewSnapshot(municipalities, adj, idx)
	if err != nil {
		return nil, err
	}
	logger.L().Info("snapshot_loaded",
		"municipalities", len(municipalities),
		"provinces", len(provinces),
		"adjacency", adj.Len(),
	)
	return snap, nil
}

// ReadProvinceMap 读取市镇名 → 省名映射
func ReadProvinceMap(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, dataError("read province map %s: %v", path, err)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, dataError("parse province map %s: %v", path, err)
	}
	return m, nil
}

type rawFeature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

func readFeatures(path string) ([]rawFeature, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, dataError("read %s: %v", path, err)
	}
	var fc rawCollection
	if err := json.Unmarshal(b, &fc); err != nil {
		return nil, dataError("parse %s: %v", path, err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, dataError("%s: expected FeatureCollection, got %q", path, fc.Type)
	}
	return fc.Features, nil
}

// 文档注释：读取 GeoJSON 要素为区域列表
// 背景：Polygon 提升为 MultiPolygon；缺失或空几何的要素保留为空区域，由构建器跳过距离判定。
// 约束：名称取自 nameProp 属性并做乱码修复、NFC 与大写规范化；顺序与文件一致。
func LoadRegions(path, nameProp string) ([]*Region, error) {
	features, err := readFeatures(path)
	if err != nil {
		return nil, err
	}
	out := make([]*Region, 0, len(features))
	for i, f := range features {
		raw, _ := f.Properties[nameProp].(string)
		name := NormalizeName(raw)
		if name == "" {
			return nil, dataError("%s: feature %d has no %s", path, i, nameProp)
		}
		r, err := regionFromRaw(name, f.Geometry)
		if err != nil {
			return nil, dataError("%s: feature %q: %v", path, name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// LoadProvinces 按 NE_Name 标签映射到封闭省份集合
func LoadProvinces(path string) (map[Province]*Region, error) {
	features, err := readFeatures(path)
	if err != nil {
		return nil, err
	}
	out := make(map[Province]*Region, len(features))
	for _, f := range features {
		label, _ := f.Properties[ProvinceLabelProp].(string)
		p, err := ProvinceFromLabel(strings.TrimSpace(label))
		if err != nil {
			return nil, err
		}
		r, err := regionFromRaw(p.String(), f.Geometry)
		if err != nil {
			return nil, dataError("%s: province %s: %v", path, p, err)
		}
		if _, dup := out[p]; dup {
			return nil, dataError("%s: province %s appears twice", path, p)
		}
		out[p] = r
	}
	return out, nil
}

func regionFromRaw(name string, raw json.RawMessage) (*Region, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NewRegion(name, nil), nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	return NewRegion(name, g.Geometry()), nil
}

// NormalizeName：乱码修复 → NFC → 大写
func NormalizeName(raw string) string {
	s := strings.TrimSpace(fixMojibake(raw))
	return strings.ToUpper(norm.NFC.String(s))
}

// fixMojibake：UTF-8 被按 latin-1 解码时会出现 Ã/Â，按字节还原后重新按 UTF-8 解读
func fixMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂ") {
		return s
	}
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		b = append(b, byte(r))
	}
	if !utf8.Valid(b) {
		return s
	}
	return string(b)
}
