package revgeo

import (
	"fmt"
	"sort"
)

func dataError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataIntegrity, fmt.Sprintf(format, args...))
}

// Province：封闭的省份集合，声明顺序即兜底扫描顺序
type Province int

const (
	WestVlaanderen Province = iota + 1
	OostVlaanderen
	Antwerpen
	Limburg
	VlaamsBrabant
	Brussel
	BrabantWallon
	Namur
	Liege
	Hainaut
	Luxembourg
)

var provinceNames = [...]string{
	WestVlaanderen: "WEST-VLAANDEREN",
	OostVlaanderen: "OOST-VLAANDEREN",
	Antwerpen:      "ANTWERPEN",
	Limburg:        "LIMBURG",
	VlaamsBrabant:  "VLAAMS-BRABANT",
	Brussel:        "BRUSSEL",
	BrabantWallon:  "BRABANT WALLON",
	Namur:          "NAMUR",
	Liege:          "LIÈGE",
	Hainaut:        "HAINAUT",
	Luxembourg:     "LUXEMBOURG",
}

// 省界文件 NE_Name 字段使用荷兰语名称
var provinceLabels = map[string]Province{
	"West-Vlaanderen": WestVlaanderen,
	"Oost-Vlaanderen": OostVlaanderen,
	"Antwerpen":       Antwerpen,
	"Limburg":         Limburg,
	"Vlaams Brabant":  VlaamsBrabant,
	"Brussel":         Brussel,
	"Waals Brabant":   BrabantWallon,
	"Namen":           Namur,
	"Luik":            Liege,
	"Henegouwen":      Hainaut,
	"Luxemburg":       Luxembourg,
}

// AllProvinces 按规范顺序返回全部省份
func AllProvinces() []Province {
	out := make([]Province, 0, len(provinceNames)-1)
	for p := WestVlaanderen; p <= Luxembourg; p++ {
		out = append(out, p)
	}
	return out
}

func (p Province) Valid() bool { return p >= WestVlaanderen && p <= Luxembourg }

func (p Province) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Province(%d)", int(p))
	}
	return provinceNames[p]
}

func ParseProvince(name string) (Province, error) {
	for _, p := range AllProvinces() {
		if provinceNames[p] == name {
			return p, nil
		}
	}
	return 0, dataError("unknown province %q", name)
}

func ProvinceFromLabel(label string) (Province, error) {
	if p, ok := provinceLabels[label]; ok {
		return p, nil
	}
	return 0, dataError("unknown province label %q", label)
}

// 文档注释：省 → 市镇层级索引
// 背景：兜底扫描先定位省，再只在该省的市镇中做精确判定，避免全量扫描。
// 约束：构建时完成全部校验；查询期只读，可被多条轨迹并发共享。
type Index struct {
	provinces  []*Region
	byProvince map[Province]*Region
	members    map[Province][]*Region
	membership map[string]Province
	regions    map[string]*Region
}

// NewIndex：membership 为市镇名 → 省名；municipalities 的顺序决定省内扫描顺序
func NewIndex(membership map[string]string, provinces map[Province]*Region, municipalities []*Region) (*Index, error) {
	x := &Index{
		byProvince: make(map[Province]*Region, len(provinces)),
		members:    make(map[Province][]*Region),
		membership: make(map[string]Province, len(membership)),
		regions:    make(map[string]*Region, len(municipalities)),
	}
	for p, r := range provinces {
		if !p.Valid() {
			return nil, dataError("province %d outside the known set", int(p))
		}
		if r == nil {
			return nil, dataError("province %s has no geometry", p)
		}
		x.byProvince[p] = r
	}
	for _, p := range AllProvinces() {
		if r, ok := x.byProvince[p]; ok {
			x.provinces = append(x.provinces, r)
		}
	}
	// 先校验整张映射表，错误信息按名称排序以便复现
	names := make([]string, 0, len(membership))
	for n := range membership {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p, err := ParseProvince(membership[n])
		if err != nil {
			return nil, fmt.Errorf("membership of %q: %w", n, err)
		}
		x.membership[n] = p
	}
	for _, r := range municipalities {
		if _, dup := x.regions[r.Name]; dup {
			return nil, dataError("duplicate municipality %q", r.Name)
		}
		p, ok := x.membership[r.Name]
		if !ok {
			return nil, dataError("municipality %q has no province", r.Name)
		}
		if _, ok := x.byProvince[p]; !ok {
			return nil, dataError("province %s of %q has no geometry", p, r.Name)
		}
		x.regions[r.Name] = r
		x.members[p] = append(x.members[p], r)
	}
	return x, nil
}

func (x *Index) ProvinceOf(name string) (Province, error) {
	p, ok := x.membership[name]
	if !ok {
		return 0, dataError("no province for %q", name)
	}
	return p, nil
}

func (x *Index) RegionsIn(p Province) []*Region { return x.members[p] }

// Provinces 按规范顺序返回已加载的省几何
func (x *Index) Provinces() []*Region { return x.provinces }

func (x *Index) Province(p Province) (*Region, bool) {
	r, ok := x.byProvince[p]
	return r, ok
}

func (x *Index) Region(name string) (*Region, bool) {
	r, ok := x.regions[name]
	return r, ok
}
