package revgeo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// 文档注释：邻接表（名称 → 邻居名称列表）
// 背景：离线构建一次，查询期只读；键保持构建输入顺序，邻居按字典序排列，保证序列化结果稳定。
// 约束：对称、无自邻接、无重复；缺失的键表示没有已知邻居，不是错误。
type AdjacencyMap struct {
	order []string
	nb    map[string][]string
}

func NewAdjacencyMap(names []string) *AdjacencyMap {
	m := &AdjacencyMap{nb: make(map[string][]string, len(names))}
	for _, n := range names {
		if _, ok := m.nb[n]; ok {
			continue
		}
		m.order = append(m.order, n)
		m.nb[n] = []string{}
	}
	return m
}

// Neighbours 返回内部切片，调用方不得修改
func (m *AdjacencyMap) Neighbours(name string) []string {
	if m == nil {
		return nil
	}
	return m.nb[name]
}

func (m *AdjacencyMap) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

func (m *AdjacencyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// set：整体替换某个键的邻居列表，排序去重
func (m *AdjacencyMap) set(name string, neighbours []string) {
	if _, ok := m.nb[name]; !ok {
		m.order = append(m.order, name)
	}
	cp := append([]string{}, neighbours...)
	sort.Strings(cp)
	out := cp[:0]
	for i, n := range cp {
		if i > 0 && n == cp[i-1] {
			continue
		}
		out = append(out, n)
	}
	m.nb[name] = out
}

// AdjacencyFromLists：由外部存储（数据库等）的键顺序与邻居列表重建邻接表，并做完整性校验
func AdjacencyFromLists(order []string, lists map[string][]string) (*AdjacencyMap, error) {
	m := &AdjacencyMap{nb: make(map[string][]string, len(order))}
	for _, name := range order {
		if _, dup := m.nb[name]; dup {
			return nil, dataError("duplicate key %q", name)
		}
		m.order = append(m.order, name)
		m.nb[name] = append([]string{}, lists[name]...)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate：检查自邻接、重复、未知邻居与对称性
func (m *AdjacencyMap) Validate() error {
	for _, name := range m.order {
		list := m.nb[name]
		seen := make(map[string]struct{}, len(list))
		for _, n := range list {
			if n == name {
				return dataError("%q lists itself as neighbour", name)
			}
			if _, dup := seen[n]; dup {
				return dataError("%q lists %q twice", name, n)
			}
			seen[n] = struct{}{}
			back, ok := m.nb[n]
			if !ok {
				return dataError("%q lists unknown neighbour %q", name, n)
			}
			if !containsString(back, name) {
				return dataError("%q lists %q but not the reverse", name, n)
			}
		}
	}
	return nil
}

func containsString(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	if i < len(sorted) && sorted[i] == s {
		return true
	}
	// 外部文件不保证有序，退化为线性查找
	for _, x := range sorted {
		if x == s {
			return true
		}
	}
	return false
}

func (m *AdjacencyMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(name)
		if err != nil {
			return nil, err
		}
		v, err := marshalNoEscape(m.nb[name])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON：逐个读取键以保留文件中的顺序
func (m *AdjacencyMap) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("adjacency: expected object, got %v", tok)
	}
	*m = AdjacencyMap{nb: make(map[string][]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("adjacency: expected key, got %v", tok)
		}
		var list []string
		if err := dec.Decode(&list); err != nil {
			return fmt.Errorf("adjacency: %q: %w", name, err)
		}
		if _, dup := m.nb[name]; dup {
			return fmt.Errorf("adjacency: duplicate key %q", name)
		}
		if list == nil {
			list = []string{}
		}
		m.order = append(m.order, name)
		m.nb[name] = list
	}
	_, err = dec.Token()
	return err
}

// WriteAdjacencyFile：两空格缩进、非 ASCII 原样输出
func WriteAdjacencyFile(path string, m *AdjacencyMap) error {
	raw, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, out.Bytes(), 0o644)
}

// ReadAdjacencyFile：文件缺失、格式错误或不满足不变量都属于数据完整性错误
func ReadAdjacencyFile(path string) (*AdjacencyMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, dataError("read adjacency %s: %v", path, err)
	}
	var m AdjacencyMap
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, dataError("parse adjacency %s: %v", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
