// 包 gpx：轨迹文件解码，把 GPX 字节转换为按原始顺序排列的坐标序列
package gpx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"unicode/utf8"

	"gpx-regions/internal/revgeo"

	gpxgo "github.com/tkrajina/gpxgo/gpx"
	"golang.org/x/text/encoding/charmap"
)

var ErrNotFound = errors.New("gpx file not found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// XML 声明里的 encoding 属性，转码后必须同步改写
var prologEncoding = regexp.MustCompile(`^(\s*<\?xml[^>]*?encoding\s*=\s*["'])([^"']+)(["'])`)

// 文档注释：读取 GPX 文件原始字节
// 背景：调用方需要原始字节计算内容摘要，解析交给 ParseBytes。
// 约束：只有文件不存在才返回 ErrNotFound，便于前端区分 404；权限等其他错误原样上抛。
func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return b, nil
}

// 文档注释：解析 GPX 字节
// 背景：设备导出的文件编码不一，依次尝试 UTF-8、带 BOM 的 UTF-8、Windows-1252（覆盖 latin-1 的可见字符）。
// 约束：只取 track → segment → point，航路与航点不参与；点序与文件一致。
func ParseBytes(b []byte) ([]revgeo.Point, error) {
	doc, err := gpxgo.ParseBytes(ToUTF8(b))
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	var out []revgeo.Point
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				out = append(out, revgeo.Point{Lat: p.Latitude, Lon: p.Longitude})
			}
		}
	}
	return out, nil
}

// ToUTF8 转码为 UTF-8 并把 XML 声明中的编码改为 UTF-8
func ToUTF8(b []byte) []byte {
	b = bytes.TrimPrefix(b, utf8BOM)
	if !utf8.Valid(b) {
		if dec, err := charmap.Windows1252.NewDecoder().Bytes(b); err == nil {
			b = dec
		} else {
			b = bytes.ToValidUTF8(b, []byte("�"))
		}
	}
	return prologEncoding.ReplaceAll(b, []byte("${1}UTF-8${3}"))
}
