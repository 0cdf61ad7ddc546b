package api

import "gpx-regions/internal/revgeo"

// 文档注释：对外返回结构
// 背景：/upload 保持最小结构 {"regions": [...]}，与命令行 -f 输出一致；/tracks 额外带点数与分层统计。
// 约束：regions 永不为 null，无命中时为空数组。
type regionsResponse struct {
	Regions []string `json:"regions"`
}

type trackResponse struct {
	Digest     string           `json:"digest"`
	Regions    []string         `json:"regions"`
	Points     int              `json:"points"`
	Unresolved int              `json:"unresolved"`
	Stats      revgeo.TierStats `json:"stats"`
	Cached     bool             `json:"cached"`
}

type neighboursResponse struct {
	Name       string   `json:"name"`
	Province   string   `json:"province"`
	Neighbours []string `json:"neighbours"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type uploadRequest struct {
	Path string `json:"path"`
}
