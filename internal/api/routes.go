// 包 api：集中注册 HTTP API 路由以解耦主入口
package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"gpx-regions/internal/gpx"
	"gpx-regions/internal/logger"
	"gpx-regions/internal/metrics"
	"gpx-regions/internal/revgeo"
)

// 默认上传上限 32 MiB
const DefaultMaxUploadBytes = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, route string, status int, msg string) {
	metrics.UploadsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	writeJSON(w, status, errorResponse{Error: msg})
}

// uploadPath：JSON {"path": "..."} 优先，其次表单字段 path
func uploadPath(r *http.Request) string {
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("content-type")); mt == "application/json" {
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Path != "" {
			return req.Path
		}
	}
	return r.FormValue("path")
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(s *Service, maxUploadBytes int64) *http.ServeMux {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	mux := http.NewServeMux()

	// 文档注释：按服务端本地路径解析轨迹
	// 约束：缺少 path → 400；文件不存在 → 404；非 .gpx → 400；其余返回 {"regions": [...]}
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		path := uploadPath(r)
		if path == "" {
			fail(w, "upload", http.StatusBadRequest, "missing `path` in JSON body or form data")
			return
		}
		res, _, err := s.ResolveFile(r.Context(), path)
		switch {
		case errors.Is(err, gpx.ErrNotFound):
			fail(w, "upload", http.StatusNotFound, "file not found")
			return
		case errors.Is(err, ErrNotGPX):
			fail(w, "upload", http.StatusBadRequest, ErrNotGPX.Error())
			return
		case errors.Is(err, ErrInvalidGPX):
			fail(w, "upload", http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logger.L().Error("upload_error", "path", path, "err", err)
			fail(w, "upload", http.StatusInternalServerError, "internal error")
			return
		}
		metrics.UploadsTotal.WithLabelValues("upload", "200").Inc()
		writeJSON(w, http.StatusOK, regionsResponse{Regions: res.Regions})
	})

	// 文档注释：以请求体直接提交 GPX 内容
	mux.HandleFunc("POST /tracks", func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				fail(w, "tracks", http.StatusRequestEntityTooLarge, "track too large")
				return
			}
			fail(w, "tracks", http.StatusBadRequest, "read body failed")
			return
		}
		if len(b) == 0 {
			fail(w, "tracks", http.StatusBadRequest, "empty body")
			return
		}
		res, cached, err := s.ResolveBytes(r.Context(), b)
		if err != nil {
			if errors.Is(err, ErrInvalidGPX) {
				fail(w, "tracks", http.StatusBadRequest, err.Error())
				return
			}
			logger.L().Error("tracks_error", "err", err)
			fail(w, "tracks", http.StatusInternalServerError, "internal error")
			return
		}
		metrics.UploadsTotal.WithLabelValues("tracks", "200").Inc()
		writeJSON(w, http.StatusOK, trackResponse{
			Digest:     Digest(b),
			Regions:    res.Regions,
			Points:     res.Points,
			Unresolved: res.Unresolved,
			Stats:      res.Stats,
			Cached:     cached,
		})
	})

	mux.HandleFunc("GET /neighbours", func(w http.ResponseWriter, r *http.Request) {
		snap := s.Orchestrator().Snapshot()
		name := revgeo.NormalizeName(r.URL.Query().Get("name"))
		if name == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing `name` query parameter"})
			return
		}
		if _, ok := snap.Index.Region(name); !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown municipality"})
			return
		}
		out := neighboursResponse{Name: name, Neighbours: []string{}}
		if p, err := snap.Index.ProvinceOf(name); err == nil {
			out.Province = p.String()
		}
		out.Neighbours = append(out.Neighbours, snap.Adjacency.Neighbours(name)...)
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := s.Orchestrator().Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"municipalities": len(snap.Municipalities),
			"adjacency":      snap.Adjacency.Len(),
			"loaded_at":      snap.BuiltAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	})

	return mux
}
