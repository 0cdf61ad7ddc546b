// 程序入口：-f 模式解析单个 GPX 文件并输出 {"regions": [...]}；否则启动 HTTP 服务
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gpx-regions/internal/api"
	"gpx-regions/internal/gpx"
	"gpx-regions/internal/logger"
	"gpx-regions/internal/metrics"
	"gpx-regions/internal/middleware"
	"gpx-regions/internal/migrate"
	"gpx-regions/internal/revgeo"
	"gpx-regions/internal/store"
	"gpx-regions/internal/utils"
	"gpx-regions/internal/version"

	"github.com/joho/godotenv"
)

// dataPaths：数据目录下的约定文件名，可被单独的环境变量覆盖
func dataPaths() revgeo.Paths {
	p := revgeo.DefaultPaths(utils.EnvString("REGION_DATA_DIR", "data"))
	p.Neighbours = utils.EnvString("NEIGHBOURS_PATH", p.Neighbours)
	p.ProvinceMap = utils.EnvString("PROVINCE_MAP_PATH", p.ProvinceMap)
	p.Provinces = utils.EnvString("PROVINCES_GEOJSON", p.Provinces)
	p.Municipalities = utils.EnvString("MUNICIPALITIES_GEOJSON", p.Municipalities)
	return p
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	file := flag.String("f", "", "resolve one GPX file and print the visited municipalities as JSON")
	flag.Parse()

	l := logger.Setup()
	l.Debug("log_init_ok", "commit", version.Commit)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 背景：数据库为可选依赖；未开启时邻接表只从文件读取，结果不落库
	var st *store.Store
	if utils.EnvBool("PG_ENABLE", false) {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
			os.Exit(1)
		}
		l.Info("db_ping_ok")
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
	}

	paths := dataPaths()
	var snap *revgeo.Snapshot
	var err error
	if useStoredNeighbours(l, st, paths.Neighbours) {
		var adj *revgeo.AdjacencyMap
		adj, err = st.LoadAdjacency(ctx)
		if err == nil {
			snap, err = revgeo.LoadSnapshotWith(paths, adj)
		}
	} else {
		snap, err = revgeo.LoadSnapshot(paths)
	}
	if err != nil {
		l.Error("snapshot_load_error", "err", err)
		os.Exit(1)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
	} else {
		l.Info("redis_ping_ok")
	}

	ttl := utils.EnvSeconds("TRACK_CACHE_TTL_S", time.Hour)
	opts := api.Options{
		Redis:    rc,
		LRU:      revgeo.NewLRU(utils.EnvInt("TRACK_CACHE_SIZE", 256), ttl),
		CacheTTL: ttl,
	}
	if st != nil {
		opts.Recorder = st
	}
	svc := api.NewService(revgeo.NewOrchestrator(snap, nil), opts)

	if *file != "" {
		os.Exit(runFile(ctx, svc, *file))
	}
	serve(ctx, svc)
}

// useStoredNeighbours：NEIGHBOURS_SOURCE=pg 且数据库已启用时才从库读取邻接表，否则告警并回退到文件
func useStoredNeighbours(l *slog.Logger, st *store.Store, fallback string) bool {
	if !strings.EqualFold(utils.EnvString("NEIGHBOURS_SOURCE", "file"), "pg") {
		return false
	}
	if st == nil {
		l.Warn("neighbours_source_pg_disabled", "hint", "set PG_ENABLE=true", "fallback", fallback)
		return false
	}
	return true
}

// runFile：命令行模式，结果写标准输出，日志写标准错误
func runFile(ctx context.Context, svc *api.Service, path string) int {
	l := logger.L()
	b, err := gpx.ReadFile(path)
	switch {
	case errors.Is(err, gpx.ErrNotFound):
		l.Error("file_not_found", "path", path)
		return 2
	case err != nil:
		l.Error("file_read_error", "path", path, "err", err)
		return 1
	}
	res, _, err := svc.ResolveBytes(ctx, b)
	if err != nil {
		l.Error("file_resolve_error", "path", path, "err", err)
		return 1
	}
	if err := json.NewEncoder(os.Stdout).Encode(map[string][]string{"regions": res.Regions}); err != nil {
		l.Error("output_error", "err", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, svc *api.Service) {
	l := logger.L()
	apiBase := strings.TrimSuffix(utils.EnvString("API_BASE", ""), "/")
	l.Debug("config_api_base", "base", apiBase)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(svc, int64(utils.EnvInt("UPLOAD_MAX_BYTES", api.DefaultMaxUploadBytes)))
	if apiBase == "" {
		mux.Handle("/", apiMux)
	} else {
		mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	}
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := utils.EnvString("ADDR", "127.0.0.1:5000")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	var err error
	if utils.EnvBool("TLS_ENABLE", false) {
		certPath := utils.EnvString("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := utils.EnvString("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if e := utils.EnsureSelfSignedCert(certPath, keyPath, "gpx-regions.local"); e != nil {
			l.Error("tls_cert_error", "err", e)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown")
}
