package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gpx-regions/internal/logger"
	"gpx-regions/internal/metrics"
	"gpx-regions/internal/migrate"
	"gpx-regions/internal/revgeo"
	"gpx-regions/internal/store"
	"gpx-regions/internal/utils"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// 文档注释：离线构建市镇邻接表
// 背景：对全部市镇两两判定接触或测地距离不超过阈值，写出 neighbours_map_<km>.json，供查询服务的邻居层使用。
// 约束：阈值默认 5.0 km；输出文件键顺序与输入 GeoJSON 一致；PG_ENABLE=true 时同时整体替换 _region_neighbours。
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	dataDir := utils.EnvString("REGION_DATA_DIR", "data")
	km := flag.Float64("km", utils.EnvFloat("NEIGHBOURS_MAX_KM", 5.0), "distance threshold in kilometres")
	in := flag.String("in", utils.EnvString("MUNICIPALITIES_GEOJSON", revgeo.DefaultPaths(dataDir).Municipalities), "municipalities GeoJSON")
	out := flag.String("out", "", "output file (default <data>/neighbours_map_<km>.json)")
	workers := flag.Int("workers", utils.EnvInt("NEIGHBOURS_WORKERS", 0), "parallel workers, 0 = CPU count")
	quiet := flag.Bool("quiet", false, "hide the progress bar")
	metricsFile := flag.String("metrics-file", "", "write build metrics in Prometheus text format (node_exporter textfile collector)")
	flag.Parse()

	l := logger.Setup()
	if *km < 0 {
		l.Error("threshold_invalid", "km", *km)
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(dataDir, fmt.Sprintf("neighbours_map_%.1f.json", *km))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	regions, err := revgeo.LoadRegions(*in, revgeo.MunicipalityNameProp)
	if err != nil {
		l.Error("regions_load_error", "path", *in, "err", err)
		os.Exit(1)
	}
	l.Info("regions_loaded", "count", len(regions), "path", *in)

	opts := revgeo.BuilderOptions{Workers: *workers, Logger: l}
	if !*quiet {
		opts.Progress = os.Stderr
	}
	adj, rep, err := revgeo.NewBuilder(nil, opts).Build(ctx, regions, *km)
	if err != nil {
		l.Error("neighbours_build_error", "err", err)
		os.Exit(1)
	}
	metrics.ObserveBuild(rep.Pairs, rep.Touching, rep.Near, rep.SkippedEmpty, rep.Faults)

	if err := revgeo.WriteAdjacencyFile(*out, adj); err != nil {
		l.Error("neighbours_write_error", "path", *out, "err", err)
		os.Exit(1)
	}
	l.Info("neighbours_written", "path", *out, "regions", adj.Len(), "faults", rep.Faults)

	if utils.EnvBool("PG_ENABLE", false) {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		if err := store.AttachDB(db).SaveAdjacency(ctx, adj, *km); err != nil {
			l.Error("db_adjacency_save_error", "err", err)
			os.Exit(1)
		}
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, prometheus.DefaultGatherer); err != nil {
			l.Error("metrics_write_error", "path", *metricsFile, "err", err)
		}
	}
}
