package migrate

import (
	"context"
	"database/sql"

	"gpx-regions/internal/logger"
)

// 背景：首次运行自动创建邻接表与轨迹结果表，保障 neighbours-build 写入与服务端读取
// 约束：使用 IF NOT EXISTS 保证可重复执行；邻接关系以 (region, position) 保留原始键顺序
var stmts = []string{
	`CREATE TABLE IF NOT EXISTS _region_neighbours (
        region TEXT NOT NULL,
        position INT NOT NULL,
        neighbour TEXT,
        threshold_km DOUBLE PRECISION NOT NULL,
        built_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_region_neighbours_pos ON _region_neighbours(position, region)`,
	`CREATE TABLE IF NOT EXISTS _track_results (
        digest TEXT PRIMARY KEY,
        regions JSONB NOT NULL,
        points INT NOT NULL,
        unresolved INT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
