// 包 store: PostgreSQL 数据访问层，持久化邻接表与轨迹解析结果
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gpx-regions/internal/logger"
	"gpx-regions/internal/revgeo"

	_ "github.com/lib/pq"
)

// ErrNotFound：结果表中不存在对应摘要
var ErrNotFound = errors.New("store: not found")

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// 文档注释：整体替换邻接表
// 背景：neighbours-build 每次产出完整映射，事务内先清空再写入，读取方不会看到半张表。
// 约束：每个市镇至少写一行（无邻居时 neighbour 为 NULL），position 保留键的原始顺序。
func (s *Store) SaveAdjacency(ctx context.Context, m *revgeo.AdjacencyMap, thresholdKm float64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM _region_neighbours`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _region_neighbours(region, position, neighbour, threshold_km) VALUES($1,$2,$3,$4)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	rows := 0
	for pos, name := range m.Names() {
		nb := m.Neighbours(name)
		if len(nb) == 0 {
			if _, err = stmt.ExecContext(ctx, name, pos, nil, thresholdKm); err != nil {
				return err
			}
			rows++
			continue
		}
		for _, n := range nb {
			if _, err = stmt.ExecContext(ctx, name, pos, n, thresholdKm); err != nil {
				return err
			}
			rows++
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	logger.L().Info("db_adjacency_saved", "regions", m.Len(), "rows", rows, "threshold_km", thresholdKm)
	return nil
}

// 文档注释：读取邻接表
// 返回：与文件格式同构的 AdjacencyMap（经过 Validate）；表为空时返回 ErrNotFound。
func (s *Store) LoadAdjacency(ctx context.Context) (*revgeo.AdjacencyMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region, neighbour FROM _region_neighbours ORDER BY position, neighbour`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var order []string
	lists := make(map[string][]string)
	for rows.Next() {
		var region string
		var nb sql.NullString
		if err := rows.Scan(&region, &nb); err != nil {
			return nil, err
		}
		if _, ok := lists[region]; !ok {
			order = append(order, region)
			lists[region] = []string{}
		}
		if nb.Valid {
			lists[region] = append(lists[region], nb.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, ErrNotFound
	}
	m, err := revgeo.AdjacencyFromLists(order, lists)
	if err != nil {
		return nil, err
	}
	logger.L().Debug("db_adjacency_loaded", "regions", m.Len())
	return m, nil
}

// SaveTrackResult：按内容摘要写入或覆盖一次轨迹解析结果
func (s *Store) SaveTrackResult(ctx context.Context, digest string, r revgeo.TrackResult) error {
	regions, err := json.Marshal(r.Regions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO _track_results(digest, regions, points, unresolved)
        VALUES($1,$2,$3,$4)
        ON CONFLICT (digest) DO UPDATE SET regions=EXCLUDED.regions, points=EXCLUDED.points, unresolved=EXCLUDED.unresolved, created_at=now()`,
		digest, string(regions), r.Points, r.Unresolved)
	if err != nil {
		return fmt.Errorf("save track result: %w", err)
	}
	logger.L().Debug("db_track_saved", "digest", digest, "regions", len(r.Regions))
	return nil
}

// LoadTrackResult：读取已保存的结果；分层统计不入库，读出后为零值
func (s *Store) LoadTrackResult(ctx context.Context, digest string) (revgeo.TrackResult, error) {
	var raw []byte
	out := revgeo.TrackResult{}
	row := s.db.QueryRowContext(ctx, `SELECT regions, points, unresolved FROM _track_results WHERE digest=$1`, digest)
	if err := row.Scan(&raw, &out.Points, &out.Unresolved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, ErrNotFound
		}
		return out, err
	}
	if err := json.Unmarshal(raw, &out.Regions); err != nil {
		return out, err
	}
	if out.Regions == nil {
		out.Regions = []string{}
	}
	return out, nil
}
