package revgeo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"time"

	"gpx-regions/internal/logger"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/sync/errgroup"
)

// BuilderOptions：Workers<=0 时取 CPU 数；Progress 为 nil 时不显示进度条
type BuilderOptions struct {
	Workers  int
	Progress io.Writer
	Logger   *slog.Logger
}

// BuildReport 汇总一次构建的比较结果
type BuildReport struct {
	Regions      int           `json:"regions"`
	Pairs        int           `json:"pairs"`
	Touching     int           `json:"touching"`
	Near         int           `json:"near"`
	SkippedEmpty int           `json:"skipped_empty"`
	Faults       int           `json:"faults"`
	Elapsed      time.Duration `json:"-"`
}

func (r *BuildReport) merge(o BuildReport) {
	r.Pairs += o.Pairs
	r.Touching += o.Touching
	r.Near += o.Near
	r.SkippedEmpty += o.SkippedEmpty
	r.Faults += o.Faults
}

// 文档注释：邻接图构建器（离线批处理）
// 背景：对全部无序区域对做接触/相交判定，否则按测地距离阈值判定；结果供查询期的邻居层使用。
// 约束：O(n²) 次比较，按行分发给多个 worker；每个 worker 只写自己的结果，最后统一合并排序，
// 因此输出与 worker 数量及执行顺序无关。单个区域对的几何故障只记录日志并跳过。
type Builder struct {
	geo  Geometry
	opts BuilderOptions
	log  *slog.Logger
}

func NewBuilder(g Geometry, opts BuilderOptions) *Builder {
	if g == nil {
		g = NewOrbGeometry()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	l := opts.Logger
	if l == nil {
		l = logger.L()
	}
	return &Builder{geo: g, opts: opts, log: l}
}

type pairOutcome int

const (
	pairApart pairOutcome = iota
	pairTouching
	pairNear
	pairEmpty
	pairFault
)

func (b *Builder) Build(ctx context.Context, regions []*Region, thresholdKm float64) (*AdjacencyMap, BuildReport, error) {
	start := time.Now()
	rep := BuildReport{Regions: len(regions)}
	names := make([]string, len(regions))
	seen := make(map[string]struct{}, len(regions))
	for i, r := range regions {
		if _, dup := seen[r.Name]; dup {
			return nil, rep, dataError("duplicate region %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		names[i] = r.Name
	}
	maxM := thresholdKm * 1000.0

	var bar *pb.ProgressBar
	if b.opts.Progress != nil {
		bar = pb.New(len(regions))
		bar.SetWriter(b.opts.Progress)
		bar.Start()
		defer bar.Finish()
	}

	type partial struct {
		pairs [][2]int
		rep   BuildReport
	}
	parts := make([]partial, b.opts.Workers)
	rows := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rows)
		for i := range regions {
			select {
			case rows <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < b.opts.Workers; w++ {
		part := &parts[w]
		g.Go(func() error {
			for i := range rows {
				if err := gctx.Err(); err != nil {
					return err
				}
				for j := i + 1; j < len(regions); j++ {
					part.rep.Pairs++
					switch b.comparePair(regions[i], regions[j], maxM) {
					case pairTouching:
						part.rep.Touching++
						part.pairs = append(part.pairs, [2]int{i, j})
					case pairNear:
						part.rep.Near++
						part.pairs = append(part.pairs, [2]int{i, j})
					case pairEmpty:
						part.rep.SkippedEmpty++
					case pairFault:
						part.rep.Faults++
					}
				}
				if bar != nil {
					bar.Increment()
				}
				b.log.Debug("neighbours_row", "name", regions[i].Name, "idx", i+1, "total", len(regions))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, rep, err
	}

	lists := make(map[string][]string, len(regions))
	for _, part := range parts {
		rep.merge(part.rep)
		for _, pr := range part.pairs {
			a, c := names[pr[0]], names[pr[1]]
			lists[a] = append(lists[a], c)
			lists[c] = append(lists[c], a)
		}
	}
	m := NewAdjacencyMap(names)
	for _, n := range names {
		m.set(n, lists[n])
	}
	rep.Elapsed = time.Since(start)
	b.log.Info("neighbours_built",
		"regions", rep.Regions,
		"pairs", rep.Pairs,
		"touching", rep.Touching,
		"near", rep.Near,
		"faults", rep.Faults,
		"ms", rep.Elapsed.Milliseconds(),
	)
	return m, rep, nil
}

func (b *Builder) comparePair(r1, r2 *Region, maxM float64) (out pairOutcome) {
	// 注入的实现未必自行恢复 panic
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Warn("neighbours_pair_panic", "a", r1.Name, "b", r2.Name, "err", rec)
			out = pairFault
		}
	}()
	adj, err := b.geo.Adjacent(r1, r2)
	if err != nil {
		b.log.Warn("neighbours_pair_fault", "a", r1.Name, "b", r2.Name, "err", err)
		return pairFault
	}
	if adj {
		return pairTouching
	}
	if b.geo.Empty(r1) || b.geo.Empty(r2) {
		return pairEmpty
	}
	// 外包框已超出阈值时不做顶点扫描
	if b.geo.BoundDistanceM(r1, r2) > maxM {
		return pairApart
	}
	d, err := b.geo.NearestDistanceM(r1, r2)
	if err != nil {
		if errors.Is(err, ErrEmptyGeometry) {
			return pairEmpty
		}
		b.log.Warn("neighbours_pair_fault", "a", r1.Name, "b", r2.Name, "err", err)
		return pairFault
	}
	if d <= maxM {
		return pairNear
	}
	return pairApart
}
