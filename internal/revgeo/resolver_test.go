package revgeo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture：两省四市镇；B 与 C 在几何上相邻，但邻接表故意不记录，跨越时只能走兜底
func fixture(t *testing.T) *Snapshot {
	t.Helper()
	provinces := map[Province]*Region{
		Antwerpen: square("ANTWERPEN", 0, 0, 2, 1),
		Limburg:   square("LIMBURG", 2, 0, 4, 1),
	}
	a := square("A", 0, 0, 1, 1)
	b := square("B", 1, 0, 2, 1)
	c := square("C", 2, 0, 3, 1)
	d := square("D", 3, 0, 4, 1)
	membership := map[string]string{"A": "ANTWERPEN", "B": "ANTWERPEN", "C": "LIMBURG", "D": "LIMBURG"}
	idx, err := NewIndex(membership, provinces, []*Region{a, b, c, d})
	require.NoError(t, err)

	adj := NewAdjacencyMap([]string{"A", "B", "C", "D"})
	adj.set("A", []string{"B"})
	adj.set("B", []string{"A"})
	adj.set("C", []string{"D"})
	adj.set("D", []string{"C"})
	require.NoError(t, adj.Validate())

	snap, err := NewSnapshot([]*Region{a, b, c, d}, adj, idx)
	require.NoError(t, err)
	return snap
}

func TestResolver_TwoSquareScenario(t *testing.T) {
	o := NewOrchestrator(fixture(t), NewOrbGeometry())
	r := o.NewResolver()

	assert.Equal(t, "", r.Current(), "a new resolver knows no region")

	assert.Equal(t, "A", r.Resolve(Point{Lat: 0.5, Lon: 0.5}))
	assert.Equal(t, TierFallback, r.LastTier())

	assert.Equal(t, "B", r.Resolve(Point{Lat: 0.5, Lon: 1.5}))
	assert.Equal(t, TierNeighbour, r.LastTier())

	assert.Equal(t, "B", r.Resolve(Point{Lat: 0.6, Lon: 1.6}))
	assert.Equal(t, TierCache, r.LastTier())

	assert.Equal(t, TierStats{Cache: 1, Neighbour: 1, Fallback: 1}, r.Stats())
}

func TestResolver_CacheHitIsOneContainmentTest(t *testing.T) {
	g := &countingGeometry{Geometry: NewOrbGeometry()}
	r := NewOrchestrator(fixture(t), g).NewResolver()
	require.Equal(t, "C", r.Resolve(Point{Lat: 0.5, Lon: 2.5}))

	g.reset()
	assert.Equal(t, "C", r.Resolve(Point{Lat: 0.2, Lon: 2.2}))
	assert.Equal(t, []string{"C"}, g.calls, "exactly one containment test on a cache hit")
}

func TestResolver_BoundaryPointKeepsCurrent(t *testing.T) {
	r := NewOrchestrator(fixture(t), NewOrbGeometry()).NewResolver()
	require.Equal(t, "A", r.Resolve(Point{Lat: 0.5, Lon: 0.5}))

	// x=1 is shared by A and B
	assert.Equal(t, "A", r.Resolve(Point{Lat: 0.5, Lon: 1}))
	assert.Equal(t, TierCache, r.LastTier())

	r2 := NewOrchestrator(fixture(t), NewOrbGeometry()).NewResolver()
	require.Equal(t, "B", r2.Resolve(Point{Lat: 0.5, Lon: 1.5}))
	assert.Equal(t, "B", r2.Resolve(Point{Lat: 0.5, Lon: 1}))
}

func TestResolver_FallbackWhenNeighboursMiss(t *testing.T) {
	g := &countingGeometry{Geometry: NewOrbGeometry()}
	r := NewOrchestrator(fixture(t), g).NewResolver()
	require.Equal(t, "B", r.Resolve(Point{Lat: 0.5, Lon: 1.5}))

	g.reset()
	assert.Equal(t, "C", r.Resolve(Point{Lat: 0.5, Lon: 2.5}))
	assert.Equal(t, TierFallback, r.LastTier())
	assert.Equal(t, "C", r.Current())
	assert.Equal(t, []string{"B", "A", "ANTWERPEN", "LIMBURG", "C"}, g.calls,
		"cache, neighbours, then provinces in canonical order and members of the first hit")
}

func TestResolver_UnresolvedKeepsState(t *testing.T) {
	r := NewOrchestrator(fixture(t), NewOrbGeometry()).NewResolver()
	require.Equal(t, "D", r.Resolve(Point{Lat: 0.5, Lon: 3.5}))

	assert.Equal(t, "", r.Resolve(Point{Lat: 10, Lon: 10}), "outside every province")
	assert.Equal(t, TierNone, r.LastTier())
	assert.Equal(t, "D", r.Current(), "stale region stays as the next candidate")

	assert.Equal(t, "D", r.Resolve(Point{Lat: 0.4, Lon: 3.4}))
	assert.Equal(t, TierCache, r.LastTier())
	assert.Equal(t, 1, r.Stats().Miss)
}

func TestResolver_ProvinceWithoutMatchingMunicipality(t *testing.T) {
	provinces := map[Province]*Region{Namur: square("NAMUR", 0, 0, 2, 2)}
	a := square("A", 0, 0, 1, 1)
	idx, err := NewIndex(map[string]string{"A": "NAMUR"}, provinces, []*Region{a})
	require.NoError(t, err)
	snap, err := NewSnapshot([]*Region{a}, nil, idx)
	require.NoError(t, err)

	r := NewOrchestrator(snap, nil).NewResolver()
	assert.Equal(t, "", r.Resolve(Point{Lat: 1.5, Lon: 1.5}), "inside the province, outside every member")
	assert.Equal(t, "", r.Current())
}

func TestOrchestrator_ResolveTrack(t *testing.T) {
	o := NewOrchestrator(fixture(t), NewOrbGeometry())
	track := []Point{
		{Lat: 0.5, Lon: 3.5},
		{Lat: 0.5, Lon: 2.5},
		{Lat: 5, Lon: 5},
		{Lat: 0.5, Lon: 1.5},
		{Lat: 0.5, Lon: 0.5},
		{Lat: 0.4, Lon: 0.4},
	}

	res := o.ResolveTrack(track)
	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Regions)
	assert.Equal(t, 6, res.Points)
	assert.Equal(t, 1, res.Unresolved)
	assert.Equal(t, TierStats{Cache: 1, Neighbour: 2, Fallback: 2, Miss: 1}, res.Stats)

	empty := o.ResolveTrack(nil)
	assert.Equal(t, []string{}, empty.Regions)
}

func TestOrchestrator_ConcurrentTracks(t *testing.T) {
	o := NewOrchestrator(fixture(t), NewOrbGeometry())
	tracks := [][]Point{
		{{Lat: 0.5, Lon: 0.5}, {Lat: 0.5, Lon: 1.5}},
		{{Lat: 0.5, Lon: 3.5}, {Lat: 0.5, Lon: 2.5}},
	}
	want := [][]string{{"A", "B"}, {"C", "D"}}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := o.ResolveTrack(tracks[i%2])
			assert.Equal(t, want[i%2], res.Regions)
		}(i)
	}
	wg.Wait()
}
