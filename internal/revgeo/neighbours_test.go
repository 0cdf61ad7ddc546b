package revgeo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMap(t *testing.T, g Geometry, workers int, regions []*Region, km float64) (*AdjacencyMap, BuildReport) {
	t.Helper()
	b := NewBuilder(g, BuilderOptions{Workers: workers})
	m, rep, err := b.Build(context.Background(), regions, km)
	require.NoError(t, err)
	return m, rep
}

func TestBuilder_SharedEdgeScenario(t *testing.T) {
	a := square("A", 0, 0, 1, 1)
	b := square("B", 1, 0, 2, 1)

	m, rep := buildMap(t, NewOrbGeometry(), 1, []*Region{a, b}, 0)

	assert.Equal(t, []string{"A", "B"}, m.Names())
	assert.Equal(t, []string{"B"}, m.Neighbours("A"))
	assert.Equal(t, []string{"A"}, m.Neighbours("B"))
	assert.Equal(t, 1, rep.Pairs)
	assert.Equal(t, 1, rep.Touching)
}

func TestBuilder_DistanceThreshold(t *testing.T) {
	a := square("A", 0, 0, 1, 1)
	c := square("C", -1.09, 0, -0.09, 1) // ~10 km west of A

	m, rep := buildMap(t, NewOrbGeometry(), 2, []*Region{a, c}, 5)
	assert.Empty(t, m.Neighbours("A"), "10 km apart is beyond a 5 km threshold")
	assert.Empty(t, m.Neighbours("C"))
	assert.Equal(t, 0, rep.Near)

	m, rep = buildMap(t, NewOrbGeometry(), 2, []*Region{a, c}, 15)
	assert.Equal(t, []string{"C"}, m.Neighbours("A"))
	assert.Equal(t, []string{"A"}, m.Neighbours("C"))
	assert.Equal(t, 1, rep.Near)
}

func gridRegions(n int) []*Region {
	var out []*Region
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			// 相邻格子之间留出 0.001° 的缝隙，迫使距离分支参与
			x0 := float64(x) * 0.101
			y0 := float64(y) * 0.101
			out = append(out, square(fmt.Sprintf("R%02d_%02d", y, x), x0, y0, x0+0.1, y0+0.1))
		}
	}
	return out
}

func TestBuilder_SymmetricAndNoSelfAdjacency(t *testing.T) {
	regions := gridRegions(4)
	m, _ := buildMap(t, NewOrbGeometry(), 3, regions, 0.13)

	require.NoError(t, m.Validate())
	for _, name := range m.Names() {
		for _, n := range m.Neighbours(name) {
			assert.NotEqual(t, name, n, "no self adjacency")
			assert.Contains(t, m.Neighbours(n), name, "%s -> %s must be mirrored", name, n)
		}
	}
	// 正交缝隙约 111 m，对角缝隙约 157 m，阈值 130 m 只收正交相邻
	assert.Equal(t, []string{"R00_01", "R01_00"}, m.Neighbours("R00_00"))
	assert.Len(t, m.Neighbours("R01_01"), 4)
}

func TestBuilder_DeterministicAcrossWorkers(t *testing.T) {
	regions := gridRegions(5)
	dir := t.TempDir()

	var outputs [][]byte
	for _, workers := range []int{1, 2, 7, 1} {
		m, _ := buildMap(t, NewOrbGeometry(), workers, regions, 0.13)
		path := filepath.Join(dir, fmt.Sprintf("w%d.json", workers))
		require.NoError(t, WriteAdjacencyFile(path, m))
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		outputs = append(outputs, b)
	}
	for i := 1; i < len(outputs); i++ {
		assert.Equal(t, string(outputs[0]), string(outputs[i]), "run %d differs", i)
	}
}

func TestBuilder_FaultsAreSkipped(t *testing.T) {
	a := square("A", 0, 0, 1, 1)
	b := square("B", 1, 0, 2, 1)
	c := square("C", 2, 0, 3, 1)
	d := square("D", 3.001, 0, 4, 1)
	g := &scriptedGeometry{
		adjErr:  map[[2]string]error{{"A", "B"}: ErrGeometryFault},
		panicOn: map[[2]string]bool{{"B", "C"}: true},
		distErr: map[[2]string]error{{"C", "D"}: ErrGeometryFault},
	}

	m, rep := buildMap(t, g, 2, []*Region{a, b, c, d}, 1)

	assert.Equal(t, 3, rep.Faults)
	assert.Equal(t, 6, rep.Pairs)
	assert.Empty(t, m.Neighbours("A"), "faulted pair is not adjacent")
	assert.Empty(t, m.Neighbours("B"))
	assert.Empty(t, m.Neighbours("D"), "distance fault is not within threshold")
	assert.Equal(t, []string{"A", "B", "C", "D"}, m.Names(), "every region is still a key")
}

func TestBuilder_EmptyGeometrySkipsDistance(t *testing.T) {
	a := square("A", 0, 0, 1, 1)
	empty := NewRegion("EMPTY", nil)

	m, rep := buildMap(t, NewOrbGeometry(), 1, []*Region{a, empty}, 1000)

	assert.Empty(t, m.Neighbours("A"))
	assert.Equal(t, []string{}, m.Neighbours("EMPTY"))
	assert.Equal(t, 1, rep.SkippedEmpty)
}

func TestBuilder_DuplicateNames(t *testing.T) {
	b := NewBuilder(NewOrbGeometry(), BuilderOptions{Workers: 1})
	_, _, err := b.Build(context.Background(), []*Region{square("A", 0, 0, 1, 1), square("A", 1, 0, 2, 1)}, 0)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestBuilder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(NewOrbGeometry(), BuilderOptions{Workers: 2})
	_, _, err := b.Build(ctx, gridRegions(3), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_FarPairsSkipDistanceScan(t *testing.T) {
	a := square("A", 0, 0, 1, 1)
	near := square("NEAR", 1.001, 0, 2, 1) // ~111 m east of A
	far := square("FAR", 10, 10, 11, 11)
	g := &countingGeometry{Geometry: NewOrbGeometry()}

	m, rep := buildMap(t, g, 1, []*Region{a, near, far}, 1)

	assert.Equal(t, []string{"NEAR"}, m.Neighbours("A"))
	assert.Empty(t, m.Neighbours("FAR"))
	assert.Equal(t, 3, rep.Pairs)
	assert.Equal(t, 1, rep.Near)
	assert.EqualValues(t, 1, g.distances.Load(), "only A/NEAR needs the vertex scan")
}
