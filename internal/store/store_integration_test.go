//go:build integration

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gpx-regions/internal/migrate"
	"gpx-regions/internal/revgeo"
	"gpx-regions/internal/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db := containers.NewPostgres(t)
	require.NoError(t, migrate.EnsureSchema(context.Background(), db))
	// schema creation is idempotent
	require.NoError(t, migrate.EnsureSchema(context.Background(), db))
	return AttachDB(db)
}

func readAdjacency(t *testing.T, body string) *revgeo.AdjacencyMap {
	t.Helper()
	path := filepath.Join(t.TempDir(), "n.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	m, err := revgeo.ReadAdjacencyFile(path)
	require.NoError(t, err)
	return m
}

func TestAdjacencyRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.LoadAdjacency(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	m := readAdjacency(t, `{"ZWALM": ["BRAKEL", "HOREBEKE"], "ISOLATED": [], "BRAKEL": ["ZWALM"], "HOREBEKE": ["ZWALM"]}`)
	require.NoError(t, s.SaveAdjacency(ctx, m, 5.0))

	got, err := s.LoadAdjacency(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ZWALM", "ISOLATED", "BRAKEL", "HOREBEKE"}, got.Names())
	assert.Equal(t, []string{"BRAKEL", "HOREBEKE"}, got.Neighbours("ZWALM"))
	assert.Equal(t, []string{}, got.Neighbours("ISOLATED"))

	// a second save replaces the whole table
	m2 := readAdjacency(t, `{"A": ["B"], "B": ["A"]}`)
	require.NoError(t, s.SaveAdjacency(ctx, m2, 2.5))
	got, err = s.LoadAdjacency(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got.Names())
}

func TestTrackResultRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.LoadTrackResult(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	in := revgeo.TrackResult{Regions: []string{"ANS", "LIÈGE"}, Points: 10, Unresolved: 1}
	require.NoError(t, s.SaveTrackResult(ctx, "abc", in))
	require.NoError(t, s.SaveTrackResult(ctx, "abc", in))

	out, err := s.LoadTrackResult(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, in.Regions, out.Regions)
	assert.Equal(t, 10, out.Points)
	assert.Equal(t, 1, out.Unresolved)
}
