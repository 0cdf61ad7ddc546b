package main

import (
	"bytes"
	"testing"

	"gpx-regions/internal/logger"
	"gpx-regions/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestUseStoredNeighbours(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	var buf bytes.Buffer
	l := logger.SetupTo(&buf)

	t.Setenv("NEIGHBOURS_SOURCE", "file")
	assert.False(t, useStoredNeighbours(l, store.AttachDB(nil), "n.json"))
	assert.Empty(t, buf.String())

	t.Setenv("NEIGHBOURS_SOURCE", "PG")
	assert.False(t, useStoredNeighbours(l, nil, "n.json"), "database disabled falls back to the file")
	assert.Contains(t, buf.String(), `"msg":"neighbours_source_pg_disabled"`)
	assert.Contains(t, buf.String(), `"fallback":"n.json"`)

	buf.Reset()
	assert.True(t, useStoredNeighbours(l, store.AttachDB(nil), "n.json"))
	assert.Empty(t, buf.String())
}
