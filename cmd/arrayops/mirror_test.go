package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/arrayops/internal/vnx"
)

type stubMirror struct {
	name   string
	images []vnx.Image
	err    error
}

func (s *stubMirror) Name() string { return s.name }

func (s *stubMirror) Images(context.Context) ([]vnx.Image, error) { return s.images, s.err }

func (s *stubMirror) FractureImage(context.Context, string) error { return nil }

func (s *stubMirror) SyncImage(context.Context, string) error { return nil }

func TestMirrorTable(t *testing.T) {
	mirrorAsync = false
	mirrors := []mirrorHandle{
		&stubMirror{name: "mv_db", images: []vnx.Image{
			{UID: "50:06:01:60", Primary: true, LogicalUnitUID: "60:06:01:60:aa", Progress: -1},
			{UID: "50:06:01:61", LogicalUnitUID: "60:06:01:60:bb", State: "Synchronizing", Condition: "Normal", Progress: 42},
		}},
		&stubMirror{name: "mv_lonely", images: []vnx.Image{
			{UID: "50:06:01:62", Primary: true, LogicalUnitUID: "60:06:01:60:cc", Progress: -1},
		}},
	}

	tbl, err := mirrorTable(context.Background(), mirrors)
	require.NoError(t, err)
	assert.Equal(t, "mirrorview", tbl.Kind)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"mv_db", "sync", "60:06:01:60:aa", "60:06:01:60:bb", "Synchronizing", "Normal", "42%"}, tbl.Rows[0])
	assert.Equal(t, []string{"mv_lonely", "sync", "60:06:01:60:cc", "", "", "", ""}, tbl.Rows[1])
}

func TestMirrorTable_Error(t *testing.T) {
	boom := errors.New("naviseccli failed")
	_, err := mirrorTable(context.Background(), []mirrorHandle{&stubMirror{name: "mv", err: boom}})
	assert.ErrorIs(t, err, boom)
}
