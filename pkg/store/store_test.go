package store

import (
	"testing"

	"github.com/chazu/amgen/pkg/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *ResultStore {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRecord(t *testing.T) {
	s := openMemory(t)

	rec := Record{
		Index:         3,
		Name:          "Gen3",
		Resolution:    0.5,
		PartVoxels:    48,
		PartVolume:    6,
		SupportVoxels: 27,
		SupportVolume: 3.375,
		SupportRatio:  27.0 / 75.0,
		HasSupport:    true,
	}
	require.NoError(t, s.Put(rec, sample(), nil))

	got, err := s.Get(3)
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt is stamped")
	got.CreatedAt = rec.CreatedAt
	assert.Equal(t, rec, got)
	assert.False(t, got.Failed())

	part, support, err := s.Grids(3)
	require.NoError(t, err)
	require.NotNil(t, part)
	assert.True(t, sample().Equal(part))
	assert.Nil(t, support)
}

func TestGetMissing(t *testing.T) {
	s := openMemory(t)
	_, err := s.Get(9)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Grids(9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutReplacesGrids(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Put(Record{Index: 1}, sample(), sample()))

	failed := Record{Index: 1, Error: "timed out"}
	require.NoError(t, s.Put(failed, nil, nil))

	got, err := s.Get(1)
	require.NoError(t, err)
	assert.True(t, got.Failed())

	part, support, err := s.Grids(1)
	require.NoError(t, err)
	assert.Nil(t, part, "a failed generation carries no grid")
	assert.Nil(t, support)
}

func TestListOrderedByIndex(t *testing.T) {
	s := openMemory(t)
	for _, i := range []int{10, 2, 7} {
		require.NoError(t, s.Put(Record{Index: i}, voxel.NewGrid(1, 1, 1), nil))
	}

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []int{2, 7, 10}, []int{recs[0].Index, recs[1].Index, recs[2].Index})
}

func TestDelete(t *testing.T) {
	s := openMemory(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(Record{Index: i}, sample(), sample()))
	}

	require.NoError(t, s.Delete(1))
	_, err := s.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
	recs, err := s.List()
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	require.NoError(t, s.DeleteAll())
	recs, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClosedStore(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	assert.ErrorIs(t, s.Put(Record{}, nil, nil), ErrClosed)
	_, err = s.Get(0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.List()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.DeleteAll(), ErrClosed)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(Record{Index: 4, Name: "Gen4"}, nil, nil))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.Get(4)
	require.NoError(t, err)
	assert.Equal(t, "Gen4", rec.Name)
}

func TestGridBlobRoundTrip(t *testing.T) {
	s := openMemory(t)
	g := voxel.NewGrid(40, 30, 20)
	for x := 5; x < 35; x++ {
		g.Set(x, 15, 10, true)
	}
	blob := s.encodeGrid(g)
	assert.Less(t, len(blob), g.Len()/4, "sparse grids compress")

	got, err := s.decodeGrid(blob)
	require.NoError(t, err)
	assert.True(t, g.Equal(got))

	_, err = s.decodeGrid([]byte("not zstd"))
	assert.Error(t, err)
}
