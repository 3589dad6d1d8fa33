package batch_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"tilecache/batch"
	"tilecache/tile"
)

func TestNewArea(t *testing.T) {
	a, err := batch.NewArea(5, 2, batch.World)
	require.NoError(t, err)
	require.Equal(t, uint32(2), a.MinZoom)
	require.Equal(t, uint32(5), a.MaxZoom)

	_, err = batch.NewArea(0, 21, batch.World)
	require.ErrorIs(t, err, batch.ErrZoomRange)

	_, err = batch.NewArea(0, 1, orb.Bound{Min: orb.Point{-181, 0}, Max: orb.Point{0, 0}})
	require.ErrorIs(t, err, batch.ErrBoundRange)
}

func TestParseZoomRange(t *testing.T) {
	cases := []struct {
		in     string
		z1, z2 uint32
		ok     bool
	}{
		{in: "0-16", z1: 0, z2: 16, ok: true},
		{in: "12,3", z1: 12, z2: 3, ok: true},
		{in: "7", z1: 7, z2: 7, ok: true},
		{in: "a-3"},
		{in: "3-"},
		{in: ""},
	}
	for _, tc := range cases {
		z1, z2, err := batch.ParseZoomRange(tc.in)
		if !tc.ok {
			require.Errorf(t, err, "ParseZoomRange(%q)", tc.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.z1, z1)
		require.Equal(t, tc.z2, z2)
	}
}

func TestParseBBox(t *testing.T) {
	b, err := batch.ParseBBox("139.5,36,140,35.5")
	require.NoError(t, err)
	want := orb.Bound{Min: orb.Point{139.5, 35.5}, Max: orb.Point{140, 36}}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("ParseBBox mismatch (-want+got):\n%v", diff)
	}

	_, err = batch.ParseBBox("-180,90,180,-90")
	require.NoError(t, err)

	_, err = batch.ParseBBox("0,0,1")
	require.Error(t, err)
	_, err = batch.ParseBBox("0,0,1,x")
	require.Error(t, err)
	_, err = batch.ParseBBox("0,95,1,1")
	require.ErrorIs(t, err, batch.ErrBoundRange)
}

func TestAreaWorldCount(t *testing.T) {
	a, err := batch.NewArea(0, 3, batch.World)
	require.NoError(t, err)
	require.Equal(t, int64(1), a.CountZoom(0))
	require.Equal(t, int64(64), a.CountZoom(3))
	require.Equal(t, int64(1+4+16+64), a.Count())

	x0, y0, x1, y1 := a.TileRange(3)
	require.Equal(t, [4]uint32{0, 0, 7, 7}, [4]uint32{x0, y0, x1, y1})
}

func TestAreaTileRangeBBox(t *testing.T) {
	b := tile.MercatorBox(12, 3638, 1612)
	nw := tile.MercatorToLonLat(b.Left, b.Top)
	se := tile.MercatorToLonLat(b.Right, b.Bottom)
	// shrink slightly so both corners fall inside the tile
	bound := orb.Bound{
		Min: orb.Point{nw[0] + 1e-6, se[1] + 1e-6},
		Max: orb.Point{se[0] - 1e-6, nw[1] - 1e-6},
	}
	a, err := batch.NewArea(12, 12, bound)
	require.NoError(t, err)
	require.Equal(t, []tile.Coord{{Z: 12, X: 3638, Y: 1612}}, slices.Collect(a.Tiles()))
}

func TestAreaMetatileCoversSameTiles(t *testing.T) {
	a, err := batch.NewArea(0, 4, batch.World)
	require.NoError(t, err)
	want := slices.Collect(a.Tiles())

	a.Metatile = 3
	items := slices.Collect(a.Items())
	// zoom 4 has 16x16 tiles: ceil(16/3)^2 blocks
	require.Equal(t, 1+1+4+9+36, len(items))

	got := slices.Collect(a.Tiles())
	sortCoords(want)
	sortCoords(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metatile enumeration mismatch (-want+got):\n%v", diff)
	}

	w, h := a.Span(tile.Coord{Z: 4, X: 15, Y: 12})
	require.Equal(t, uint32(1), w)
	require.Equal(t, uint32(3), h)
	w, h = a.Span(tile.Coord{Z: 1, X: 0, Y: 0})
	require.Equal(t, uint32(2), w)
	require.Equal(t, uint32(2), h)
}

func sortCoords(cs []tile.Coord) {
	slices.SortFunc(cs, func(a, b tile.Coord) int {
		pa, pb := tile.Pack(a), tile.Pack(b)
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return 0
	})
}

func TestAreaRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "type": "FeatureCollection",
  "features": [{
    "type": "Feature",
    "properties": {},
    "geometry": {"type": "Point", "coordinates": [139.7454, 35.6586]}
  }]
}`), 0o644))

	regions, err := batch.LoadRegions(path)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	a, err := batch.NewArea(10, 12, batch.World)
	require.NoError(t, err)
	a.Regions = regions
	a.Metatile = 4

	got := slices.Collect(a.Tiles())
	require.Len(t, got, 3)
	require.Equal(t, int64(3), a.Count())
	for _, c := range got {
		x, y := tile.LonLatToTile(139.7454, 35.6586, c.Z)
		require.Equal(t, tile.Coord{Z: c.Z, X: x, Y: y}, c)
	}

	_, err = batch.LoadRegions(filepath.Join(t.TempDir(), "missing.geojson"))
	require.Error(t, err)
}
