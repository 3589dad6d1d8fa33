package tile_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilecache/tile"
)

func TestPhysicalPathGolden(t *testing.T) {
	cases := []struct {
		c    tile.Coord
		f    tile.Format
		want string
	}{
		{c: tile.Coord{Z: 12, X: 3638, Y: 1612}, f: tile.PNG, want: "12/0/0/230/52/108.png"},
		{c: tile.Coord{Z: 0, X: 0, Y: 0}, f: tile.PNG, want: "0/0/0/0/0/0.png"},
		{c: tile.Coord{Z: 1, X: 1, Y: 1}, f: tile.JPG, want: "1/0/0/0/0/17.jpg"},
		{c: tile.Coord{Z: 20, X: 1<<20 - 1, Y: 1<<20 - 1}, f: tile.PNG, want: "20/255/255/255/255/255.png"},
		{c: tile.Coord{Z: 112, X: 0, Y: 0}, f: tile.PNG, want: "12/0/0/0/0/0.png"},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, tile.PhysicalPath(tc.c, tc.f)); diff != "" {
			t.Errorf("PhysicalPath(%v) mismatch (-want+got):\n%v", tc.c, diff)
		}
	}
}

func TestPhysicalPathMaxLength(t *testing.T) {
	buf := make([]byte, tile.PathBufSize)
	n := tile.PutPhysicalPath(buf, 99, 0xFFFFFFFF, 0xFFFFFFFF, tile.JPG)
	require.Equal(t, tile.MaxPhysicalPathLen, n)
	require.Equal(t, "99/255/255/255/255/255.jpg", string(buf[:n]))
	require.Equal(t, byte(0), buf[n])
}

func TestPhysicalPathRoundTrip(t *testing.T) {
	xs := []uint32{0, 1, 15, 16, 255, 256, 3638, 65535, 1<<20 - 1, 1<<20 + 5, 0xFFFFFFFF}
	for z := uint32(0); z <= tile.ZoomMax; z++ {
		for _, x := range xs {
			for _, y := range xs {
				for _, f := range []tile.Format{tile.PNG, tile.JPG} {
					c := tile.Coord{Z: z, X: x, Y: y}
					p := tile.PhysicalPath(c, f)
					if len(p) > tile.MaxPhysicalPathLen {
						t.Fatalf("PhysicalPath(%v) = %q exceeds %d bytes", c, p, tile.MaxPhysicalPathLen)
					}
					got, gotFormat, ok := tile.ParsePhysicalPath(p)
					require.Truef(t, ok, "ParsePhysicalPath(%q)", p)
					want := tile.Coord{Z: z % 100, X: x % (1 << 20), Y: y % (1 << 20)}
					if diff := cmp.Diff(want, got); diff != "" {
						t.Errorf("ParsePhysicalPath(%q) mismatch (-want+got):\n%v", p, diff)
					}
					require.Equal(t, f, gotFormat)
				}
			}
		}
	}
}

func TestParsePhysicalPathRejects(t *testing.T) {
	for _, p := range []string{
		"",
		"12/0/0/230/52.png",
		"12/0/0/230/52/108",
		"12/0/0/256/52/108.png",
		"12/0/0/230/52/108.PNG",
		"12/0/0/230/52/1080.png",
		"123/0/0/230/52/108.png",
		"12/0/0/230/52/108.png/",
	} {
		_, _, ok := tile.ParsePhysicalPath(p)
		assert.Falsef(t, ok, "ParsePhysicalPath(%q)", p)
	}
}

func TestMatchRequestPath(t *testing.T) {
	cases := []struct {
		path   string
		ok     bool
		want   tile.Coord
		format tile.Format
	}{
		{path: "7/3/5.png", ok: true, want: tile.Coord{Z: 7, X: 3, Y: 5}, format: tile.PNG},
		{path: "07/3/5.png", ok: true, want: tile.Coord{Z: 7, X: 3, Y: 5}, format: tile.PNG},
		{path: "12/3638/1612.jpg", ok: true, want: tile.Coord{Z: 12, X: 3638, Y: 1612}, format: tile.JPG},
		{path: "20/999999999/999999999.png", ok: true, want: tile.Coord{Z: 20, X: 999999999, Y: 999999999}, format: tile.PNG},
		{path: "7/3/5.PNG"},
		{path: "7/3/5.gif"},
		{path: "7/3/5"},
		{path: "7/3/5."},
		{path: "7/3.png"},
		{path: "/7/3/5.png"},
		{path: "7/3/5.pngx"},
		{path: "7//5.png"},
		{path: "123/3/5.png"},
		{path: "7/1234567890/5.png"},
		{path: "7/3/1234567890.png"},
		{path: "7/a/5.png"},
		{path: "7-3-5.png"},
		{path: ""},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			got, f, ok := tile.MatchRequestPath(tc.path)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("MatchRequestPath(%q) mismatch (-want+got):\n%v", tc.path, diff)
			}
			require.Equal(t, tc.format, f)
		})
	}
}

func TestResolver(t *testing.T) {
	r := tile.NewResolver("/var/lib/tiles")
	require.Equal(t, "/var/lib/tiles/", r.Base())

	c := tile.Coord{Z: 12, X: 3638, Y: 1612}
	require.Equal(t, "/var/lib/tiles/12/0/0/230/52/108.png", r.Path(c, tile.PNG))

	buf := make([]byte, r.BufSize())
	n, err := r.PutPath(buf, c, tile.JPG)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/tiles/12/0/0/230/52/108.jpg", string(buf[:n]))

	_, err = r.PutPath(make([]byte, len(r.Base())+tile.MaxPhysicalPathLen-1), c, tile.PNG)
	require.ErrorIs(t, err, tile.ErrPathTooLong)

	got, f, p, ok := r.Rewrite("12/3638/1612.png")
	require.True(t, ok)
	require.Equal(t, c, got)
	require.Equal(t, tile.PNG, f)
	require.True(t, strings.HasSuffix(p, "/12/0/0/230/52/108.png"))

	_, _, _, ok = r.Rewrite("12/3638/1612.webp")
	require.False(t, ok)
}

func TestPackUnpack(t *testing.T) {
	for _, c := range []tile.Coord{
		{Z: 0, X: 0, Y: 0},
		{Z: 12, X: 3638, Y: 1612},
		{Z: 20, X: 1<<20 - 1, Y: 1<<20 - 1},
		{Z: 0xFFFF, X: 0xFFFFFF, Y: 0xFFFFFF},
	} {
		if diff := cmp.Diff(c, tile.Pack(c).Unpack()); diff != "" {
			t.Errorf("Pack(%v).Unpack() mismatch (-want+got):\n%v", c, diff)
		}
	}

	truncated := tile.Pack(tile.Coord{Z: 0x10001, X: 0x1000002, Y: 0x1000003}).Unpack()
	require.Equal(t, tile.Coord{Z: 1, X: 2, Y: 3}, truncated)
}

func TestCoordValid(t *testing.T) {
	require.True(t, tile.Coord{Z: 0, X: 0, Y: 0}.Valid())
	require.True(t, tile.Coord{Z: 2, X: 3, Y: 3}.Valid())
	require.False(t, tile.Coord{Z: 2, X: 4, Y: 0}.Valid())
	require.False(t, tile.Coord{Z: 21, X: 0, Y: 0}.Valid())
	require.Equal(t, "12/3638/1612", tile.Coord{Z: 12, X: 3638, Y: 1612}.String())
}
