package batch

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"

	"tilecache/tile"
)

var (
	// ErrZoomRange zoom 超出 [0, 20]
	ErrZoomRange = errors.New("zoom out of range")
	// ErrBoundRange 经纬度超出 [-180, 180] x [-90, 90]
	ErrBoundRange = errors.New("bbox out of range")
)

// Default render area: zoom 0-16 over the whole planet.
var (
	DefaultMinZoom uint32 = 0
	DefaultMaxZoom uint32 = 16
	World                 = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
)

// Area 批量渲染范围: 级别区间 x 经纬度范围 (或 GeoJSON 区域)
type Area struct {
	MinZoom uint32
	MaxZoom uint32
	// Bound 经纬度范围, Min 为西南角
	Bound orb.Bound
	// Metatile 每个队列元素覆盖 Metatile x Metatile 块瓦片, 0 视为 1
	Metatile uint32
	// Regions when set replaces Bound; tiles are enumerated by tile cover
	// and Metatile is ignored.
	Regions orb.Collection
}

// NewArea checks both zoom levels against [0, 20] and orders them.
func NewArea(z1, z2 uint32, bound orb.Bound) (*Area, error) {
	if z1 > tile.ZoomMax {
		return nil, fmt.Errorf("z1 = %d must be in [0, %d]: %w", z1, tile.ZoomMax, ErrZoomRange)
	}
	if z2 > tile.ZoomMax {
		return nil, fmt.Errorf("z2 = %d must be in [0, %d]: %w", z2, tile.ZoomMax, ErrZoomRange)
	}
	if z1 > z2 {
		z1, z2 = z2, z1
	}
	if err := checkBound(bound); err != nil {
		return nil, err
	}
	return &Area{MinZoom: z1, MaxZoom: z2, Bound: bound, Metatile: 1}, nil
}

func checkBound(b orb.Bound) error {
	for _, p := range []orb.Point{b.Min, b.Max} {
		if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
			return fmt.Errorf("(%g,%g) not in [-180,180]x[-90,90]: %w", p[0], p[1], ErrBoundRange)
		}
	}
	return nil
}

// ParseZoomRange 解析 "z1-z2", "z1,z2" 或单个 "z"
func ParseZoomRange(s string) (z1, z2 uint32, err error) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		lo, hi, found = strings.Cut(s, ",")
	}
	if !found {
		hi = lo
	}
	a, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zoom range %q: %w", s, err)
	}
	b, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zoom range %q: %w", s, err)
	}
	return uint32(a), uint32(b), nil
}

// ParseBBox 解析 "x1,y1,x2,y2" (两个经纬度角点, 顺序任意)
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("invalid bbox %q: want x1,y1,x2,y2", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := orb.Point{v[0], v[1]}.Bound().Extend(orb.Point{v[2], v[3]})
	if err := checkBound(b); err != nil {
		return orb.Bound{}, err
	}
	return b, nil
}

// LoadRegions 读取 GeoJSON FeatureCollection 的几何
func LoadRegions(path string) (orb.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal feature: %w", err)
	}
	var collection orb.Collection
	for _, f := range fc.Features {
		collection = append(collection, f.Geometry)
	}
	return collection, nil
}

func (a *Area) stride() uint32 {
	if a.Metatile == 0 || a.Regions != nil {
		return 1
	}
	return a.Metatile
}

// TileRange 某级别下的瓦片编号范围 (闭区间).
// Corners are clamped to the projection's domain before projecting.
func (a *Area) TileRange(z uint32) (x0, y0, x1, y1 uint32) {
	// north-west and south-east corners; tile y grows southwards
	nw := tile.ClampLonLat(orb.Point{a.Bound.Min[0], a.Bound.Max[1]})
	se := tile.ClampLonLat(orb.Point{a.Bound.Max[0], a.Bound.Min[1]})
	x0, y0 = tile.LonLatToTile(nw[0], nw[1], z)
	x1, y1 = tile.LonLatToTile(se[0], se[1], z)
	return x0, y0, x1, y1
}

// Span is the block of tiles covered by the queue item whose top-left tile
// is c, clipped to the area.
func (a *Area) Span(c tile.Coord) (w, h uint32) {
	n := a.stride()
	if a.Regions != nil {
		return 1, 1
	}
	_, _, x1, y1 := a.TileRange(c.Z)
	w, h = n, n
	if c.X <= x1 && x1-c.X+1 < w {
		w = x1 - c.X + 1
	}
	if c.Y <= y1 && y1-c.Y+1 < h {
		h = y1 - c.Y + 1
	}
	return w, h
}

// Items 队列元素序列, 每个元素为一块瓦片的左上角
func (a *Area) Items() iter.Seq[tile.Coord] {
	return func(yield func(tile.Coord) bool) {
		for z := a.MinZoom; z <= a.MaxZoom; z++ {
			if a.Regions != nil {
				if !a.coverZoom(z, yield) {
					return
				}
				continue
			}
			n := a.stride()
			x0, y0, x1, y1 := a.TileRange(z)
			for y := y0; y <= y1; y += n {
				for x := x0; x <= x1; x += n {
					if !yield(tile.Coord{Z: z, X: x, Y: y}) {
						return
					}
				}
			}
		}
	}
}

// Tiles 展开后的全部瓦片
func (a *Area) Tiles() iter.Seq[tile.Coord] {
	return func(yield func(tile.Coord) bool) {
		for c := range a.Items() {
			w, h := a.Span(c)
			for dy := uint32(0); dy < h; dy++ {
				for dx := uint32(0); dx < w; dx++ {
					if !yield(tile.Coord{Z: c.Z, X: c.X + dx, Y: c.Y + dy}) {
						return
					}
				}
			}
		}
	}
}

func (a *Area) coverZoom(z uint32, yield func(tile.Coord) bool) bool {
	ch := make(chan maptile.Tile, DefaultQueueSize)
	go tilecover.CollectionChannel(a.Regions, maptile.Zoom(z), ch)
	for t := range ch {
		if !yield(tile.Coord{Z: uint32(t.Z), X: t.X, Y: t.Y}) {
			// let the cover goroutine finish
			go func() {
				for range ch {
				}
			}()
			return false
		}
	}
	return true
}

// CountZoom 某级别的瓦片数
func (a *Area) CountZoom(z uint32) int64 {
	if a.Regions != nil {
		return tilecover.CollectionCount(a.Regions, maptile.Zoom(z))
	}
	x0, y0, x1, y1 := a.TileRange(z)
	if x1 < x0 || y1 < y0 {
		return 0
	}
	return int64(x1-x0+1) * int64(y1-y0+1)
}

// Count 总瓦片数
func (a *Area) Count() int64 {
	var total int64
	for z := a.MinZoom; z <= a.MaxZoom; z++ {
		total += a.CountZoom(z)
	}
	return total
}
