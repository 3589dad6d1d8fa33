package tile

import (
	"math"

	"github.com/paulmach/orb"
)

// Spherical Mercator (EPSG:3857) constants.
const (
	EarthRadius = 6378137.0

	// OriginShift 半个赤道周长, 20037508.342789244
	OriginShift = math.Pi * EarthRadius

	// InitialResolution zoom 0 时每像素米数, 156543.03392804097
	InitialResolution = 2 * math.Pi * EarthRadius / TileSize

	// LatLimit Mercator projection limits the lat value to this.
	LatLimit = 85.0511

	// LonLimit 经度取值范围是 [-180, 180), 180 本身要稍微往回挪一点
	LonLimit = 180.0 - 0.0000001
)

// Box 墨卡托坐标系下的瓦片范围 (米)
type Box struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Bound 转为 orb.Bound
func (b Box) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Left, b.Bottom},
		Max: orb.Point{b.Right, b.Top},
	}
}

func resolution(zoom uint32) float64 {
	return InitialResolution / float64(uint64(1)<<zoom)
}

// TileOrigin 瓦片左上角的墨卡托坐标
//
//	e.g. TileOrigin(12, 3638, 1612) == (15556463.996599074, 4265797.674539117)
func TileOrigin(zoom, x, y uint32) (mx, my float64) {
	res := resolution(zoom)
	mx = TileSize*float64(x)*res - OriginShift
	my = -(TileSize*float64(y)*res - OriginShift)
	return mx, my
}

// MercatorBox 瓦片的墨卡托范围
func MercatorBox(zoom, x, y uint32) Box {
	res := resolution(zoom)
	return Box{
		Left:   TileSize*float64(x)*res - OriginShift,
		Top:    -(TileSize*float64(y)*res - OriginShift),
		Right:  TileSize*(float64(x)+1)*res - OriginShift,
		Bottom: -(TileSize*(float64(y)+1)*res - OriginShift),
	}
}

// SpanBox covers the w x h block of tiles whose top-left tile is (x, y).
func SpanBox(zoom, x, y, w, h uint32) Box {
	left, top := TileOrigin(zoom, x, y)
	right, bottom := TileOrigin(zoom, x+w, y+h)
	return Box{Left: left, Top: top, Right: right, Bottom: bottom}
}

// MercatorToLonLat 墨卡托坐标转经纬度
func MercatorToLonLat(mx, my float64) orb.Point {
	lon := mx / OriginShift * 180.0
	lat := my / OriginShift * 180.0
	lat = 180.0 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return orb.Point{lon, lat}
}

// LonLatToTile 经纬度转瓦片坐标 (slippy map).
//
// Latitude is NOT clamped: callers must apply ClampLonLat first, the
// projection diverges towards the poles.
func LonLatToTile(lon, lat float64, zoom uint32) (x, y uint32) {
	n := float64(uint64(1) << zoom)
	x = uint32((lon + 180.0) / 360.0 * n)

	rad := lat * math.Pi / 180.0
	secant := 1.0 / math.Cos(rad)
	logTanSec := math.Log(math.Tan(rad) + secant)
	v := 1.0 - logTanSec/math.Pi
	y = uint32(math.Floor(v / 2.0 * n))
	return x, y
}

// ClampLonLat fits a point into the range the projection is defined on.
func ClampLonLat(p orb.Point) orb.Point {
	lon := math.Max(-180.0, math.Min(p[0], LonLimit))
	lat := math.Max(-LatLimit, math.Min(p[1], LatLimit))
	return orb.Point{lon, lat}
}
