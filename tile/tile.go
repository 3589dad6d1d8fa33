// Package tile 瓦片寻址: 逻辑坐标 (z/x/y)、墨卡托投影、分片物理路径与请求路径匹配.
package tile

import "fmt"

// TileSize 默认瓦片大小
const TileSize = 256

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax 最大级别
const ZoomMax = 20

// Format 瓦片图片格式
type Format uint8

// Constants representing TileFormat types
const (
	PNG Format = iota
	JPG
)

// String 文件后缀 (小写)
func (f Format) String() string {
	switch f {
	case JPG:
		return "jpg"
	default:
		// failover
		return "png"
	}
}

// MIMEType 响应头 Content-Type
func (f Format) MIMEType() string {
	if f == JPG {
		return "image/jpeg"
	}
	return "image/png"
}

// ParseFormat 解析后缀, 只接受小写的 png / jpg
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "png":
		return PNG, true
	case "jpg":
		return JPG, true
	}
	return PNG, false
}

// Coord 瓦片逻辑坐标.
//
// No range validation is done anywhere in this package: Z above 20 and X, Y
// beyond 2^Z-1 are accepted and map to a well-defined (if meaningless) path.
type Coord struct {
	Z uint32
	X uint32
	Y uint32
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether X and Y lie inside the grid of zoom Z and Z <= ZoomMax.
func (c Coord) Valid() bool {
	return c.Z <= ZoomMax && c.X < (1<<c.Z) && c.Y < (1<<c.Z)
}

// PackedID 打包后的瓦片编号: zoom 16 bits, x 24 bits, y 24 bits.
// Wider values are truncated silently.
type PackedID uint64

// Pack 打包
func Pack(c Coord) PackedID {
	v := uint64(c.Z & 0xFFFF)
	v = v<<24 | uint64(c.X&0xFFFFFF)
	v = v<<24 | uint64(c.Y&0xFFFFFF)
	return PackedID(v)
}

// Unpack 解包
func (p PackedID) Unpack() Coord {
	v := uint64(p)
	y := uint32(v & 0xFFFFFF)
	v >>= 24
	x := uint32(v & 0xFFFFFF)
	v >>= 24
	return Coord{Z: uint32(v & 0xFFFF), X: x, Y: y}
}
