package render

import (
	"bytes"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"tilecache/tile"
)

// Piece 切片后的单张瓦片
type Piece struct {
	Coord tile.Coord
	Data  []byte
}

// Slice cuts a rendered W x H metatile into single tiles at their absolute
// coordinates. A single tile request is returned as is.
func Slice(req Request, data []byte, tileSize int) ([]Piece, error) {
	if req.Single() {
		return []Piece{{Coord: req.Coord(), Data: data}}, nil
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode metatile %v: %w", req.Coord(), err)
	}
	b := src.Bounds()
	if b.Dx() < int(req.W)*tileSize || b.Dy() < int(req.H)*tileSize {
		return nil, fmt.Errorf("metatile %v is %dx%d, want %dx%d", req.Coord(),
			b.Dx(), b.Dy(), int(req.W)*tileSize, int(req.H)*tileSize)
	}

	pieces := make([]Piece, 0, req.W*req.H)
	for dy := uint32(0); dy < req.H; dy++ {
		for dx := uint32(0); dx < req.W; dx++ {
			r := image.Rect(int(dx)*tileSize, int(dy)*tileSize, int(dx+1)*tileSize, int(dy+1)*tileSize).Add(b.Min)
			dst := image.NewRGBA(image.Rect(0, 0, tileSize, tileSize))
			draw.Copy(dst, image.Point{}, src, r, draw.Src, nil)
			out, err := Encode(dst, req.Format)
			if err != nil {
				return nil, err
			}
			pieces = append(pieces, Piece{
				Coord: tile.Coord{Z: req.Z, X: req.X + dx, Y: req.Y + dy},
				Data:  out,
			})
		}
	}
	return pieces, nil
}
