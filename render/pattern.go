package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"tilecache/tile"
)

// Pattern 调试渲染器: 背景色 + 瓦片边框 + z/x/y 标签
type Pattern struct {
	tileSize   int
	background color.RGBA
	grid       color.RGBA
	face       font.Face
}

// NewPattern 按样式创建
func NewPattern(style *Style) (*Pattern, error) {
	bg, err := parseHexColor(style.Pattern.Background)
	if err != nil {
		return nil, err
	}
	grid, err := parseHexColor(style.Pattern.Grid)
	if err != nil {
		return nil, err
	}
	size := style.TileSize
	if size <= 0 {
		size = tile.TileSize
	}
	return &Pattern{
		tileSize:   size,
		background: bg,
		grid:       grid,
		face:       basicfont.Face7x13,
	}, nil
}

// Render 渲染 W x H 块瓦片为一张图
func (p *Pattern) Render(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, int(req.W)*p.tileSize, int(req.H)*p.tileSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(p.background), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: p.face}
	for dy := 0; dy < int(req.H); dy++ {
		for dx := 0; dx < int(req.W); dx++ {
			r := image.Rect(dx*p.tileSize, dy*p.tileSize, (dx+1)*p.tileSize, (dy+1)*p.tileSize)
			p.frame(img, r)
			label := fmt.Sprintf("%d/%d/%d", req.Z, req.X+uint32(dx), req.Y+uint32(dy))
			d.Dot = fixed.P(r.Min.X+8, r.Min.Y+8+p.face.Metrics().Ascent.Ceil())
			d.DrawString(label)
		}
	}
	return Encode(img, req.Format)
}

func (p *Pattern) frame(img *image.RGBA, r image.Rectangle) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, p.grid)
		img.SetRGBA(x, r.Max.Y-1, p.grid)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, p.grid)
		img.SetRGBA(r.Max.X-1, y, p.grid)
	}
}

// Encode 按格式编码
func Encode(img image.Image, f tile.Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case tile.JPG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseHexColor 解析 #rrggbb 或 #rrggbbaa
func parseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
