package tile

import (
	"os"
	"strings"
)

// Resolver 把瓦片坐标映射到 base 目录下的绝对路径
type Resolver struct {
	base string
}

// NewResolver base is the tile store root; a trailing separator is added when missing.
func NewResolver(base string) *Resolver {
	if !strings.HasSuffix(base, string(os.PathSeparator)) && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Resolver{base: base}
}

// Base 带结尾 / 的根目录
func (r *Resolver) Base() string {
	return r.base
}

// BufSize is the buffer size that always fits PutPath's output.
func (r *Resolver) BufSize() int {
	return len(r.base) + PathBufSize
}

// PutPath writes base + physical path into buf. It fails with
// ErrPathTooLong, leaving buf untouched, when buf is shorter than BufSize.
func (r *Resolver) PutPath(buf []byte, c Coord, f Format) (int, error) {
	if len(buf) < len(r.base)+MaxPhysicalPathLen {
		return 0, ErrPathTooLong
	}
	n := copy(buf, r.base)
	n += PutPhysicalPath(buf[n:], c.Z, c.X, c.Y, f)
	return n, nil
}

// Path 瓦片的绝对路径
func (r *Resolver) Path(c Coord, f Format) string {
	buf := make([]byte, 0, len(r.base)+MaxPhysicalPathLen)
	buf = append(buf, r.base...)
	return string(AppendPhysicalPath(buf, c, f))
}

// Rewrite matches a request path suffix (z/x/y.png) and resolves it.
func (r *Resolver) Rewrite(reqPath string) (Coord, Format, string, bool) {
	c, f, ok := MatchRequestPath(reqPath)
	if !ok {
		return Coord{}, PNG, "", false
	}
	return c, f, r.Path(c, f), true
}
