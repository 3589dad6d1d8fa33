package tile

import "errors"

// MaxPhysicalPathLen 物理路径最大长度.
//
// A physical path has the form zz/nnn/nnn/nnn/nnn/nnn.sfx: at most 2 digits
// of zoom, five 1-3 digit shard bytes and a 3 letter suffix, 26 bytes in all.
const MaxPhysicalPathLen = 26

// PathBufSize 调用方缓冲区的约定大小 (26 字节路径 + NUL)
const PathBufSize = MaxPhysicalPathLen + 1

// ErrPathTooLong is returned when a path does not fit the caller's buffer.
var ErrPathTooLong = errors.New("tile: physical path does not fit buffer")

// PutPhysicalPath writes the physical path of (zoom, x, y, f) into buf and
// returns the number of bytes written, never more than MaxPhysicalPathLen.
//
// buf MUST be at least MaxPhysicalPathLen bytes long. The length is not
// checked up front; a shorter buffer panics with an index out of range.
//
// The mapping follows mod_tile's 4bit-wise pairing: x and y are split into
// five bytes, each holding one nibble of x (high half) and the matching
// nibble of y (low half), and the most significant byte becomes the top
// level directory. This layout is shared with existing tile stores and must
// not change.
func PutPhysicalPath(buf []byte, zoom, x, y uint32, f Format) int {
	var hash [5]byte
	for i := 0; i < 5; i++ {
		hash[i] = byte((x&0x0f)<<4 | (y & 0x0f))
		x >>= 4
		y >>= 4
	}

	n := putDecimal(buf, 0, zoom%100)
	for i := 4; i >= 0; i-- {
		buf[n] = '/'
		n = putDecimal(buf, n+1, uint32(hash[i]))
	}
	buf[n] = '.'
	n++
	n += copy(buf[n:], f.String())
	return n
}

// putDecimal writes v (< 1000) at buf[i:] and returns the next index.
func putDecimal(buf []byte, i int, v uint32) int {
	switch {
	case v >= 100:
		buf[i] = byte('0' + v/100)
		buf[i+1] = byte('0' + v/10%10)
		buf[i+2] = byte('0' + v%10)
		return i + 3
	case v >= 10:
		buf[i] = byte('0' + v/10)
		buf[i+1] = byte('0' + v%10)
		return i + 2
	default:
		buf[i] = byte('0' + v)
		return i + 1
	}
}

// AppendPhysicalPath appends the physical path of c to dst.
func AppendPhysicalPath(dst []byte, c Coord, f Format) []byte {
	var buf [MaxPhysicalPathLen]byte
	n := PutPhysicalPath(buf[:], c.Z, c.X, c.Y, f)
	return append(dst, buf[:n]...)
}

// PhysicalPath 物理路径 (相对路径, 没有开头的 /)
func PhysicalPath(c Coord, f Format) string {
	var buf [MaxPhysicalPathLen]byte
	n := PutPhysicalPath(buf[:], c.Z, c.X, c.Y, f)
	return string(buf[:n])
}

// ParsePhysicalPath 物理路径转回逻辑坐标.
//
// It accepts exactly zz/nnn/nnn/nnn/nnn/nnn.sfx with every nnn in [0, 255]
// and reverses the nibble pairing. Only the low 20 bits of x and y survive
// the round trip, and zoom comes back modulo 100.
func ParsePhysicalPath(p string) (Coord, Format, bool) {
	var c Coord
	i := 0

	z, i, ok := lexDecimal(p, i, 2, '/')
	if !ok {
		return c, PNG, false
	}
	c.Z = z

	for shard := 4; shard >= 0; shard-- {
		delim := byte('/')
		if shard == 0 {
			delim = '.'
		}
		var b uint32
		b, i, ok = lexDecimal(p, i, 3, delim)
		if !ok || b > 0xff {
			return Coord{}, PNG, false
		}
		c.X |= (b >> 4) << (4 * uint(shard))
		c.Y |= (b & 0x0f) << (4 * uint(shard))
	}

	f, ok := ParseFormat(p[i:])
	if !ok {
		return Coord{}, PNG, false
	}
	return c, f, true
}
