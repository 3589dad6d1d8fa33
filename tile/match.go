package tile

// MatchRequestPath 匹配请求路径 <zoom>/<x>/<y>.<png|jpg>.
//
//	zoom = \d{1,2}
//	x, y = \d{1,9}
//
// Anything else, including trailing bytes and upper case suffixes, fails.
// Digits accumulate as v = v*10 + d with no overflow check: a 9 digit value
// still fits uint32, so wraparound only matters to callers feeding the
// result back with wider types.
func MatchRequestPath(p string) (Coord, Format, bool) {
	var c Coord
	var ok bool
	i := 0

	if c.Z, i, ok = lexDecimal(p, i, 2, '/'); !ok {
		return Coord{}, PNG, false
	}
	if c.X, i, ok = lexDecimal(p, i, 9, '/'); !ok {
		return Coord{}, PNG, false
	}
	if c.Y, i, ok = lexDecimal(p, i, 9, '.'); !ok {
		return Coord{}, PNG, false
	}

	f, ok := ParseFormat(p[i:])
	if !ok {
		return Coord{}, PNG, false
	}
	return c, f, true
}

// lexDecimal reads 1..maxDigits decimal digits starting at p[i] followed by
// delim, and returns the value and the index just past delim.
func lexDecimal(p string, i, maxDigits int, delim byte) (uint32, int, bool) {
	var v uint32
	digits := 0
	for i < len(p) {
		ch := p[i]
		switch {
		case ch >= '0' && ch <= '9':
			if digits == maxDigits {
				return 0, i, false
			}
			v = v*10 + uint32(ch-'0')
			digits++
			i++
		case ch == delim && digits > 0:
			return v, i + 1, true
		default:
			return 0, i, false
		}
	}
	return 0, i, false
}
