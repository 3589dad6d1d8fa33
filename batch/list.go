package batch

import (
	"bufio"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"tilecache/tile"
)

// ParseTileLine 解析瓦片列表的一行 "z/x/y" (无后缀)
func ParseTileLine(line string) (tile.Coord, bool) {
	parts := strings.Split(line, "/")
	if len(parts) != 3 {
		return tile.Coord{}, false
	}
	var v [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return tile.Coord{}, false
		}
		v[i] = uint32(n)
	}
	return tile.Coord{Z: v[0], X: v[1], Y: v[2]}, true
}

// ListReader 逐行读取瓦片列表; 格式错误的行记警告并跳过
type ListReader struct {
	r   io.Reader
	log logrus.FieldLogger

	lines     int64
	malformed int64
	err       error
}

// NewListReader log may be nil.
func NewListReader(r io.Reader, log logrus.FieldLogger) *ListReader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ListReader{r: r, log: log}
}

// Coords yields the coordinate of every well formed line. Blank lines are
// ignored without a warning.
func (l *ListReader) Coords() iter.Seq[tile.Coord] {
	return func(yield func(tile.Coord) bool) {
		sc := bufio.NewScanner(l.r)
		for sc.Scan() {
			l.lines++
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			c, ok := ParseTileLine(line)
			if !ok {
				l.malformed++
				l.log.Warnf("skipped illformed line: %s (line at %d)", line, l.lines)
				continue
			}
			if !yield(c) {
				return
			}
		}
		l.err = sc.Err()
	}
}

// Err 读取错误 (不含格式错误)
func (l *ListReader) Err() error {
	return l.err
}

// Lines 已读行数
func (l *ListReader) Lines() int64 {
	return l.lines
}

// Malformed 跳过的行数
func (l *ListReader) Malformed() int64 {
	return l.malformed
}
