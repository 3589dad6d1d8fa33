package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"tilecache/batch"
	"tilecache/tile"
)

type urlsCmd struct {
	prefix   string
	zoom     string
	bbox     string
	suffix   string
	physical bool
	logLevel string
}

func (c *urlsCmd) Name() string     { return "urls" }
func (c *urlsCmd) Synopsis() string { return "print the URL or physical path of every tile in an area" }
func (c *urlsCmd) Usage() string {
	return `tiletool urls [--prefix <url or dir>] [-z 0-16] [-b x1,y1,x2,y2] [--suffix png|jpg] [--physical]
  Prints <prefix>/<z>/<x>/<y>.<suffix>, or <prefix>/<physical path> with
  --physical, one tile per line.
`
}

func (c *urlsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.prefix, "prefix", "", "prepended to every line")
	stringVar(f, &c.zoom, "z", "zoom", "0-16", "zoom `range` z1-z2")
	stringVar(f, &c.bbox, "b", "bbox", "-180,90,180,-90", "bounding box x1,y1,x2,y2 in degrees")
	f.StringVar(&c.suffix, "suffix", "png", "png or jpg")
	f.BoolVar(&c.physical, "physical", false, "print physical paths instead of z/x/y")
	stringVar(f, &c.logLevel, "l", "log-level", "info", "log `level`")
}

func (c *urlsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := newLogger(c.logLevel)

	format, ok := tile.ParseFormat(c.suffix)
	if !ok {
		log.Errorf("--suffix %q must be png or jpg", c.suffix)
		return subcommands.ExitUsageError
	}
	z1, z2, err := batch.ParseZoomRange(c.zoom)
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}
	bound, err := batch.ParseBBox(c.bbox)
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}
	area, err := batch.NewArea(z1, z2, bound)
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}

	w := bufio.NewWriter(os.Stdout)
	prefix := strings.TrimRight(c.prefix, "/")
	line := make([]byte, 0, len(prefix)+64)
	for t := range area.Tiles() {
		if ctx.Err() != nil {
			break
		}
		line = append(line[:0], prefix...)
		line = append(line, '/')
		line = appendTile(line, t, format, c.physical)
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
	}
	if err := w.Flush(); err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// appendTile z/x/y.sfx or the physical path
func appendTile(dst []byte, c tile.Coord, f tile.Format, physical bool) []byte {
	if physical {
		return tile.AppendPhysicalPath(dst, c, f)
	}
	dst = strconv.AppendUint(dst, uint64(c.Z), 10)
	dst = append(dst, '/')
	dst = strconv.AppendUint(dst, uint64(c.X), 10)
	dst = append(dst, '/')
	dst = strconv.AppendUint(dst, uint64(c.Y), 10)
	dst = append(dst, '.')
	return append(dst, f.String()...)
}
