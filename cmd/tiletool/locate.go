package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"tilecache/batch"
	"tilecache/tile"
)

type locateCmd struct {
	prefix string
	suffix string
}

func (c *locateCmd) Name() string     { return "locate" }
func (c *locateCmd) Synopsis() string { return "convert between z/x/y and physical tile paths" }
func (c *locateCmd) Usage() string {
	return `tiletool locate [-p <base path>] [--suffix png|jpg] <z/x/y[.sfx] | physical path>...
  z/x/y prints the physical path, a physical path prints z/x/y.
`
}

func (c *locateCmd) SetFlags(f *flag.FlagSet) {
	stringVar(f, &c.prefix, "p", "prefix", "", "tile store `base` path, prepended to / stripped from physical paths")
	f.StringVar(&c.suffix, "suffix", "png", "suffix for z/x/y arguments without one")
}

func (c *locateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	def, ok := tile.ParseFormat(c.suffix)
	if !ok {
		fmt.Fprintf(os.Stderr, "--suffix %q must be png or jpg\n", c.suffix)
		return subcommands.ExitUsageError
	}

	var resolver *tile.Resolver
	if c.prefix != "" {
		resolver = tile.NewResolver(c.prefix)
	}
	status := subcommands.ExitSuccess
	for _, arg := range f.Args() {
		out, ok := c.locate(resolver, arg, def)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: not a tile coordinate or physical path\n", arg)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Println(out)
	}
	return status
}

func (c *locateCmd) locate(resolver *tile.Resolver, arg string, def tile.Format) (string, bool) {
	if coord, f, ok := tile.MatchRequestPath(arg); ok {
		return c.physical(resolver, coord, f), true
	}
	if coord, ok := batch.ParseTileLine(arg); ok {
		return c.physical(resolver, coord, def), true
	}

	rel := arg
	if resolver != nil {
		rel = strings.TrimPrefix(rel, resolver.Base())
	}
	if coord, f, ok := tile.ParsePhysicalPath(rel); ok {
		return fmt.Sprintf("%s.%s", coord, f), true
	}
	return "", false
}

func (c *locateCmd) physical(resolver *tile.Resolver, coord tile.Coord, f tile.Format) string {
	if !coord.Valid() {
		fmt.Fprintf(os.Stderr, "%s is outside the zoom %d grid\n", coord, coord.Z)
	}
	if resolver != nil {
		return resolver.Path(coord, f)
	}
	return tile.PhysicalPath(coord, f)
}
