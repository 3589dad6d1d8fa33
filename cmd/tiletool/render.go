package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"tilecache/batch"
	"tilecache/internal/safeexit"
	"tilecache/render"
	"tilecache/store"
	"tilecache/tile"
)

// maxMetatile bounds the n x n block one request may cover.
const maxMetatile = 16

type renderCmd struct {
	style        string
	prefix       string
	zoom         string
	bbox         string
	threads      int
	skipExisting bool
	dryRun       bool
	metatile     int
	resume       string
	geojson      string
	quiet        bool
	logLevel     string
}

func (c *renderCmd) Name() string     { return "render" }
func (c *renderCmd) Synopsis() string { return "render every tile of a zoom range and bbox into a tile store" }
func (c *renderCmd) Usage() string {
	return `tiletool render -c <style file> -p <base path> [-z 0-16] [-b x1,y1,x2,y2] [-t <threads>] [-s] [-d]
  [--metatile n] [--resume <journal>] [--geojson <regions>]
`
}

func (c *renderCmd) SetFlags(f *flag.FlagSet) {
	stringVar(f, &c.style, "c", "config", "", "renderer style `file` (required)")
	stringVar(f, &c.prefix, "p", "prefix", "", "tile store `base` path (required)")
	stringVar(f, &c.zoom, "z", "zoom", "0-16", "zoom `range` z1-z2")
	stringVar(f, &c.bbox, "b", "bbox", "-180,90,180,-90", "bounding box x1,y1,x2,y2 in degrees")
	intVar(f, &c.threads, "t", "threads", 0, "worker threads, 0 = number of CPUs")
	boolVar(f, &c.skipExisting, "s", "skip-existing", "do not render tiles already on disk")
	boolVar(f, &c.dryRun, "d", "dry-run", "print the tile count per zoom and exit")
	f.IntVar(&c.metatile, "metatile", 1, "render n x n tiles per request")
	f.StringVar(&c.resume, "resume", "", "resume journal `file`")
	f.StringVar(&c.geojson, "geojson", "", "only render tiles covering the geometries of this GeoJSON `file`")
	boolVar(f, &c.quiet, "q", "quiet", "no progress bar")
	stringVar(f, &c.logLevel, "l", "log-level", "info", "log `level`")
}

func (c *renderCmd) area(log logrus.FieldLogger) (*batch.Area, error) {
	z1, z2, err := batch.ParseZoomRange(c.zoom)
	if err != nil {
		return nil, err
	}
	bound, err := batch.ParseBBox(c.bbox)
	if err != nil {
		return nil, err
	}
	area, err := batch.NewArea(z1, z2, bound)
	if err != nil {
		return nil, err
	}
	if c.metatile < 1 || c.metatile > maxMetatile {
		return nil, fmt.Errorf("--metatile %d must be in [1, %d]", c.metatile, maxMetatile)
	}
	area.Metatile = uint32(c.metatile)
	if c.geojson != "" {
		regions, err := batch.LoadRegions(c.geojson)
		if err != nil {
			return nil, err
		}
		if area.Metatile > 1 {
			log.Warn("--geojson renders tile by tile, --metatile ignored")
		}
		area.Regions = regions
	}
	return area, nil
}

func (c *renderCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := newLogger(c.logLevel)

	if c.style == "" || c.prefix == "" {
		log.Error("--config and --prefix are required")
		return subcommands.ExitUsageError
	}
	area, err := c.area(log)
	if err != nil {
		log.Error(err)
		return subcommands.ExitUsageError
	}
	if c.dryRun {
		batch.Plan(os.Stdout, area)
		return subcommands.ExitSuccess
	}

	style, err := render.LoadStyle(c.style)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	factory, err := render.NewFactory(style, log)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	if area.Metatile > 1 && !factory.SupportsSpan() {
		log.Warnf("style %s renders single tiles only, --metatile %d ignored", factory.Style().Name, area.Metatile)
		area.Metatile = 1
	}
	if err := checkDir(c.prefix); err != nil {
		log.Errorf("base path: %v", err)
		return subcommands.ExitFailure
	}

	run := batch.NewRun(batch.Options{Threads: c.threads, Log: log})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	exit := safeexit.New(log)
	exit.Register(func() { run.Log().Warn(run.Summary().String()) })
	exit.Register(cancel)

	var journal *batch.Journal
	if c.resume != "" {
		journal, err = batch.OpenJournal(c.resume, log)
		if err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
		defer journal.Close()
		// 退出前落盘断点
		exit.Register(func() { journal.Close() })
	}
	stop := exit.Listen()
	defer stop()

	var barOut io.Writer = os.Stderr
	if c.quiet {
		barOut = nil
	}
	total := area.Count()
	run.Log().WithFields(logrus.Fields{
		"style":   style.Name,
		"zoom":    c.zoom,
		"bbox":    c.bbox,
		"tiles":   total,
		"threads": run.Threads,
	}).Info("render started")

	_, err = batch.Render(ctx, run, batch.RenderOptions{
		Resolver:     tile.NewResolver(c.prefix),
		Factory:      factory,
		Writer:       store.NewWriter(log),
		Area:         area,
		SkipExisting: c.skipExisting,
		Journal:      journal,
		Progress:     batch.NewProgress(run, total, barOut),
	})
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	if failed := run.Failed(); failed > 0 {
		run.Log().Warnf("%d tiles rendered, %d tiles failed to render", run.Rendered(), failed)
	}
	return subcommands.ExitSuccess
}
