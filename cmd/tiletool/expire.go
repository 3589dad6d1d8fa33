package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/google/subcommands"

	"tilecache/batch"
	"tilecache/tile"
)

type expireCmd struct {
	prefix   string
	file     string
	threads  int
	dryRun   bool
	echoBack bool
	format   string
	quiet    bool
	logLevel string
}

func (c *expireCmd) Name() string     { return "expire" }
func (c *expireCmd) Synopsis() string { return "remove the tiles listed as z/x/y from a tile store" }
func (c *expireCmd) Usage() string {
	return `tiletool expire -p <base path> [-f <list file>] [-t <threads>] [-d] [-e] [--format png|jpg]
  Reads z/x/y lines from the list file (default stdin) and unlinks the
  matching tiles. Malformed lines are warned and skipped.
`
}

func (c *expireCmd) SetFlags(f *flag.FlagSet) {
	stringVar(f, &c.prefix, "p", "prefix", "", "tile store `base` path (required)")
	stringVar(f, &c.file, "f", "file", "-", "tile list `file`, - for stdin")
	intVar(f, &c.threads, "t", "threads", 0, "worker threads, 0 = number of CPUs")
	boolVar(f, &c.dryRun, "d", "dry-run", "print the paths that would be removed")
	boolVar(f, &c.echoBack, "e", "echo-back", "print z/x/y of every removed tile to stdout")
	f.StringVar(&c.format, "format", "png", "suffix of the expired tiles, png or jpg")
	boolVar(f, &c.quiet, "q", "quiet", "no progress spinner")
	stringVar(f, &c.logLevel, "l", "log-level", "info", "log `level`")
}

func (c *expireCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := newLogger(c.logLevel)

	if c.prefix == "" {
		log.Error("--prefix is required")
		return subcommands.ExitUsageError
	}
	format, ok := tile.ParseFormat(c.format)
	if !ok {
		log.Errorf("--format %q must be png or jpg", c.format)
		return subcommands.ExitUsageError
	}
	if err := checkDir(c.prefix); err != nil {
		log.Errorf("base path: %v", err)
		return subcommands.ExitFailure
	}

	var in io.Reader = os.Stdin
	if c.file != "-" && c.file != "" {
		file, err := os.Open(c.file)
		if err != nil {
			log.Errorf("tile list: %v", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		in = file
	}

	var spinner *batch.Spinner
	if !c.quiet {
		spinner = batch.NewSpinner(os.Stderr, "expire")
	}
	run := batch.NewRun(batch.Options{Threads: c.threads, Log: log})
	_, err := batch.Expire(ctx, run, batch.NewListReader(in, run.Log()), batch.ExpireOptions{
		Resolver: tile.NewResolver(c.prefix),
		Format:   format,
		DryRun:   c.dryRun,
		EchoBack: c.echoBack,
		Out:      os.Stdout,
		Spinner:  spinner,
	})
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	if c.dryRun {
		run.Log().Infof("dry run: %d tiles would be removed", run.Removed())
	}
	return subcommands.ExitSuccess
}
