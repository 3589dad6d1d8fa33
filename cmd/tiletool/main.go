// Command tiletool 瓦片库批处理工具: expire, render, urls, locate
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"tilecache/internal/logging"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&expireCmd{}, "")
	subcommands.Register(&renderCmd{}, "")
	subcommands.Register(&urlsCmd{}, "")
	subcommands.Register(&locateCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// newLogger 日志只输出到终端 (stderr), stdout 留给数据
func newLogger(level string) *logrus.Logger {
	log, err := logging.New(logging.Config{Level: level, Terminal: true})
	if err != nil {
		// unreachable without a log dir
		log = logrus.New()
	}
	return log
}

func stringVar(f *flag.FlagSet, p *string, short, long, value, usage string) {
	f.StringVar(p, short, value, usage)
	f.StringVar(p, long, value, usage)
}

func intVar(f *flag.FlagSet, p *int, short, long string, value int, usage string) {
	f.IntVar(p, short, value, usage)
	f.IntVar(p, long, value, usage)
}

func boolVar(f *flag.FlagSet, p *bool, short, long string, usage string) {
	f.BoolVar(p, short, false, usage)
	f.BoolVar(p, long, false, usage)
}

// checkDir 基础目录必须存在
func checkDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
