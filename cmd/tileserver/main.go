// Command tileserver 按需瓦片服务
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"tilecache/internal/config"
	"tilecache/internal/logging"
	"tilecache/internal/safeexit"
	"tilecache/render"
	"tilecache/server"
	"tilecache/store"
	"tilecache/tile"
)

const (
	version         = "tileserver/v0.1.0"
	shutdownTimeout = 10 * time.Second
)

var (
	hf         bool
	configPath string
	logLevel   string
)

func initFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/tileserver.toml", "set config `file`")
	flag.StringVar(&logLevel, "l", "", "override log.level from the config")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `tileserver version: %s
Usage: tileserver [-h] [-c filename] [-l logLevel]
`, version)
	flag.PrintDefaults()
}

func main() {
	initFlag()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tileserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		conf.Log.Level = logLevel
	}
	log, err := logging.New(conf.Log)
	if err != nil {
		return fmt.Errorf("init log: %w", err)
	}

	style, err := render.LoadStyle(conf.Tile.Style)
	if err != nil {
		return err
	}
	factory, err := render.NewFactory(style, log)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(conf.Tile.Dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("tile.dir %s is not a directory", conf.Tile.Dir)
	}

	cache, err := server.NewHotCache(conf.Cache.MaxBytes, conf.Cache.TTL)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer cache.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := server.NewMetrics(reg)

	h, err := server.NewHandler(server.Options{
		Resolver: tile.NewResolver(conf.Tile.Dir),
		Factory:  factory,
		Writer:   store.NewWriter(log),
		Pool:     conf.Render.Pool,
		Cache:    cache,
		Metrics:  metrics,
		Log:      log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         conf.Server.Listen,
		Handler:      server.NewRouter(conf.Server.Prefix, h, reg),
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
	}

	// 收到信号后优雅关闭, ListenAndServe 返回后等待关闭完成
	stopped := make(chan struct{})
	exit := safeexit.New(log)
	exit.Exit = func(int) {}
	exit.Register(func() {
		defer close(stopped)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithField("error", err.Error()).Error("shutdown failed")
		}
	})
	stop := exit.Listen()
	defer stop()

	log.WithFields(logrus.Fields{
		"listen": conf.Server.Listen,
		"prefix": conf.Server.Prefix,
		"dir":    conf.Tile.Dir,
		"style":  style.Name,
	}).Info("tileserver started")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	log.Info("tileserver stopped")
	return nil
}
