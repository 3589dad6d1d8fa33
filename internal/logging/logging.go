// Package logging 日志初始化
package logging

import (
	"io"
	"os"
	"path/filepath"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName 日志文件名
const FileName = "tilecache.log"

// Config 日志配置
type Config struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Terminal   bool   `mapstructure:"terminal"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// New 初始化日志.
// Output fans out to the terminal (stderr) and a rotating file under Dir;
// with neither configured the logger is silent.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	logIO := make([]io.Writer, 0, 2)
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, err
		}
		logIO = append(logIO, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, FileName),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		})
	}
	if cfg.Terminal {
		logIO = append(logIO, os.Stderr)
	}

	// 融合日志输出
	log.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(logIO...)))

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log, nil
}
