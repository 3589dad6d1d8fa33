// Package config 服务配置
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tilecache/internal/logging"
	"tilecache/tile"
)

// ErrNoConfig 配置文件不存在
var ErrNoConfig = errors.New("config file not found")

// EnvPrefix 环境变量前缀, e.g. TILECACHE_TILE_DIR
const EnvPrefix = "TILECACHE"

// Server 服务配置
type Server struct {
	Server struct {
		Listen       string        `mapstructure:"listen"`
		Prefix       string        `mapstructure:"prefix"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`
	Tile struct {
		Dir    string `mapstructure:"dir"`
		Style  string `mapstructure:"style"`
		Format string `mapstructure:"format"`
	} `mapstructure:"tile"`
	Render struct {
		Pool int `mapstructure:"pool"`
	} `mapstructure:"render"`
	Cache struct {
		MaxBytes int64         `mapstructure:"max_bytes"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`
	Log logging.Config `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.prefix", "/tiles")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("tile.format", "png")
	v.SetDefault("render.pool", 0)
	v.SetDefault("cache.max_bytes", 64<<20)
	v.SetDefault("cache.ttl", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.terminal", true)
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
	// keys without a default are invisible to AutomaticEnv in Unmarshal
	v.SetDefault("tile.dir", "")
	v.SetDefault("tile.style", "")
}

// Load 读取配置文件; 环境变量 TILECACHE_* 覆盖文件中的值
func Load(path string) (*Server, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoConfig)
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("toml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file(%s) error: %w", path, err)
	}
	var conf Server
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("parse config file(%s) error: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config file(%s): %w", path, err)
	}
	return &conf, nil
}

// Validate 检查必填项并规范化 prefix
func (c *Server) Validate() error {
	if c.Tile.Dir == "" {
		return errors.New("tile.dir is required")
	}
	if c.Tile.Style == "" {
		return errors.New("tile.style is required")
	}
	if _, ok := tile.ParseFormat(c.Tile.Format); !ok {
		return fmt.Errorf("tile.format %q must be png or jpg", c.Tile.Format)
	}
	c.Server.Prefix = "/" + strings.Trim(c.Server.Prefix, "/")
	if c.Render.Pool < 0 {
		return fmt.Errorf("render.pool %d must not be negative", c.Render.Pool)
	}
	return nil
}
