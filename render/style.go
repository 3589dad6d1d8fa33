package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tilecache/tile"
)

// Renderer kinds.
const (
	KindUpstream = "upstream"
	KindPattern  = "pattern"
)

// Upstream URL template modes.
const (
	// ModeTile {z}/{x}/{y} 瓦片代理
	ModeTile = "tile"
	// ModeBBox {bbox}/{width}/{height} WMS 风格渲染
	ModeBBox = "bbox"
)

// Style 渲染定义文件
type Style struct {
	Name      string        `mapstructure:"name"`
	Kind      string        `mapstructure:"kind"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	TileSize  int           `mapstructure:"tile_size"`
	Format    string        `mapstructure:"format"`
	Breaker   struct {
		Failures uint32        `mapstructure:"failures"`
		Cooldown time.Duration `mapstructure:"cooldown"`
	} `mapstructure:"breaker"`
	Pattern struct {
		Background string `mapstructure:"background"`
		Grid       string `mapstructure:"grid"`
	} `mapstructure:"pattern"`
}

// LoadStyle 读取渲染定义文件, 类型由扩展名推断 (默认 toml)
func LoadStyle(path string) (*Style, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("style %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("style %s exists, but is not a regular file", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("toml")
	}
	setStyleDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read style %s: %w", path, err)
	}

	var s Style
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse style %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("style %s: %w", path, err)
	}
	return &s, nil
}

func setStyleDefaults(v *viper.Viper) {
	v.SetDefault("kind", KindUpstream)
	v.SetDefault("timeout", "30s")
	v.SetDefault("user_agent", "tilecache/0.1")
	v.SetDefault("tile_size", tile.TileSize)
	v.SetDefault("format", "png")
	v.SetDefault("breaker.failures", 5)
	v.SetDefault("breaker.cooldown", "30s")
	v.SetDefault("pattern.background", "#f2efe9")
	v.SetDefault("pattern.grid", "#b0b0b0")
}

// Validate 检查必填项
func (s *Style) Validate() error {
	if s == nil {
		return errors.New("nil style")
	}
	if s.TileSize <= 0 {
		s.TileSize = tile.TileSize
	}
	if _, ok := tile.ParseFormat(s.Format); !ok {
		return fmt.Errorf("unsupported format %q", s.Format)
	}
	switch s.Kind {
	case KindUpstream:
		if s.Mode() == "" {
			return fmt.Errorf("url %q needs {z}/{x}/{y} or {bbox} placeholders", s.URL)
		}
	case KindPattern:
		if _, err := parseHexColor(s.Pattern.Background); err != nil {
			return fmt.Errorf("pattern.background: %w", err)
		}
		if _, err := parseHexColor(s.Pattern.Grid); err != nil {
			return fmt.Errorf("pattern.grid: %w", err)
		}
	default:
		return fmt.Errorf("%q: %w", s.Kind, ErrUnknownKind)
	}
	return nil
}

// TileFormat 输出格式
func (s *Style) TileFormat() tile.Format {
	f, _ := tile.ParseFormat(s.Format)
	return f
}

// Mode URL 模板类型, 无占位符时为空
func (s *Style) Mode() string {
	switch {
	case strings.Contains(s.URL, "{bbox}"):
		return ModeBBox
	case strings.Contains(s.URL, "{z}") && strings.Contains(s.URL, "{x}") && strings.Contains(s.URL, "{y}"):
		return ModeTile
	}
	return ""
}
