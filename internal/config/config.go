package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Scroll   ScrollConfig   `mapstructure:"scroll"`
	Viewer   ViewerConfig   `mapstructure:"viewer"`
	UI       UIConfig       `mapstructure:"ui"`
	Media    MediaConfig    `mapstructure:"media"`
	Log      LogConfig      `mapstructure:"log"`
	Keys     KeyConfig      `mapstructure:"keys"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SourceConfig selects and tunes the remote catalog.
type SourceConfig struct {
	Kind        string        `mapstructure:"kind"` // "api" or "feed"
	BaseURL     string        `mapstructure:"base_url"`
	ImageProxy  string        `mapstructure:"image_proxy"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	RateLimit   float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst       int           `mapstructure:"burst"`
}

type ScrollConfig struct {
	Distance     int `mapstructure:"distance"`
	RetryCeiling int `mapstructure:"retry_ceiling"`
}

type ViewerConfig struct {
	TouchOnly    bool    `mapstructure:"touch_only"`
	PrevFraction float64 `mapstructure:"prev_fraction"`
	NextFraction float64 `mapstructure:"next_fraction"`
}

type UIConfig struct {
	Colors UIColors `mapstructure:"colors"`
}

type UIColors struct {
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
	Accent    string `mapstructure:"accent"`
	Text      string `mapstructure:"text"`
	Muted     string `mapstructure:"muted"`
	Error     string `mapstructure:"error"`
	Success   string `mapstructure:"success"`
}

type MediaConfig struct {
	Darwin        []string `mapstructure:"darwin"`
	Linux         []string `mapstructure:"linux"`
	Windows       []string `mapstructure:"windows"`
	DefaultOpener string   `mapstructure:"default_opener"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit           string `mapstructure:"quit"`
	Search         string `mapstructure:"search"`
	Tags           string `mapstructure:"tags"`
	Filter         string `mapstructure:"filter"`
	Retry          string `mapstructure:"retry"`
	ToggleRestrict string `mapstructure:"toggle_restrict"`
	OpenImage      string `mapstructure:"open_image"`
	Detail         string `mapstructure:"detail"`
	Back           string `mapstructure:"back"`
}

// Retry ceiling used when the config leaves it unset.
const DefaultRetryCeiling = 3

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".gallery.db")

	return &Config{
		Database: DatabaseConfig{
			Path:    dbPath,
			Timeout: 1 * time.Second,
		},
		Source: SourceConfig{
			Kind:        "api",
			BaseURL:     "https://api.gallery.local/v1",
			HTTPTimeout: 20 * time.Second,
			UserAgent:   "gallery/1.0 (https://github.com/pders01/gallery)",
			RateLimit:   2,
			Burst:       1,
		},
		Scroll: ScrollConfig{
			Distance:     5,
			RetryCeiling: DefaultRetryCeiling,
		},
		Viewer: ViewerConfig{
			TouchOnly:    false,
			PrevFraction: 0.20,
			NextFraction: 0.40,
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:   "#FF6B6B",
				Secondary: "#4ECDC4",
				Accent:    "#95E1D3",
				Text:      "#EAEAEA",
				Muted:     "#94A3B8",
				Error:     "#F87171",
				Success:   "#4CAF50",
			},
		},
		Media: MediaConfig{
			Darwin:        []string{"qlmanage", "open"},
			Linux:         []string{"imv", "sxiv", "feh", "eog", "xdg-open"},
			Windows:       []string{"start"},
			DefaultOpener: getDefaultOpener(),
		},
		Log: LogConfig{
			Level: "off",
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:           "q",
				Search:         "s",
				Tags:           "t",
				Filter:         "/",
				Retry:          "r",
				ToggleRestrict: "x",
				OpenImage:      "o",
				Detail:         "e",
				Back:           "esc",
			},
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("database", cfg.Database)
	v.SetDefault("source", cfg.Source)
	v.SetDefault("scroll", cfg.Scroll)
	v.SetDefault("viewer", cfg.Viewer)
	v.SetDefault("ui", cfg.UI)
	v.SetDefault("media", cfg.Media)
	v.SetDefault("log", cfg.Log)
	v.SetDefault("keys", cfg.Keys)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "gallery")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GALLERY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.Scroll.RetryCeiling <= 0 {
		config.Scroll.RetryCeiling = DefaultRetryCeiling
	}

	expandPaths(&config)

	return &config, nil
}

// expandPath expands ~ to the home directory and converts to an absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// ExpandPath is exported for flag overrides applied after Load.
func ExpandPath(path string) string {
	return expandPath(path)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations as strings for TOML readability
	dbCfg := map[string]interface{}{
		"path":    config.Database.Path,
		"timeout": config.Database.Timeout.String(),
	}

	sourceCfg := map[string]interface{}{
		"kind":         config.Source.Kind,
		"base_url":     config.Source.BaseURL,
		"image_proxy":  config.Source.ImageProxy,
		"http_timeout": config.Source.HTTPTimeout.String(),
		"user_agent":   config.Source.UserAgent,
		"rate_limit":   config.Source.RateLimit,
		"burst":        config.Source.Burst,
	}

	scrollCfg := map[string]interface{}{
		"distance":      config.Scroll.Distance,
		"retry_ceiling": config.Scroll.RetryCeiling,
	}

	viewerCfg := map[string]interface{}{
		"touch_only":    config.Viewer.TouchOnly,
		"prev_fraction": config.Viewer.PrevFraction,
		"next_fraction": config.Viewer.NextFraction,
	}

	mediaCfg := map[string]interface{}{
		"darwin":         config.Media.Darwin,
		"linux":          config.Media.Linux,
		"windows":        config.Media.Windows,
		"default_opener": config.Media.DefaultOpener,
	}

	b := config.Keys.Bindings
	keysCfg := map[string]interface{}{
		"modifier": config.Keys.Modifier,
		"bindings": map[string]interface{}{
			"quit":            b.Quit,
			"search":          b.Search,
			"tags":            b.Tags,
			"filter":          b.Filter,
			"retry":           b.Retry,
			"toggle_restrict": b.ToggleRestrict,
			"open_image":      b.OpenImage,
			"detail":          b.Detail,
			"back":            b.Back,
		},
	}

	v.Set("database", dbCfg)
	v.Set("source", sourceCfg)
	v.Set("scroll", scrollCfg)
	v.Set("viewer", viewerCfg)
	v.Set("ui", config.UI)
	v.Set("media", mediaCfg)
	v.Set("log", map[string]interface{}{"level": config.Log.Level, "file": config.Log.File})
	v.Set("keys", keysCfg)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
