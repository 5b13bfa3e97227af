package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	def := defaultConfig()
	return &Config{
		Database: DatabaseConfig{
			Path:    "",
			Timeout: 1 * time.Second,
		},
		Source: SourceConfig{
			Kind:        "api",
			BaseURL:     "http://127.0.0.1",
			HTTPTimeout: 5 * time.Second,
			UserAgent:   "gallery-test/1.0",
		},
		Scroll: def.Scroll,
		Viewer: def.Viewer,
		UI:     def.UI,
		Media:  def.Media,
		Log:    LogConfig{Level: "off"},
		Keys:   def.Keys,
	}
}
