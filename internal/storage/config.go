package storage

import "time"

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Ollama struct {
		BaseURL       string `yaml:"base_url"`
		ReporterModel string `yaml:"reporter_model"`
		EditorModel   string `yaml:"editor_model"`
		DesignerModel string `yaml:"designer_model"`
		MarketerModel string `yaml:"marketer_model"`
	} `yaml:"ollama"`

	Scheduler struct {
		TickInterval  time.Duration `yaml:"tick_interval"`
		ArticleWindow time.Duration `yaml:"article_window"`
	} `yaml:"scheduler"`

	Web struct {
		Addr          string  `yaml:"addr"`
		JWTSecret     string  `yaml:"jwt_secret"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		RateBurst     int     `yaml:"rate_burst"`
	} `yaml:"web"`

	Prompts struct {
		Reporter string `yaml:"reporter,omitempty"`
		Editor   string `yaml:"editor,omitempty"`
		Designer string `yaml:"designer,omitempty"`
		Marketer string `yaml:"marketer,omitempty"`
	} `yaml:"prompts,omitempty"`

	Temperatures struct {
		Reporter float64 `yaml:"reporter"`
		Editor   float64 `yaml:"editor"`
		Designer float64 `yaml:"designer"`
		Marketer float64 `yaml:"marketer"`
	} `yaml:"temperatures,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./finwire.db"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.ReporterModel = "llama3"
	cfg.Ollama.EditorModel = "llama3"
	cfg.Ollama.DesignerModel = "gemma3:4b"
	cfg.Ollama.MarketerModel = "gemma3:4b"
	cfg.Scheduler.TickInterval = time.Minute
	cfg.Scheduler.ArticleWindow = 7 * 24 * time.Hour
	cfg.Web.Addr = ":8080"
	cfg.Web.RatePerSecond = 5
	cfg.Web.RateBurst = 10
	// Default temperatures (can be overridden in config)
	cfg.Temperatures.Reporter = 0.7
	cfg.Temperatures.Editor = 0.3
	cfg.Temperatures.Designer = 0.8
	cfg.Temperatures.Marketer = 0.8
	return cfg
}
