package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server looks for its YAML file when
// VIDSCRIBE_CONFIG is unset.
const DefaultPath = "config/config.yaml"

// Generation backends
const (
	BackendAPI     = "api"
	BackendBrowser = "browser"
)

// DefaultPrompt is sent with every media file.
const DefaultPrompt = "Generate a frame by frame and per second transcript of this video. " +
	"Show all expressions and every frame in the transcript with timestamps " +
	"of the per second transcript."

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Workers struct {
		Count     int `yaml:"count"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"workers"`

	Jobs struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"jobs"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Generation GenerationConfig `yaml:"generation"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Browser    BrowserConfig    `yaml:"browser"`
	Download   DownloadConfig   `yaml:"download"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	S3 S3Config `yaml:"s3"`

	Logging LoggingConfig `yaml:"logging"`
}

type GenerationConfig struct {
	Backend      string   `yaml:"backend"`
	Prompt       string   `yaml:"prompt"`
	NoiseMarkers []string `yaml:"noise_markers"`
}

type GeminiConfig struct {
	// APIKey is never read from the YAML file.
	APIKey            string        `yaml:"-"`
	APIKeyFile        string        `yaml:"api_key_file"`
	Model             string        `yaml:"model"`
	DefaultModel      string        `yaml:"default_model"`
	// BaseURL overrides the Gemini endpoint; empty keeps the SDK default.
	BaseURL           string        `yaml:"base_url"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type BrowserConfig struct {
	CookiesFile      string          `yaml:"cookies_file"`
	AppURL           string          `yaml:"app_url"`
	Headless         bool            `yaml:"headless"`
	UploadSelector   string          `yaml:"upload_selector"`
	PromptSelector   string          `yaml:"prompt_selector"`
	SendSelector     string          `yaml:"send_selector"`
	ResponseSelector string          `yaml:"response_selector"`
	LoginHosts       []string        `yaml:"login_hosts"`
	Stabilize        StabilizeConfig `yaml:"stabilize"`
}

// StabilizeConfig tunes the "output stopped growing" heuristic used by the
// browser backend. It is an approximation: slow generations can be cut short
// and fast ones may wait longer than needed.
type StabilizeConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Rounds    int           `yaml:"rounds"`
	MinLength int           `yaml:"min_length"`
	Timeout   time.Duration `yaml:"timeout"`
}

type DownloadConfig struct {
	SitePatterns  []string      `yaml:"site_patterns"`
	PlayerClients []string      `yaml:"player_clients"`
	CookiesFile   string        `yaml:"cookies_file"`
	YtDlpPath     string        `yaml:"ytdlp_path"`
	Format        string        `yaml:"format"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

type LoggingConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 10000
	cfg.Server.Host = "0.0.0.0"
	cfg.Workers.Count = 4
	cfg.Workers.QueueSize = 100
	cfg.Jobs.Timeout = 15 * time.Minute
	cfg.Storage.TempDir = "temp"
	cfg.Storage.OutputDir = "outputs"
	cfg.Storage.Database = "outputs/transcripts.db"
	cfg.Cleanup.IntervalMinutes = 30
	cfg.Cleanup.MaxAgeHours = 6
	cfg.GoogleDrive.FolderName = "Transcripts"

	cfg.Generation = GenerationConfig{
		Backend: BackendAPI,
		Prompt:  DefaultPrompt,
	}
	cfg.Gemini = GeminiConfig{
		DefaultModel:      "models/gemini-1.5-flash",
		PollInterval:      2 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
	}
	cfg.Browser = BrowserConfig{
		AppURL:           "https://gemini.google.com/app",
		Headless:         true,
		UploadSelector:   `input[type="file"]`,
		PromptSelector:   `div[contenteditable="true"]`,
		SendSelector:     `button[aria-label="Send message"]`,
		ResponseSelector: "message-content",
		LoginHosts:       []string{"accounts.google.com"},
		Stabilize: StabilizeConfig{
			Interval:  2 * time.Second,
			Rounds:    5,
			MinLength: 50,
			Timeout:   10 * time.Minute,
		},
	}
	cfg.Download = DownloadConfig{
		SitePatterns:  []string{"youtube.com", "youtu.be"},
		PlayerClients: []string{"android", "ios", "web", "tv_embedded"},
		YtDlpPath:     "yt-dlp",
		Format:        "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		HTTPTimeout:   30 * time.Minute,
	}
	cfg.Logging = LoggingConfig{
		File:       "logs/vidscribe.log",
		Level:      "INFO",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
	return cfg
}

// Load reads the YAML file at path (if it exists), applies environment
// overrides and validates the result. A missing file is only an error when
// the path was chosen explicitly through VIDSCRIBE_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := false
	if p := os.Getenv("VIDSCRIBE_CONFIG"); p != "" {
		path = p
		explicit = true
	}

	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err) && !explicit:
			// defaults only
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	port, err := envInt("PORT", c.Server.Port)
	if err != nil {
		return err
	}
	c.Server.Port = port
	c.Generation.Backend = envString("GENERATION_BACKEND", c.Generation.Backend)
	c.Gemini.Model = envString("GEMINI_MODEL", c.Gemini.Model)
	c.Gemini.BaseURL = envString("GEMINI_BASE_URL", c.Gemini.BaseURL)
	c.Download.CookiesFile = envString("YTDLP_COOKIES_FILE", c.Download.CookiesFile)
	c.Browser.CookiesFile = envString("GEMINI_COOKIES_FILE", c.Browser.CookiesFile)
	c.Logging.Level = envString("LOG_LEVEL", c.Logging.Level)
	c.Gemini.APIKeyFile = envString("GOOGLE_API_KEY_FILE", c.Gemini.APIKeyFile)
	c.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	c.S3.SecretKey = os.Getenv("S3_SECRET_KEY")

	c.Gemini.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	if c.Gemini.APIKey == "" && c.Gemini.APIKeyFile != "" {
		b, err := os.ReadFile(c.Gemini.APIKeyFile)
		if err != nil {
			return errors.Wrap(err, "read api key file")
		}
		c.Gemini.APIKey = strings.TrimSpace(string(b))
	}
	return nil
}

// Validate rejects settings the server cannot run with. A missing API key is
// deliberately not checked here: jobs fail with a configuration error instead.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be positive")
	}
	if c.Workers.QueueSize <= 0 {
		return fmt.Errorf("workers.queue_size must be positive")
	}
	switch c.Generation.Backend {
	case BackendAPI, BackendBrowser:
	default:
		return fmt.Errorf("generation.backend must be %q or %q; got %q",
			BackendAPI, BackendBrowser, c.Generation.Backend)
	}
	if c.Gemini.PollInterval <= 0 {
		return fmt.Errorf("gemini.poll_interval must be positive")
	}
	s := c.Browser.Stabilize
	if s.Interval <= 0 || s.Rounds <= 0 || s.Timeout <= 0 {
		return fmt.Errorf("browser.stabilize interval, rounds and timeout must be positive")
	}
	if c.Storage.TempDir == "" {
		return fmt.Errorf("storage.temp_dir is required")
	}
	if c.Cleanup.IntervalMinutes <= 0 {
		return fmt.Errorf("cleanup.interval_minutes must be positive")
	}
	if c.Cleanup.MaxAgeHours <= 0 {
		return fmt.Errorf("cleanup.max_age_hours must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return i, nil
}
