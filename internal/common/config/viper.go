package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// Exchange name
	ExchangeName = "catcast_exchange"

	// Routing keys
	RoutingCommandGenerator = "command.generator"
	RoutingLogGenerator     = "log.generator"

	// Exchange type
	ExchangeTypeTopic = "topic"

	// Environment variable prefix, e.g. CATCAST_PLAYLIST_PAGES
	EnvPrefix = "CATCAST"
)

// Config is the struct that holds the configuration of the application
type Config struct {
	App      AppConfig      `mapstructure:"app" json:"app"`
	RabbitMq RabbitMQConfig `mapstructure:"rabbitmq" json:"rabbitmq"`
	Scraper  ScraperConfig  `mapstructure:"scraper" json:"scraper"`
	Playlist PlaylistConfig `mapstructure:"playlist" json:"playlist"`
	WebPanel WebPanelConfig `mapstructure:"webpanel" json:"webpanel"`
}

type AppConfig struct {
	Name     string `mapstructure:"name" json:"name"`
	LogLevel int    `mapstructure:"logLevel" json:"logLevel"`
	Env      string `mapstructure:"env" json:"env"`
	// Address the worker serves /metrics on; empty disables it
	MetricsAddr string `mapstructure:"metricsAddr" json:"metricsAddr"`
}

type RabbitMQConfig struct {
	URL              string        `mapstructure:"url" json:"url"`
	Exchange         string        `mapstructure:"exchange" json:"exchange"`
	Queue            QueueNames    `mapstructure:"queue" json:"queue"`
	ReconnectRetries int           `mapstructure:"reconnectRetries" json:"reconnectRetries"`
	ReconnectTimeout time.Duration `mapstructure:"reconnectTimeout" json:"reconnectTimeout"`
}

type QueueNames struct {
	Generator string `mapstructure:"generator" json:"generator"`
	Log       string `mapstructure:"log" json:"log"`
}

// ScraperConfig drives the catalog fetcher and the stream resolver
type ScraperConfig struct {
	APIURL          string        `mapstructure:"apiURL" json:"apiURL"`
	SiteURL         string        `mapstructure:"siteURL" json:"siteURL"`
	UserAgent       string        `mapstructure:"userAgent" json:"userAgent"`
	PlayerUserAgent string        `mapstructure:"playerUserAgent" json:"playerUserAgent"`
	Referer         string        `mapstructure:"referer" json:"referer"`
	Origin          string        `mapstructure:"origin" json:"origin"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxAttempts     int           `mapstructure:"maxAttempts" json:"maxAttempts"`
	Backoff         time.Duration `mapstructure:"backoff" json:"backoff"`
	ChannelDelay    time.Duration `mapstructure:"channelDelay" json:"channelDelay"`
	PageDelay       time.Duration `mapstructure:"pageDelay" json:"pageDelay"`
	// Render detail pages in headless Chrome before extracting the stream
	Render bool `mapstructure:"render" json:"render"`
}

// PlaylistConfig controls which pages are processed and where the result goes
type PlaylistConfig struct {
	Pages       string `mapstructure:"pages" json:"pages"`
	Output      string `mapstructure:"output" json:"output"`
	GroupFormat string `mapstructure:"groupFormat" json:"groupFormat"`
}

type WebPanelConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// New returns a viper instance with defaults, config.json lookup and env binding.
// Callers may bind flags into it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config") // File name without extension
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "catcast")
	v.SetDefault("app.logLevel", 4) // logrus.InfoLevel
	v.SetDefault("app.env", "development")
	v.SetDefault("app.metricsAddr", ":9091")

	v.SetDefault("rabbitmq.exchange", ExchangeName)
	v.SetDefault("rabbitmq.queue.generator", "generator_queue")
	v.SetDefault("rabbitmq.queue.log", "log_queue")
	v.SetDefault("rabbitmq.reconnectRetries", 5)
	v.SetDefault("rabbitmq.reconnectTimeout", 2*time.Second)

	v.SetDefault("scraper.apiURL", "https://api.catcast.tv/api/channels")
	v.SetDefault("scraper.siteURL", "https://catcast.tv")
	v.SetDefault("scraper.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("scraper.playerUserAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("scraper.referer", "https://catcast.tv/")
	v.SetDefault("scraper.origin", "https://catcast.tv")
	v.SetDefault("scraper.timeout", 20*time.Second)
	v.SetDefault("scraper.maxAttempts", 3)
	v.SetDefault("scraper.backoff", 5*time.Second)
	v.SetDefault("scraper.channelDelay", 300*time.Millisecond)
	v.SetDefault("scraper.pageDelay", time.Second)
	v.SetDefault("scraper.render", false)

	v.SetDefault("playlist.pages", DefaultPages)
	v.SetDefault("playlist.output", "catcast_tv.m3u")
	v.SetDefault("playlist.groupFormat", "Sayfa %d")

	v.SetDefault("webpanel.host", "0.0.0.0")
	v.SetDefault("webpanel.port", 8080)
}

// Load reads .env, config.json and the environment into a Config
func Load() (*Config, error) {
	return LoadFrom(New())
}

// LoadFrom decodes the given viper instance into a Config
func LoadFrom(v *viper.Viper) (*Config, error) {
	// A missing .env is fine, we might be using environment variables directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	// Try to read configuration file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := normalizePages(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// normalizePages accepts playlist.pages written as a JSON array of numbers
// and folds it into the string form
func normalizePages(v *viper.Viper) error {
	list, ok := v.Get("playlist.pages").([]interface{})
	if !ok {
		return nil
	}

	pages := make([]int, 0, len(list))
	for _, item := range list {
		switch n := item.(type) {
		case float64:
			if n != math.Trunc(n) {
				return fmt.Errorf("playlist.pages: page number must be whole, got %v", n)
			}
			pages = append(pages, int(n))
		case int:
			pages = append(pages, n)
		case string:
			p, err := parsePage(n)
			if err != nil {
				return fmt.Errorf("playlist.pages: %w", err)
			}
			pages = append(pages, p)
		default:
			return fmt.Errorf("playlist.pages: unsupported entry %v", item)
		}
	}
	v.Set("playlist.pages", joinPages(pages))
	return nil
}

// Validate checks the settings the pipeline cannot run without
func (c *Config) Validate() error {
	if c.Scraper.APIURL == "" {
		return errors.New("scraper.apiURL is required")
	}
	if c.Scraper.SiteURL == "" {
		return errors.New("scraper.siteURL is required")
	}
	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("scraper.maxAttempts must be at least 1, got %d", c.Scraper.MaxAttempts)
	}
	if c.Playlist.Output == "" {
		return errors.New("playlist.output is required")
	}
	if _, err := ParsePages(c.Playlist.Pages); err != nil {
		return fmt.Errorf("playlist.pages: %w", err)
	}
	if err := checkGroupFormat(c.Playlist.GroupFormat); err != nil {
		return fmt.Errorf("playlist.groupFormat: %w", err)
	}
	return nil
}

// checkGroupFormat accepts an empty format or one with a single %d and no other verb
func checkGroupFormat(format string) error {
	if format == "" {
		return nil
	}
	verbs := strings.ReplaceAll(format, "%%", "")
	if strings.Count(verbs, "%") != 1 || strings.Count(verbs, "%d") != 1 {
		return fmt.Errorf("must contain exactly one %%d verb, got %q", format)
	}
	return nil
}

// PageList returns the configured pages in processing order
func (c *PlaylistConfig) PageList() ([]int, error) {
	return ParsePages(c.Pages)
}

// Get config for app
func (c *Config) GetAppConfig() *AppConfig {
	return &c.App
}

// Get config for scraping
func (c *Config) GetScraperConfig() *ScraperConfig {
	return &c.Scraper
}

// Get config for the playlist
func (c *Config) GetPlaylistConfig() *PlaylistConfig {
	return &c.Playlist
}

// Get config for web panel
func (c *Config) GetWebPanelConfig() *WebPanelConfig {
	return &c.WebPanel
}

// Get config for RabbitMQ
func (c *Config) GetRabbitMQConfig() *RabbitMQConfig {
	return &c.RabbitMq
}
