package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiluadev/website"
)

// Content source types.
const (
	ContentDir    = "dir"
	ContentHTTP   = "http"
	ContentSQLite = "sqlite"
	ContentPG     = "pg"
)

// Config represents the website configuration
type Config struct {
	Title         string           `yaml:"title"`
	TitleTemplate string           `yaml:"title_template"` // e.g. "%s - Kilua"
	Description   string           `yaml:"description"`
	Server        ServerConfig     `yaml:"server"`
	Content       ContentConfig    `yaml:"content"`
	Markdown      MarkdownConfig   `yaml:"markdown"`
	Features      FeaturesConfig   `yaml:"features"`
	RateLimit     *RateLimitConfig `yaml:"rate_limit,omitempty"`
	Log           LogConfig        `yaml:"log"`
	Navigation    []NavEntry       `yaml:"navigation,omitempty"` // Overrides the built-in page catalog
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// ContentConfig defines where page Markdown is loaded from
type ContentConfig struct {
	Type         string            `yaml:"type"`                    // "dir", "http", "sqlite", "pg"
	Dir          string            `yaml:"dir,omitempty"`           // For dir: root that contains assets/md (default: site directory)
	BaseURL      string            `yaml:"base_url,omitempty"`      // For http: URL prefix the content path is appended to
	Headers      map[string]string `yaml:"headers,omitempty"`       // For http: extra request headers (env vars expanded)
	AllowPrivate bool              `yaml:"allow_private,omitempty"` // For http: allow loopback/private hosts
	DB           string            `yaml:"db,omitempty"`            // For sqlite: database file (default: ./website.db)
	DSN          string            `yaml:"dsn,omitempty"`           // For pg: connection string (default: $DATABASE_URL)
	Table        string            `yaml:"table,omitempty"`         // For sqlite/pg: table with path and body columns (default: pages)
	Timeout      string            `yaml:"timeout,omitempty"`       // Fetch timeout (e.g., "10s"). Default: 10s
	Retry        *RetryConfig      `yaml:"retry,omitempty"`         // Retry configuration (http only)
	Cache        *CacheConfig      `yaml:"cache,omitempty"`         // Cache configuration
}

// RetryConfig configures retry behavior for remote content
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries,omitempty"` // Maximum retry attempts (default: 3)
	BaseDelay  string `yaml:"base_delay,omitempty"`  // Initial delay (e.g., "100ms"). Default: 100ms
	MaxDelay   string `yaml:"max_delay,omitempty"`   // Maximum delay (e.g., "5s"). Default: 5s
}

// CacheConfig configures caching of fetched content
type CacheConfig struct {
	TTL      string `yaml:"ttl,omitempty"`      // Cache TTL (e.g., "5m", "1h"). Default: disabled (empty)
	Strategy string `yaml:"strategy,omitempty"` // "simple" or "stale-while-revalidate". Default: "simple"
}

// MarkdownConfig controls rendering
type MarkdownConfig struct {
	HighlightStyle string `yaml:"highlight_style"` // chroma style name used for the generated stylesheet
	LineNumbers    bool   `yaml:"line_numbers"`
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload"`
}

// RateLimitConfig holds per-IP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // default: 20
	Burst             int     `yaml:"burst,omitempty"`               // default: 40
	MaxIPs            int     `yaml:"max_ips,omitempty"`             // default: 10000
}

// LogConfig configures the logger
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// NavEntry is a page in the navigation override. Entries with Pages are
// sections.
type NavEntry struct {
	ID    string     `yaml:"id,omitempty"` // default: derived from the title
	Title string     `yaml:"title"`
	Route string     `yaml:"route,omitempty"` // default: "/" + slug of the title
	Pages []NavEntry `yaml:"pages,omitempty"`
}

// GetTimeout returns the parsed fetch timeout (default: 10s)
func (c ContentConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// GetRetryMaxRetries returns the max retries (default: 3, set to 0 to disable retries)
func (c ContentConfig) GetRetryMaxRetries() int {
	if c.Retry == nil || c.Retry.MaxRetries < 0 {
		return 3
	}
	return c.Retry.MaxRetries
}

// GetRetryBaseDelay returns the base delay (default: 100ms)
func (c ContentConfig) GetRetryBaseDelay() time.Duration {
	if c.Retry == nil {
		return 100 * time.Millisecond
	}
	return parseDuration(c.Retry.BaseDelay, 100*time.Millisecond)
}

// GetRetryMaxDelay returns the max delay (default: 5s)
func (c ContentConfig) GetRetryMaxDelay() time.Duration {
	if c.Retry == nil {
		return 5 * time.Second
	}
	return parseDuration(c.Retry.MaxDelay, 5*time.Second)
}

// IsCacheEnabled returns true if caching is enabled
func (c ContentConfig) IsCacheEnabled() bool {
	return c.GetCacheTTL() > 0
}

// GetCacheTTL returns the cache TTL (0 if caching is disabled)
func (c ContentConfig) GetCacheTTL() time.Duration {
	if c.Cache == nil {
		return 0
	}
	return parseDuration(c.Cache.TTL, 0)
}

// GetCacheStrategy returns the cache strategy (default: "simple")
func (c ContentConfig) GetCacheStrategy() string {
	if c.Cache == nil || c.Cache.Strategy == "" {
		return "simple"
	}
	return c.Cache.Strategy
}

// GetTable returns the content table name (default: "pages")
func (c ContentConfig) GetTable() string {
	if c.Table == "" {
		return "pages"
	}
	return c.Table
}

// GetDSN returns the PostgreSQL DSN, falling back to $DATABASE_URL
func (c ContentConfig) GetDSN() string {
	if c.DSN != "" {
		return os.ExpandEnv(c.DSN)
	}
	return os.Getenv("DATABASE_URL")
}

// GetHeaders returns request headers with environment variables expanded
func (c ContentConfig) GetHeaders() map[string]string {
	out := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		out[k] = os.ExpandEnv(v)
	}
	return out
}

// GetRPS returns the rate limit in requests per second (default: 20)
func (c *RateLimitConfig) GetRPS() float64 {
	if c == nil || c.RequestsPerSecond <= 0 {
		return 20
	}
	return c.RequestsPerSecond
}

// GetBurst returns the burst size (default: 40)
func (c *RateLimitConfig) GetBurst() int {
	if c == nil || c.Burst <= 0 {
		return 40
	}
	return c.Burst
}

// GetMaxIPs returns how many client IPs are tracked (default: 10000)
func (c *RateLimitConfig) GetMaxIPs() int {
	if c == nil || c.MaxIPs <= 0 {
		return 10000
	}
	return c.MaxIPs
}

// PageTitle formats the document title for a page. Home uses the bare site
// title.
func (c *Config) PageTitle(p *website.Page) string {
	switch {
	case p == nil || p.IsHome():
		return c.Title
	case p.IsNotFound():
		return "404 - " + p.Title
	}
	tmpl := c.TitleTemplate
	if !strings.Contains(tmpl, "%s") {
		tmpl = "%s - " + c.Title
	}
	return fmt.Sprintf(tmpl, p.Title)
}

// Pages returns the page catalog definitions: the navigation override when
// configured, otherwise the built-in Kilua pages.
func (c *Config) Pages() []website.Page {
	if len(c.Navigation) == 0 {
		return website.DefaultPages()
	}

	pages := []website.Page{{ID: website.HomeID, Title: c.Title}}
	for _, entry := range c.Navigation {
		top := entry.page("")
		pages = append(pages, top)
		for _, child := range entry.Pages {
			pages = append(pages, child.page(top.ID))
		}
	}
	pages = append(pages, website.Page{ID: website.NotFoundID, Title: "Page not found"})

	for i := range pages {
		pages[i].Order = (i + 1) * 10
	}
	return pages
}

func (e NavEntry) page(parent website.PageID) website.Page {
	id := e.ID
	if id == "" {
		id = website.Slugify(e.Title)
	}
	route := e.Route
	if route == "" {
		route = "/" + website.Slugify(e.Title)
	}
	return website.Page{
		ID:         website.PageID(id),
		Title:      e.Title,
		Route:      route,
		IsSection:  len(e.Pages) > 0,
		Parent:     parent,
		DrawerOpen: true,
	}
}

// Catalog builds and validates the page catalog.
func (c *Config) Catalog() (*website.Catalog, error) {
	return website.NewCatalog(c.Pages())
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Content.Type {
	case ContentDir:
	case ContentHTTP:
		if c.Content.BaseURL == "" {
			return fmt.Errorf("content: base_url is required for type %q", ContentHTTP)
		}
	case ContentSQLite:
	case ContentPG:
		if c.Content.GetDSN() == "" {
			return fmt.Errorf("content: dsn (or DATABASE_URL) is required for type %q", ContentPG)
		}
	default:
		return fmt.Errorf("content: unsupported type %q", c.Content.Type)
	}

	if s := c.Content.GetCacheStrategy(); s != "simple" && s != "stale-while-revalidate" {
		return fmt.Errorf("content: unknown cache strategy %q", s)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}

	for _, entry := range c.Navigation {
		if entry.Title == "" {
			return fmt.Errorf("navigation: entry without title")
		}
		for _, child := range entry.Pages {
			if len(child.Pages) > 0 {
				return fmt.Errorf("navigation: %q: sections cannot be nested", child.Title)
			}
		}
	}

	return nil
}

// ApplyEnv overrides configuration from environment variables:
// PORT, LOG_LEVEL and WEBSITE_CONTENT_URL.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if url := os.Getenv("WEBSITE_CONTENT_URL"); url != "" {
		c.Content.Type = ContentHTTP
		c.Content.BaseURL = url
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title:         "Kilua",
		TitleTemplate: "%s - Kilua",
		Description:   "Composable web framework for Kotlin/Wasm and Kotlin/JS",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Content: ContentConfig{
			Type: ContentDir,
		},
		Markdown: MarkdownConfig{
			HighlightStyle: "github",
		},
		Features: FeaturesConfig{
			HotReload: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns the default configuration.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFromDir looks for website.yaml, then website.yml, in the given directory.
// If none is found, returns the default configuration.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"website.yaml", "website.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
