package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bakkerme/newsfeed/internal/filter"
)

const (
	ProviderWorldNewsAPI = "worldnewsapi"
	ProviderRSS          = "rss"
	ProviderFake         = "fake"

	TagSourceStatic = "static"
	TagSourceFile   = "file"
)

// Document represents the top-level structure of a newsfeed.yaml file
type Document struct {
	Ingest  IngestConfig        `yaml:"ingest"`
	Store   StoreConfig         `yaml:"store"`
	Read    ReadConfig          `yaml:"read"`
	Tags    TagsConfig          `yaml:"tags"`
	Trigger TriggerConfig       `yaml:"trigger"`
	Filters []filter.RuleConfig `yaml:"filters,omitempty" validate:"dive"`
	Server  ServerConfig        `yaml:"server"`
}

// IngestConfig controls the sync cycle and the upstream it queries.
type IngestConfig struct {
	Provider        string        `yaml:"provider" validate:"oneof=worldnewsapi rss fake"`
	MaxQueryChars   int           `yaml:"max_query_chars" validate:"gte=0"`
	Retention       Duration      `yaml:"retention" validate:"gt=0"`
	Epsilon         Duration      `yaml:"epsilon" validate:"gte=0"`
	PageSize        int           `yaml:"page_size" validate:"gt=0,lte=100"`
	MaxPages        int           `yaml:"max_pages,omitempty" validate:"gte=0"`
	Language        string        `yaml:"language,omitempty"`
	SourceCountries []string      `yaml:"source_countries,omitempty"`
	Sort            string        `yaml:"sort,omitempty"`
	SortDirection   string        `yaml:"sort_direction,omitempty" validate:"omitempty,oneof=ASC DESC"`
	BaseURL         string        `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Timeout         Duration      `yaml:"timeout" validate:"gt=0"`
	UserAgent       string        `yaml:"user_agent,omitempty"`
	Retry           RetryConfig   `yaml:"retry"`
	Breaker         BreakerConfig `yaml:"breaker"`

	// Feeds are the RSS/Atom URLs searched by the rss provider.
	Feeds        []string `yaml:"feeds,omitempty" validate:"required_if=Provider rss,dive,url"`
	FeedCacheTTL Duration `yaml:"feed_cache_ttl,omitempty" validate:"gte=0"`
}

type RetryConfig struct {
	Attempts  int      `yaml:"attempts" validate:"gte=1"`
	BaseDelay Duration `yaml:"base_delay" validate:"gte=0"`
	MaxDelay  Duration `yaml:"max_delay" validate:"gte=0"`
}

type BreakerConfig struct {
	Failures uint32   `yaml:"failures" validate:"gte=1"`
	Cooldown Duration `yaml:"cooldown" validate:"gt=0"`
}

type StoreConfig struct {
	// DSN selects the backend: file://, memory://, badger://, sqlite://,
	// postgres://.
	DSN string `yaml:"dsn" validate:"required"`
	// ReportPath is where the last cycle report is kept. Empty disables it.
	ReportPath string `yaml:"report_path,omitempty"`
}

type ReadConfig struct {
	Lookback Duration `yaml:"lookback" validate:"gt=0"`
	MaxItems int      `yaml:"max_items" validate:"gte=0"`
}

type TagsConfig struct {
	Source string   `yaml:"source" validate:"oneof=static file"`
	Static []string `yaml:"static,omitempty"`
	File   string   `yaml:"file,omitempty" validate:"required_if=Source file"`
	// Watch re-runs a cycle when the tag file changes.
	Watch         bool     `yaml:"watch,omitempty"`
	WatchDebounce Duration `yaml:"watch_debounce,omitempty" validate:"gte=0"`
}

type TriggerConfig struct {
	Cron *CronTrigger `yaml:"cron,omitempty"`
}

type CronTrigger struct {
	Schedule string `yaml:"schedule" validate:"required"`
	Timezone string `yaml:"timezone,omitempty"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr" validate:"required"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
	AccessLog   bool     `yaml:"access_log,omitempty"`
	Metrics     bool     `yaml:"metrics"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// DataDir is the default directory for the store and cycle report.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "newsfeed")
}

// Default returns the configuration used when no file is present.
func Default() Document {
	dataDir := DataDir()
	return Document{
		Ingest: IngestConfig{
			Provider:        ProviderWorldNewsAPI,
			MaxQueryChars:   100,
			Retention:       Duration(7 * 24 * time.Hour),
			Epsilon:         Duration(time.Second),
			PageSize:        100,
			Language:        "en",
			SourceCountries: []string{"US", "IL"},
			Sort:            "publish-time",
			SortDirection:   "DESC",
			Timeout:         Duration(30 * time.Second),
			UserAgent:       "newsfeed/0.1",
			Retry: RetryConfig{
				Attempts:  3,
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(5 * time.Second),
			},
			Breaker: BreakerConfig{
				Failures: 5,
				Cooldown: Duration(time.Minute),
			},
			FeedCacheTTL: Duration(time.Minute),
		},
		Store: StoreConfig{
			DSN:        "file://" + filepath.Join(dataDir, "store"),
			ReportPath: filepath.Join(dataDir, "last_cycle.yaml"),
		},
		Read: ReadConfig{
			Lookback: Duration(48 * time.Hour),
			MaxItems: 700,
		},
		Tags: TagsConfig{
			Source:        TagSourceStatic,
			WatchDebounce: Duration(500 * time.Millisecond),
		},
		Trigger: TriggerConfig{
			Cron: &CronTrigger{Schedule: "@every 2m"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Metrics:         true,
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Parse decodes a YAML document on top of the defaults and validates it.
func Parse(data []byte) (Document, error) {
	doc, err := decode(data)
	if err != nil {
		return Document{}, err
	}
	return doc, doc.Validate()
}

// Load reads path, falling back to the defaults when the file does not
// exist, then applies env overrides and validates the result.
func Load(path string, env EnvConfig) (Document, error) {
	doc := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Document{}, fmt.Errorf("read config: %w", err)
	default:
		if doc, err = decode(data); err != nil {
			return Document{}, err
		}
	}
	doc.ApplyEnv(env)
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func decode(data []byte) (Document, error) {
	doc := Default()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode config: %w", err)
	}
	return doc, nil
}

func (d *Document) Validate() error {
	err := validator.New().Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ApplyEnv overlays environment settings on the document.
func (d *Document) ApplyEnv(env EnvConfig) {
	if env.StoreDSN != "" {
		d.Store.DSN = env.StoreDSN
	}
	if env.HTTPAddr != "" {
		d.Server.Addr = env.HTTPAddr
	}
	if env.Provider != "" {
		d.Ingest.Provider = env.Provider
	}
}
