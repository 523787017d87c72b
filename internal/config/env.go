package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
)

// EnvConfig holds settings that come only from the environment: secrets,
// deployment overrides and the OpenTelemetry exporter.
type EnvConfig struct {
	ConfigPath string
	// APIKey authenticates against the World News API.
	APIKey   string
	StoreDSN string
	HTTPAddr string
	Provider string
	LogLevel string
	OTel     OTelEnvConfig
}

type OTelEnvConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Protocol    string // "grpc" or "http/protobuf"
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

func LoadEnv() EnvConfig {
	return loadEnv(os.LookupEnv)
}

// environ looks up one variable; blank values count as unset.
type environ func(key string) (string, bool)

func (e environ) str(key, fallback string) string {
	if v, ok := e(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

func (e environ) boolean(key string, fallback bool) bool {
	switch strings.ToLower(e.str(key, "")) {
	case "":
		return fallback
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (e environ) ratio(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(e.str(key, ""), 64)
	if err != nil {
		f = fallback
	}
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func loadEnv(lookup environ) EnvConfig {
	endpoint := lookup.str("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	return EnvConfig{
		ConfigPath: lookup.str("NEWSFEED_CONFIG", "newsfeed.yaml"),
		APIKey:     lookup.str("WORLD_NEWS_API_KEY", ""),
		StoreDSN:   lookup.str("NEWSFEED_STORE_DSN", ""),
		HTTPAddr:   lookup.str("NEWSFEED_HTTP_ADDR", ""),
		Provider:   strings.ToLower(lookup.str("NEWSFEED_PROVIDER", "")),
		LogLevel:   strings.ToLower(lookup.str("NEWSFEED_LOG_LEVEL", "info")),
		OTel: OTelEnvConfig{
			Enabled:     lookup.boolean("OTEL_ENABLED", false),
			ServiceName: lookup.str("OTEL_SERVICE_NAME", "newsfeed"),
			Endpoint:    endpoint,
			Protocol:    strings.ToLower(lookup.str("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			Headers:     parseHeaders(lookup.str("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    lookup.boolean("OTEL_EXPORTER_OTLP_INSECURE", defaultInsecure(endpoint)),
			SampleRatio: lookup.ratio("OTEL_TRACES_SAMPLE_RATIO", 1.0),
		},
	}
}

// parseHeaders reads "k1=v1,k2=v2". Pairs missing a key or value are dropped.
func parseHeaders(raw string) map[string]string {
	var out map[string]string
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}

// defaultInsecure is true for plain-http and loopback collector endpoints.
func defaultInsecure(endpoint string) bool {
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		return err == nil && u.Scheme == "http"
	}
	host, _, _ := strings.Cut(endpoint, ":")
	switch host {
	case "localhost", "127.0.0.1", "0.0.0.0":
		return true
	default:
		return false
	}
}
