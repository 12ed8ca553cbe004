// Package config loads process-wide settings once at startup. The returned
// Config is read-only; nothing in the request path mutates it.
package config

import (
	"addris-route-service/internal/domain"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Extraction ExtractionConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Geocoding  GeocodingConfig
	Cache      CacheConfig
	Routing    RoutingConfig
	Fusion     FusionConfig
	Events     EventsConfig
}

type ServerConfig struct {
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

type ExtractionConfig struct {
	Strategy          string
	DefaultConfidence float64
	MinCompleteness   float64
}

type OCRConfig struct {
	Backend     string
	Bin         string
	Lang        string
	TessdataDir string
	EasyOCRURL  string
	Timeout     time.Duration
	Preprocess  bool
}

// LLMConfig leaves Model and BaseURL empty to use the provider defaults.
type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
}

type GeocodingConfig struct {
	Providers        []string
	ORSAPIKey        string
	ORSBaseURL       string
	GoogleAPIKey     string
	NominatimBaseURL string
	NominatimEmail   string
	Timeout          time.Duration
	Concurrency      int
}

type CacheConfig struct {
	Backend     string
	TTL         time.Duration
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
}

type RoutingConfig struct {
	Providers     []string
	UseTraffic    bool
	Timeout       time.Duration
	Metric        string
	SolverTimeout time.Duration
}

type FusionConfig struct {
	Policy              string
	ExtractionWeight    float64
	GeocodeWeight       float64
	ValidationThreshold float64
}

type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"LOG_LEVEL":                "info",
	"LOG_FORMAT":               "json",
	"EXTRACTION_STRATEGY":      "ocr_sliding_window",
	"VLM_DEFAULT_CONFIDENCE":   0.75,
	"MIN_COMPLETENESS":         0.5,
	"OCR_BACKEND":              "tesseract",
	"TESSERACT_BIN":            "tesseract",
	"TESSERACT_LANG":           "eng",
	"TESSDATA_DIR":             "",
	"EASYOCR_URL":              "http://localhost:8500",
	"OCR_TIMEOUT":              "30s",
	"OCR_PREPROCESS":           true,
	"LLM_PROVIDER":             "openai",
	"LLM_MODEL":                "",
	"LLM_BASE_URL":             "",
	"LLM_API_KEY":              "",
	"LLM_TIMEOUT":              "45s",
	"LLM_MAX_ATTEMPTS":         3,
	"GEOCODER_PROVIDERS":       "ors,google,nominatim",
	"ORS_API_KEY":              "",
	"ORS_BASE_URL":             "https://api.openrouteservice.org",
	"GOOGLE_MAPS_API_KEY":      "",
	"NOMINATIM_BASE_URL":       "https://nominatim.openstreetmap.org",
	"NOMINATIM_EMAIL":          "",
	"GEOCODER_TIMEOUT":         "10s",
	"GEOCODE_CONCURRENCY":      4,
	"GEOCODE_CACHE":            "none",
	"GEOCODE_CACHE_TTL":        "720h",
	"REDIS_URL":                "",
	"DATABASE_URL":             "",
	"SQLITE_PATH":              "data/cache.db",
	"DISTANCE_PROVIDERS":       "google,ors,haversine",
	"ROUTING_USE_TRAFFIC":      true,
	"DISTANCE_TIMEOUT":         "15s",
	"ROUTING_METRIC":           "distance",
	"ROUTING_SOLVER_TIMEOUT":   "5s",
	"FUSION_POLICY":            "weighted",
	"FUSION_EXTRACTION_WEIGHT": 0.5,
	"FUSION_GEOCODE_WEIGHT":    0.5,
	"VALIDATION_THRESHOLD":     0.6,
	"NATS_URL":                 "",
	"NATS_SUBJECT_PREFIX":      "addris",
}

// Load reads .env (if present), an optional configs/config.yaml and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper builds a Config from v with defaults and environment bindings
// applied. It does not validate.
func FromViper(v *viper.Viper) *Config {
	for key, def := range defaults {
		v.SetDefault(key, def)
	}
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{Port: v.GetString("PORT")},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Extraction: ExtractionConfig{
			Strategy:          strings.ToLower(v.GetString("EXTRACTION_STRATEGY")),
			DefaultConfidence: v.GetFloat64("VLM_DEFAULT_CONFIDENCE"),
			MinCompleteness:   v.GetFloat64("MIN_COMPLETENESS"),
		},
		OCR: OCRConfig{
			Backend:     strings.ToLower(v.GetString("OCR_BACKEND")),
			Bin:         v.GetString("TESSERACT_BIN"),
			Lang:        v.GetString("TESSERACT_LANG"),
			TessdataDir: v.GetString("TESSDATA_DIR"),
			EasyOCRURL:  v.GetString("EASYOCR_URL"),
			Timeout:     v.GetDuration("OCR_TIMEOUT"),
			Preprocess:  v.GetBool("OCR_PREPROCESS"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("LLM_PROVIDER")),
			Model:       v.GetString("LLM_MODEL"),
			BaseURL:     v.GetString("LLM_BASE_URL"),
			APIKey:      v.GetString("LLM_API_KEY"),
			Timeout:     v.GetDuration("LLM_TIMEOUT"),
			MaxAttempts: v.GetInt("LLM_MAX_ATTEMPTS"),
		},
		Geocoding: GeocodingConfig{
			Providers:        splitList(v.GetString("GEOCODER_PROVIDERS")),
			ORSAPIKey:        v.GetString("ORS_API_KEY"),
			ORSBaseURL:       v.GetString("ORS_BASE_URL"),
			GoogleAPIKey:     v.GetString("GOOGLE_MAPS_API_KEY"),
			NominatimBaseURL: v.GetString("NOMINATIM_BASE_URL"),
			NominatimEmail:   v.GetString("NOMINATIM_EMAIL"),
			Timeout:          v.GetDuration("GEOCODER_TIMEOUT"),
			Concurrency:      v.GetInt("GEOCODE_CONCURRENCY"),
		},
		Cache: CacheConfig{
			Backend:     strings.ToLower(v.GetString("GEOCODE_CACHE")),
			TTL:         v.GetDuration("GEOCODE_CACHE_TTL"),
			RedisURL:    v.GetString("REDIS_URL"),
			DatabaseURL: v.GetString("DATABASE_URL"),
			SQLitePath:  v.GetString("SQLITE_PATH"),
		},
		Routing: RoutingConfig{
			Providers:     splitList(v.GetString("DISTANCE_PROVIDERS")),
			UseTraffic:    v.GetBool("ROUTING_USE_TRAFFIC"),
			Timeout:       v.GetDuration("DISTANCE_TIMEOUT"),
			Metric:        strings.ToLower(v.GetString("ROUTING_METRIC")),
			SolverTimeout: v.GetDuration("ROUTING_SOLVER_TIMEOUT"),
		},
		Fusion: FusionConfig{
			Policy:              strings.ToLower(v.GetString("FUSION_POLICY")),
			ExtractionWeight:    v.GetFloat64("FUSION_EXTRACTION_WEIGHT"),
			GeocodeWeight:       v.GetFloat64("FUSION_GEOCODE_WEIGHT"),
			ValidationThreshold: v.GetFloat64("VALIDATION_THRESHOLD"),
		},
		Events: EventsConfig{
			NATSURL:       v.GetString("NATS_URL"),
			SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
		},
	}
}

// UsesLLM reports whether the configured strategy calls a language model.
func (c *Config) UsesLLM() bool {
	return c.Extraction.Strategy == "vlm" || c.Extraction.Strategy == "ocr_llm"
}

// UsesOCR reports whether the configured strategy runs an OCR engine.
func (c *Config) UsesOCR() bool {
	return c.Extraction.Strategy != "vlm"
}

// Validate reports every invalid setting as a ConfigurationError.
func (c *Config) Validate() error {
	var errs []error
	bad := func(key, format string, args ...any) {
		errs = append(errs, &domain.ConfigurationError{Key: key, Msg: fmt.Sprintf(format, args...)})
	}
	oneOf := func(key, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			bad(key, "%q is not one of %s", value, strings.Join(allowed, ", "))
		}
	}
	unit := func(key string, value float64) {
		if value < 0 || value > 1 {
			bad(key, "%v is outside [0, 1]", value)
		}
	}
	positive := func(key string, d time.Duration) {
		if d <= 0 {
			bad(key, "must be a positive duration, got %s", d)
		}
	}

	oneOf("EXTRACTION_STRATEGY", c.Extraction.Strategy, "vlm", "ocr_llm", "ocr_sliding_window")
	oneOf("OCR_BACKEND", c.OCR.Backend, "tesseract", "easyocr")
	oneOf("LLM_PROVIDER", c.LLM.Provider, "openai", "grok", "local", "anthropic")
	oneOf("GEOCODE_CACHE", c.Cache.Backend, "none", "redis", "postgres", "sqlite")
	oneOf("ROUTING_METRIC", c.Routing.Metric, "distance", "duration")
	oneOf("FUSION_POLICY", c.Fusion.Policy, "weighted", "min")
	oneOf("LOG_FORMAT", strings.ToLower(c.Log.Format), "json", "console")

	unit("VLM_DEFAULT_CONFIDENCE", c.Extraction.DefaultConfidence)
	unit("MIN_COMPLETENESS", c.Extraction.MinCompleteness)
	unit("VALIDATION_THRESHOLD", c.Fusion.ValidationThreshold)
	if c.Fusion.ExtractionWeight < 0 || c.Fusion.GeocodeWeight < 0 ||
		c.Fusion.ExtractionWeight+c.Fusion.GeocodeWeight == 0 {
		bad("FUSION_EXTRACTION_WEIGHT", "weights must be non-negative and not both zero")
	}

	positive("OCR_TIMEOUT", c.OCR.Timeout)
	positive("LLM_TIMEOUT", c.LLM.Timeout)
	positive("GEOCODER_TIMEOUT", c.Geocoding.Timeout)
	positive("DISTANCE_TIMEOUT", c.Routing.Timeout)
	positive("ROUTING_SOLVER_TIMEOUT", c.Routing.SolverTimeout)
	if c.Cache.Backend != "none" {
		positive("GEOCODE_CACHE_TTL", c.Cache.TTL)
	}

	if c.LLM.MaxAttempts < 1 {
		bad("LLM_MAX_ATTEMPTS", "must be at least 1")
	}
	if c.Geocoding.Concurrency < 1 {
		bad("GEOCODE_CONCURRENCY", "must be at least 1")
	}
	if c.UsesLLM() && c.LLM.Provider != "local" && c.LLM.APIKey == "" {
		bad("LLM_API_KEY", "required for provider %s", c.LLM.Provider)
	}

	for _, p := range c.Geocoding.Providers {
		oneOf("GEOCODER_PROVIDERS", p, "ors", "google", "nominatim")
	}
	if len(c.Geocoding.Providers) == 0 {
		bad("GEOCODER_PROVIDERS", "at least one provider is required")
	}
	for _, p := range c.Routing.Providers {
		oneOf("DISTANCE_PROVIDERS", p, "google", "ors", "haversine")
	}

	switch c.Cache.Backend {
	case "redis":
		if c.Cache.RedisURL == "" {
			bad("REDIS_URL", "required when GEOCODE_CACHE=redis")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			bad("DATABASE_URL", "required when GEOCODE_CACHE=postgres")
		}
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			bad("SQLITE_PATH", "required when GEOCODE_CACHE=sqlite")
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
