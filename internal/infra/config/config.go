package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"localhub/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Business    BusinessConfig    `yaml:"business"`
	Events      EventsConfig      `yaml:"events"`
	Weather     WeatherConfig     `yaml:"weather"`
	News        NewsConfig        `yaml:"news"`
	ImageProxy  ImageProxyConfig  `yaml:"image_proxy"`
	Submissions SubmissionsConfig `yaml:"submissions"`
	Logger      LoggerConfig      `yaml:"logger"`
	Tracer      TracerConfig      `yaml:"tracer"`
	Cities      []domain.City     `yaml:"cities,omitempty"` // empty = built-in table
	Includes    []string          `yaml:"includes,omitempty"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client request limits for the API.
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RequestsPerMin int      `yaml:"requests_per_min"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// BusinessConfig selects and configures the business directory provider.
type BusinessConfig struct {
	Provider       string               `yaml:"provider"` // google, yelp, geoapify
	DefaultRadiusM int                  `yaml:"default_radius_m"`
	FreeMode       bool                 `yaml:"free_mode"`
	MaxDetails     *int                 `yaml:"max_details,omitempty"`   // nil = 10, or 0 in free mode
	EnablePhotos   *bool                `yaml:"enable_photos,omitempty"` // nil = on, off in free mode
	Timeout        time.Duration        `yaml:"timeout"`
	Google         ProviderConfig       `yaml:"google"`
	Yelp           ProviderConfig       `yaml:"yelp"`
	Geoapify       ProviderConfig       `yaml:"geoapify"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig holds one upstream API's credentials and endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// CircuitBreakerConfig holds circuit breaker settings for the business provider.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// EventsConfig holds the local event file and Ticketmaster settings.
type EventsConfig struct {
	File            string         `yaml:"file"`
	DefaultRadiusM  int            `yaml:"default_radius_m"`
	Ticketmaster    ProviderConfig `yaml:"ticketmaster"`
	CollectSchedule string         `yaml:"collect_schedule"` // cron expression or duration; empty = off
	Timeout         time.Duration  `yaml:"timeout"`
}

// WeatherConfig holds Open-Meteo settings.
type WeatherConfig struct {
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NewsConfig holds Google News RSS settings.
type NewsConfig struct {
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxItems int           `yaml:"max_items"`
}

// ImageProxyConfig holds image proxy settings.
type ImageProxyConfig struct {
	AllowPrivate bool          `yaml:"allow_private"` // disables the SSRF guard; local dev only
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
}

// SubmissionsConfig holds business submission handling settings.
type SubmissionsConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackChannel    string `yaml:"slack_channel,omitempty"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`

	// JournalFile, when set, receives every submission as a JSON line.
	JournalFile    string        `yaml:"journal_file,omitempty"`
	JournalMaxSize string        `yaml:"journal_max_size,omitempty"` // e.g. "10MB"
	JournalMaxAge  time.Duration `yaml:"journal_max_age,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// TracerConfig holds OpenTelemetry tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Default upstream endpoints.
const (
	DefaultGoogleBaseURL       = "https://maps.googleapis.com/maps/api/place"
	DefaultYelpBaseURL         = "https://api.yelp.com/v3"
	DefaultGeoapifyBaseURL     = "https://api.geoapify.com/v2"
	DefaultTicketmasterBaseURL = "https://app.ticketmaster.com/discovery/v2"
	DefaultOpenMeteoBaseURL    = "https://api.open-meteo.com/v1"
	DefaultGoogleNewsBaseURL   = "https://news.google.com/rss"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerMin: 600,
				Burst:          60,
			},
		},
		Business: BusinessConfig{
			Provider:       "google",
			DefaultRadiusM: 15000,
			Timeout:        15 * time.Second,
			Google:         ProviderConfig{BaseURL: DefaultGoogleBaseURL},
			Yelp:           ProviderConfig{BaseURL: DefaultYelpBaseURL},
			Geoapify:       ProviderConfig{BaseURL: DefaultGeoapifyBaseURL},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Events: EventsConfig{
			File:           filepath.Join("public", "events.json"),
			DefaultRadiusM: 40000,
			Ticketmaster:   ProviderConfig{BaseURL: DefaultTicketmasterBaseURL},
			Timeout:        20 * time.Second,
		},
		Weather: WeatherConfig{
			BaseURL:  DefaultOpenMeteoBaseURL,
			CacheTTL: 10 * time.Minute,
			Timeout:  10 * time.Second,
		},
		News: NewsConfig{
			BaseURL:  DefaultGoogleNewsBaseURL,
			CacheTTL: 3 * time.Minute,
			Timeout:  10 * time.Second,
			MaxItems: 60,
		},
		ImageProxy: ImageProxyConfig{
			Timeout:  15 * time.Second,
			MaxBytes: 10 * 1024 * 1024,
		},
		Submissions: SubmissionsConfig{
			MaxBodyBytes: 64 * 1024,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// ResolvedMaxDetails returns the Google Place Details budget per search.
func (b BusinessConfig) ResolvedMaxDetails() int {
	if b.MaxDetails != nil {
		if *b.MaxDetails < 0 {
			return 0
		}
		return *b.MaxDetails
	}
	if b.FreeMode {
		return 0
	}
	return 10
}

// ResolvedEnablePhotos reports whether Google photo references are exposed.
func (b BusinessConfig) ResolvedEnablePhotos() bool {
	if b.EnablePhotos != nil {
		return *b.EnablePhotos
	}
	return !b.FreeMode
}

// ActiveKey returns the API key of the selected provider.
func (b BusinessConfig) ActiveKey() string {
	switch domain.ParseBusinessSource(strings.ToLower(b.Provider)) {
	case domain.SourceYelp:
		return b.Yelp.APIKey
	case domain.SourceGeoapify:
		return b.Geoapify.APIKey
	default:
		return b.Google.APIKey
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error; defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if len(cfg.Includes) > 0 {
			if err := newIncludeWalker(absPath).apply(cfg, filepath.Dir(absPath), 0); err != nil {
				return nil, err
			}
			// Re-apply the main file so it wins; its cities come first.
			included := cfg.Cities
			cfg.Cities = nil
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			cfg.Cities = append(cfg.Cities, included...)
			cfg.Includes = nil
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("LOCALHUB_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps the deployment environment onto cfg. Provider
// settings use the site's historical variable names; ambient settings use
// the LOCALHUB_ prefix.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BUSINESS_PROVIDER"); v != "" {
		cfg.Business.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv("GOOGLE_MAPS_API_KEY"); ok {
		cfg.Business.Google.APIKey = v
	}
	if v, ok := os.LookupEnv("YELP_API_KEY"); ok {
		cfg.Business.Yelp.APIKey = v
	}
	if v, ok := os.LookupEnv("GEOAPIFY_API_KEY"); ok {
		cfg.Business.Geoapify.APIKey = v
	}
	if v := os.Getenv("CITY_RADIUS_M"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Business.DefaultRadiusM = n
		}
	}
	if v := os.Getenv("BUSINESS_FREE_MODE"); v != "" {
		cfg.Business.FreeMode = v == "1"
	}
	if v := os.Getenv("BUSINESS_MAX_DETAILS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Business.MaxDetails = &n
		}
	}
	if v := os.Getenv("BUSINESS_ENABLE_PHOTOS"); v != "" {
		enabled := v == "1"
		cfg.Business.EnablePhotos = &enabled
	}
	if v, ok := os.LookupEnv("TICKETMASTER_KEY"); ok {
		cfg.Events.Ticketmaster.APIKey = v
	}
	if v := os.Getenv("EVENTS_DEFAULT_RADIUS_M"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Events.DefaultRadiusM = n
		}
	}

	if v := os.Getenv("LOCALHUB_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LOCALHUB_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOCALHUB_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("LOCALHUB_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("LOCALHUB_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("LOCALHUB_EVENTS_FILE"); v != "" {
		cfg.Events.File = v
	}
	if v := os.Getenv("LOCALHUB_EVENTS_COLLECT_SCHEDULE"); v != "" {
		cfg.Events.CollectSchedule = v
	}
	if v := os.Getenv("LOCALHUB_SLACK_WEBHOOK_URL"); v != "" {
		cfg.Submissions.SlackWebhookURL = v
	}
	if v := os.Getenv("LOCALHUB_SUBMISSIONS_JOURNAL"); v != "" {
		cfg.Submissions.JournalFile = v
	}
	if v := os.Getenv("LOCALHUB_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.RateLimit.RequestsPerMin = n
		}
	}
	if v := os.Getenv("LOCALHUB_TRUSTED_PROXIES"); v != "" {
		cfg.Server.RateLimit.TrustedProxies = splitAndTrim(v, ",")
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets finds "enc:..." values among API keys and webhook URLs and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	secrets := map[string]*string{
		"business.google.api_key":       &cfg.Business.Google.APIKey,
		"business.yelp.api_key":         &cfg.Business.Yelp.APIKey,
		"business.geoapify.api_key":     &cfg.Business.Geoapify.APIKey,
		"events.ticketmaster.api_key":   &cfg.Events.Ticketmaster.APIKey,
		"submissions.slack_webhook_url": &cfg.Submissions.SlackWebhookURL,
	}
	for name, fp := range secrets {
		if !strings.HasPrefix(*fp, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*fp = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", domain.NewDomainError("DecryptValue", domain.ErrDecryption, "invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", domain.NewDomainError("DecryptValue", domain.ErrDecryption, "ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", domain.NewDomainError("DecryptValue", domain.ErrDecryption, err.Error())
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file is not group or world writable.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
