package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/extract"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
	"github.com/ironsheep/image-text-mcp/internal/remote"
)

// Environment variable names.
const (
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvModel          = "IMAGE_TEXT_MODEL"
	EnvEndpoint       = "IMAGE_TEXT_ENDPOINT"
	EnvLanguages      = "IMAGE_TEXT_LANGUAGES"
	EnvPolicy         = "IMAGE_TEXT_POLICY"
	EnvMaxBytes       = "IMAGE_TEXT_MAX_BYTES"
	EnvMaxDimension   = "IMAGE_TEXT_MAX_DIMENSION"
	EnvRemoteMaxSide  = "IMAGE_TEXT_REMOTE_MAX_SIDE"
	EnvRemoteTimeout  = "IMAGE_TEXT_REMOTE_TIMEOUT"
	EnvLocalTimeout   = "IMAGE_TEXT_LOCAL_TIMEOUT"
	EnvRetryBaseDelay = "IMAGE_TEXT_RETRY_BASE_DELAY"
	EnvHTTPAddr       = "IMAGE_TEXT_HTTP_ADDR"
	EnvTessdataPrefix = "TESSDATA_PREFIX"
	EnvLogLevel       = "IMAGE_TEXT_LOG_LEVEL"
)

// DefaultHTTPAddr is the listen address of the HTTP API.
const DefaultHTTPAddr = ":8085"

// DefaultLocalTimeout bounds one local OCR recognition.
const DefaultLocalTimeout = 60 * time.Second

// Config holds every runtime setting.
type Config struct {
	// APIKey is the sanitized remote credential. Empty means absent.
	APIKey   string
	Model    string
	Endpoint string

	Languages []string
	Policy    extract.Policy

	MaxBytes      int64
	MaxDimension  int
	RemoteMaxSide int

	RemoteTimeout  time.Duration
	LocalTimeout   time.Duration
	RetryBaseDelay time.Duration

	HTTPAddr       string
	TessdataPrefix string
	LogLevel       string
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		Model:          remote.DefaultModel,
		Languages:      append([]string(nil), extract.DefaultLanguages...),
		Policy:         extract.DefaultPolicy,
		MaxBytes:       imaging.DefaultMaxBytes,
		MaxDimension:   imaging.DefaultMaxDimension,
		RemoteMaxSide:  remote.DefaultMaxSide,
		RemoteTimeout:  remote.DefaultTimeout,
		LocalTimeout:   DefaultLocalTimeout,
		RetryBaseDelay: remote.DefaultBaseDelay,
		HTTPAddr:       DefaultHTTPAddr,
		LogLevel:       "info",
	}
}

// Load reads the given .env files (".env" when none are named), then the
// process environment. Missing .env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default, and validates
// it.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := lookup(EnvAPIKey); ok {
		c.APIKey = SanitizeAPIKey(v)
	}
	if v, ok := get(EnvModel); ok {
		c.Model = v
	}
	if v, ok := get(EnvEndpoint); ok {
		c.Endpoint = v
	}
	if v, ok := get(EnvLanguages); ok {
		c.Languages = backend.NormalizeLanguages(strings.Split(v, ","))
	}
	if v, ok := get(EnvPolicy); ok {
		p, err := extract.ParsePolicy(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPolicy, err)
		}
		c.Policy = p
	}
	if v, ok := get(EnvHTTPAddr); ok {
		c.HTTPAddr = v
	}
	if v, ok := get(EnvTessdataPrefix); ok {
		c.TessdataPrefix = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = strings.ToLower(v)
	}

	var err error
	if v, ok := get(EnvMaxBytes); ok {
		if c.MaxBytes, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, invalid(EnvMaxBytes, v, err)
		}
	}
	if v, ok := get(EnvMaxDimension); ok {
		if c.MaxDimension, err = strconv.Atoi(v); err != nil {
			return nil, invalid(EnvMaxDimension, v, err)
		}
	}
	if v, ok := get(EnvRemoteMaxSide); ok {
		if c.RemoteMaxSide, err = strconv.Atoi(v); err != nil {
			return nil, invalid(EnvRemoteMaxSide, v, err)
		}
	}
	for key, dst := range map[string]*time.Duration{
		EnvRemoteTimeout:  &c.RemoteTimeout,
		EnvLocalTimeout:   &c.LocalTimeout,
		EnvRetryBaseDelay: &c.RetryBaseDelay,
	} {
		if v, ok := get(key); ok {
			if *dst, err = ParseDuration(v); err != nil {
				return nil, invalid(key, v, err)
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("max bytes must be positive, got %d", c.MaxBytes))
	}
	if c.MaxDimension <= 0 {
		errs = append(errs, fmt.Errorf("max dimension must be positive, got %d", c.MaxDimension))
	}
	if c.RemoteMaxSide <= 0 {
		errs = append(errs, fmt.Errorf("remote max side must be positive, got %d", c.RemoteMaxSide))
	}
	if c.RemoteTimeout <= 0 || c.LocalTimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeouts must be positive"))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry base delay must not be negative"))
	}
	if !c.Policy.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", extract.ErrInvalidPolicy, c.Policy))
	}
	if len(c.Languages) == 0 {
		errs = append(errs, backend.ErrNoLanguages)
	}
	return errors.Join(errs...)
}

// HasCredential reports whether a remote API key is configured.
func (c *Config) HasCredential() bool {
	return c.APIKey != ""
}

// SanitizeAPIKey strips what copy-pasting a key tends to add: surrounding
// quotes, a UTF-8 byte order mark and any whitespace, including line breaks
// inside the value.
func SanitizeAPIKey(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "\uFEFF")
	key = strings.TrimSpace(key)
	key = strings.Trim(key, `"'`)
	return strings.Join(strings.Fields(key), "")
}

// ParseDuration accepts Go durations ("30s", "1m30s") and bare seconds ("30").
func ParseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func invalid(key, value string, err error) error {
	return fmt.Errorf("%s: invalid value %q: %w", key, value, err)
}
