package hosted

import (
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Placeholder sentinels shipped in project templates. A config still carrying
// either one is treated as unconfigured rather than broken.
const (
	PlaceholderServiceURL = "https://your-project.example.com"
	PlaceholderAnonKey    = "your-anon-key"
)

// DefaultBootstrapTimeout bounds the initial session probe.
const DefaultBootstrapTimeout = 5 * time.Second

// Config holds the connection settings for the hosted service. Loaded once at
// startup and treated as immutable.
type Config struct {
	ServiceURL       string
	AnonKey          string
	BootstrapTimeout time.Duration
}

// LoadConfig reads the config from the environment. Missing values are not an
// error here: an empty or placeholder config puts the store into degraded
// mode instead of failing startup.
func LoadConfig() Config {
	return Config{
		ServiceURL:       os.Getenv("HOSTED_SERVICE_URL"),
		AnonKey:          os.Getenv("HOSTED_ANON_KEY"),
		BootstrapTimeout: getEnvDuration("HOSTED_BOOTSTRAP_TIMEOUT", DefaultBootstrapTimeout),
	}
}

// Configured reports whether both connection settings are present and neither
// equals its placeholder sentinel.
func (c Config) Configured() bool {
	url := strings.TrimSpace(c.ServiceURL)
	key := strings.TrimSpace(c.AnonKey)

	if url == "" || key == "" {
		return false
	}

	return url != PlaceholderServiceURL && key != PlaceholderAnonKey
}

// Validate checks a configured Config for shape errors (bad URL and such).
// An unconfigured Config validates clean: absence is degraded mode, not an
// error.
func (c Config) Validate() error {
	if !c.Configured() {
		return nil
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceURL, validation.Required, is.URL),
		validation.Field(&c.AnonKey, validation.Required, validation.Length(8, 0)),
	)
}

func (c Config) timeout() time.Duration {
	if c.BootstrapTimeout > 0 {
		return c.BootstrapTimeout
	}
	return DefaultBootstrapTimeout
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
