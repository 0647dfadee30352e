package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cortex/internal/version"
)

// DefaultFocusCapacity is the focus rule capacity used when none is configured.
const DefaultFocusCapacity = 10

// Profile is configuration to start main server.
type Profile struct {
	// Remote assistant provider (OpenAI-compatible Assistants API).
	ProviderAPIKey  string
	ProviderBaseURL string
	ProviderModel   string  // Model used when a request names none.
	ProviderRPS     float64 // Requests per second allowed against the provider.
	ProviderTimeout int     // Provider request timeout in seconds.
	// ProviderMaxInFlight caps concurrent provider requests.
	ProviderMaxInFlight int

	// DefaultFocusCapacity caps focus rules created without an explicit size.
	DefaultFocusCapacity int
	// DeleteRemoteOnSoftDelete also deletes the remote resource when an
	// assistant is deactivated.
	DeleteRemoteOnSoftDelete bool
	// RequestTimeout bounds each HTTP request, in seconds.
	RequestTimeout int

	UNIXSock    string
	Mode        string
	DSN         string
	Driver      string
	Version     string
	InstanceURL string
	Addr        string
	Data        string
	Port        int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsProviderEnabled returns true if a provider API key is configured.
func (p *Profile) IsProviderEnabled() bool {
	return p.ProviderAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.ProviderAPIKey = getEnvOrDefault("CORTEX_PROVIDER_API_KEY", "")
	p.ProviderBaseURL = getEnvOrDefault("CORTEX_PROVIDER_BASE_URL", "https://api.openai.com/v1")
	p.ProviderModel = getEnvOrDefault("CORTEX_PROVIDER_MODEL", "gpt-4o")
	p.ProviderRPS = getEnvOrDefaultFloat("CORTEX_PROVIDER_RPS", 5)
	p.ProviderTimeout = getEnvOrDefaultInt("CORTEX_PROVIDER_TIMEOUT_SECONDS", 60)
	p.ProviderMaxInFlight = getEnvOrDefaultInt("CORTEX_PROVIDER_MAX_IN_FLIGHT", 4)

	p.DefaultFocusCapacity = getEnvOrDefaultInt("CORTEX_FOCUS_DEFAULT_CAPACITY", DefaultFocusCapacity)
	p.DeleteRemoteOnSoftDelete = getEnvOrDefaultBool("CORTEX_DELETE_REMOTE_ON_SOFT_DELETE", false)
	p.RequestTimeout = getEnvOrDefaultInt("CORTEX_REQUEST_TIMEOUT_SECONDS", 30)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.Version != "" && !version.IsValid(p.Version) {
		return errors.Errorf("version %q is not a semantic version", p.Version)
	}
	if p.DefaultFocusCapacity < 0 {
		return errors.Errorf("focus capacity must not be negative, got %d", p.DefaultFocusCapacity)
	}
	if p.ProviderRPS <= 0 {
		p.ProviderRPS = 5
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "cortex")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/cortex"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("cortex_%s.db", p.Mode))
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	return nil
}
