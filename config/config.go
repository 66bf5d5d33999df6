package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"genkey/internal/certs"
	genkeyerrors "genkey/internal/errors"
	"genkey/internal/validation"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

const (
	defaultPort               = "8080"
	defaultRateLimitRequests  = 60
	defaultRateLimitWindow    = time.Minute
	systemSettingsPath        = "/etc/genkey/settings.json"
	corsAllowAllOriginsMarker = "*"
)

// Config holds application configuration.
type Config struct {
	Env          Environment
	Host         string
	Port         string
	LogLevel     string
	LogFormat    string
	LogOutput    string
	LogFilePath  string
	CORS         CORSConfig
	Certificates CertificateConfig
	RateLimit    RateLimitConfig
	TrustProxy   bool
	APIKeyHash   string
	// SettingsPath is the settings file that was applied, empty when none was found.
	SettingsPath string
}

// CORSConfig holds CORS-specific configuration.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// CertificateConfig holds the operator defaults of the issuance pipeline.
type CertificateConfig struct {
	OrganizationalUnit string
	Location           string
	Province           string
	Country            string
	ValidityDays       int
	VerifyArchives     bool
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type SettingsFile struct {
	App          AppSettings         `json:"app"`
	Certificates CertificateSettings `json:"certificates"`
	CORS         CORSSettings        `json:"cors"`
	RateLimit    RateLimitSettings   `json:"rate_limit"`
	Security     SecuritySettings    `json:"security"`
}

type AppSettings struct {
	Env     string          `json:"env"`
	Logging LoggingSettings `json:"logging"`
	Host    string          `json:"host"`
	Port    int             `json:"port"`
}

type LoggingSettings struct {
	Level    string `json:"level"`
	Format   string `json:"format"`
	Output   string `json:"output"`
	FilePath string `json:"file_path"`
}

type CORSSettings struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

type CertificateSettings struct {
	OrganizationalUnit string `json:"organizational_unit"`
	Location           string `json:"location"`
	Province           string `json:"province"`
	Country            string `json:"country"`
	ValidityDays       int    `json:"validity_days"`
	VerifyArchives     *bool  `json:"verify_archives"`
}

type RateLimitSettings struct {
	MaxRequests int    `json:"max_requests"`
	Window      string `json:"window"`
}

type SecuritySettings struct {
	TrustProxy bool   `json:"trust_proxy"`
	APIKeyHash string `json:"api_key_hash"`
}

// Load builds the configuration from defaults, then the settings file, then
// environment variables. A .env file in the working directory is read first.
func Load() (Config, error) {
	_ = godotenv.Load()

	env := parseEnv(getEnv("APP_ENV", "dev"))
	cfg := defaultConfig(env)

	settings, settingsPath, err := loadSettingsFile()
	switch {
	case err == nil:
		if err := applySettings(&cfg, *settings); err != nil {
			return Config{}, fmt.Errorf("invalid settings file %s: %w", settingsPath, err)
		}
		cfg.SettingsPath = settingsPath
	case errors.Is(err, os.ErrNotExist) && settingsPath == "":
	default:
		return Config{}, fmt.Errorf("failed to load settings file %s: %w", settingsPath, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig(env Environment) Config {
	return Config{
		Env:         env,
		Port:        defaultPort,
		LogLevel:    defaultLogLevel(env),
		LogFormat:   defaultLogFormat(env),
		LogOutput:   "stdout",
		LogFilePath: "",
		CORS: CORSConfig{
			AllowedOrigins:   []string{corsAllowAllOriginsMarker},
			AllowCredentials: false,
		},
		Certificates: CertificateConfig{
			OrganizationalUnit: certs.DefaultOrganizationalUnit,
			Location:           certs.DefaultLocation,
			Province:           certs.DefaultProvince,
			Country:            certs.DefaultCountry,
			ValidityDays:       certs.DefaultValidityDays,
			VerifyArchives:     true,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: defaultRateLimitRequests,
			Window:      defaultRateLimitWindow,
		},
	}
}

func loadSettingsFile() (*SettingsFile, string, error) {
	settingsPath := strings.TrimSpace(getEnv("SETTINGS_PATH", ""))
	if settingsPath != "" {
		settings, err := readSettingsFile(settingsPath)
		return settings, settingsPath, err
	}

	envName := strings.ToLower(strings.TrimSpace(getEnv("APP_ENV", "dev")))
	candidates := []string{fmt.Sprintf("settings.%s.json", envName), "settings.json", systemSettingsPath}
	for _, candidate := range candidates {
		absPath, absErr := filepath.Abs(candidate)
		if absErr != nil {
			continue
		}
		if _, statErr := os.Stat(absPath); statErr != nil {
			continue
		}
		settings, err := readSettingsFile(absPath)
		return settings, absPath, err
	}
	return nil, "", os.ErrNotExist
}

func readSettingsFile(path string) (*SettingsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var settings SettingsFile
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func applySettings(cfg *Config, settings SettingsFile) error {
	if envValue := strings.TrimSpace(settings.App.Env); envValue != "" && os.Getenv("APP_ENV") == "" {
		cfg.Env = parseEnv(envValue)
		cfg.LogLevel = defaultLogLevel(cfg.Env)
		cfg.LogFormat = defaultLogFormat(cfg.Env)
	}
	if host := strings.TrimSpace(settings.App.Host); host != "" {
		cfg.Host = host
	}
	if settings.App.Port > 0 {
		cfg.Port = strconv.Itoa(settings.App.Port)
	}
	setIfNotBlank(&cfg.LogLevel, settings.App.Logging.Level)
	setIfNotBlank(&cfg.LogFormat, settings.App.Logging.Format)
	setIfNotBlank(&cfg.LogOutput, settings.App.Logging.Output)
	setIfNotBlank(&cfg.LogFilePath, settings.App.Logging.FilePath)

	if len(settings.CORS.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = settings.CORS.AllowedOrigins
		cfg.CORS.AllowCredentials = settings.CORS.AllowCredentials
	}

	setIfNotBlank(&cfg.Certificates.OrganizationalUnit, settings.Certificates.OrganizationalUnit)
	setIfNotBlank(&cfg.Certificates.Location, settings.Certificates.Location)
	setIfNotBlank(&cfg.Certificates.Province, settings.Certificates.Province)
	setIfNotBlank(&cfg.Certificates.Country, settings.Certificates.Country)
	if settings.Certificates.ValidityDays != 0 {
		cfg.Certificates.ValidityDays = settings.Certificates.ValidityDays
	}
	if settings.Certificates.VerifyArchives != nil {
		cfg.Certificates.VerifyArchives = *settings.Certificates.VerifyArchives
	}

	if settings.RateLimit.MaxRequests > 0 {
		cfg.RateLimit.MaxRequests = settings.RateLimit.MaxRequests
	}
	if window := strings.TrimSpace(settings.RateLimit.Window); window != "" {
		parsed, err := time.ParseDuration(window)
		if err != nil {
			return fmt.Errorf("rate_limit.window: %w", err)
		}
		cfg.RateLimit.Window = parsed
	}

	cfg.TrustProxy = settings.Security.TrustProxy
	setIfNotBlank(&cfg.APIKeyHash, settings.Security.APIKeyHash)
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Host = getEnv("GENKEY_HOST", getEnv("HOST", cfg.Host))
	cfg.Port = getEnv("GENKEY_PORT", getEnv("PORT", cfg.Port))
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.LogOutput = getEnv("LOG_OUTPUT", cfg.LogOutput)
	cfg.LogFilePath = getEnv("LOG_FILE_PATH", cfg.LogFilePath)

	if originsEnv := getEnv("CORS_ALLOWED_ORIGINS", ""); originsEnv != "" {
		origins := strings.Split(originsEnv, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORS.AllowedOrigins = origins
	}
	cfg.CORS.AllowCredentials = getEnvBool("CORS_ALLOW_CREDENTIALS", cfg.CORS.AllowCredentials)

	cfg.Certificates.OrganizationalUnit = getEnv("GENKEY_DEFAULT_OU", cfg.Certificates.OrganizationalUnit)
	cfg.Certificates.Location = getEnv("GENKEY_DEFAULT_LOCATION", cfg.Certificates.Location)
	cfg.Certificates.Province = getEnv("GENKEY_DEFAULT_PROVINCE", cfg.Certificates.Province)
	cfg.Certificates.Country = getEnv("GENKEY_DEFAULT_COUNTRY", cfg.Certificates.Country)
	cfg.Certificates.ValidityDays = getEnvInt("GENKEY_VALIDITY_DAYS", cfg.Certificates.ValidityDays)
	cfg.Certificates.VerifyArchives = getEnvBool("GENKEY_VERIFY_ARCHIVES", cfg.Certificates.VerifyArchives)

	cfg.RateLimit.MaxRequests = getEnvInt("RATE_LIMIT_MAX_REQUESTS", cfg.RateLimit.MaxRequests)
	cfg.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", cfg.TrustProxy)
	cfg.APIKeyHash = strings.TrimSpace(getEnv("GENKEY_API_KEY_HASH", cfg.APIKeyHash))
}

var nameCheckRequest = certs.Request{TaxID: "0", CompanyName: "genkey", Email: "check@genkey.invalid"}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := validation.ValidateCountryCode(c.Certificates.Country); err != nil {
		return fmt.Errorf("%w: %q", err, c.Certificates.Country)
	}
	if err := validation.ValidateValidityDays(c.Certificates.ValidityDays); err != nil {
		return fmt.Errorf("%w: %d", err, c.Certificates.ValidityDays)
	}
	// A request without location or province falls back to every default.
	if _, err := certs.BuildName(nameCheckRequest, c.IssuanceSettings().Names, time.Unix(0, 0)); err != nil {
		return fmt.Errorf("%w: %w", genkeyerrors.ErrInvalidNameDefault, err)
	}
	if err := validation.ValidateAPIKeyHash(c.APIKeyHash); err != nil {
		return err
	}
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("%w: %q", genkeyerrors.ErrInvalidPort, c.Port)
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("%w: %d requests per %s", genkeyerrors.ErrInvalidRateLimit, c.RateLimit.MaxRequests, c.RateLimit.Window)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IssuanceSettings converts the certificate section for certs.NewService.
func (c Config) IssuanceSettings() certs.Settings {
	return certs.Settings{
		Names: certs.NameDefaults{
			OrganizationalUnit: c.Certificates.OrganizationalUnit,
			Location:           c.Certificates.Location,
			Province:           c.Certificates.Province,
			Country:            strings.ToUpper(c.Certificates.Country),
		},
		ValidityDays:   c.Certificates.ValidityDays,
		VerifyArchives: c.Certificates.VerifyArchives,
	}
}

// AuthEnabled reports whether POST /pkcs12 requires an API key.
func (c Config) AuthEnabled() bool {
	return c.APIKeyHash != ""
}

// IsDev returns true if the environment is development.
func (c Config) IsDev() bool {
	return c.Env == EnvDev
}

// IsProd returns true if the environment is production.
func (c Config) IsProd() bool {
	return c.Env == EnvProd
}

func parseEnv(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return EnvProd
	default:
		return EnvDev
	}
}

func defaultLogLevel(env Environment) string {
	switch env {
	case EnvProd:
		return "info"
	default:
		return "debug"
	}
}

func defaultLogFormat(env Environment) string {
	switch env {
	case EnvProd:
		return "json"
	default:
		return "console"
	}
}

func setIfNotBlank(target *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*target = trimmed
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}
