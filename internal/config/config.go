package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version      string             `yaml:"version"`
	Server       ServerConfig       `yaml:"server"`
	API          APIConfig          `yaml:"api"`
	Platform     PlatformConfig     `yaml:"platform"`
	Storage      StorageConfig      `yaml:"storage"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"` // "1.2" or "1.3"
}

// APIConfig contains inbound API configuration.
type APIConfig struct {
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// AuthConfig contains authentication configuration for inbound requests.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// PlatformConfig configures the outbound CRM platform client.
type PlatformConfig struct {
	// BaseURL is the platform REST API root, e.g. https://services.leadconnectorhq.com
	BaseURL string `yaml:"base_url"`
	// TokenURL overrides the OAuth token endpoint. Defaults to BaseURL + /oauth/token.
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// AgencyID is the default owning entity used when a request carries none.
	AgencyID string `yaml:"agency_id"`
	// SnapshotID is the account template applied to every new tenant.
	SnapshotID string `yaml:"snapshot_id"`
	// TemplateLocationID is the tenant whose custom fields seed new tenants.
	TemplateLocationID string        `yaml:"template_location_id"`
	Timeout            time.Duration `yaml:"timeout"`
}

// StorageConfig configures the outbound cloud storage client.
type StorageConfig struct {
	BaseURL string `yaml:"base_url"`
	// ParentFolderID is the fixed folder every client folder is created under.
	ParentFolderID string        `yaml:"parent_folder_id"`
	ServiceToken   string        `yaml:"service_token"`
	Timeout        time.Duration `yaml:"timeout"`
}

// SchedulerConfig configures the background token refresher.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	// Grace is how long before expiry a token is refreshed.
	Grace time.Duration `yaml:"grace"`
}

// ProvisioningConfig configures workflow pacing. The platform materializes
// new accounts asynchronously, so the workflow polls for readiness instead
// of sleeping a fixed interval.
type ProvisioningConfig struct {
	ReadyPollInterval time.Duration `yaml:"ready_poll_interval"`
	ReadyTimeout      time.Duration `yaml:"ready_timeout"`
	// FieldSettle is the pause between issuing a location token and first
	// using it, covering token propagation on the platform side.
	FieldSettle time.Duration `yaml:"field_settle"`
	// PasswordLength is the length of the generated initial user password.
	PasswordLength int `yaml:"password_length"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if err := c.Platform.Validate(); err != nil {
		return fmt.Errorf("platform: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if err := c.Provisioning.Validate(); err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "json"
	}
	if s.TLS.Enabled {
		if s.TLS.CertFile == "" {
			return fmt.Errorf("tls cert_file is required when TLS is enabled")
		}
		if s.TLS.KeyFile == "" {
			return fmt.Errorf("tls key_file is required when TLS is enabled")
		}
		if s.TLS.MinVersion != "" && s.TLS.MinVersion != "1.2" && s.TLS.MinVersion != "1.3" {
			return fmt.Errorf("tls min_version must be either \"1.2\" or \"1.3\"")
		}
		if s.TLS.MinVersion == "" {
			s.TLS.MinVersion = "1.3"
		}
	}
	return nil
}

// Validate validates API configuration.
func (a *APIConfig) Validate() error {
	if a.Auth.Enabled && len(a.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth: api_keys is required when auth is enabled")
	}
	if a.RateLimit.RequestsPerMinute <= 0 {
		a.RateLimit.RequestsPerMinute = 1000
	}
	if a.RateLimit.RequestsPerMinute > 100000 {
		a.RateLimit.RequestsPerMinute = 100000
	}
	if a.RateLimit.Burst <= 0 {
		a.RateLimit.Burst = 100
	}
	if a.RateLimit.Burst > 10000 {
		a.RateLimit.Burst = 10000
	}
	return nil
}

// Validate validates platform configuration.
func (p *PlatformConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if p.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if p.AgencyID == "" {
		return fmt.Errorf("agency_id is required")
	}
	if p.SnapshotID == "" {
		return fmt.Errorf("snapshot_id is required")
	}
	if p.TemplateLocationID == "" {
		return fmt.Errorf("template_location_id is required")
	}
	if p.TokenURL == "" {
		p.TokenURL = p.BaseURL + "/oauth/token"
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	return nil
}

// Validate validates storage configuration.
func (s *StorageConfig) Validate() error {
	if s.BaseURL == "" {
		s.BaseURL = "https://www.googleapis.com/drive/v3"
	}
	if s.ParentFolderID == "" {
		return fmt.Errorf("parent_folder_id is required")
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	return nil
}

// Validate validates scheduler configuration and applies defaults.
func (s *SchedulerConfig) Validate() error {
	if s.Interval <= 0 {
		s.Interval = 5 * time.Minute
	}
	if s.Grace <= 0 {
		s.Grace = 5 * time.Minute
	}
	return nil
}

// Validate validates provisioning configuration and applies defaults.
func (p *ProvisioningConfig) Validate() error {
	if p.ReadyPollInterval <= 0 {
		p.ReadyPollInterval = 3 * time.Second
	}
	if p.ReadyTimeout <= 0 {
		p.ReadyTimeout = 90 * time.Second
	}
	if p.ReadyTimeout < p.ReadyPollInterval {
		return fmt.Errorf("ready_timeout must be at least ready_poll_interval")
	}
	if p.FieldSettle < 0 {
		return fmt.Errorf("field_settle cannot be negative")
	}
	if p.FieldSettle == 0 {
		p.FieldSettle = 5 * time.Second
	}
	if p.PasswordLength <= 0 {
		p.PasswordLength = 16
	}
	if p.PasswordLength < 12 {
		return fmt.Errorf("password_length must be at least 12")
	}
	return nil
}
