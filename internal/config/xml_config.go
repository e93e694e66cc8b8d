// Package config provides XML-based configuration for the DeepGuard server.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"DeepGuard"`

	Server   ServerConfig   `xml:"Server"`
	Demo     DemoConfig     `xml:"Demo"`
	Content  ContentConfig  `xml:"Content"`
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// DemoConfig contains upload validation and analysis settings
type DemoConfig struct {
	MaxUploadSize          string `xml:"MaxUploadSize"`
	AllowedTypes           string `xml:"AllowedTypes"`
	ProcessingDelayMs      int    `xml:"ProcessingDelayMs"`
	MaxSessions            int    `xml:"MaxSessions"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	NotificationBacklog    int    `xml:"NotificationBacklog"`
	HistoryDatabase        string `xml:"HistoryDatabase"` // empty keeps the ledger in memory
}

// ContentConfig contains site content settings
type ContentConfig struct {
	ContentFile    string `xml:"ContentFile"` // empty uses the built-in copy
	RepositoryURL  string `xml:"RepositoryURL"`
	ReleaseBaseURL string `xml:"ReleaseBaseURL"`
	ContactEmail   string `xml:"ContactEmail"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	EnableMetrics        bool   `xml:"EnableMetrics"`
	EnableCompression    bool   `xml:"EnableCompression"`
	CompressionLevel     int    `xml:"CompressionLevel"`
	DuckDBThreads        int    `xml:"DuckDBThreads"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Demo: DemoConfig{
			MaxUploadSize:          "50MiB",
			AllowedTypes:           "video/mp4,video/avi,video/mov,image/jpeg,image/png,image/jpg",
			ProcessingDelayMs:      3000,
			MaxSessions:            500,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			NotificationBacklog:    20,
		},
		Content: ContentConfig{
			RepositoryURL:  "https://github.com/your-repo/deepfake-detector",
			ReleaseBaseURL: "https://github.com/your-repo/deepfake-detector/releases/download/v1.0",
			ContactEmail:   "contact@deepguard.research",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			EnableMetrics:        true,
			EnableCompression:    true,
			CompressionLevel:     5,
			DuckDBThreads:        1,
		},
	}
}

// LoadConfig loads configuration from an XML file, creating it with
// defaults when missing.
func LoadConfig(configPath string) (*AppConfig, error) {
	var config *AppConfig

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config = &AppConfig{}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- DeepGuard Demo Server Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if level := os.Getenv("DEEPGUARD_LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	if delay := os.Getenv("DEEPGUARD_PROCESSING_DELAY_MS"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			c.Demo.ProcessingDelayMs = d
		}
	}

	if content := os.Getenv("DEEPGUARD_CONTENT_FILE"); content != "" {
		c.Content.ContentFile = content
	}
}

// resolvePaths converts relative file paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Content.ContentFile != "" && !filepath.IsAbs(c.Content.ContentFile) {
		c.Content.ContentFile = filepath.Join(configDir, c.Content.ContentFile)
	}
	if c.Demo.HistoryDatabase != "" && !filepath.IsAbs(c.Demo.HistoryDatabase) {
		c.Demo.HistoryDatabase = filepath.Join(configDir, c.Demo.HistoryDatabase)
	}
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("Server.Port out of range: %d", c.Server.Port))
	}
	if c.Demo.ProcessingDelayMs <= 0 {
		errs = append(errs, fmt.Errorf("Demo.ProcessingDelayMs must be positive: %d", c.Demo.ProcessingDelayMs))
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		errs = append(errs, err)
	}
	if len(c.AllowedTypes()) == 0 {
		errs = append(errs, errors.New("Demo.AllowedTypes is empty"))
	}

	return errors.Join(errs...)
}

// MaxUploadBytes parses Demo.MaxUploadSize ("50MiB", "52428800", ...).
func (c *AppConfig) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Demo.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("Demo.MaxUploadSize %q: %w", c.Demo.MaxUploadSize, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("Demo.MaxUploadSize must be positive")
	}
	return int64(n), nil
}

// AllowedTypes splits Demo.AllowedTypes into trimmed, non-empty entries.
func (c *AppConfig) AllowedTypes() []string {
	var types []string
	for _, t := range strings.Split(c.Demo.AllowedTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// AllowOrigins splits Server.AllowOrigins, defaulting to "*".
func (c *AppConfig) AllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// ProcessingDelay returns the artificial analysis delay.
func (c *AppConfig) ProcessingDelay() time.Duration {
	return time.Duration(c.Demo.ProcessingDelayMs) * time.Millisecond
}

// SessionTimeout returns how long an idle session is kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	if c.Demo.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Demo.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle sessions are swept.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Demo.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Demo.CleanupIntervalMinutes) * time.Minute
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
