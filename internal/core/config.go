package core

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks startup configuration and template errors
var ErrConfig = errors.New("configuration error")

// Config는 전체 애플리케이션 설정을 담는 구조체
type Config struct {
	General GeneralConfig `yaml:"general"`
	Ufanet  UfanetConfig  `yaml:"ufanet_config"`
	Shinobi ShinobiConfig `yaml:"shinobi_config"`
	Status  StatusConfig  `yaml:"status"`
}

// GeneralConfig holds scheduling, transport and logging settings
type GeneralConfig struct {
	UpdateTimeout      Duration `yaml:"update_timeout"`
	RetryTimeout       Duration `yaml:"retry_timeout"`
	CycleTimeout       Duration `yaml:"cycle_timeout"`
	RequestTimeout     Duration `yaml:"request_timeout"`
	InsecureSkipVerify *bool    `yaml:"insecure_skip_verify"`
	ApplyConcurrency   int      `yaml:"apply_concurrency"`
	SkipUnchanged      bool     `yaml:"skip_unchanged"`
	HistorySize        int      `yaml:"history_size"`

	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSize    int    `yaml:"log_max_size"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAge     int    `yaml:"log_max_age"`
}

// UfanetConfig holds the camera provider settings
type UfanetConfig struct {
	ServiceURL   string   `yaml:"service_url"`
	CloudURL     string   `yaml:"cloud_url"`
	User         string   `yaml:"user"`
	Password     string   `yaml:"password"`
	PageSize     int      `yaml:"page_size"`
	MaxPages     int      `yaml:"max_pages"`
	ProbeStreams bool     `yaml:"probe_streams"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

// ShinobiConfig holds the CCTV platform settings
type ShinobiConfig struct {
	CCTVURL  string `yaml:"cctv_url"`
	APIKey   string `yaml:"api_key"`
	GroupKey string `yaml:"group_key"`
}

// StatusConfig holds the optional status server settings
type StatusConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Production bool `yaml:"production"`
}

// Duration accepts either a number of seconds or a Go duration string
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		*d = 0
		return nil
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: expected seconds or a duration like 5m", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadConfig는 YAML 파일에서 설정을 로드합니다
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cant load config file: %w", ErrConfig, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %w", ErrConfig, err)
	}

	config.applyDefaults()

	// 설정 검증
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %w", ErrConfig, err)
	}

	return &config, nil
}

// applyDefaults fills optional settings. The two scheduling delays have no default.
func (c *Config) applyDefaults() {
	if c.General.RequestTimeout <= 0 {
		c.General.RequestTimeout = Duration(30 * time.Second)
	}
	if c.General.InsecureSkipVerify == nil {
		skip := true
		c.General.InsecureSkipVerify = &skip
	}
	if c.General.ApplyConcurrency <= 0 {
		c.General.ApplyConcurrency = 1
	}
	if c.General.HistorySize <= 0 {
		c.General.HistorySize = 20
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogMaxSize <= 0 {
		c.General.LogMaxSize = 100
	}
	if c.General.LogMaxBackups <= 0 {
		c.General.LogMaxBackups = 7
	}
	if c.General.LogMaxAge <= 0 {
		c.General.LogMaxAge = 30
	}
	if c.Ufanet.PageSize <= 0 {
		c.Ufanet.PageSize = 20
	}
	if c.Ufanet.ProbeTimeout <= 0 {
		c.Ufanet.ProbeTimeout = Duration(10 * time.Second)
	}
	if c.Status.Port == 0 {
		c.Status.Port = 8107
	}
}

// Validate는 설정값의 유효성을 검증합니다
func (c *Config) Validate() error {
	if c.General.UpdateTimeout <= 0 {
		return fmt.Errorf("general.update_timeout must be positive")
	}

	if c.General.RetryTimeout <= 0 {
		return fmt.Errorf("general.retry_timeout must be positive")
	}

	if c.General.CycleTimeout < 0 {
		return fmt.Errorf("general.cycle_timeout must not be negative")
	}

	required := map[string]string{
		"ufanet_config.service_url": c.Ufanet.ServiceURL,
		"ufanet_config.cloud_url":   c.Ufanet.CloudURL,
		"ufanet_config.user":        c.Ufanet.User,
		"ufanet_config.password":    c.Ufanet.Password,
		"shinobi_config.cctv_url":   c.Shinobi.CCTVURL,
		"shinobi_config.api_key":    c.Shinobi.APIKey,
		"shinobi_config.group_key":  c.Shinobi.GroupKey,
	}
	var missing []string
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.Status.Enabled && (c.Status.Port <= 0 || c.Status.Port > 65535) {
		return fmt.Errorf("invalid status.port: %d", c.Status.Port)
	}

	return nil
}
