// Package config loads the service configuration from defaults, an optional
// YAML file and HOMECAL_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// PushConfig holds the VAPID identity used for Web Push.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string `yaml:"subject"`
}

// ICSConfig controls interchange export and import.
type ICSConfig struct {
	ProductID    string        `yaml:"product_id"`
	UIDDomain    string        `yaml:"uid_domain"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// EmailConfig holds the Postmark credentials used for invitation emails.
// Email is disabled when PostmarkToken is empty.
type EmailConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	From          string `yaml:"from"`
	BaseURL       string `yaml:"base_url"`
}

// JobsConfig holds the cron schedule and limits of the periodic jobs.
type JobsConfig struct {
	Dispatch          string        `yaml:"dispatch"`
	Birthdays         string        `yaml:"birthdays"`
	Tasks             string        `yaml:"tasks"`
	Retention         string        `yaml:"retention"`
	DispatchBatchSize int           `yaml:"dispatch_batch_size"`
	TaskBatchSize     int           `yaml:"task_batch_size"`
	RetentionDays     int           `yaml:"retention_days"`
	Timeout           time.Duration `yaml:"timeout"`
}

type Config struct {
	Port        string      `yaml:"port"`
	DBPath      string      `yaml:"db_path"`
	LogLevel    string      `yaml:"log_level"`
	LogFormat   string      `yaml:"log_format"`
	Timezone    string      `yaml:"timezone"`
	JWTSecret   string      `yaml:"jwt_secret"`
	CORSOrigins []string    `yaml:"cors_origins"`
	Push        PushConfig  `yaml:"push"`
	ICS         ICSConfig   `yaml:"ics"`
	Email       EmailConfig `yaml:"email"`
	Jobs        JobsConfig  `yaml:"jobs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DBPath == "" {
		c.DBPath = "homecal.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
	if c.Push.Subject == "" {
		c.Push.Subject = "mailto:noreply@homecal.app"
	}
	if c.ICS.ProductID == "" {
		c.ICS.ProductID = "-//homecal//Household Calendar//EN"
	}
	if c.ICS.UIDDomain == "" {
		c.ICS.UIDDomain = "homecal.app"
	}
	if c.ICS.FetchTimeout <= 0 {
		c.ICS.FetchTimeout = 15 * time.Second
	}
	if c.Email.From == "" {
		c.Email.From = "noreply@homecal.app"
	}
	if c.Email.BaseURL == "" {
		c.Email.BaseURL = "http://localhost:" + c.Port
	}
	if c.Jobs.Dispatch == "" {
		c.Jobs.Dispatch = "* * * * *"
	}
	if c.Jobs.Birthdays == "" {
		c.Jobs.Birthdays = "0 2 * * *"
	}
	if c.Jobs.Tasks == "" {
		c.Jobs.Tasks = "0 7 * * *"
	}
	if c.Jobs.Retention == "" {
		c.Jobs.Retention = "30 3 * * *"
	}
	if c.Jobs.DispatchBatchSize <= 0 {
		c.Jobs.DispatchBatchSize = 10
	}
	if c.Jobs.TaskBatchSize <= 0 {
		c.Jobs.TaskBatchSize = 20
	}
	if c.Jobs.RetentionDays <= 0 {
		c.Jobs.RetentionDays = 7
	}
	if c.Jobs.Timeout <= 0 {
		c.Jobs.Timeout = 50 * time.Second
	}
}

// Validate reports configuration that cannot be used to start the service.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want text or json", c.LogFormat))
	}
	for name, spec := range c.Jobs.Specs() {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("jobs.%s %q: %w", name, spec, err))
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Specs maps job names to their cron expressions.
func (j JobsConfig) Specs() map[string]string {
	return map[string]string{
		"dispatch":  j.Dispatch,
		"birthdays": j.Birthdays,
		"tasks":     j.Tasks,
		"retention": j.Retention,
	}
}

// ReminderRetention is how long sent reminders are kept.
func (j JobsConfig) ReminderRetention() time.Duration {
	return time.Duration(j.RetentionDays) * 24 * time.Hour
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides from getenv and fills defaults.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if getenv != nil {
		if err := applyEnv(cfg, getenv); err != nil {
			return nil, err
		}
	}
	cfg.Normalize()
	return cfg, nil
}

func applyEnv(c *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("HOMECAL_PORT", &c.Port)
	str("HOMECAL_DB_PATH", &c.DBPath)
	str("HOMECAL_LOG_LEVEL", &c.LogLevel)
	str("HOMECAL_LOG_FORMAT", &c.LogFormat)
	str("HOMECAL_TIMEZONE", &c.Timezone)
	str("HOMECAL_JWT_SECRET", &c.JWTSecret)
	str("HOMECAL_VAPID_PUBLIC_KEY", &c.Push.VAPIDPublicKey)
	str("HOMECAL_VAPID_PRIVATE_KEY", &c.Push.VAPIDPrivateKey)
	str("HOMECAL_VAPID_SUBJECT", &c.Push.Subject)
	str("HOMECAL_ICS_PRODUCT_ID", &c.ICS.ProductID)
	str("HOMECAL_ICS_UID_DOMAIN", &c.ICS.UIDDomain)
	str("HOMECAL_POSTMARK_TOKEN", &c.Email.PostmarkToken)
	str("HOMECAL_EMAIL_FROM", &c.Email.From)
	str("HOMECAL_BASE_URL", &c.Email.BaseURL)
	str("HOMECAL_JOB_DISPATCH", &c.Jobs.Dispatch)
	str("HOMECAL_JOB_BIRTHDAYS", &c.Jobs.Birthdays)
	str("HOMECAL_JOB_TASKS", &c.Jobs.Tasks)
	str("HOMECAL_JOB_RETENTION", &c.Jobs.Retention)

	if v := getenv("HOMECAL_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	if v := getenv("HOMECAL_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOMECAL_RETENTION_DAYS: %w", err)
		}
		c.Jobs.RetentionDays = n
	}
	if v := getenv("HOMECAL_JOB_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HOMECAL_JOB_TIMEOUT: %w", err)
		}
		c.Jobs.Timeout = d
	}
	return nil
}
