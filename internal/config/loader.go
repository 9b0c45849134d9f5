package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CALSHARE_"

// Config captures the settings of the calendar sharing service.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	SessionTTL         time.Duration
	InviteTTL          time.Duration
	AppURL             string
	SMTP               SMTPConfig
	ExposeInviteTokens bool
	CORSOrigins        []string
	LogLevel           string
	SessionCleanup     string
}

// SMTPConfig is only used when Host is set.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether invite mail should go through SMTP.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// fileConfig mirrors Config for the optional YAML file. Durations are strings
// so they read like the environment values.
type fileConfig struct {
	HTTPPort           *int     `yaml:"http_port"`
	SQLiteDSN          *string  `yaml:"sqlite_dsn"`
	SessionTTL         *string  `yaml:"session_ttl"`
	InviteTTL          *string  `yaml:"invite_ttl"`
	AppURL             *string  `yaml:"app_url"`
	ExposeInviteTokens *bool    `yaml:"expose_invite_tokens"`
	CORSOrigins        []string `yaml:"cors_origins"`
	LogLevel           *string  `yaml:"log_level"`
	SessionCleanup     *string  `yaml:"session_cleanup"`
	SMTP               struct {
		Host     *string `yaml:"host"`
		Port     *int    `yaml:"port"`
		Username *string `yaml:"username"`
		Password *string `yaml:"password"`
		From     *string `yaml:"from"`
	} `yaml:"smtp"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPPort:       8080,
		SQLiteDSN:      "calshare.db",
		SessionTTL:     24 * time.Hour,
		InviteTTL:      7 * 24 * time.Hour,
		SMTP:           SMTPConfig{Port: 587},
		LogLevel:       "info",
		SessionCleanup: "@hourly",
	}
}

// Load reads the YAML file named by CALSHARE_CONFIG_FILE, if any, and then
// applies CALSHARE_* environment overrides.
//
// Missing required values and invalid values are reported together in a single
// localized error.
func Load() (Config, error) {
	cfg := Default()
	l := &loader{}

	if path := strings.TrimSpace(os.Getenv(envPrefix + "CONFIG_FILE")); path != "" {
		if err := l.applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	l.applyEnv(&cfg)
	l.validate(&cfg)

	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type loader struct {
	missing []string
	invalid []string
}

func (l *loader) err() error {
	var errs []error
	if len(l.missing) > 0 {
		errs = append(errs, fmt.Errorf("必須の設定値がありません: %s", strings.Join(l.missing, ", ")))
	}
	if len(l.invalid) > 0 {
		errs = append(errs, fmt.Errorf("設定値が不正です: %s", strings.Join(l.invalid, ", ")))
	}
	return errors.Join(errs...)
}

func (l *loader) applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("設定ファイルの形式が不正です: %w", err)
	}

	if fc.HTTPPort != nil {
		cfg.HTTPPort = *fc.HTTPPort
	}
	if fc.SQLiteDSN != nil {
		cfg.SQLiteDSN = strings.TrimSpace(*fc.SQLiteDSN)
	}
	if fc.SessionTTL != nil {
		l.duration(&cfg.SessionTTL, "session_ttl", *fc.SessionTTL)
	}
	if fc.InviteTTL != nil {
		l.duration(&cfg.InviteTTL, "invite_ttl", *fc.InviteTTL)
	}
	if fc.AppURL != nil {
		cfg.AppURL = strings.TrimSpace(*fc.AppURL)
	}
	if fc.ExposeInviteTokens != nil {
		cfg.ExposeInviteTokens = *fc.ExposeInviteTokens
	}
	if len(fc.CORSOrigins) > 0 {
		cfg.CORSOrigins = trimAll(fc.CORSOrigins)
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = strings.TrimSpace(*fc.LogLevel)
	}
	if fc.SessionCleanup != nil {
		cfg.SessionCleanup = strings.TrimSpace(*fc.SessionCleanup)
	}
	if fc.SMTP.Host != nil {
		cfg.SMTP.Host = strings.TrimSpace(*fc.SMTP.Host)
	}
	if fc.SMTP.Port != nil {
		cfg.SMTP.Port = *fc.SMTP.Port
	}
	if fc.SMTP.Username != nil {
		cfg.SMTP.Username = *fc.SMTP.Username
	}
	if fc.SMTP.Password != nil {
		cfg.SMTP.Password = *fc.SMTP.Password
	}
	if fc.SMTP.From != nil {
		cfg.SMTP.From = strings.TrimSpace(*fc.SMTP.From)
	}
	return nil
}

func (l *loader) applyEnv(cfg *Config) {
	if v, ok := lookup("HTTP_PORT"); ok {
		l.integer(&cfg.HTTPPort, envPrefix+"HTTP_PORT", v)
	}
	if v, ok := lookup("SQLITE_DSN"); ok {
		cfg.SQLiteDSN = v
	}
	if v, ok := lookup("SESSION_TTL"); ok {
		l.duration(&cfg.SessionTTL, envPrefix+"SESSION_TTL", v)
	}
	if v, ok := lookup("INVITE_TTL"); ok {
		l.duration(&cfg.InviteTTL, envPrefix+"INVITE_TTL", v)
	}
	if v, ok := lookup("APP_URL"); ok {
		cfg.AppURL = v
	}
	if v, ok := lookup("SMTP_HOST"); ok {
		cfg.SMTP.Host = v
	}
	if v, ok := lookup("SMTP_PORT"); ok {
		l.integer(&cfg.SMTP.Port, envPrefix+"SMTP_PORT", v)
	}
	if v, ok := lookup("SMTP_USERNAME"); ok {
		cfg.SMTP.Username = v
	}
	if v, ok := lookup("SMTP_PASSWORD"); ok {
		cfg.SMTP.Password = v
	}
	if v, ok := lookup("SMTP_FROM"); ok {
		cfg.SMTP.From = v
	}
	if v, ok := lookup("EXPOSE_INVITE_TOKENS"); ok {
		expose, err := strconv.ParseBool(v)
		if err != nil {
			l.invalid = append(l.invalid, envPrefix+"EXPOSE_INVITE_TOKENS")
		} else {
			cfg.ExposeInviteTokens = expose
		}
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = trimAll(strings.Split(v, ","))
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookup("SESSION_CLEANUP"); ok {
		cfg.SessionCleanup = v
	}
}

func (l *loader) validate(cfg *Config) {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		l.invalid = appendOnce(l.invalid, envPrefix+"HTTP_PORT")
	}
	if cfg.SQLiteDSN == "" {
		l.missing = append(l.missing, envPrefix+"SQLITE_DSN")
	}

	if cfg.AppURL == "" {
		l.missing = append(l.missing, envPrefix+"APP_URL")
	} else if u, err := url.Parse(cfg.AppURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		l.invalid = append(l.invalid, envPrefix+"APP_URL")
	}

	if cfg.SMTP.Enabled() {
		if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
			l.invalid = appendOnce(l.invalid, envPrefix+"SMTP_PORT")
		}
		if cfg.SMTP.From == "" {
			l.missing = append(l.missing, envPrefix+"SMTP_FROM")
		}
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	default:
		l.invalid = append(l.invalid, envPrefix+"LOG_LEVEL")
	}

	if _, err := cron.ParseStandard(cfg.SessionCleanup); err != nil {
		l.invalid = append(l.invalid, envPrefix+"SESSION_CLEANUP")
	}
}

func (l *loader) integer(dst *int, key, value string) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = n
}

func (l *loader) duration(dst *time.Duration, key, value string) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		l.invalid = append(l.invalid, key)
		return
	}
	*dst = d
}

func lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	return value, value != ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func appendOnce(list []string, key string) []string {
	for _, existing := range list {
		if existing == key {
			return list
		}
	}
	return append(list, key)
}
