package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendRest  = "rest"
	BackendLocal = "local"
)

// env names used by the hosted edge runtime
var envAliases = map[string]string{
	"data.url":        "SUPABASE_URL",
	"data.key":        "SUPABASE_ANON_KEY",
	"data.jwt_secret": "SUPABASE_JWT_SECRET",
	"email.api_key":   "RESEND_API_KEY",
}

type AppConfig struct {
	v *viper.Viper
}

func NewAppConfig() *AppConfig {
	c := &AppConfig{v: viper.New()}

	setDefaults(c.v)

	return c
}

func (c *AppConfig) Load(filename ...string) bool {
	loaded := false

	for _, name := range filename {
		c.v.SetConfigFile(name)

		if err := c.v.MergeInConfig(); err != nil {
			slog.Info(fmt.Sprintf("error loading config: %s", err.Error()))
		} else {
			loaded = true
		}
	}

	return loaded
}

func (c *AppConfig) LoadEnv(prefix string) error {
	c.v.SetEnvPrefix(prefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	for key, env := range envAliases {
		if err := c.v.BindEnv(key, strings.ToUpper(prefix)+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}

	return nil
}

func (c *AppConfig) Bool(key string) bool {
	return c.v.GetBool(key)
}

func (c *AppConfig) String(key string) string {
	return c.v.GetString(key)
}

func (c *AppConfig) Int(key string) int {
	return c.v.GetInt(key)
}

func (c *AppConfig) Duration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *AppConfig) Set(key string, v any) {
	c.v.Set(key, v)
}

func (c *AppConfig) Addr() string {
	return c.v.GetString("api_addr")
}

func (c *AppConfig) Debug() bool {
	return c.v.GetBool("debug")
}

func (c *AppConfig) Backend() string {
	return strings.ToLower(c.v.GetString("data.backend"))
}

func (c *AppConfig) DB() string {
	return c.v.GetString("db")
}

func (c *AppConfig) MembersFile() string {
	return c.v.GetString("members_file")
}

// Data returns the settings of the identity and data service.
func (c *AppConfig) Data() DataSettings {
	return DataSettings{
		URL:       strings.TrimRight(c.v.GetString("data.url"), "/"),
		Key:       c.v.GetString("data.key"),
		JWTSecret: c.v.GetString("data.jwt_secret"),
		Timeout:   c.v.GetDuration("data.timeout"),
	}
}

func (c *AppConfig) Email() EmailSettings {
	return EmailSettings{
		APIKey:    c.v.GetString("email.api_key"),
		Endpoint:  strings.TrimRight(c.v.GetString("email.endpoint"), "/"),
		From:      c.v.GetString("email.from"),
		Subject:   c.v.GetString("email.subject"),
		AcceptURL: c.v.GetString("email.accept_url"),
		Timeout:   c.v.GetDuration("email.timeout"),
	}
}

func (c *AppConfig) CORS() CORSSettings {
	return CORSSettings{
		AllowOrigin:  c.v.GetString("cors.allow_origin"),
		AllowHeaders: c.v.GetString("cors.allow_headers"),
	}
}

func (c *AppConfig) Validate() error {
	switch c.Backend() {
	case BackendRest:
		if c.Data().URL == "" {
			return fmt.Errorf("data.url is required for the %s backend", BackendRest)
		}
	case BackendLocal:
		if c.Data().JWTSecret == "" {
			return fmt.Errorf("data.jwt_secret is required for the %s backend", BackendLocal)
		}
	default:
		return fmt.Errorf("unknown data backend %q", c.Backend())
	}

	return nil
}

type DataSettings struct {
	URL       string
	Key       string
	JWTSecret string
	Timeout   time.Duration
}

type EmailSettings struct {
	APIKey    string
	Endpoint  string
	From      string
	Subject   string
	AcceptURL string
	Timeout   time.Duration
}

func (s EmailSettings) Configured() bool {
	return s.APIKey != ""
}

type CORSSettings struct {
	AllowOrigin  string
	AllowHeaders string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_addr", ":8080")
	v.SetDefault("debug", false)

	v.SetDefault("data.backend", BackendRest)
	v.SetDefault("data.timeout", 10*time.Second)
	v.SetDefault("db", "invited.sqlite")
	v.SetDefault("members_file", "members.yml")

	v.SetDefault("email.endpoint", "https://api.resend.com")
	v.SetDefault("email.from", "no-reply@myprojectmanagementapp.com")
	v.SetDefault("email.subject", "Uitnodiging voor project")
	v.SetDefault("email.accept_url", "https://myprojectmanagementapp.com/accept-invite")
	v.SetDefault("email.timeout", 10*time.Second)

	v.SetDefault("cors.allow_origin", "*")
	v.SetDefault("cors.allow_headers", "authorization, x-client-info, apikey, content-type")
}
