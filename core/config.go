package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		SessionCookie             string
		SecureCookie              bool
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
	}

	DatabaseConfig struct {
		Engine        string // mongodb | postgres | inmem
		URL           string // mongodb connection string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	CacheConfig struct {
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}

	JobsConfig struct {
		TaskArchiveAfter      time.Duration
		NotificationRetention time.Duration
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		GoogleClientID            string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Cache    CacheConfig
		Jobs     JobsConfig

		defaultFromEmail mail.Address
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return c.defaultFromEmail
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig reads the configuration from the environment, falling back to sane defaults.
// ENV selects the variables prefix (DEV by default) and the optional config/.env.<env> file to load.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("debug", true)
	conf.SetDefault("test_mode", false)
	conf.SetDefault("app_name", "Smart Campus")
	conf.SetDefault("secret_key", "k2l!v9b$+1r=eu&3xq(#n8h^c0d%w5ty)7zm*f4pa6sjg")
	conf.SetDefault("default_from_email", "Smart Campus <noreply@localhost>")
	conf.SetDefault("frontend_base_url", "http://localhost:3000")
	conf.SetDefault("google_client_id", "")
	conf.SetDefault("rollbar_token", "")
	conf.SetDefault("sendgrid_api_key", "")
	conf.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	conf.SetDefault("server_addr", ":8000")
	conf.SetDefault("server_debug_addr", ":4000")
	conf.SetDefault("session_cookie", "session")
	conf.SetDefault("secure_cookie", false)
	conf.SetDefault("shutdown_timeout", 5*time.Second)
	conf.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	conf.SetDefault("jwt_refresh_expiration_delta", 30*24*time.Hour)
	conf.SetDefault("allowed_origins", "http://localhost:3000")

	conf.SetDefault("database_engine", "mongodb")
	conf.SetDefault("database_url", "mongodb://localhost:27017")
	conf.SetDefault("database_name", "smartcampus")
	conf.SetDefault("database_user", "smartcampus")
	conf.SetDefault("database_password", "")
	conf.SetDefault("database_admin_user", "")
	conf.SetDefault("database_admin_password", "")
	conf.SetDefault("database_host", "localhost")
	conf.SetDefault("database_port", "5432")
	conf.SetDefault("database_disable_tls", true)

	conf.SetDefault("redis_addr", "")
	conf.SetDefault("redis_password", "")
	conf.SetDefault("redis_db", 0)

	conf.SetDefault("task_archive_after", 30*24*time.Hour)
	conf.SetDefault("notification_retention", 90*24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("test_mode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	from, err := mail.ParseAddress(conf.GetString("default_from_email"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:                       env,
		Build:                     conf.GetString("build"),
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("test_mode"),
		AppName:                   conf.GetString("app_name"),
		SecretKey:                 conf.GetString("secret_key"),
		FrontendBaseURL:           strings.TrimSuffix(conf.GetString("frontend_base_url"), "/"),
		GoogleClientID:            conf.GetString("google_client_id"),
		RollbarToken:              conf.GetString("rollbar_token"),
		SendgridApiKey:            conf.GetString("sendgrid_api_key"),
		PasswordResetTimeoutDelta: conf.GetDuration("password_reset_timeout_delta"),
		Server: ServerConfig{
			Host:                      conf.GetString("server_addr"),
			DebugHost:                 conf.GetString("server_debug_addr"),
			SessionCookie:             conf.GetString("session_cookie"),
			SecureCookie:              conf.GetBool("secure_cookie"),
			ShutdownTimeout:           conf.GetDuration("shutdown_timeout"),
			JWTExpirationDelta:        conf.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwt_refresh_expiration_delta"),
			AllowedOrigins:            splitList(conf.GetString("allowed_origins")),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(conf.GetString("database_engine")),
			URL:           conf.GetString("database_url"),
			Name:          conf.GetString("database_name"),
			User:          conf.GetString("database_user"),
			Password:      conf.GetString("database_password"),
			AdminUser:     conf.GetString("database_admin_user"),
			AdminPassword: conf.GetString("database_admin_password"),
			Host:          conf.GetString("database_host"),
			Port:          conf.GetString("database_port"),
			DisableTLS:    conf.GetBool("database_disable_tls"),
		},
		Cache: CacheConfig{
			RedisAddr:     conf.GetString("redis_addr"),
			RedisPassword: conf.GetString("redis_password"),
			RedisDB:       conf.GetInt("redis_db"),
		},
		Jobs: JobsConfig{
			TaskArchiveAfter:      conf.GetDuration("task_archive_after"),
			NotificationRetention: conf.GetDuration("notification_retention"),
		},
		defaultFromEmail: *from,
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanString(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}
