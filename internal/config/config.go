// Package config reads the settings of the contact book service from the
// process environment. The configuration is loaded once at startup and then
// handed to every component that needs it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/contact-book/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the runtime settings.
type Config struct {
	Port       string `json:"PORT"        validate:"required,number"`
	GinLogging bool   `json:"GIN_LOGGING"`

	DBDriver       string        `json:"DB_DRIVER"        validate:"oneof=mysql sqlite3"`
	DBHost         string        `json:"DBHOST"           validate:"required_if=DBDriver mysql"`
	DBUser         string        `json:"DBUSER"           validate:"required_if=DBDriver mysql"`
	DBPassword     string        `json:"DBPWD"`
	DBName         string        `json:"DBNAME"           validate:"required_if=DBDriver mysql"`
	DBPath         string        `json:"DB_PATH"          validate:"required_if=DBDriver sqlite3"`
	DBQueryTimeout time.Duration `json:"DB_QUERY_TIMEOUT" validate:"gt=0"`

	SessionSecret string `json:"SESSION_SECRET"  validate:"required,min=16"`
	SessionMaxAge int    `json:"SESSION_MAX_AGE" validate:"gt=0"`
	BcryptCost    int    `json:"BCRYPT_COST"     validate:"min=4,max=31"`
	MaxUploadMB   int64  `json:"MAX_UPLOAD_MB"   validate:"gt=0"`

	LogFile string `json:"LOG_FILE"`
	LogDev  bool   `json:"LOG_DEV"`
}

// Defaults returns the settings used for every variable that is not set in
// the environment.
func Defaults() Config {
	return Config{
		Port:           "8080",
		GinLogging:     true,
		DBDriver:       "mysql",
		DBHost:         "localhost:3306",
		DBName:         "contactbook",
		DBPath:         "contactbook.db",
		DBQueryTimeout: 3 * time.Second,
		SessionMaxAge:  24 * 60 * 60,
		BcryptCost:     bcrypt.DefaultCost,
		MaxUploadMB:    10,
		LogFile:        ".logs/contact-book.log",
	}
}

// Load overlays the environment on the defaults and validates the result.
//
// Usage example:
// > PORT=8080 DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 SESSION_SECRET=... go run ./cmd/service
func Load() (Config, error) {
	return load(os.LookupEnv)
}

// load is Load with an injectable environment lookup.
func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	var err error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && err == nil {
			*dst, err = strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				err = fmt.Errorf("could not parse %s env variable: %w", key, err)
			}
		}
	}

	str("PORT", &cfg.Port)
	if v, ok := lookup("GIN_LOGGING"); ok {
		cfg.GinLogging = !strings.EqualFold(strings.TrimSpace(v), "off")
	}
	str("DB_DRIVER", &cfg.DBDriver)
	str("DBHOST", &cfg.DBHost)
	str("DBUSER", &cfg.DBUser)
	if v, ok := lookup("DBPWD"); ok {
		cfg.DBPassword = v
	}
	str("DBNAME", &cfg.DBName)
	str("DB_PATH", &cfg.DBPath)
	if v, ok := lookup("DB_QUERY_TIMEOUT"); ok {
		cfg.DBQueryTimeout, err = time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("could not parse DB_QUERY_TIMEOUT env variable: %w", err)
		}
	}
	if v, ok := lookup("SESSION_SECRET"); ok {
		cfg.SessionSecret = v
	}
	num("SESSION_MAX_AGE", &cfg.SessionMaxAge)
	num("BCRYPT_COST", &cfg.BcryptCost)
	uploadMB := int(cfg.MaxUploadMB)
	num("MAX_UPLOAD_MB", &uploadMB)
	cfg.MaxUploadMB = int64(uploadMB)
	str("LOG_FILE", &cfg.LogFile)
	if v, ok := lookup("LOG_DEV"); ok {
		cfg.LogDev, _ = strconv.ParseBool(strings.TrimSpace(v))
	}
	if err != nil {
		return cfg, err
	}

	if err := validation.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DSN returns the data source name for the configured driver. MySQL
// connections parse DATETIME columns into time.Time and report matched rather
// than changed rows, so that an UPDATE that keeps all values still counts.
func (c Config) DSN() string {
	if c.DBDriver == "sqlite3" {
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.DBPath)
	}
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("clientFoundRows", "true")
	params.Set("charset", "utf8mb4")
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBName, params.Encode())
}

// MaxUploadBytes is the largest accepted spreadsheet upload.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
