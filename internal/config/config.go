package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	MigrationsDir string   `mapstructure:"MIGRATIONS_DIR"`
	TaxRate       float64  `mapstructure:"TAX_RATE"`
	TokenTTLDays  int      `mapstructure:"TOKEN_TTL_DAYS"`
	ClinicName    string   `mapstructure:"CLINIC_NAME"`
	ClinicPhone   string   `mapstructure:"CLINIC_PHONE"`
	ClinicEmail   string   `mapstructure:"CLINIC_EMAIL"`
	ClinicLogoURL string   `mapstructure:"CLINIC_LOGO_URL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("TAX_RATE", 0.05)
	v.SetDefault("TOKEN_TTL_DAYS", 3)
	v.SetDefault("CLINIC_NAME", "HealthCare Clinic")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("TAX_RATE")
	v.BindEnv("TOKEN_TTL_DAYS")
	v.BindEnv("CLINIC_NAME")
	v.BindEnv("CLINIC_PHONE")
	v.BindEnv("CLINIC_EMAIL")
	v.BindEnv("CLINIC_LOGO_URL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is internally consistent. TAX_RATE
// is a fraction of the subtotal, not a percentage: 0.05 means 5% GST.
func (c *Config) Validate() error {
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return fmt.Errorf("TAX_RATE must be in [0, 1), got %v", c.TaxRate)
	}
	if c.TokenTTLDays < 1 {
		return fmt.Errorf("TOKEN_TTL_DAYS must be at least 1, got %d", c.TokenTTLDays)
	}
	return nil
}
