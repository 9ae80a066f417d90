package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata" // app.timezone must resolve on minimal images

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvProduction = "production"

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Lock     LockConfig     `mapstructure:"lock"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`      // development | production
	Timezone string `mapstructure:"timezone"` // IANA zone used for appointment days and month boundaries
}

// IsProduction reports whether the app runs with production safeguards.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, EnvProduction)
}

// Location resolves Timezone.
func (a AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mongo | memory
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"` // Empty disables the notification archive
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// PaymentConfig is the payment gateway configuration.
type PaymentConfig struct {
	PartnerCode    string        `mapstructure:"partner_code"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	Endpoint       string        `mapstructure:"endpoint"`
	RedirectURL    string        `mapstructure:"redirect_url"`
	IPNURL         string        `mapstructure:"ipn_url"`
	RequestType    string        `mapstructure:"request_type"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Only honoured outside production.
	SkipSignatureVerification bool          `mapstructure:"skip_signature_verification"`
	ActivationGrace           time.Duration `mapstructure:"activation_grace"`
}

type BookingConfig struct {
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	LockWait time.Duration `mapstructure:"lock_wait"`
}

type LockConfig struct {
	Driver        string `mapstructure:"driver"` // mongo | redis | memory
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type JobsConfig struct {
	ExpirySchedule string `mapstructure:"expiry_schedule"` // cron spec, empty disables the sweep
}

// AdminConfig seeds the first admin account at startup when both are set.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, if present, is loaded into the
// process environment first.
func LoadConfig(path string) (config Config, err error) {
	if envErr := godotenv.Load(); envErr == nil {
		log.Println("INFO: Loaded environment from .env")
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil // Env vars and defaults are enough
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	if err = config.validate(); err != nil {
		return
	}
	return config, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("server.address", ":8080")

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "gym_app")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")

	v.SetDefault("payment.partner_code", "")
	v.SetDefault("payment.access_key", "")
	v.SetDefault("payment.secret_key", "")
	v.SetDefault("payment.endpoint", "https://test-payment.momo.vn/v2/gateway/api/create")
	v.SetDefault("payment.redirect_url", "http://localhost:8080/api/v1/payments/return")
	v.SetDefault("payment.ipn_url", "http://localhost:8080/api/v1/payments/notify")
	v.SetDefault("payment.request_type", "captureWallet")
	v.SetDefault("payment.request_timeout", "30s")
	v.SetDefault("payment.skip_signature_verification", false)
	v.SetDefault("payment.activation_grace", "2m")

	v.SetDefault("booking.lock_ttl", "10s")
	v.SetDefault("booking.lock_wait", "3s")

	v.SetDefault("lock.driver", "mongo")
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.redis_password", "")
	v.SetDefault("lock.redis_db", 0)

	v.SetDefault("jobs.expiry_schedule", "5 0 * * *")

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}

func (c Config) validate() error {
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("app.timezone %q: %w", c.App.Timezone, err)
	}
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("database.driver must be mongo or memory, got %q", c.Database.Driver)
	}
	switch c.Lock.Driver {
	case "mongo", "redis", "memory":
	default:
		return fmt.Errorf("lock.driver must be mongo, redis or memory, got %q", c.Lock.Driver)
	}
	if c.Lock.Driver == "mongo" && c.Database.Driver != "mongo" {
		return fmt.Errorf("lock.driver mongo requires database.driver mongo")
	}
	if c.Booking.LockTTL <= 0 || c.Booking.LockWait <= 0 {
		return fmt.Errorf("booking.lock_ttl and booking.lock_wait must be positive")
	}
	if c.App.IsProduction() {
		var missing []string
		if c.Payment.PartnerCode == "" {
			missing = append(missing, "payment.partner_code")
		}
		if c.Payment.AccessKey == "" {
			missing = append(missing, "payment.access_key")
		}
		if c.Payment.SecretKey == "" {
			missing = append(missing, "payment.secret_key")
		}
		if len(missing) > 0 {
			return fmt.Errorf("production requires %s", strings.Join(missing, ", "))
		}
	}
	if c.App.IsProduction() && c.Payment.SkipSignatureVerification {
		log.Println("WARN: payment.skip_signature_verification is ignored in production")
	}
	return nil
}
